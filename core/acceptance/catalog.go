// Package acceptance runs device acceptance cases over a command/response
// transport and books the outcome on the issue tracker.
package acceptance

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cases.yaml
var builtinCases []byte

// ErrUnknownCase is returned by Select for IDs missing from the catalog.
var ErrUnknownCase = errors.New("unknown test case")

// TestCase is one acceptance case: a sequence of CLI commands and the tokens
// any of which must appear in each response.
type TestCase struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Commands        []string `yaml:"commands" json:"commands"`
	Expected        []string `yaml:"expected" json:"expected"`
	EstimateMinutes float64  `yaml:"estimate_minutes" json:"estimate_minutes"`
}

// Catalog is an ordered list of cases. Runs follow catalog order.
type Catalog []TestCase

// DefaultCatalog returns the built-in case list.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(builtinCases)
}

// LoadCatalog reads a YAML case list from path. An empty path yields the
// built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML case list.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks IDs are present and unique and every case has commands.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, tc := range c {
		if tc.ID == "" {
			return fmt.Errorf("case %d: id is required", i)
		}
		if _, dup := seen[tc.ID]; dup {
			return fmt.Errorf("case %s: duplicate id", tc.ID)
		}
		seen[tc.ID] = struct{}{}
		if len(tc.Commands) == 0 {
			return fmt.Errorf("case %s: no commands", tc.ID)
		}
	}
	return nil
}

// Select keeps the cases named by ids, in catalog order. No ids selects the
// whole catalog.
func (c Catalog) Select(ids []string) (Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.ToUpper(strings.TrimSpace(id))] = false
	}
	var out Catalog
	for _, tc := range c {
		if _, ok := want[tc.ID]; ok {
			want[tc.ID] = true
			out = append(out, tc)
		}
	}
	var missing []string
	for _, id := range ids {
		key := strings.ToUpper(strings.TrimSpace(id))
		if !want[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, strings.Join(missing, ", "))
	}
	return out, nil
}

// Lookup returns the case with the given ID.
func (c Catalog) Lookup(id string) (TestCase, bool) {
	for _, tc := range c {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}
