package simulator

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var builtinResponses []byte

const (
	actionHeartbeatStart = "heartbeat_start"
	actionHeartbeatStop  = "heartbeat_stop"
)

// Rule is one canned reply.
type Rule struct {
	Command  string   `yaml:"command"`
	Prefix   string   `yaml:"prefix"`
	Contains string   `yaml:"contains"`
	Action   string   `yaml:"action"`
	Lines    []string `yaml:"lines"`

	tmpl *template.Template
}

func (r Rule) matches(cmd string) bool {
	if r.Command != "" {
		return cmd == r.Command
	}
	return strings.HasPrefix(cmd, r.Prefix) && strings.Contains(cmd, r.Contains)
}

// State is what reply templates can refer to.
type State struct {
	DeviceID          string
	Broker            string
	ClientID          string
	UptimeMS          int64
	UptimeSeconds     int64
	HeartbeatInterval int
	KernelVersion     string
}

// LoadRules reads a YAML rule list from path. An empty path yields the
// built-in replies.
func LoadRules(path string) ([]Rule, error) {
	data := builtinResponses
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read responses: %w", err)
		}
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule list and compiles its templates.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	for i := range rules {
		r := &rules[i]
		if r.Command == "" && r.Prefix == "" {
			return nil, fmt.Errorf("response rule %d: command or prefix is required", i)
		}
		t, err := template.New(fmt.Sprintf("rule%d", i)).Option("missingkey=error").Parse(strings.Join(r.Lines, "\n"))
		if err != nil {
			return nil, fmt.Errorf("response rule %d: %w", i, err)
		}
		r.tmpl = t
	}
	return rules, nil
}

func (r Rule) render(s State) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
