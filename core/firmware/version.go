// Package firmware collects signed board images from a build tree and stages
// them as versioned update files.
package firmware

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrVersionIncomplete is returned when a version file lacks a required key.
var ErrVersionIncomplete = errors.New("version file incomplete")

// Version is the firmware release number read from the VERSION file.
type Version struct {
	Major string `json:"major"`
	Minor string `json:"minor"`
	Patch string `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("V%s.%s.%s", v.Major, v.Minor, v.Patch)
}

// ParseVersion reads KEY = VALUE lines and picks VERSION_MAJOR, VERSION_MINOR
// and PATCHLEVEL. Lines without '=' and '#' comments are ignored.
func ParseVersion(r io.Reader) (Version, error) {
	vars := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := sc.Err(); err != nil {
		return Version{}, fmt.Errorf("read version: %w", err)
	}
	var missing []string
	for _, k := range []string{"VERSION_MAJOR", "VERSION_MINOR", "PATCHLEVEL"} {
		if _, ok := vars[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Version{}, fmt.Errorf("%w: missing %s", ErrVersionIncomplete, strings.Join(missing, ", "))
	}
	return Version{Major: vars["VERSION_MAJOR"], Minor: vars["VERSION_MINOR"], Patch: vars["PATCHLEVEL"]}, nil
}

// ReadVersionFile parses the version file at path.
func ReadVersionFile(path string) (Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return Version{}, err
	}
	defer func() { _ = f.Close() }()
	return ParseVersion(f)
}
