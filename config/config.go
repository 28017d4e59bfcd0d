// Package config loads the rrops settings from an optional YAML/JSON file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rapidreach/rrops/core/acceptance"
	"github.com/rapidreach/rrops/core/estimate"
	"github.com/rapidreach/rrops/core/firmware"
	"github.com/rapidreach/rrops/core/history"
	"github.com/rapidreach/rrops/core/metrics"
	"github.com/rapidreach/rrops/infra/jira"
	"github.com/rapidreach/rrops/infra/mqtt"
	"github.com/rapidreach/rrops/simulator"
)

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "rrops.yaml"

// EnvPrefix prefixes structured environment overrides, e.g. RR_MQTT__HOST.
const EnvPrefix = "RR_"

// legacyEnv maps the variables the bench scripts have always read onto keys.
var legacyEnv = map[string]string{
	"MQTT_BROKER_HOST": "mqtt.host",
	"MQTT_BROKER_PORT": "mqtt.port",
	"DEVICE_ID":        "device.id",
	"JIRA_URL":         "tracker.url",
	"JIRA_USER":        "tracker.user",
	"JIRA_TOKEN":       "tracker.token",
	"JIRA_PROJECT":     "tracker.project",
}

// defaults that cannot be expressed as zero-value checks in SetDefaults.
var defaults = map[string]any{
	"acceptance.tracker_updates":     true,
	"acceptance.inter_case_delay_ms": 2000,
	"acceptance.connect_settle_ms":   2000,
	"tracker.max_retries":            2,
	"firmware.manifest":              true,
	"history.backend":                "jsonl",
}

type Config struct {
	MQTT       mqtt.Config       `json:"mqtt"`
	Device     DeviceConfig      `json:"device"`
	Acceptance acceptance.Config `json:"acceptance"`
	Tracker    jira.Config       `json:"tracker"`
	Estimate   estimate.Config   `json:"estimate"`
	Firmware   firmware.Config   `json:"firmware"`
	Smoke      SmokeConfig       `json:"smoke"`
	Simulator  simulator.Config  `json:"simulator"`
	Metrics    metrics.Config    `json:"metrics"`
	History    history.Config    `json:"history"`
}

// DeviceConfig names the device under test.
type DeviceConfig struct {
	ID string `json:"id"`
}

// SetDefaults applies the bench device name.
func (c *DeviceConfig) SetDefaults() {
	if c.ID == "" {
		c.ID = "rapidreach_device"
	}
}

// Load reads path (or DefaultPath when empty), applies environment overrides,
// defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("default %s: %w", key, err)
		}
	}

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	if err := loadFile(k, path, optional); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		mapped, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("legacy env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, optional bool) error {
	if _, err := os.Stat(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Device.SetDefaults()
	c.Acceptance.SetDefaults()
	c.Tracker.SetDefaults()
	c.Estimate.SetDefaults()
	c.Firmware.SetDefaults()
	c.Smoke.SetDefaults()
	if c.Simulator.DeviceID == "" {
		c.Simulator.DeviceID = c.Device.ID
	}
	c.Simulator.SetDefaults()
	c.History.SetDefaults()
}

// Validate checks every section. Tracker credentials are checked by the
// commands that need them.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"mqtt", c.MQTT.Validate},
		{"acceptance", c.Acceptance.Validate},
		{"estimate", c.Estimate.Validate},
		{"firmware", c.Firmware.Validate},
		{"smoke", c.Smoke.Validate},
		{"simulator", c.Simulator.Validate},
		{"history", c.History.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}
