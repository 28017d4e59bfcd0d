package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "rrops.yaml", `mqtt:
  host: "10.0.0.5"
  port: 1884
  client_id: "bench"
device:
  id: "rr_bench_7"
acceptance:
  command_wait_ms: 1500
  tracker_updates: false
  report_path: "out/report.json"
tracker:
  url: "https://example.atlassian.net"
  project: "RDP"
estimate:
  budget_hours: 80
firmware:
  build_dir: "out/build"
  bundle: true
metrics:
  sinks:
    - type: "nop"
history:
  backend: "sqlite"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"mqtt.host", cfg.MQTT.Host, "10.0.0.5"},
		{"mqtt.port", cfg.MQTT.Port, 1884},
		{"mqtt.broker_url", cfg.MQTT.BrokerURL(), "tcp://10.0.0.5:1884"},
		{"device.id", cfg.Device.ID, "rr_bench_7"},
		{"simulator.device_id", cfg.Simulator.DeviceID, "rr_bench_7"},
		{"acceptance.command_wait_ms", cfg.Acceptance.CommandWaitMS, 1500},
		{"acceptance.inter_case_delay_ms", cfg.Acceptance.InterCaseDelayMS, 2000},
		{"acceptance.tracker_updates", cfg.Acceptance.TrackerUpdates, false},
		{"acceptance.report_path", cfg.Acceptance.ReportPath, "out/report.json"},
		{"tracker.url", cfg.Tracker.URL, "https://example.atlassian.net"},
		{"tracker.max_retries", cfg.Tracker.MaxRetries, 2},
		{"estimate.budget_hours", cfg.Estimate.BudgetHours, 80.0},
		{"estimate.acceptance_budget_hours", cfg.Estimate.AcceptanceBudgetHours, 20.0},
		{"firmware.build_dir", cfg.Firmware.BuildDir, "out/build"},
		{"firmware.manifest", cfg.Firmware.Manifest, true},
		{"firmware.bundle", cfg.Firmware.Bundle, true},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"history.backend", cfg.History.Backend, "sqlite"},
		{"smoke.broker", cfg.Smoke.Broker, "tcp://emqx:1883"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tcp://192.168.2.62:1883", cfg.MQTT.BrokerURL())
	assert.Equal(t, "rapidreach_device", cfg.Device.ID)
	assert.Equal(t, 1000, cfg.Acceptance.CommandWaitMS)
	assert.Equal(t, 2000, cfg.Acceptance.ConnectSettleMS)
	assert.True(t, cfg.Acceptance.TrackerUpdates)
	assert.Equal(t, "acceptance-test-results.json", cfg.Acceptance.ReportPath)
	assert.Equal(t, 120.0, cfg.Estimate.BudgetHours)
	assert.Equal(t, 100, cfg.Estimate.MaxResults)
	assert.Equal(t, "firmware_updates", cfg.Firmware.OutputDir)
	assert.Equal(t, "jsonl", cfg.History.Backend)
	assert.Equal(t, "rapidreach_test_client", cfg.Smoke.ClientID)
	assert.Equal(t, "rapidreach/heartbeat", cfg.Smoke.HeartbeatTopic)
	assert.Equal(t, "rapidreach/status", cfg.Smoke.StatusTopic)
}

func TestLoadMissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "rrops.toml", "x = 1\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "rrops.json", `{"device":{"id":"json_dev"},"mqtt":{"broker":"tcp://broker:1883"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json_dev", cfg.Device.ID)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.BrokerURL())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "rrops.yaml", "mqtt:\n  host: file-host\ndevice:\n  id: file-dev\n")
	t.Setenv("RR_ACCEPTANCE__COMMAND_WAIT_MS", "2500")
	t.Setenv("RR_DEVICE__ID", "env-dev")
	t.Setenv("MQTT_BROKER_HOST", "legacy-host")
	t.Setenv("MQTT_BROKER_PORT", "1999")
	t.Setenv("JIRA_URL", "https://jira.example.com")
	t.Setenv("JIRA_USER", "bot@example.com")
	t.Setenv("JIRA_TOKEN", "secret")
	t.Setenv("JIRA_PROJECT", "QA")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Acceptance.CommandWaitMS)
	assert.Equal(t, "env-dev", cfg.Device.ID)
	assert.Equal(t, "legacy-host", cfg.MQTT.Host)
	assert.Equal(t, 1999, cfg.MQTT.Port)
	assert.Equal(t, "https://jira.example.com", cfg.Tracker.URL)
	assert.Equal(t, "bot@example.com", cfg.Tracker.User)
	assert.Equal(t, "secret", cfg.Tracker.Token)
	assert.Equal(t, "QA", cfg.Tracker.Project)
	assert.NoError(t, cfg.Tracker.RequireCredentials())
}

func TestLegacyDeviceIDWinsOverPrefixed(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RR_DEVICE__ID", "prefixed")
	t.Setenv("DEVICE_ID", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Device.ID)
}

func TestLoadValidationError(t *testing.T) {
	path := writeFile(t, "rrops.yaml", "mqtt:\n  qos: 3\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "mqtt")
}
