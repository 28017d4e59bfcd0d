package acceptance

import (
	"fmt"
	"time"
)

// Config tunes the runner timing and its side effects.
type Config struct {
	// CasesFile overrides the built-in catalog with a YAML case list.
	CasesFile string `json:"cases_file"`
	// CommandWaitMS is how long responses are collected after each command.
	CommandWaitMS int `json:"command_wait_ms"`
	// InterCaseDelayMS is slept between cases.
	InterCaseDelayMS int `json:"inter_case_delay_ms"`
	// ConnectSettleMS is slept once after connecting.
	ConnectSettleMS int `json:"connect_settle_ms"`
	// ReportPath is where the JSON report is written.
	ReportPath string `json:"report_path"`
	// TrackerUpdates books worklogs and transitions on the tracker.
	TrackerUpdates bool `json:"tracker_updates"`
	// MinLoggedMinutes is the floor applied to booked time.
	MinLoggedMinutes float64 `json:"min_logged_minutes"`
}

// SetDefaults fills unset timings with the values the bench has always used.
func (c *Config) SetDefaults() {
	if c.CommandWaitMS <= 0 {
		c.CommandWaitMS = 1000
	}
	if c.InterCaseDelayMS < 0 {
		c.InterCaseDelayMS = 2000
	}
	if c.ConnectSettleMS < 0 {
		c.ConnectSettleMS = 2000
	}
	if c.ReportPath == "" {
		c.ReportPath = "acceptance-test-results.json"
	}
	if c.MinLoggedMinutes <= 0 {
		c.MinLoggedMinutes = 1
	}
}

// Validate checks the timings are usable.
func (c Config) Validate() error {
	if c.CommandWaitMS <= 0 {
		return fmt.Errorf("command_wait_ms must be positive")
	}
	if c.InterCaseDelayMS < 0 || c.ConnectSettleMS < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// CommandWait returns the response collection window.
func (c Config) CommandWait() time.Duration {
	return time.Duration(c.CommandWaitMS) * time.Millisecond
}

// InterCaseDelay returns the pause between cases.
func (c Config) InterCaseDelay() time.Duration {
	return time.Duration(c.InterCaseDelayMS) * time.Millisecond
}

// ConnectSettle returns the pause after connecting.
func (c Config) ConnectSettle() time.Duration {
	return time.Duration(c.ConnectSettleMS) * time.Millisecond
}
