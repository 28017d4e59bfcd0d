package acceptance

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CommandResult is the exchange for one command of a case.
type CommandResult struct {
	Command  string `json:"command"`
	Response string `json:"response"`
	Received bool   `json:"received"`
	Matched  bool   `json:"matched"`
	Error    string `json:"error,omitempty"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Passed           bool            `json:"passed"`
	ElapsedMinutes   float64         `json:"elapsed_minutes"`
	EstimatedMinutes float64         `json:"estimated_minutes"`
	Results          []CommandResult `json:"results"`
	Error            string          `json:"error,omitempty"`
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	TotalMinutes float64 `json:"total_minutes"`
}

// Report is the JSON document written after a run.
type Report struct {
	RunID     string                `json:"run_id"`
	Timestamp time.Time             `json:"timestamp"`
	Summary   Summary               `json:"summary"`
	Results   map[string]CaseResult `json:"results"`
}

// WriteReport writes r to path as indented JSON.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
