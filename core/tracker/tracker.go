// Package tracker describes the issue-tracker operations the tools rely on.
// The Jira REST implementation lives in infra/jira.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrTransitionNotFound is returned when an issue offers no transition with the
// requested name.
var ErrTransitionNotFound = errors.New("transition not found")

// TimeLayout is the timestamp layout the tracker expects for worklog starts.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

// Issue is the slice of an issue the tools read.
type Issue struct {
	Key       string `json:"key"`
	Summary   string `json:"summary"`
	ParentKey string `json:"parent_key,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Worklog is one time entry on an issue.
type Worklog struct {
	TimeSpent string
	Comment   string
	Started   time.Time
}

// Transition is a workflow move available on an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tracker is the issue-tracker client used by the acceptance runner and the
// estimate updater.
type Tracker interface {
	Search(ctx context.Context, jql string, fields []string, maxResults int) ([]Issue, error)
	AddWorklog(ctx context.Context, key string, w Worklog) error
	Transitions(ctx context.Context, key string) ([]Transition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	SetOriginalEstimate(ctx context.Context, key, estimate string) error
}

// StatusError reports an unexpected HTTP status from the tracker.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// TransitionByName moves key through the transition whose name matches name
// case-insensitively.
func TransitionByName(ctx context.Context, t Tracker, key, name string) error {
	ts, err := t.Transitions(ctx, key)
	if err != nil {
		return err
	}
	for _, tr := range ts {
		if strings.EqualFold(tr.Name, name) {
			return t.DoTransition(ctx, key, tr.ID)
		}
	}
	return fmt.Errorf("%s on %s: %w", name, key, ErrTransitionNotFound)
}

// FormatMinutes renders a duration in whole minutes, the way worklogs are
// booked ("3m"). Fractions are truncated.
func FormatMinutes(minutes float64) string {
	return strconv.Itoa(int(minutes)) + "m"
}

// FormatHours renders an estimate in hours with at most one decimal ("2.5h",
// "3h").
func FormatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + "h"
}

// Quote escapes a value for use inside a double-quoted JQL string.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
