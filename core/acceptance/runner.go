package acceptance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rapidreach/rrops/core/history"
	corelogger "github.com/rapidreach/rrops/core/logger"
	coremetrics "github.com/rapidreach/rrops/core/metrics"
	"github.com/rapidreach/rrops/core/tracker"
)

// ErrCasesFailed is returned by callers that turn a run with failures into a
// non-zero exit.
var ErrCasesFailed = errors.New("acceptance cases failed")

const (
	reasonNoResponse = "No response received"
	reasonNoMatch    = "Expected string not found in response"
	doneTransition   = "done"
	rule             = "============================================================"
)

// Transport delivers one command to the device and returns whatever came
// back within its response window.
type Transport interface {
	Send(ctx context.Context, command string) (string, error)
}

// Options wires the runner's optional collaborators. Nil members are skipped.
type Options struct {
	InterCaseDelay   time.Duration
	MinLoggedMinutes float64
	Tracker          tracker.Tracker
	Metrics          coremetrics.MetricsSink
	History          history.Store
	Out              io.Writer
	Logger           corelogger.Logger
}

// Runner executes cases sequentially over a Transport.
type Runner struct {
	transport Transport
	opts      Options
	runID     string
	out       io.Writer
	log       corelogger.Logger
	now       func() time.Time
}

// NewRunner returns a runner with a fresh run ID.
func NewRunner(t Transport, o Options) *Runner {
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Metrics == nil {
		o.Metrics = coremetrics.NopSink{}
	}
	if o.History == nil {
		o.History = history.NopStore{}
	}
	if o.MinLoggedMinutes <= 0 {
		o.MinLoggedMinutes = 1
	}
	log := o.Logger
	if log == nil {
		log = corelogger.NopLogger{}
	}
	return &Runner{
		transport: t,
		opts:      o,
		runID:     uuid.NewString(),
		out:       o.Out,
		log:       log,
		now:       time.Now,
	}
}

// RunID identifies this run in metrics, history and the report.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// RunCase sends every command of tc and checks each response. A transport
// error fails that command and the case continues; cancellation stops before
// the next command and returns the context error.
func (r *Runner) RunCase(ctx context.Context, tc TestCase) (CaseResult, error) {
	r.printf("\n%s\nRunning test %s: %s\n%s\n", rule, tc.ID, tc.Name, rule)

	res := CaseResult{
		ID:               tc.ID,
		Name:             tc.Name,
		Passed:           true,
		EstimatedMinutes: tc.EstimateMinutes,
	}
	fail := func(reason string) {
		res.Passed = false
		if res.Error == "" {
			res.Error = reason
		}
	}

	start := r.now()
	for _, cmd := range tc.Commands {
		if err := ctx.Err(); err != nil {
			res.ElapsedMinutes = r.now().Sub(start).Minutes()
			fail(err.Error())
			return res, err
		}
		r.printf("  Sending: %s\n", cmd)
		resp, err := r.transport.Send(ctx, cmd)
		cr := CommandResult{Command: cmd, Response: resp}
		if err != nil {
			if ctx.Err() != nil {
				res.Results = append(res.Results, cr)
				res.ElapsedMinutes = r.now().Sub(start).Minutes()
				fail(ctx.Err().Error())
				return res, ctx.Err()
			}
			cr.Error = err.Error()
			res.Results = append(res.Results, cr)
			r.log.Errorf("%s: send %q: %v", tc.ID, cmd, err)
			r.printf("  ✗ Send failed: %v\n", err)
			fail(err.Error())
			continue
		}
		cr.Received, cr.Matched = Match(resp, tc.Expected)
		res.Results = append(res.Results, cr)
		switch {
		case !cr.Received:
			r.printf("  ⚠️  %s\n", reasonNoResponse)
			fail(reasonNoResponse)
		case !cr.Matched:
			r.printf("  ❌ %s\n", reasonNoMatch)
			fail(reasonNoMatch)
		}
	}
	elapsed := r.now().Sub(start)
	res.ElapsedMinutes = elapsed.Minutes()

	verdict := "PASSED ✓"
	if !res.Passed {
		verdict = "FAILED ✗"
	}
	r.printf("\nTest %s: %s\n", tc.ID, verdict)
	r.printf("Time: %.1fs (estimated: %smin)\n", elapsed.Seconds(), strconv.FormatFloat(tc.EstimateMinutes, 'f', -1, 64))
	return res, nil
}

// Run executes cases in order, books each outcome and returns the report.
// Per-case failures never stop the run; a cancelled context does, and the
// partial report is returned with the context error.
func (r *Runner) Run(ctx context.Context, cases Catalog) (Report, error) {
	started := r.now()
	r.printf("\nStarting acceptance tests at %s\n", started.Format("2006-01-02 15:04:05"))
	r.printf("Testing %d test cases via MQTT CLI bridge\n\n", len(cases))

	rep := Report{
		RunID:   r.runID,
		Summary: Summary{Total: len(cases)},
		Results: make(map[string]CaseResult, len(cases)),
	}
	var runErr error
	for i, tc := range cases {
		res, err := r.RunCase(ctx, tc)
		rep.Results[tc.ID] = res
		if res.Passed && err == nil {
			rep.Summary.Passed++
		} else {
			rep.Summary.Failed++
		}
		rep.Summary.TotalMinutes += res.ElapsedMinutes
		if err != nil {
			runErr = err
			break
		}

		r.book(ctx, res)
		r.record(ctx, tc, res)

		if i < len(cases)-1 && r.opts.InterCaseDelay > 0 {
			if err := sleep(ctx, r.opts.InterCaseDelay); err != nil {
				runErr = err
				break
			}
		}
	}
	rep.Timestamp = r.now()

	r.printf("\n%s\nACCEPTANCE TEST SUMMARY\n%s\n", rule, rule)
	r.printf("Total tests: %d\n", rep.Summary.Total)
	r.printf("Passed: %d\n", rep.Summary.Passed)
	r.printf("Failed: %d\n", rep.Summary.Failed)
	r.printf("Total time: %.1f minutes\n%s\n\n", rep.Summary.TotalMinutes, rule)

	if err := r.opts.Metrics.RecordRun(coremetrics.RunEvent{
		RunID:    r.runID,
		Total:    rep.Summary.Total,
		Passed:   rep.Summary.Passed,
		Failed:   rep.Summary.Failed,
		Duration: rep.Timestamp.Sub(started),
		Time:     rep.Timestamp,
	}); err != nil {
		r.log.Warnf("record run metrics: %v", err)
	}
	if err := coremetrics.Flush(ctx, r.opts.Metrics); err != nil {
		r.log.Warnf("flush metrics: %v", err)
	}
	return rep, runErr
}

// book logs the elapsed time on the case's issue and closes it when passed.
func (r *Runner) book(ctx context.Context, res CaseResult) {
	t := r.opts.Tracker
	if t == nil {
		return
	}
	minutes := res.ElapsedMinutes
	if minutes < r.opts.MinLoggedMinutes {
		minutes = r.opts.MinLoggedMinutes
	}
	outcome := "passed"
	if !res.Passed {
		outcome = "failed"
	}
	err := t.AddWorklog(ctx, res.ID, tracker.Worklog{
		TimeSpent: tracker.FormatMinutes(minutes),
		Comment:   fmt.Sprintf("Automated test %s via MQTT CLI interface", outcome),
		Started:   r.now(),
	})
	if err != nil {
		r.log.Errorf("%s: add worklog: %v", res.ID, err)
		r.printf("  ✗ Failed to log work: %s\n", statusText(err))
	} else {
		r.printf("  ✓ Logged %.1f minutes to %s\n", minutes, res.ID)
	}

	if !res.Passed {
		return
	}
	err = tracker.TransitionByName(ctx, t, res.ID, doneTransition)
	switch {
	case err == nil:
		r.printf("  ✓ Moved %s to Done\n", res.ID)
	case errors.Is(err, tracker.ErrTransitionNotFound):
		r.printf("  ⚠️  'Done' transition not found\n")
	default:
		r.log.Errorf("%s: transition: %v", res.ID, err)
		r.printf("  ✗ Failed to transition: %s\n", statusText(err))
	}
}

func (r *Runner) record(ctx context.Context, tc TestCase, res CaseResult) {
	now := r.now()
	if err := r.opts.Metrics.RecordCase(coremetrics.CaseEvent{
		RunID:     r.runID,
		CaseID:    tc.ID,
		Passed:    res.Passed,
		Commands:  len(tc.Commands),
		Elapsed:   time.Duration(res.ElapsedMinutes * float64(time.Minute)),
		Estimated: time.Duration(tc.EstimateMinutes * float64(time.Minute)),
		Time:      now,
	}); err != nil {
		r.log.Warnf("record case metrics: %v", err)
	}
	if err := r.opts.History.Append(ctx, history.Record{
		Timestamp:        now,
		RunID:            r.runID,
		CaseID:           tc.ID,
		Name:             tc.Name,
		Passed:           res.Passed,
		ElapsedMinutes:   res.ElapsedMinutes,
		EstimatedMinutes: tc.EstimateMinutes,
		Error:            res.Error,
	}); err != nil {
		r.log.Warnf("append history: %v", err)
	}
}

func statusText(err error) string {
	if code := tracker.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return strings.TrimSpace(err.Error())
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
