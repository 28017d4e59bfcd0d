package estimate

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	corelogger "github.com/rapidreach/rrops/core/logger"
	"github.com/rapidreach/rrops/core/tracker"
)

const rule = "============================================================"

// Result counts what an update run changed.
type Result struct {
	Plan              Plan
	Updated           int
	AcceptanceTasks   int
	AcceptanceHours   float64
	AcceptanceUpdated int
}

// Updater writes planned estimates to the tracker.
type Updater struct {
	t       tracker.Tracker
	cfg     Config
	project string
	dryRun  bool
	out     io.Writer
	log     corelogger.Logger
}

// NewUpdater prepares an update for project. With dryRun set the plan is
// printed and nothing is written.
func NewUpdater(t tracker.Tracker, project string, cfg Config, dryRun bool, out io.Writer, log corelogger.Logger) *Updater {
	cfg.SetDefaults()
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = corelogger.NopLogger{}
	}
	return &Updater{t: t, cfg: cfg, project: project, dryRun: dryRun, out: out, log: log}
}

func (u *Updater) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(u.out, format, args...)
}

func (u *Updater) jql(status string) string {
	return fmt.Sprintf("project=%s AND status=%s AND type=%s ORDER BY key",
		u.project, tracker.Quote(status), u.cfg.IssueType)
}

// Run plans and applies implementation estimates, then spreads the
// acceptance budget over acceptance tasks. Failing to list implementation
// tasks aborts; failing to list acceptance tasks only skips that phase.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	u.printf("Fetching %s implementation tasks...\n", u.cfg.TodoStatus)
	todo, err := u.t.Search(ctx, u.jql(u.cfg.TodoStatus), []string{"key", "summary", "parent"}, u.cfg.MaxResults)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s tasks: %w", u.cfg.TodoStatus, err)
	}
	u.printf("\nFound %d %s implementation sub-tasks\n", len(todo), u.cfg.TodoStatus)

	plan := NewPlan(todo, u.cfg.BudgetHours, u.cfg.keywords())
	res := Result{Plan: plan}
	u.printPlan(plan)

	u.printf("\n%s\n", rule)
	u.printf("Ready to update %d implementation tasks with time estimates\n", len(todo))
	u.printf("Total hours: %.1fh\n", plan.Total())
	if u.dryRun {
		u.printf("\nDry run: no estimates written\n")
	} else {
		u.printf("\nUpdating implementation tasks...\n")
		res.Updated = u.apply(ctx, plan.Assignments)
		u.printf("\nUpdated %d/%d implementation tasks\n", res.Updated, len(todo))
	}

	u.printf("\n%s\nFetching %s tasks...\n", rule, u.cfg.AcceptanceStatus)
	tests, err := u.t.Search(ctx, u.jql(u.cfg.AcceptanceStatus), []string{"key", "summary"}, u.cfg.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		u.log.Warnf("fetch %s tasks: %v", u.cfg.AcceptanceStatus, err)
		u.printf("Skipping %s tasks: %s\n", u.cfg.AcceptanceStatus, statusText(err))
		return res, nil
	}
	res.AcceptanceTasks = len(tests)
	res.AcceptanceHours = AcceptanceShare(len(tests), u.cfg.AcceptanceBudgetHours)
	u.printf("Found %d %s sub-tasks\n", len(tests), u.cfg.AcceptanceStatus)
	u.printf("Each test task will get: %sh\n", hours(res.AcceptanceHours))
	if u.dryRun {
		return res, nil
	}
	u.printf("\nUpdating test tasks...\n")
	as := make([]Assignment, len(tests))
	for i, is := range tests {
		as[i] = Assignment{Issue: is, Hours: res.AcceptanceHours}
	}
	res.AcceptanceUpdated = u.apply(ctx, as)
	u.printf("\nUpdated %d/%d test tasks\n", res.AcceptanceUpdated, len(tests))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	u.printf("\n✅ Time estimation update complete!\n")
	return res, nil
}

func (u *Updater) printPlan(p Plan) {
	u.printf("\nTask complexity breakdown:\n")
	for _, t := range Tiers {
		u.printf("%s tasks (%s): %d\n", t, t.Range(), p.Counts[t])
	}
	u.printf("\nEstimated total with initial distribution: %sh\n", hours(p.Initial))
	u.printf("Scaling factor to fit %sh: %.2f\n", hours(p.Budget), p.Factor)
	u.printf("\nAdjusted hour allocations:\n")
	for _, t := range Tiers {
		u.printf("%s tasks: %sh each\n", t, hours(p.Hours[t]))
	}
	u.printf("\n=== Task Examples by Category ===\n")
	for _, t := range Tiers {
		u.printf("\n%s tasks:\n", t)
		for _, is := range p.Examples(t, 3) {
			u.printf("  %s: %s\n", is.Key, is.Summary)
		}
	}
}

// apply writes each assignment and returns how many succeeded. Individual
// failures are reported and skipped.
func (u *Updater) apply(ctx context.Context, as []Assignment) int {
	ok := 0
	for _, a := range as {
		if ctx.Err() != nil {
			break
		}
		if err := u.t.SetOriginalEstimate(ctx, a.Issue.Key, tracker.FormatHours(a.Hours)); err != nil {
			u.log.Errorf("%s: update estimate: %v", a.Issue.Key, err)
			u.printf("✗ %s: Failed - %s\n", a.Issue.Key, statusText(err))
			continue
		}
		ok++
		u.printf("✓ %s: %sh\n", a.Issue.Key, hours(a.Hours))
	}
	return ok
}

func hours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func statusText(err error) string {
	if code := tracker.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return strings.TrimSpace(err.Error())
}
