package estimate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/rapidreach/rrops/core/tracker"
)

// Assignment is the estimate planned for one issue.
type Assignment struct {
	Issue tracker.Issue
	Tier  Tier
	Hours float64
}

// Plan is the outcome of distributing a budget over classified issues.
type Plan struct {
	Budget float64
	// Counts holds the number of issues per tier.
	Counts [numTiers]int
	// Initial is the unscaled total of all base estimates.
	Initial float64
	// Factor scales base estimates so the total fits the budget.
	Factor float64
	// Hours is the scaled, rounded estimate per tier.
	Hours       [numTiers]float64
	Assignments []Assignment
}

// NewPlan classifies issues with k and scales the tier estimates to budget.
// Each tier estimate is rounded to 0.1h, so the planned total may drift from
// the budget slightly.
func NewPlan(issues []tracker.Issue, budget float64, k Keywords) Plan {
	p := Plan{Budget: budget, Assignments: make([]Assignment, 0, len(issues))}
	tiers := make([]Tier, len(issues))
	for i, is := range issues {
		tiers[i] = k.Classify(is.Summary)
		p.Counts[tiers[i]]++
	}
	p.Initial = floats.Dot(p.countVector(), baseHours[:])
	p.Factor = 1
	if p.Initial > 0 {
		p.Factor = budget / p.Initial
	}
	for _, t := range Tiers {
		p.Hours[t] = round1(t.BaseHours() * p.Factor)
	}
	for i, is := range issues {
		p.Assignments = append(p.Assignments, Assignment{Issue: is, Tier: tiers[i], Hours: p.Hours[tiers[i]]})
	}
	return p
}

// Total is the sum of planned hours over every assignment.
func (p Plan) Total() float64 {
	return floats.Dot(p.countVector(), p.Hours[:])
}

// Examples returns up to n issues of tier t, in input order.
func (p Plan) Examples(t Tier, n int) []tracker.Issue {
	var out []tracker.Issue
	for _, a := range p.Assignments {
		if len(out) == n {
			break
		}
		if a.Tier == t {
			out = append(out, a.Issue)
		}
	}
	return out
}

func (p Plan) countVector() []float64 {
	v := make([]float64, numTiers)
	for i, c := range p.Counts {
		v[i] = float64(c)
	}
	return v
}

// AcceptanceShare splits budget evenly over n acceptance tasks, rounded to
// 0.1h. No tasks yields 0.
func AcceptanceShare(n int, budget float64) float64 {
	if n <= 0 {
		return 0
	}
	return round1(budget / float64(n))
}
