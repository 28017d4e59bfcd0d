// Package estimate assigns original estimates to open sub-tasks from keyword
// heuristics on their summaries, scaled to fit a fixed hour budget.
package estimate

import (
	"strconv"
	"strings"
)

// Tier is a complexity class.
type Tier int

const (
	Simple Tier = iota
	Medium
	Complex
	VeryComplex
	numTiers
)

// Tiers lists every tier in ascending complexity.
var Tiers = []Tier{Simple, Medium, Complex, VeryComplex}

var tierNames = [numTiers]string{"Simple", "Medium", "Complex", "Very complex"}
var tierRanges = [numTiers]string{"1-2h", "2-3h", "3-4h", "4-5h"}

// baseHours is the unscaled estimate of each tier.
var baseHours = [numTiers]float64{1.5, 2.5, 3.5, 4.5}

func (t Tier) String() string {
	if t < 0 || t >= numTiers {
		return "unknown"
	}
	return tierNames[t]
}

// Range is the human hour range of the tier, e.g. "1-2h".
func (t Tier) Range() string { return tierRanges[t] }

// BaseHours is the unscaled estimate of the tier.
func (t Tier) BaseHours() float64 { return baseHours[t] }

// Keywords drive classification. Matching is a lower-case substring test.
type Keywords struct {
	Simple      []string `json:"simple"`
	Complex     []string `json:"complex"`
	VeryComplex []string `json:"very_complex"`
}

// DefaultKeywords are the keyword sets the estimates have been calibrated on.
var DefaultKeywords = Keywords{
	Simple:      []string{"configuration", "basic", "simple", "flag", "status", "getter", "setter", "validation"},
	Complex:     []string{"protocol", "security", "encryption", "parser", "handler", "manager", "system", "integration"},
	VeryComplex: []string{"tls", "ssl", "authentication", "registration", "audio", "codec", "streaming"},
}

// Classify places summary in a tier. Very complex wins over complex, complex
// over simple; a summary matching nothing is Medium.
func (k Keywords) Classify(summary string) Tier {
	s := strings.ToLower(summary)
	switch {
	case containsAny(s, k.VeryComplex):
		return VeryComplex
	case containsAny(s, k.Complex):
		return Complex
	case containsAny(s, k.Simple):
		return Simple
	default:
		return Medium
	}
}

// Classify uses DefaultKeywords.
func Classify(summary string) Tier { return DefaultKeywords.Classify(summary) }

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// round1 rounds to one decimal place on the exact decimal value of f, with
// ties going to the even digit (2.25 -> 2.2, 3.75 -> 3.8).
func round1(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 1, 64), 64)
	if err != nil {
		return f
	}
	return r
}
