// Package rules holds the default thresholds for each evaluation domain and
// loads, merges and validates user overrides of them.
package rules

import (
	"cmp"
	"slices"

	"github.com/younsl/costadvisor/internal/models"
)

// LowUtilizationPercent is the average CPU below which an instance is treated
// as idle. Idle instances bypass the CPU and savings gates.
const LowUtilizationPercent = 10.0

// DefaultCompute returns the compute rule defaults
func DefaultCompute() models.Rule {
	return models.Rule{
		CPUThreshold:         10,
		MinUptimeHours:       24,
		MinSavingsUSD:        5,
		ExcludedTags:         []string{"env=prod", "do-not-touch"},
		ReservationTermYears: 1,
	}
}

// DefaultStorage returns the storage rule defaults
func DefaultStorage() models.Rule {
	return models.Rule{
		ExcludedTags: []string{"environment=prod"},
		Transitions: []models.Transition{
			{Days: 30, Tier: models.TierIA},
			{Days: 90, Tier: models.TierGlacier},
			{Days: 180, Tier: models.TierDeepArchive},
		},
	}
}

// Clone returns a deep copy of a rule
func Clone(rule models.Rule) models.Rule {
	out := rule
	out.ExcludedTags = slices.Clone(rule.ExcludedTags)
	out.Transitions = slices.Clone(rule.Transitions)
	return out
}

// SortedTransitions returns the transitions ordered by days descending.
// The input slice is not modified.
func SortedTransitions(transitions []models.Transition) []models.Transition {
	sorted := slices.Clone(transitions)
	slices.SortStableFunc(sorted, func(a, b models.Transition) int {
		return cmp.Compare(b.Days, a.Days)
	})
	return sorted
}
