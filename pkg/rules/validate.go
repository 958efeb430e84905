package rules

import (
	"errors"
	"fmt"
	"slices"

	"github.com/younsl/costadvisor/internal/models"
)

// ErrInvalidRule is matched by every ConfigError
var ErrInvalidRule = errors.New("invalid rule")

// ConfigError reports a rule field that cannot be evaluated
type ConfigError struct {
	Domain string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s rule: %s %s", e.Domain, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidRule
func (e *ConfigError) Unwrap() error {
	return ErrInvalidRule
}

// ValidateCompute checks a compute rule
func ValidateCompute(rule models.Rule) error {
	if err := validateCommon(models.DomainCompute, rule); err != nil {
		return err
	}
	if rule.ReservationTermYears != 0 && rule.ReservationTermYears != 1 && rule.ReservationTermYears != 3 {
		return &ConfigError{Domain: string(models.DomainCompute), Field: "reservation_term_years", Reason: "must be 1 or 3"}
	}
	return nil
}

// ValidateStorage checks a storage rule and its transition list
func ValidateStorage(rule models.Rule) error {
	if err := validateCommon(models.DomainStorage, rule); err != nil {
		return err
	}

	domain := string(models.DomainStorage)
	if len(rule.Transitions) == 0 {
		return &ConfigError{Domain: domain, Field: "transitions", Reason: "must not be empty"}
	}

	seen := make(map[int]bool, len(rule.Transitions))
	for i, transition := range rule.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		if transition.Days <= 0 {
			return &ConfigError{Domain: domain, Field: field + ".days", Reason: "must be positive"}
		}
		if seen[transition.Days] {
			return &ConfigError{Domain: domain, Field: field + ".days", Reason: fmt.Sprintf("duplicates %d", transition.Days)}
		}
		seen[transition.Days] = true

		if transition.Tier == "" {
			return &ConfigError{Domain: domain, Field: field + ".tier", Reason: "must not be empty"}
		}
		if _, ok := models.TransitionStorageClass[transition.Tier]; !ok {
			return &ConfigError{Domain: domain, Field: field + ".tier", Reason: fmt.Sprintf("unknown tier %q", transition.Tier)}
		}
	}

	// older objects must land in a strictly colder tier
	sorted := SortedTransitions(rule.Transitions)
	for i := 0; i < len(sorted)-1; i++ {
		older, younger := sorted[i], sorted[i+1]
		if models.TierColdness[older.Tier] > models.TierColdness[younger.Tier] {
			continue
		}
		idx := slices.Index(rule.Transitions, older)
		return &ConfigError{
			Domain: domain,
			Field:  fmt.Sprintf("transitions[%d].tier", idx),
			Reason: fmt.Sprintf("must be colder than %s at %d days", younger.Tier, younger.Days),
		}
	}
	return nil
}

func validateCommon(domain models.Domain, rule models.Rule) error {
	switch {
	case rule.CPUThreshold < 0 || rule.CPUThreshold > 100:
		return &ConfigError{Domain: string(domain), Field: "cpu_threshold", Reason: "must be between 0 and 100"}
	case rule.MinUptimeHours < 0:
		return &ConfigError{Domain: string(domain), Field: "min_uptime_hours", Reason: "must not be negative"}
	case rule.MinSavingsUSD < 0:
		return &ConfigError{Domain: string(domain), Field: "min_savings_usd", Reason: "must not be negative"}
	}
	return nil
}
