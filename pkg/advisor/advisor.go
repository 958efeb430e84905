// Package advisor composes the compute and storage evaluators behind one
// ranked recommendation surface.
package advisor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/compute"
	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/storage"
)

// DefaultTopN is the per-domain presentation limit
const DefaultTopN = 5

// Intent selects which domains a request evaluates
type Intent string

const (
	IntentCompute Intent = "compute"
	IntentStorage Intent = "storage"
	IntentAll     Intent = "all"
)

// Code explains the outcome of a request
type Code string

const (
	CodeOK                Code = "ok"
	CodeNoRecommendations Code = "no_recommendations"
	CodeNoInput           Code = "no_input"
	CodeInvalidRules      Code = "invalid_rules"
)

// ErrUnknownIntent is returned by ParseIntent for unsupported values
var ErrUnknownIntent = errors.New("unknown intent")

// ParseIntent maps user input onto an Intent. Empty input means all.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "both":
		return IntentAll, nil
	case "compute", "ec2":
		return IntentCompute, nil
	case "storage", "s3":
		return IntentStorage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIntent, s)
	}
}

func (i Intent) includesCompute() bool { return i == IntentCompute || i == IntentAll }
func (i Intent) includesStorage() bool { return i == IntentStorage || i == IntentAll }

// ComputeEvaluator is satisfied by *compute.Evaluator
type ComputeEvaluator interface {
	Evaluate(ctx context.Context, resources []models.ResourceDescriptor, rule models.Rule) (compute.Result, error)
}

// StorageEvaluator is satisfied by *storage.Evaluator
type StorageEvaluator interface {
	Evaluate(ctx context.Context, buckets []models.BucketDescriptor, rule models.Rule) (storage.Result, error)
}

// Request is one evaluation batch
type Request struct {
	Intent    Intent
	Resources []models.ResourceDescriptor
	Buckets   []models.BucketDescriptor
	Rules     rules.Set
	// TopN limits each domain before merging. Zero means DefaultTopN.
	TopN int
}

// Report is the ranked outcome of a request
type Report struct {
	Intent Intent `json:"intent"`
	Code   Code   `json:"code"`

	// Recommendations is the merged, ranked presentation list
	Recommendations []models.Recommendation `json:"recommendations"`

	// Compute and Storage hold every recommendation per domain for audit
	Compute []models.Recommendation `json:"compute,omitempty"`
	Storage []models.Recommendation `json:"storage,omitempty"`

	ComputeSkipped compute.SkipStats `json:"compute_skipped"`
	StorageSkipped storage.SkipStats `json:"storage_skipped"`

	TotalSavings     float64   `json:"total_savings"`
	TotalMonthlyCost float64   `json:"total_monthly_cost"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Advisor routes requests to the evaluators and merges their output
type Advisor struct {
	compute ComputeEvaluator
	storage StorageEvaluator
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates an Advisor
func New(computeEval ComputeEvaluator, storageEval StorageEvaluator, logger zerolog.Logger) *Advisor {
	return &Advisor{
		compute: computeEval,
		storage: storageEval,
		logger:  logger.With().Str("component", "advisor").Logger(),
		now:     time.Now,
	}
}

// Advise evaluates the request. A *rules.ConfigError is returned together
// with a report coded invalid_rules; every other outcome is reported through
// Report.Code.
func (a *Advisor) Advise(ctx context.Context, req Request) (Report, error) {
	intent := req.Intent
	if intent == "" {
		intent = IntentAll
	}
	report := Report{Intent: intent, GeneratedAt: a.now()}

	if !intent.includesCompute() && !intent.includesStorage() {
		return report, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}

	if err := req.Rules.Validate(); err != nil {
		report.Code = CodeInvalidRules
		return report, err
	}

	hasCompute := intent.includesCompute() && len(req.Resources) > 0
	hasStorage := intent.includesStorage() && len(req.Buckets) > 0
	if !hasCompute && !hasStorage {
		report.Code = CodeNoInput
		return report, nil
	}

	topN := req.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	if hasCompute {
		result, err := a.compute.Evaluate(ctx, req.Resources, req.Rules.Compute)
		if err != nil {
			report.Code = CodeInvalidRules
			return report, err
		}
		report.Compute = result.All
		report.ComputeSkipped = result.Skipped
	}

	if hasStorage {
		result, err := a.storage.Evaluate(ctx, req.Buckets, req.Rules.Storage)
		if err != nil {
			report.Code = CodeInvalidRules
			return report, err
		}
		report.Storage = result.All
		report.StorageSkipped = result.Skipped
	}

	report.Recommendations = Merge(topN, report.Compute, report.Storage)
	for _, rec := range report.Recommendations {
		report.TotalSavings += rec.EstimatedSavings
		report.TotalMonthlyCost += rec.MonthlyCost
	}

	report.Code = CodeOK
	if len(report.Recommendations) == 0 {
		report.Code = CodeNoRecommendations
	}

	a.logger.Info().
		Str("intent", string(intent)).
		Str("code", string(report.Code)).
		Int("compute", len(report.Compute)).
		Int("storage", len(report.Storage)).
		Int("presented", len(report.Recommendations)).
		Float64("total_savings", report.TotalSavings).
		Msg("Advice ready")

	return report, nil
}

// Merge truncates each domain list to topN, concatenates them in argument
// order and sorts by savings descending. Equal savings keep argument order.
func Merge(topN int, domains ...[]models.Recommendation) []models.Recommendation {
	merged := make([]models.Recommendation, 0)
	for _, recs := range domains {
		sorted := slices.Clone(recs)
		slices.SortStableFunc(sorted, bySavings)
		if len(sorted) > topN {
			sorted = sorted[:topN]
		}
		merged = append(merged, sorted...)
	}
	slices.SortStableFunc(merged, bySavings)
	return merged
}

func bySavings(a, b models.Recommendation) int {
	return cmp.Compare(b.EstimatedSavings, a.EstimatedSavings)
}
