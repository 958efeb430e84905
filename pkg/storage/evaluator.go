// Package storage recommends lifecycle transitions for buckets whose hot-tier
// objects have gone cold.
package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/pricing"
	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/utils"
)

const bytesPerGB = 1024 * 1024 * 1024

// ResourceType labels bucket recommendations
const ResourceType = "s3-bucket"

// Skip reasons reported for buckets that get no recommendation
const (
	SkipMalformed        = "malformed"
	SkipExcludedTag      = "excluded_tag"
	SkipHasLifecycle     = "has_lifecycle"
	SkipNoData           = "no_data"
	SkipAlreadyOptimized = "already_optimized"
	SkipNoTimestamp      = "no_timestamp"
)

// optimizedClass is the class each storage class moves to in the cost model
var optimizedClass = map[string]string{
	models.StorageClassStandard:   models.StorageClassStandardIA,
	models.StorageClassStandardIA: models.StorageClassGlacier,
}

// SkipStats counts buckets dropped at each gate
type SkipStats struct {
	Malformed        int `json:"malformed"`
	ExcludedTag      int `json:"excluded_tag"`
	HasLifecycle     int `json:"has_lifecycle"`
	NoData           int `json:"no_data"`
	AlreadyOptimized int `json:"already_optimized"`
	NoTimestamp      int `json:"no_timestamp"`
}

// Total returns the number of skipped buckets
func (s SkipStats) Total() int {
	return s.Malformed + s.ExcludedTag + s.HasLifecycle + s.NoData + s.AlreadyOptimized + s.NoTimestamp
}

func (s *SkipStats) add(reason string) {
	switch reason {
	case SkipMalformed:
		s.Malformed++
	case SkipExcludedTag:
		s.ExcludedTag++
	case SkipHasLifecycle:
		s.HasLifecycle++
	case SkipNoData:
		s.NoData++
	case SkipAlreadyOptimized:
		s.AlreadyOptimized++
	case SkipNoTimestamp:
		s.NoTimestamp++
	}
}

// Result holds one recommendation per qualifying bucket, sorted by savings
type Result struct {
	All     []models.Recommendation
	Skipped SkipStats
}

// Evaluator matches buckets against lifecycle transition rules
type Evaluator struct {
	price  pricing.StoragePriceFunc
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock sets the time source used to age objects
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the recommendation id source
func WithIDGenerator(fn func() string) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEvaluator creates a storage Evaluator. A nil price function uses the
// static S3 price table.
func NewEvaluator(price pricing.StoragePriceFunc, logger zerolog.Logger, opts ...Option) *Evaluator {
	if price == nil {
		price = pricing.StaticStoragePrice
	}
	e := &Evaluator{
		price:  price,
		logger: logger.With().Str("component", "storage").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns a lifecycle recommendation for every bucket that passes
// the gates. Only an invalid rule returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, buckets []models.BucketDescriptor, rule models.Rule) (Result, error) {
	if err := rules.ValidateStorage(rule); err != nil {
		return Result{}, err
	}

	transitions := rules.SortedTransitions(rule.Transitions)
	now := e.now()

	var result Result
	for _, bucket := range buckets {
		rec, skip := e.evaluateOne(ctx, bucket, rule, transitions, now)
		if skip != "" {
			result.Skipped.add(skip)
			e.logger.Debug().
				Str("bucket", bucket.BucketName).
				Str("gate", skip).
				Msg("Bucket skipped")
			continue
		}
		result.All = append(result.All, rec)
	}

	slices.SortStableFunc(result.All, func(a, b models.Recommendation) int {
		return cmp.Compare(b.EstimatedSavings, a.EstimatedSavings)
	})

	e.logger.Info().
		Int("buckets", len(buckets)).
		Int("recommendations", len(result.All)).
		Int("skipped_malformed", result.Skipped.Malformed).
		Int("skipped_excluded_tag", result.Skipped.ExcludedTag).
		Int("skipped_has_lifecycle", result.Skipped.HasLifecycle).
		Int("skipped_no_data", result.Skipped.NoData).
		Int("skipped_already_optimized", result.Skipped.AlreadyOptimized).
		Int("skipped_no_timestamp", result.Skipped.NoTimestamp).
		Msg("Storage evaluation complete")

	return result, nil
}

// MatchTransition picks the transition for objects of the given age. The
// transitions must be sorted by days descending. When the objects are younger
// than every rule the lowest-days rule is returned with tooRecent set.
func MatchTransition(sorted []models.Transition, ageDays int) (transition models.Transition, tooRecent bool) {
	if len(sorted) == 0 {
		return models.Transition{}, false
	}
	for _, t := range sorted {
		if t.Days <= ageDays {
			return t, false
		}
	}
	return sorted[len(sorted)-1], true
}

func (e *Evaluator) evaluateOne(ctx context.Context, b models.BucketDescriptor, rule models.Rule, transitions []models.Transition, now time.Time) (models.Recommendation, string) {
	if err := b.Validate(); err != nil {
		return models.Recommendation{}, SkipMalformed
	}

	// (a) excluded tags
	if _, excluded := utils.MatchExcludedTag(b.Tags, rule.ExcludedTags); excluded {
		return models.Recommendation{}, SkipExcludedTag
	}

	// (b) existing lifecycle configuration
	if len(b.LifecycleRules) > 0 {
		return models.Recommendation{}, SkipHasLifecycle
	}

	// (c) hot-tier objects
	if b.ObjectsByStorageClass[models.StorageClassStandard] == 0 {
		for _, class := range models.OptimizedStorageClasses {
			if b.ObjectsByStorageClass[class] > 0 {
				return models.Recommendation{}, SkipAlreadyOptimized
			}
		}
		return models.Recommendation{}, SkipNoData
	}

	// (d) most recent modification
	latest, ok := utils.LatestTimestamp(b.LastModifiedByGroup)
	if !ok {
		return models.Recommendation{}, SkipNoTimestamp
	}

	age := utils.DaysBetween(latest, now)
	transition, tooRecent := MatchTransition(transitions, age)
	cost, optimized := e.costs(ctx, b)
	savings := max(cost-optimized, 0)

	return e.buildRecommendation(b, transition, tooRecent, age, latest, cost, optimized, savings), ""
}

// costs returns the current and optimized monthly storage cost
func (e *Evaluator) costs(ctx context.Context, b models.BucketDescriptor) (current, optimized float64) {
	for _, class := range slices.Sorted(maps.Keys(b.SizeByStorageClass)) {
		size := b.SizeByStorageClass[class]
		if size <= 0 {
			continue
		}
		gb := float64(size) / bytesPerGB
		current += gb * e.price(ctx, b.Region, class)

		target := class
		if next, ok := optimizedClass[class]; ok {
			target = next
		}
		optimized += gb * e.price(ctx, b.Region, target)
	}
	return current, optimized
}

func (e *Evaluator) buildRecommendation(b models.BucketDescriptor, transition models.Transition, tooRecent bool, age int, latest time.Time, cost, optimized, savings float64) models.Recommendation {
	targetClass := models.TransitionStorageClass[transition.Tier]
	impact := models.PriorityForRatio(savings, cost)

	detail := map[string]string{
		"transition_tier":     transition.Tier,
		"transition_days":     strconv.Itoa(transition.Days),
		"storage_class":       targetClass,
		"days_since_modified": strconv.Itoa(age),
		"last_modified":       latest.UTC().Format("2006-01-02"),
		"impact":              string(impact),
		"versioning":          enabled(b.VersioningEnabled),
		"logging":             enabled(b.LoggingEnabled),
		"encryption":          enabled(b.EncryptionEnabled),
	}
	if tooRecent {
		detail["too_recent"] = "true"
	}
	if b.VersioningEnabled {
		detail["noncurrent_versions"] = fmt.Sprintf("transition noncurrent versions to %s after %d days", transition.Tier, transition.Days)
	}
	if policy, err := lifecyclePolicy(b.BucketName, transition, targetClass, b.VersioningEnabled); err == nil {
		detail["lifecycle_rule"] = policy
	} else {
		e.logger.Warn().Err(err).Str("bucket", b.BucketName).Msg("Failed to render lifecycle rule")
	}

	standardBytes := b.SizeByStorageClass[models.StorageClassStandard]
	metrics := map[string]float64{
		"total_objects":       float64(b.TotalObjects()),
		"standard_objects":    float64(b.ObjectsByStorageClass[models.StorageClassStandard]),
		"total_size_gb":       float64(b.TotalSize()) / bytesPerGB,
		"standard_size_gb":    float64(standardBytes) / bytesPerGB,
		"current_cost":        cost,
		"optimized_cost":      optimized,
		"savings":             savings,
		"days_since_modified": float64(age),
	}

	return models.Recommendation{
		ID:               e.newID(),
		Domain:           models.DomainStorage,
		ResourceID:       b.BucketName,
		ResourceName:     b.BucketName,
		ResourceType:     ResourceType,
		Region:           b.Region,
		Action:           models.ActionAddLifecycle,
		Reason:           reason(age, transition, tooRecent, savings),
		EstimatedSavings: savings,
		MonthlyCost:      cost,
		Priority:         impact,
		Metrics:          metrics,
		Detail:           detail,
	}
}

func reason(age int, t models.Transition, tooRecent bool, savings float64) string {
	if tooRecent {
		return fmt.Sprintf("Objects were last modified %d days ago. Add a lifecycle rule moving them to %s after %d days; estimated savings $%.2f/month once eligible.",
			age, t.Tier, t.Days, savings)
	}
	return fmt.Sprintf("Objects were last modified %d days ago and qualify for %s (%d days). Add a lifecycle rule to save an estimated $%.2f/month.",
		age, t.Tier, t.Days, savings)
}

func enabled(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

// lifecycleRuleDoc mirrors the S3 PutBucketLifecycleConfiguration rule shape
type lifecycleRuleDoc struct {
	ID                           string                 `json:"ID"`
	Status                       string                 `json:"Status"`
	Filter                       struct{}               `json:"Filter"`
	Transitions                  []lifecycleTransition  `json:"Transitions"`
	NoncurrentVersionTransitions []noncurrentTransition `json:"NoncurrentVersionTransitions,omitempty"`
}

type lifecycleTransition struct {
	Days         int    `json:"Days"`
	StorageClass string `json:"StorageClass"`
}

type noncurrentTransition struct {
	NoncurrentDays int    `json:"NoncurrentDays"`
	StorageClass   string `json:"StorageClass"`
}

// lifecyclePolicy renders the suggested rule for downstream actuation
func lifecyclePolicy(bucket string, t models.Transition, storageClass string, versioned bool) (string, error) {
	doc := lifecycleRuleDoc{
		ID:          fmt.Sprintf("costadvisor-%s-%dd", bucket, t.Days),
		Status:      "Enabled",
		Transitions: []lifecycleTransition{{Days: t.Days, StorageClass: storageClass}},
	}
	if versioned {
		doc.NoncurrentVersionTransitions = []noncurrentTransition{{NoncurrentDays: t.Days, StorageClass: storageClass}}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("error encoding lifecycle rule: %w", err)
	}
	return string(data), nil
}
