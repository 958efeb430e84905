// Package compute turns instance utilization snapshots into ranked savings
// recommendations.
package compute

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/utils"
)

// TopN is the number of recommendations kept for presentation
const TopN = 5

// Pricer resolves instance prices. *pricing.Resolver satisfies it.
type Pricer interface {
	Resolve(ctx context.Context, instanceType, region string, tier models.CommitmentTier, os string) models.PriceQuote
}

// SkipStats counts resources dropped at each gate
type SkipStats struct {
	Malformed int `json:"malformed"`
	CPU       int `json:"cpu"`
	Uptime    int `json:"uptime"`
	Savings   int `json:"savings"`
	Tags      int `json:"tags"`
}

// Total returns the number of skipped resources
func (s SkipStats) Total() int {
	return s.Malformed + s.CPU + s.Uptime + s.Savings + s.Tags
}

// Result is the outcome of one evaluation
type Result struct {
	// All holds every recommendation sorted by savings, retained for audit
	All []models.Recommendation
	// Top is the first TopN entries of All
	Top     []models.Recommendation
	Skipped SkipStats
}

type skipReason int

const (
	kept skipReason = iota
	skipMalformed
	skipCPU
	skipUptime
	skipSavings
	skipTags
)

func (s skipReason) String() string {
	switch s {
	case skipMalformed:
		return "malformed"
	case skipCPU:
		return "cpu"
	case skipUptime:
		return "uptime"
	case skipSavings:
		return "savings"
	case skipTags:
		return "tags"
	default:
		return "kept"
	}
}

// Evaluator applies the compute rule gates and savings options
type Evaluator struct {
	pricer      Pricer
	logger      zerolog.Logger
	concurrency int
	newID       func() string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithConcurrency bounds the number of resources evaluated at once
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
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

// NewEvaluator creates a compute Evaluator
func NewEvaluator(pricer Pricer, logger zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		pricer:      pricer,
		logger:      logger.With().Str("component", "compute").Logger(),
		concurrency: runtime.GOMAXPROCS(0),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type outcome struct {
	rec  models.Recommendation
	skip skipReason
}

// Evaluate gates each resource, picks its best savings option and ranks the
// survivors by savings. Only an invalid rule returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, resources []models.ResourceDescriptor, rule models.Rule) (Result, error) {
	if err := rules.ValidateCompute(rule); err != nil {
		return Result{}, err
	}

	outcomes := make([]outcome, len(resources))

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, resource := range resources {
		g.Go(func() error {
			outcomes[i] = e.evaluateOne(ctx, resource, rule)
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	for i, o := range outcomes {
		switch o.skip {
		case kept:
			result.All = append(result.All, o.rec)
			continue
		case skipMalformed:
			result.Skipped.Malformed++
		case skipCPU:
			result.Skipped.CPU++
		case skipUptime:
			result.Skipped.Uptime++
		case skipSavings:
			result.Skipped.Savings++
		case skipTags:
			result.Skipped.Tags++
		}
		e.logger.Debug().
			Str("instance_id", resources[i].InstanceID).
			Str("gate", o.skip.String()).
			Msg("Instance skipped")
	}

	SortBySavings(result.All)
	result.Top = Truncate(result.All, TopN)

	e.logger.Info().
		Int("resources", len(resources)).
		Int("recommendations", len(result.All)).
		Int("skipped_malformed", result.Skipped.Malformed).
		Int("skipped_cpu", result.Skipped.CPU).
		Int("skipped_uptime", result.Skipped.Uptime).
		Int("skipped_savings", result.Skipped.Savings).
		Int("skipped_tags", result.Skipped.Tags).
		Msg("Compute evaluation complete")

	return result, nil
}

// SortBySavings orders recommendations by savings descending, keeping input
// order between equal savings
func SortBySavings(recs []models.Recommendation) {
	slices.SortStableFunc(recs, func(a, b models.Recommendation) int {
		return cmp.Compare(b.EstimatedSavings, a.EstimatedSavings)
	})
}

// Truncate returns at most n leading recommendations
func Truncate(recs []models.Recommendation, n int) []models.Recommendation {
	if len(recs) <= n {
		return slices.Clone(recs)
	}
	return slices.Clone(recs[:n])
}

// savingsOption is one candidate action with its monthly savings
type savingsOption struct {
	action  string
	savings float64
	target  string
	source  models.PriceSource
}

func (e *Evaluator) evaluateOne(ctx context.Context, r models.ResourceDescriptor, rule models.Rule) outcome {
	if err := r.Validate(); err != nil {
		if !errors.Is(err, models.ErrDataShape) {
			e.logger.Warn().Err(err).Msg("Unexpected descriptor validation error")
		}
		return outcome{skip: skipMalformed}
	}

	avgCPU := *r.AverageCPU
	uptime := *r.UptimeHours
	idle := avgCPU < rules.LowUtilizationPercent

	// (a) utilization
	if avgCPU > rule.CPUThreshold && !idle {
		return outcome{skip: skipCPU}
	}

	// (b) uptime
	if uptime < rule.MinUptimeHours {
		return outcome{skip: skipUptime}
	}

	// (c) savings
	monthly, options := e.savingsOptions(ctx, r, rule, idle)
	best, ok := selectBest(options)
	if !ok || (best.savings < rule.MinSavingsUSD && !idle) {
		return outcome{skip: skipSavings}
	}

	// (d) excluded tags
	if _, excluded := utils.MatchExcludedTag(r.Tags, rule.ExcludedTags); excluded {
		return outcome{skip: skipTags}
	}

	return outcome{rec: e.buildRecommendation(r, rule, avgCPU, uptime, monthly, best, idle)}
}

// savingsOptions returns the monthly cost and the candidate options in
// discovery order: reserve, stop, downsize
func (e *Evaluator) savingsOptions(ctx context.Context, r models.ResourceDescriptor, rule models.Rule, idle bool) (float64, []savingsOption) {
	onDemand := e.pricer.Resolve(ctx, r.InstanceType, r.Region, models.TierOnDemand, r.OperatingSystem)
	resolvedMonthly := onDemand.MonthlyCost()

	monthly := resolvedMonthly
	scale := 1.0
	if r.ObservedMonthlyCost != nil && *r.ObservedMonthlyCost > 0 {
		monthly = *r.ObservedMonthlyCost
		if resolvedMonthly > 0 {
			scale = monthly / resolvedMonthly
		}
	}

	var options []savingsOption

	tier := models.ReservedTier(rule.ReservationTermYears)
	reserved := e.pricer.Resolve(ctx, r.InstanceType, r.Region, tier, r.OperatingSystem)
	options = append(options, savingsOption{
		action:  models.ActionReserve,
		savings: monthly - reserved.MonthlyCost()*scale,
		target:  string(tier),
		source:  reserved.Source,
	})

	if idle {
		options = append(options, savingsOption{
			action:  models.ActionStop,
			savings: monthly,
			source:  onDemand.Source,
		})
	}

	if smaller, ok := NextSmallerType(r.InstanceType); ok {
		target := e.pricer.Resolve(ctx, smaller, r.Region, models.TierOnDemand, r.OperatingSystem)
		options = append(options, savingsOption{
			action:  models.ActionDownsize,
			savings: monthly - target.MonthlyCost()*scale,
			target:  smaller,
			source:  target.Source,
		})
	}

	return monthly, options
}

// selectBest returns the option with the largest positive savings.
// Equal savings keep the earlier option.
func selectBest(options []savingsOption) (savingsOption, bool) {
	var best savingsOption
	found := false
	for _, opt := range options {
		if opt.savings <= 0 {
			continue
		}
		if !found || opt.savings > best.savings {
			best = opt
			found = true
		}
	}
	return best, found
}

func (e *Evaluator) buildRecommendation(r models.ResourceDescriptor, rule models.Rule, avgCPU, uptime, monthly float64, best savingsOption, idle bool) models.Recommendation {
	band := "low"
	if idle {
		band = "idle"
	}

	metrics := map[string]float64{
		"average_cpu_7d": avgCPU,
		"uptime_hours":   uptime,
		"monthly_cost":   monthly,
		"savings":        best.savings,
	}
	if r.CurrentCPU != nil {
		metrics["current_cpu"] = *r.CurrentCPU
	}

	detail := map[string]string{
		"action":            best.action,
		"instance_type":     r.InstanceType,
		"utilization_band":  band,
		"price_source":      string(best.source),
		"cpu_threshold":     strconv.FormatFloat(rule.CPUThreshold, 'f', -1, 64),
		"savings_threshold": strconv.FormatFloat(rule.MinSavingsUSD, 'f', -1, 64),
	}
	if best.target != "" {
		detail["target"] = best.target
	}
	if idle && best.savings < rule.MinSavingsUSD {
		detail["override"] = "low_utilization"
	}
	if r.State != "" {
		detail["state"] = r.State
	}

	return models.Recommendation{
		ID:               e.newID(),
		Domain:           models.DomainCompute,
		ResourceID:       r.InstanceID,
		ResourceName:     r.Name,
		ResourceType:     r.InstanceType,
		Region:           r.Region,
		Action:           best.action,
		Reason:           reason(avgCPU, rule.CPUThreshold, idle, best),
		EstimatedSavings: best.savings,
		MonthlyCost:      monthly,
		Priority:         models.PriorityForRatio(best.savings, monthly),
		Metrics:          metrics,
		Detail:           detail,
	}
}

func reason(avgCPU, threshold float64, idle bool, best savingsOption) string {
	var usage string
	if idle {
		usage = fmt.Sprintf("Average CPU %.1f%% over 7 days is below %.0f%%, the instance is effectively idle", avgCPU, rules.LowUtilizationPercent)
	} else {
		usage = fmt.Sprintf("Average CPU %.1f%% over 7 days is within the %.0f%% low-utilization threshold", avgCPU, threshold)
	}

	switch best.action {
	case models.ActionStop:
		return fmt.Sprintf("%s. Stop it to save $%.2f/month.", usage, best.savings)
	case models.ActionDownsize:
		return fmt.Sprintf("%s. Downsize to %s to save $%.2f/month.", usage, best.target, best.savings)
	default:
		return fmt.Sprintf("%s. A %s commitment saves $%.2f/month.", usage, best.target, best.savings)
	}
}
