package compute

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/pricing"
	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/utils"
)

// fakePricer answers from a "type/tier" keyed table
type fakePricer map[string]float64

func (f fakePricer) Resolve(_ context.Context, instanceType, region string, tier models.CommitmentTier, os string) models.PriceQuote {
	return models.PriceQuote{
		InstanceType:    instanceType,
		Region:          region,
		Tier:            tier,
		OperatingSystem: os,
		HourlyCost:      f[instanceType+"/"+string(tier)],
		Source:          models.PriceSourceAPI,
	}
}

func newTestEvaluator(p Pricer) *Evaluator {
	n := 0
	return NewEvaluator(p, zerolog.Nop(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}), WithConcurrency(1))
}

func fallbackEvaluator() *Evaluator {
	return newTestEvaluator(pricing.NewResolver(nil, zerolog.Nop()))
}

func instance(id, instanceType string, avgCPU, uptime float64) models.ResourceDescriptor {
	return models.ResourceDescriptor{
		InstanceID:   id,
		InstanceType: instanceType,
		Region:       "us-east-1",
		AverageCPU:   utils.Float64(avgCPU),
		UptimeHours:  utils.Float64(uptime),
	}
}

func TestEvaluate_IdleMicroStops(t *testing.T) {
	r := instance("i-0abc", "t3.micro", 3, 200)
	r.ObservedMonthlyCost = utils.Float64(30)

	result, err := fallbackEvaluator().Evaluate(context.Background(), []models.ResourceDescriptor{r}, rules.DefaultCompute())
	require.NoError(t, err)
	require.Len(t, result.All, 1)

	rec := result.All[0]
	assert.Equal(t, models.ActionStop, rec.Action)
	assert.InDelta(t, 30.0, rec.EstimatedSavings, 1e-6)
	assert.InDelta(t, 30.0, rec.MonthlyCost, 1e-6)
	assert.Equal(t, models.PriorityHigh, rec.Priority)
	assert.Equal(t, models.DomainCompute, rec.Domain)
	assert.Equal(t, "i-0abc", rec.ResourceID)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "idle", rec.Detail["utilization_band"])
	assert.Contains(t, rec.Reason, "Stop it")
}

func TestEvaluate_CPUGate(t *testing.T) {
	rule := rules.DefaultCompute()
	var resources []models.ResourceDescriptor
	for i, cpu := range []float64{10.01, 25, 50, 99.9} {
		resources = append(resources, instance(fmt.Sprintf("i-%d", i), "m5.xlarge", cpu, 500))
	}

	result, err := fallbackEvaluator().Evaluate(context.Background(), resources, rule)
	require.NoError(t, err)

	assert.Empty(t, result.All)
	assert.Equal(t, 4, result.Skipped.CPU)
}

func TestEvaluate_CPUAtThresholdPasses(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 40

	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{instance("i-1", "m5.xlarge", 40, 500)}, rule)
	require.NoError(t, err)
	assert.Len(t, result.All, 1)
}

func TestEvaluate_TieKeepsDiscoveryOrder(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 50

	// t3.large: reserve saves 50% and downsizing to t3.medium saves 50%
	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{instance("i-1", "t3.large", 40, 500)}, rule)
	require.NoError(t, err)
	require.Len(t, result.All, 1)

	rec := result.All[0]
	assert.Equal(t, models.ActionReserve, rec.Action)
	assert.InDelta(t, 0.0832*730*0.5, rec.EstimatedSavings, 1e-6)
	assert.Equal(t, models.PriorityMedium, rec.Priority, "exactly half is not above 50%")
	assert.Equal(t, "reserved-1yr", rec.Detail["target"])
}

func TestEvaluate_DownsizeWins(t *testing.T) {
	p := fakePricer{
		"m5.xlarge/on-demand":    0.192,
		"m5.xlarge/reserved-3yr": 0.15,
		"m5.large/on-demand":     0.096,
	}
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 40
	rule.ReservationTermYears = 3

	result, err := newTestEvaluator(p).Evaluate(context.Background(),
		[]models.ResourceDescriptor{instance("i-1", "m5.xlarge", 30, 500)}, rule)
	require.NoError(t, err)
	require.Len(t, result.All, 1)

	rec := result.All[0]
	assert.Equal(t, models.ActionDownsize, rec.Action)
	assert.Equal(t, "m5.large", rec.Detail["target"])
	assert.InDelta(t, 0.096*730, rec.EstimatedSavings, 1e-6)
	assert.Contains(t, rec.Reason, "Downsize to m5.large")
}

func TestEvaluate_UptimeGate(t *testing.T) {
	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{instance("i-1", "t3.micro", 2, 10)}, rules.DefaultCompute())
	require.NoError(t, err)

	assert.Empty(t, result.All)
	assert.Equal(t, 1, result.Skipped.Uptime)
}

func TestEvaluate_SavingsGateAndOverride(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 20

	lowButBusy := instance("i-busy", "t3.nano", 15, 100)
	idle := instance("i-idle", "t3.nano", 5, 100)

	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{lowButBusy, idle}, rule)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped.Savings)
	require.Len(t, result.All, 1)

	rec := result.All[0]
	assert.Equal(t, "i-idle", rec.ResourceID)
	assert.Equal(t, models.ActionStop, rec.Action)
	assert.Less(t, rec.EstimatedSavings, rule.MinSavingsUSD)
	assert.Equal(t, "low_utilization", rec.Detail["override"])
}

func TestEvaluate_ExcludedTags(t *testing.T) {
	prod := instance("i-prod", "t3.micro", 1, 100)
	prod.Tags = map[string]string{"env": "prod"}
	pinned := instance("i-pinned", "t3.micro", 1, 100)
	pinned.Tags = map[string]string{"do-not-touch": "true"}
	dev := instance("i-dev", "t3.micro", 1, 100)
	dev.Tags = map[string]string{"env": "dev"}

	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{prod, pinned, dev}, rules.DefaultCompute())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Skipped.Tags)
	require.Len(t, result.All, 1)
	assert.Equal(t, "i-dev", result.All[0].ResourceID)
}

func TestEvaluate_MalformedSkipped(t *testing.T) {
	noCPU := instance("i-1", "t3.micro", 1, 100)
	noCPU.AverageCPU = nil
	noUptime := instance("i-2", "t3.micro", 1, 100)
	noUptime.UptimeHours = nil
	noType := instance("i-3", "", 1, 100)

	result, err := fallbackEvaluator().Evaluate(context.Background(),
		[]models.ResourceDescriptor{noCPU, noUptime, noType, instance("i-4", "t3.micro", 1, 100)}, rules.DefaultCompute())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Skipped.Malformed)
	assert.Equal(t, 3, result.Skipped.Total())
	assert.Len(t, result.All, 1)
}

func TestEvaluate_RankingAndTop(t *testing.T) {
	types := []string{"t3.micro", "m5.2xlarge", "t3.small", "r5.xlarge", "t3.nano", "c5.large", "m5.large"}
	var resources []models.ResourceDescriptor
	for i, it := range types {
		resources = append(resources, instance(fmt.Sprintf("i-%d", i), it, 2, 100))
	}

	result, err := NewEvaluator(pricing.NewResolver(nil, zerolog.Nop()), zerolog.Nop(), WithConcurrency(4)).
		Evaluate(context.Background(), resources, rules.DefaultCompute())
	require.NoError(t, err)

	require.Len(t, result.All, len(types))
	require.Len(t, result.Top, TopN)
	for i := 1; i < len(result.All); i++ {
		assert.GreaterOrEqual(t, result.All[i-1].EstimatedSavings, result.All[i].EstimatedSavings)
	}
	assert.Equal(t, result.All[:TopN], result.Top)
	assert.Equal(t, "m5.2xlarge", result.Top[0].ResourceType)

	ids := map[string]bool{}
	for _, rec := range result.All {
		assert.NotEmpty(t, rec.ID)
		ids[rec.ID] = true
	}
	assert.Len(t, ids, len(types), "ids are unique")
}

func TestEvaluate_SavingsNonNegativeAndPriorityDeterministic(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 60
	rule.MinSavingsUSD = 0

	var resources []models.ResourceDescriptor
	for i, it := range []string{"t3.nano", "t3.medium", "m5.4xlarge", "c5.xlarge", "zz.weird", "r5.large"} {
		for j, cpu := range []float64{0, 9.99, 30, 60} {
			resources = append(resources, instance(fmt.Sprintf("i-%d-%d", i, j), it, cpu, 48))
		}
	}

	result, err := fallbackEvaluator().Evaluate(context.Background(), resources, rule)
	require.NoError(t, err)
	require.NotEmpty(t, result.All)

	for _, rec := range result.All {
		assert.GreaterOrEqual(t, rec.EstimatedSavings, 0.0)
		assert.Equal(t, models.PriorityForRatio(rec.EstimatedSavings, rec.MonthlyCost), rec.Priority)
	}
}

func TestEvaluate_ObservedCostScalesOptions(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 50

	r := instance("i-1", "t3.large", 30, 100)
	r.ObservedMonthlyCost = utils.Float64(100)

	result, err := fallbackEvaluator().Evaluate(context.Background(), []models.ResourceDescriptor{r}, rule)
	require.NoError(t, err)
	require.Len(t, result.All, 1)

	// reserve and downsize both halve the observed cost
	assert.InDelta(t, 50.0, result.All[0].EstimatedSavings, 1e-6)
	assert.InDelta(t, 100.0, result.All[0].MonthlyCost, 1e-6)
}

func TestEvaluate_InvalidRule(t *testing.T) {
	rule := rules.DefaultCompute()
	rule.CPUThreshold = 300

	_, err := fallbackEvaluator().Evaluate(context.Background(), nil, rule)
	var cfgErr *rules.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "cpu_threshold", cfgErr.Field)
}

func TestEvaluate_Empty(t *testing.T) {
	result, err := fallbackEvaluator().Evaluate(context.Background(), nil, rules.DefaultCompute())
	require.NoError(t, err)
	assert.Empty(t, result.All)
	assert.Empty(t, result.Top)
	assert.Zero(t, result.Skipped.Total())
}

func TestNextSmallerType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "m5.xlarge", want: "m5.large", ok: true},
		{in: "m5.2xlarge", want: "m5.xlarge", ok: true},
		{in: "t3.micro", want: "t3.nano", ok: true},
		{in: "c6i.12xlarge", want: "c6i.9xlarge", ok: true},
		{in: "T3.Small", want: "t3.micro", ok: true},
		{in: "t3.nano", ok: false},
		{in: "c6i.metal", ok: false},
		{in: "mystery", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NextSmallerType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
