package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/costadvisor/internal/models"
)

// fakeProductsAPI records GetProducts calls and answers from respond
type fakeProductsAPI struct {
	mu      sync.Mutex
	inputs  []*pricing.GetProductsInput
	respond func(in *pricing.GetProductsInput) ([]string, error)
}

func (f *fakeProductsAPI) GetProducts(ctx context.Context, in *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	priceList, err := f.respond(in)
	if err != nil {
		return nil, err
	}
	return &pricing.GetProductsOutput{PriceList: priceList}, nil
}

func (f *fakeProductsAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func filterValue(in *pricing.GetProductsInput, field string) string {
	for _, filter := range in.Filters {
		if filter.Field != nil && *filter.Field == field && filter.Value != nil {
			return *filter.Value
		}
	}
	return ""
}

func onDemandDoc(os, hourly string) string {
	return fmt.Sprintf(`{"product":{"productFamily":"Compute Instance","attributes":{"operatingSystem":%q}},`+
		`"terms":{"OnDemand":{"SKU.JRTCKXETXF":{"termAttributes":{},`+
		`"priceDimensions":{"SKU.JRTCKXETXF.6YS6EN2CT7":{"unit":"Hrs","pricePerUnit":{"USD":%q}}}}}}}`, os, hourly)
}

func reservedDoc(lease, hourly string) string {
	return fmt.Sprintf(`{"product":{"attributes":{"operatingSystem":"Linux"}},"terms":{"Reserved":{`+
		`"SKU.AAA":{"termAttributes":{"LeaseContractLength":%q,"OfferingClass":"convertible","PurchaseOption":"No Upfront"},`+
		`"priceDimensions":{"SKU.AAA.1":{"unit":"Hrs","pricePerUnit":{"USD":"0.0001"}}}},`+
		`"SKU.BBB":{"termAttributes":{"LeaseContractLength":%q,"OfferingClass":"standard","PurchaseOption":"No Upfront"},`+
		`"priceDimensions":{"SKU.BBB.1":{"unit":"Hrs","pricePerUnit":{"USD":%q}}}}}}}`, lease, lease, hourly)
}

func TestResolve_FallbackWithoutClient(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierOnDemand, "Linux")

	assert.Equal(t, models.PriceSourceFallback, quote.Source)
	assert.InDelta(t, 0.0104, quote.HourlyCost, 1e-9)
	assert.InDelta(t, 0.0104*730, quote.MonthlyCost(), 1e-9)
}

func TestResolve_Defaults(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t3.small", "", "", "")

	assert.Equal(t, "us-east-1", quote.Region)
	assert.Equal(t, models.TierOnDemand, quote.Tier)
	assert.Equal(t, "Linux", quote.OperatingSystem)
	assert.InDelta(t, 0.0208, quote.HourlyCost, 1e-9)
}

func TestResolve_UnknownRegionUsesDefaultTable(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	quote := r.Resolve(context.Background(), "m5.large", "eu-west-1", models.TierOnDemand, "Linux")

	assert.Equal(t, models.PriceSourceFallback, quote.Source)
	assert.InDelta(t, 0.096, quote.HourlyCost, 1e-9)
}

func TestResolve_FullFilterHit(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		return []string{onDemandDoc("Linux", "0.0116")}, nil
	}}
	r := NewResolver(api, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t2.micro", "us-east-1", models.TierOnDemand, "Linux")

	assert.Equal(t, models.PriceSourceAPI, quote.Source)
	assert.InDelta(t, 0.0116, quote.HourlyCost, 1e-9)
	require.Equal(t, 1, api.calls())

	in := api.inputs[0]
	assert.Equal(t, "AmazonEC2", *in.ServiceCode)
	assert.Equal(t, "t2.micro", filterValue(in, "instanceType"))
	assert.Equal(t, "US East (N. Virginia)", filterValue(in, "location"))
	assert.Equal(t, "Shared", filterValue(in, "tenancy"))
	assert.Equal(t, "NA", filterValue(in, "preInstalledSw"))
	assert.Equal(t, "Used", filterValue(in, "capacitystatus"))
	assert.Equal(t, "OnDemand", filterValue(in, "termType"))
}

func TestResolve_RelaxedFilterPrefersRequestedOS(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		if filterValue(in, "tenancy") != "" {
			return nil, nil
		}
		return []string{
			onDemandDoc("Windows", "0.0200"),
			`not json`,
			onDemandDoc("SUSE", "0.0150"),
			onDemandDoc("Linux", "0.0110"),
		}, nil
	}}
	r := NewResolver(api, zerolog.Nop())

	linux := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierOnDemand, "Linux")
	assert.Equal(t, models.PriceSourceAPI, linux.Source)
	assert.InDelta(t, 0.0110, linux.HourlyCost, 1e-9)
	assert.Equal(t, 2, api.calls())

	windows := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierOnDemand, "Windows")
	assert.InDelta(t, 0.0200, windows.HourlyCost, 1e-9)

	// An OS outside the allow-list falls back to Linux
	other := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierOnDemand, "FreeBSD")
	assert.InDelta(t, 0.0110, other.HourlyCost, 1e-9)
}

func TestResolve_CacheIdempotent(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		return []string{onDemandDoc("Linux", "0.0416")}, nil
	}}
	r := NewResolver(api, zerolog.Nop())
	ctx := context.Background()

	first := r.Resolve(ctx, "t3.medium", "us-east-1", models.TierOnDemand, "Linux")
	callsAfterFirst := api.calls()
	second := r.Resolve(ctx, "t3.medium", "us-east-1", models.TierOnDemand, "Linux")

	assert.Equal(t, callsAfterFirst, api.calls())
	assert.Equal(t, first.HourlyCost, second.HourlyCost)
	assert.Equal(t, models.PriceSourceAPI, first.Source)
	assert.Equal(t, models.PriceSourceCache, second.Source)

	stats := r.Stats().Snapshot()["EC2"]["us-east-1"]
	assert.Equal(t, 1, stats.API)
	assert.Equal(t, 1, stats.Cache)
}

func TestResolve_CacheKeyIncludesOS(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		if filterValue(in, "operatingSystem") == "Windows" {
			return []string{onDemandDoc("Windows", "0.0600")}, nil
		}
		return []string{onDemandDoc("Linux", "0.0416")}, nil
	}}
	r := NewResolver(api, zerolog.Nop())
	ctx := context.Background()

	linux := r.Resolve(ctx, "t3.medium", "us-east-1", models.TierOnDemand, "Linux")
	windows := r.Resolve(ctx, "t3.medium", "us-east-1", models.TierOnDemand, "Windows")

	assert.NotEqual(t, linux.HourlyCost, windows.HourlyCost)
	assert.Equal(t, models.PriceSourceAPI, windows.Source)
}

func TestResolve_APIErrorDegrades(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		return nil, errors.New("ThrottlingException: Rate exceeded")
	}}
	r := NewResolver(api, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t3.large", "ap-northeast-2", models.TierOnDemand, "Linux")

	assert.Equal(t, models.PriceSourceFallback, quote.Source)
	assert.InDelta(t, 0.104, quote.HourlyCost, 1e-9)

	stats := r.Stats().Snapshot()["EC2"]["ap-northeast-2"]
	assert.Equal(t, 1, stats.Failure)
	assert.Equal(t, 1, stats.Fallback)
}

func TestResolve_FallbackUsesDefaultRegionTable(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	// ap-northeast-2 has a table without t2.micro
	quote := r.Resolve(context.Background(), "t2.micro", "ap-northeast-2", models.TierOnDemand, "Linux")

	assert.Equal(t, models.PriceSourceFallback, quote.Source)
	assert.InDelta(t, 0.0116, quote.HourlyCost, 1e-9)
}

func TestResolve_UnlistedRegionSkipsRelaxedFilters(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		if filterValue(in, "tenancy") != "" {
			return nil, nil
		}
		return []string{onDemandDoc("Linux", "0.0110")}, nil
	}}
	r := NewResolver(api, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t3.micro", "xx-test-1", models.TierOnDemand, "Linux")

	assert.Equal(t, 1, api.calls(), "only the full filter set carries regionCode")
	assert.Equal(t, models.PriceSourceFallback, quote.Source)
	assert.InDelta(t, 0.0104, quote.HourlyCost, 1e-9)
}

func TestResolve_TimeoutDegrades(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		return nil, context.DeadlineExceeded
	}}
	blocking := &blockingProductsAPI{}
	r := NewResolver(blocking, zerolog.Nop(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	quote := r.Resolve(context.Background(), "x9.huge", "us-east-1", models.TierOnDemand, "Linux")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.PriceSourceDerived, quote.Source)
	assert.Greater(t, quote.HourlyCost, 0.0)

	r = NewResolver(api, zerolog.Nop())
	quote = r.Resolve(context.Background(), "t3.nano", "us-east-1", models.TierOnDemand, "Linux")
	assert.Equal(t, models.PriceSourceFallback, quote.Source)
}

type blockingProductsAPI struct{}

func (blockingProductsAPI) GetProducts(ctx context.Context, _ *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolve_DerivedEstimate(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name         string
		instanceType string
		want         float64
	}{
		{name: "known family unknown size in table", instanceType: "m6i.4xlarge", want: 0.048 * 16},
		{name: "class letter base", instanceType: "m9.xlarge", want: 0.048 * 4},
		{name: "generic base", instanceType: "q1.large", want: 0.05 * 2},
		{name: "metal", instanceType: "c6i.metal", want: 0.0425 * 96},
		{name: "no size", instanceType: "qqq", want: 0.05},
		{name: "empty", instanceType: "", want: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := r.Resolve(ctx, tt.instanceType, "us-east-1", models.TierOnDemand, "Linux")
			assert.Equal(t, models.PriceSourceDerived, quote.Source)
			assert.InDelta(t, tt.want, quote.HourlyCost, 1e-9)
			assert.Greater(t, quote.HourlyCost, 0.0)
		})
	}
}

func TestResolve_ReservedDiscount(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())
	ctx := context.Background()

	oneYear := r.Resolve(ctx, "t3.micro", "us-east-1", models.TierReserved1Yr, "Linux")
	threeYear := r.Resolve(ctx, "t3.micro", "us-east-1", models.TierReserved3Yr, "Linux")

	assert.Equal(t, models.PriceSourceDerived, oneYear.Source)
	assert.InDelta(t, 0.0104*0.5, oneYear.HourlyCost, 1e-9)
	assert.InDelta(t, 0.0104*0.4, threeYear.HourlyCost, 1e-9)
}

func TestResolve_ReservedFromAPI(t *testing.T) {
	api := &fakeProductsAPI{respond: func(in *pricing.GetProductsInput) ([]string, error) {
		if filterValue(in, "termType") == "Reserved" {
			return []string{reservedDoc("1yr", "0.0065")}, nil
		}
		return []string{onDemandDoc("Linux", "0.0104")}, nil
	}}
	r := NewResolver(api, zerolog.Nop())

	quote := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierReserved1Yr, "Linux")

	assert.Equal(t, models.PriceSourceAPI, quote.Source)
	assert.InDelta(t, 0.0065, quote.HourlyCost, 1e-9)

	// No 3yr term in the document, so the discount applies to the API on-demand price
	threeYear := r.Resolve(context.Background(), "t3.micro", "us-east-1", models.TierReserved3Yr, "Linux")
	assert.Equal(t, models.PriceSourceDerived, threeYear.Source)
	assert.InDelta(t, 0.0104*0.4, threeYear.HourlyCost, 1e-9)
}

func TestResolve_Concurrent(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]float64, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(ctx, "r5.large", "us-east-1", models.TierOnDemand, "Linux").HourlyCost
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.InDelta(t, 0.126, got, 1e-9)
	}
}

func TestMonthlyCost(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	monthly, source := r.MonthlyCost(context.Background(), "t3.micro", "us-east-1", models.TierOnDemand, "Linux")

	assert.InDelta(t, 7.592, monthly, 1e-9)
	assert.Equal(t, models.PriceSourceFallback, source)
}
