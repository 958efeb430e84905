package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/utils"
)

// DefaultTimeout bounds each Pricing API call
const DefaultTimeout = 5 * time.Second

// Default dimensions applied when a caller leaves them empty
const (
	DefaultOperatingSystem = "Linux"
	DefaultRegion          = "us-east-1"
)

// osAllowList is accepted by the relaxed lookup after the requested OS
var osAllowList = []string{"Linux", "Red Hat Enterprise Linux", "SUSE", "Windows"}

// Resolver produces an hourly price for any instance shape. It walks
// cache, Pricing API, relaxed Pricing API, fallback table and the derived
// estimate in that order and never fails.
type Resolver struct {
	api     ProductsAPI
	cache   Cache
	s3Cache *storageCache
	stats   *Stats
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTimeout sets the per-call Pricing API timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCache replaces the default in-memory cache
func WithCache(c Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// NewResolver creates a Resolver. A nil api skips the Pricing API rungs.
func NewResolver(api ProductsAPI, logger zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		api:     api,
		cache:   NewMemoryCache(),
		s3Cache: &storageCache{prices: make(map[string]float64)},
		stats:   NewStats(),
		timeout: DefaultTimeout,
		logger:  logger.With().Str("component", "pricing").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns the resolver's lookup statistics
func (r *Resolver) Stats() *Stats {
	return r.stats
}

// Resolve returns the hourly price for an instance shape and where it came from
func (r *Resolver) Resolve(ctx context.Context, instanceType, region string, tier models.CommitmentTier, os string) models.PriceQuote {
	if region == "" {
		region = DefaultRegion
	}
	if tier == "" {
		tier = models.TierOnDemand
	}
	if os == "" {
		os = DefaultOperatingSystem
	}

	quote := models.PriceQuote{
		InstanceType:    instanceType,
		Region:          region,
		Tier:            tier,
		OperatingSystem: os,
	}

	key := CacheKey{InstanceType: instanceType, Region: region, Tier: tier, OperatingSystem: os}
	if hourly, ok := r.cache.Get(key); ok {
		r.stats.record(serviceEC2, region, models.PriceSourceCache)
		quote.HourlyCost = hourly
		quote.Source = models.PriceSourceCache
		return quote
	}

	var hourly float64
	var source models.PriceSource
	if tier.IsReserved() {
		hourly, source = r.resolveReserved(ctx, instanceType, region, tier, os)
	} else {
		hourly, source = r.resolveOnDemand(ctx, instanceType, region, os)
	}
	if hourly < 0 {
		hourly = 0
	}

	r.cache.Set(key, hourly)
	r.stats.record(serviceEC2, region, source)

	quote.HourlyCost = hourly
	quote.Source = source
	return quote
}

// MonthlyCost is Resolve expressed over a 730 hour month
func (r *Resolver) MonthlyCost(ctx context.Context, instanceType, region string, tier models.CommitmentTier, os string) (float64, models.PriceSource) {
	quote := r.Resolve(ctx, instanceType, region, tier, os)
	return quote.MonthlyCost(), quote.Source
}

func (r *Resolver) resolveOnDemand(ctx context.Context, instanceType, region, os string) (float64, models.PriceSource) {
	if price, err := r.ec2PriceFromAPI(ctx, instanceType, region, models.TierOnDemand, os); err == nil {
		return price, models.PriceSourceAPI
	} else if r.api != nil {
		r.stats.record(serviceEC2, region, sourceFailure)
		r.logger.Debug().Err(err).
			Str("instance_type", instanceType).
			Str("region", region).
			Msg("Pricing API miss, using fallback pricing")
	}

	if price, ok := fallbackEC2Price(instanceType, region); ok {
		return price, models.PriceSourceFallback
	}

	return DeriveHourlyPrice(instanceType), models.PriceSourceDerived
}

func (r *Resolver) resolveReserved(ctx context.Context, instanceType, region string, tier models.CommitmentTier, os string) (float64, models.PriceSource) {
	if price, err := r.ec2PriceFromAPI(ctx, instanceType, region, tier, os); err == nil {
		return price, models.PriceSourceAPI
	} else if r.api != nil {
		r.stats.record(serviceEC2, region, sourceFailure)
		r.logger.Debug().Err(err).
			Str("instance_type", instanceType).
			Str("region", region).
			Str("tier", string(tier)).
			Msg("No reserved price published, applying commitment discount")
	}

	years := 1
	if tier == models.TierReserved3Yr {
		years = 3
	}
	onDemand := r.Resolve(ctx, instanceType, region, models.TierOnDemand, os)
	return onDemand.HourlyCost * (1 - reservedDiscount(years)), models.PriceSourceDerived
}

// ec2PriceFromAPI tries the full filter set, then the relaxed one
func (r *Resolver) ec2PriceFromAPI(ctx context.Context, instanceType, region string, tier models.CommitmentTier, os string) (float64, error) {
	if r.api == nil {
		return 0, fmt.Errorf("AWS pricing client not initialized")
	}

	priceList, err := r.getProducts(ctx, serviceCodeEC2, ec2FullFilters(instanceType, region, tier, os), 10)
	if err != nil {
		return 0, err
	}
	for _, item := range priceList {
		if price, err := extractEC2Price(item, tier); err == nil {
			return price, nil
		}
	}

	// the relaxed filters match on location only, which is unknown for unlisted regions
	if !utils.IsValidRegion(region) {
		return 0, fmt.Errorf("no pricing found for %s in unlisted region %s", instanceType, region)
	}

	priceList, err = r.getProducts(ctx, serviceCodeEC2, ec2RelaxedFilters(instanceType, region, tier), 100)
	if err != nil {
		return 0, err
	}

	docs := make([]*priceDocument, 0, len(priceList))
	for _, item := range priceList {
		doc, err := parsePriceDocument(item)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	for _, allowed := range append([]string{os}, osAllowList...) {
		for _, doc := range docs {
			if doc.Product.Attributes["operatingSystem"] != allowed {
				continue
			}
			if price, err := doc.price(tier); err == nil {
				return price, nil
			}
		}
	}

	return 0, fmt.Errorf("no pricing found for %s in region %s", instanceType, region)
}

func extractEC2Price(priceJSON string, tier models.CommitmentTier) (float64, error) {
	doc, err := parsePriceDocument(priceJSON)
	if err != nil {
		return 0, err
	}
	return doc.price(tier)
}

func (doc *priceDocument) price(tier models.CommitmentTier) (float64, error) {
	switch tier {
	case models.TierReserved1Yr:
		return doc.ReservedHourly("1yr")
	case models.TierReserved3Yr:
		return doc.ReservedHourly("3yr")
	default:
		return doc.OnDemandHourly()
	}
}
