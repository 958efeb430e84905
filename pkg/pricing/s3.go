package pricing

import (
	"context"
	"fmt"
	"maps"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/utils"
)

// StoragePriceFunc returns the per GB-month price of a storage class in a region
type StoragePriceFunc func(ctx context.Context, region, storageClass string) float64

// StoragePricePerGB returns the S3 per GB-month price for a storage class.
// Unknown classes cost the same as STANDARD.
func (r *Resolver) StoragePricePerGB(ctx context.Context, region, storageClass string) float64 {
	if region == "" {
		region = DefaultRegion
	}

	cacheKey := fmt.Sprintf("s3:%s:%s", region, storageClass)
	if price, found := r.s3Cache.get(cacheKey); found {
		r.stats.record(serviceS3, region, models.PriceSourceCache)
		return price
	}

	price, source := r.resolveStoragePrice(ctx, region, storageClass)
	r.s3Cache.set(cacheKey, price)
	r.stats.record(serviceS3, region, source)

	return price
}

func (r *Resolver) resolveStoragePrice(ctx context.Context, region, storageClass string) (float64, models.PriceSource) {
	if volumeType, ok := s3VolumeTypes[storageClass]; ok && r.api != nil {
		price, err := r.s3PriceFromAPI(ctx, region, volumeType)
		if err == nil {
			return price, models.PriceSourceAPI
		}

		r.stats.record(serviceS3, region, sourceFailure)
		r.logger.Debug().Err(err).
			Str("storage_class", storageClass).
			Str("region", region).
			Msg("Pricing API miss, using fallback storage pricing")
	}

	if price, ok := fallbackS3Price(region, storageClass); ok {
		return price, models.PriceSourceFallback
	}

	price, _ := fallbackS3Price(region, models.StorageClassStandard)
	return price, models.PriceSourceDerived
}

func (r *Resolver) s3PriceFromAPI(ctx context.Context, region, volumeType string) (float64, error) {
	if !utils.IsValidRegion(region) {
		return 0, fmt.Errorf("no pricing location for unlisted region %s", region)
	}
	priceList, err := r.getProducts(ctx, serviceCodeS3, s3StorageFilters(region, volumeType), 10)
	if err != nil {
		return 0, err
	}

	for _, item := range priceList {
		doc, err := parsePriceDocument(item)
		if err != nil {
			continue
		}
		if price, err := doc.StorageRate(); err == nil {
			return price, nil
		}
	}

	return 0, fmt.Errorf("no pricing found for %s in region %s", volumeType, region)
}

// StaticStoragePrices returns the fallback S3 price table for a region
func StaticStoragePrices(region string) map[string]float64 {
	prices, ok := DefaultS3Prices[region]
	if !ok {
		prices = DefaultS3Prices[defaultFallbackRegion]
	}
	return maps.Clone(prices)
}

// StaticStoragePrice is a StoragePriceFunc backed only by the fallback table
func StaticStoragePrice(_ context.Context, region, storageClass string) float64 {
	if price, ok := fallbackS3Price(region, storageClass); ok {
		return price
	}
	price, _ := fallbackS3Price(region, models.StorageClassStandard)
	return price
}
