package pricing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/utils"
)

// The AWS Pricing API is only served from us-east-1 and ap-south-1
const pricingAPIRegion = "us-east-1"

// Service codes queried through GetProducts
const (
	serviceCodeEC2 = "AmazonEC2"
	serviceCodeS3  = "AmazonS3"
)

// ProductsAPI is the subset of the AWS Pricing client the resolver needs.
// *pricing.Client satisfies it.
type ProductsAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// NewAWSProductsAPI builds a Pricing API client from the default credential chain
func NewAWSProductsAPI(ctx context.Context) (*pricing.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(pricingAPIRegion))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config for pricing API: %w", err)
	}
	return pricing.NewFromConfig(cfg), nil
}

// getProducts runs one GetProducts call bounded by the resolver timeout
func (r *Resolver) getProducts(ctx context.Context, serviceCode string, filters []types.Filter, maxResults int32) ([]string, error) {
	if r.api == nil {
		return nil, fmt.Errorf("AWS pricing client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.api.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     filters,
		MaxResults:  aws.Int32(maxResults),
	})
	if err != nil {
		return nil, fmt.Errorf("error calling AWS Pricing API: %w", err)
	}

	return resp.PriceList, nil
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// termType maps a commitment tier to the price list termType attribute
func termType(tier models.CommitmentTier) string {
	if tier.IsReserved() {
		return "Reserved"
	}
	return "OnDemand"
}

// ec2FullFilters pins every attribute that distinguishes a plain shared-tenancy instance price
func ec2FullFilters(instanceType, region string, tier models.CommitmentTier, os string) []types.Filter {
	return []types.Filter{
		termMatch("instanceType", instanceType),
		termMatch("location", utils.GetRegionDescriptiveName(region)),
		termMatch("regionCode", region),
		termMatch("operatingSystem", os),
		termMatch("tenancy", "Shared"),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
		termMatch("termType", termType(tier)),
	}
}

// ec2RelaxedFilters keeps only the attributes every EC2 product carries
func ec2RelaxedFilters(instanceType, region string, tier models.CommitmentTier) []types.Filter {
	return []types.Filter{
		termMatch("instanceType", instanceType),
		termMatch("location", utils.GetRegionDescriptiveName(region)),
		termMatch("termType", termType(tier)),
	}
}

func s3StorageFilters(region, volumeType string) []types.Filter {
	return []types.Filter{
		termMatch("location", utils.GetRegionDescriptiveName(region)),
		termMatch("productFamily", "Storage"),
		termMatch("volumeType", volumeType),
	}
}
