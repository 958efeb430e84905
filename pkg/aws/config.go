// Package aws collects compute and storage descriptors from AWS accounts.
package aws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/smithy-go"
)

// LoadConfig loads the shared AWS configuration for one region
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithEC2IMDSClientEnableState(imds.ClientEnabled),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config for region %s: %w", region, err)
	}
	return cfg, nil
}

// RegionError records a collection failure for one region
type RegionError struct {
	Region string
	Err    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region %s: %v", e.Region, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

// collectRegions runs collect for every region concurrently. Results keep
// the order of regions; a failing region contributes a RegionError and
// does not stop the others.
func collectRegions[T any](ctx context.Context, regions []string, collect func(ctx context.Context, region string) ([]T, error)) ([]T, error) {
	var wg sync.WaitGroup
	results := make([][]T, len(regions))
	errs := make([]error, len(regions))

	for i, region := range regions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := collect(ctx, region)
			if err != nil {
				errs[i] = &RegionError{Region: region, Err: err}
				return
			}
			results[i] = items
		}()
	}
	wg.Wait()

	var all []T
	for _, items := range results {
		all = append(all, items...)
	}
	return all, errors.Join(errs...)
}

// isAPIError reports whether err carries one of the given AWS error codes
func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
