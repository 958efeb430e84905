package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/utils"
)

// DefaultMaxObjects bounds the object listing per bucket
const DefaultMaxObjects = 1_000_000

// S3 error codes that mean "not configured" rather than failure
const (
	errNoSuchLifecycle  = "NoSuchLifecycleConfiguration"
	errNoSuchTagSet     = "NoSuchTagSet"
	errNoEncryptionConf = "ServerSideEncryptionConfigurationNotFoundError"
)

// S3API is the subset of the S3 client used by the collector
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketLogging(ctx context.Context, params *s3.GetBucketLoggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketLoggingOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Collector builds descriptors for the buckets located in one region
type S3Collector struct {
	client     S3API
	region     string
	maxObjects int
	logger     zerolog.Logger
}

// NewS3Collector creates a collector over the given client
func NewS3Collector(client S3API, region string, logger zerolog.Logger) *S3Collector {
	return &S3Collector{
		client:     client,
		region:     region,
		maxObjects: DefaultMaxObjects,
		logger:     logger.With().Str("component", "s3-collector").Str("region", region).Logger(),
	}
}

// NewS3CollectorForRegion creates a collector with an SDK client for region
func NewS3CollectorForRegion(ctx context.Context, region string, logger zerolog.Logger) (*S3Collector, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return NewS3Collector(client, region, logger), nil
}

// SetMaxObjects bounds how many objects are listed per bucket. Zero or
// less removes the bound.
func (c *S3Collector) SetMaxObjects(n int) {
	c.maxObjects = n
}

// Collect returns a descriptor for every accessible bucket in the region.
// Buckets that fail to describe are logged and left out.
func (c *S3Collector) Collect(ctx context.Context) ([]models.BucketDescriptor, error) {
	result, err := c.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("error listing S3 buckets: %w", err)
	}

	var buckets []models.BucketDescriptor
	for _, bucket := range result.Buckets {
		name := utils.SafeDeref(bucket.Name)

		location, err := c.getBucketRegion(ctx, name)
		if err != nil {
			c.logger.Debug().Err(err).Str("bucket", name).Msg("Skipping inaccessible bucket")
			continue
		}
		if location != c.region {
			continue
		}

		descriptor, err := c.describe(ctx, name)
		if err != nil {
			c.logger.Warn().Err(err).Str("bucket", name).Msg("Failed to describe bucket")
			continue
		}
		buckets = append(buckets, descriptor)
	}

	c.logger.Debug().Int("buckets", len(buckets)).Msg("S3 collection complete")
	return buckets, nil
}

// getBucketRegion determines the region for a bucket
func (c *S3Collector) getBucketRegion(ctx context.Context, bucketName string) (string, error) {
	location, err := c.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return "", err
	}

	// An empty constraint is us-east-1 and EU is the legacy name of eu-west-1
	switch location.LocationConstraint {
	case "":
		return "us-east-1", nil
	case types.BucketLocationConstraintEu:
		return "eu-west-1", nil
	default:
		return string(location.LocationConstraint), nil
	}
}

func (c *S3Collector) describe(ctx context.Context, bucketName string) (models.BucketDescriptor, error) {
	descriptor := models.BucketDescriptor{
		BucketName: bucketName,
		Region:     c.region,
	}

	lifecycle, err := c.lifecycleRules(ctx, bucketName)
	if err != nil {
		return descriptor, err
	}
	descriptor.LifecycleRules = lifecycle

	if versioning, err := c.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucketName)}); err == nil {
		descriptor.VersioningEnabled = versioning.Status == types.BucketVersioningStatusEnabled
	} else {
		c.logger.Debug().Err(err).Str("bucket", bucketName).Msg("Versioning unavailable")
	}

	if logging, err := c.client.GetBucketLogging(ctx, &s3.GetBucketLoggingInput{Bucket: aws.String(bucketName)}); err == nil {
		descriptor.LoggingEnabled = logging.LoggingEnabled != nil
	} else {
		c.logger.Debug().Err(err).Str("bucket", bucketName).Msg("Logging unavailable")
	}

	encryption, err := c.client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(bucketName)})
	switch {
	case err == nil:
		descriptor.EncryptionEnabled = encryption.ServerSideEncryptionConfiguration != nil &&
			len(encryption.ServerSideEncryptionConfiguration.Rules) > 0
	case isAPIError(err, errNoEncryptionConf):
	default:
		c.logger.Debug().Err(err).Str("bucket", bucketName).Msg("Encryption unavailable")
	}

	tagging, err := c.client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucketName)})
	switch {
	case err == nil:
		descriptor.Tags = utils.GetS3TagsMap(tagging.TagSet)
	case isAPIError(err, errNoSuchTagSet):
	default:
		c.logger.Debug().Err(err).Str("bucket", bucketName).Msg("Tags unavailable")
	}

	if err := c.objectStats(ctx, &descriptor); err != nil {
		return descriptor, err
	}
	return descriptor, nil
}

// lifecycleRules returns the existing rules. A bucket without a lifecycle
// configuration has none; any other failure is an error because an
// unknown configuration must not be reported as missing.
func (c *S3Collector) lifecycleRules(ctx context.Context, bucketName string) ([]models.LifecycleRule, error) {
	out, err := c.client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		if isAPIError(err, errNoSuchLifecycle) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting lifecycle configuration: %w", err)
	}

	rules := make([]models.LifecycleRule, 0, len(out.Rules))
	for _, rule := range out.Rules {
		rules = append(rules, models.LifecycleRule{
			ID:     utils.SafeDeref(rule.ID),
			Status: string(rule.Status),
		})
	}
	return rules, nil
}

// objectStats lists the bucket and aggregates counts and bytes per storage
// class and the newest modification per top-level key group
func (c *S3Collector) objectStats(ctx context.Context, d *models.BucketDescriptor) error {
	d.ObjectsByStorageClass = make(map[string]int64)
	d.SizeByStorageClass = make(map[string]int64)
	latest := make(map[string]time.Time)

	seen := 0
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.BucketName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("error listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			class := string(obj.StorageClass)
			if class == "" {
				class = models.StorageClassStandard
			}
			d.ObjectsByStorageClass[class]++
			d.SizeByStorageClass[class] += aws.ToInt64(obj.Size)

			if obj.LastModified != nil {
				group := keyGroup(utils.SafeDeref(obj.Key))
				if obj.LastModified.After(latest[group]) {
					latest[group] = *obj.LastModified
				}
			}

			seen++
			if c.maxObjects > 0 && seen >= c.maxObjects {
				c.logger.Warn().Str("bucket", d.BucketName).Int("max_objects", c.maxObjects).Msg("Object listing truncated")
				d.LastModifiedByGroup = formatGroups(latest)
				return nil
			}
		}
	}

	d.LastModifiedByGroup = formatGroups(latest)
	return nil
}

// keyGroup is the first path segment of an object key
func keyGroup(key string) string {
	if group, _, found := strings.Cut(key, "/"); found {
		return group
	}
	return key
}

func formatGroups(latest map[string]time.Time) map[string]string {
	groups := make(map[string]string, len(latest))
	for group, ts := range latest {
		groups[group] = ts.UTC().Format(time.RFC3339)
	}
	return groups
}

// CollectS3 collects buckets across regions, listing at most maxObjects
// objects per bucket
func CollectS3(ctx context.Context, regions []string, logger zerolog.Logger, maxObjects int) ([]models.BucketDescriptor, error) {
	return collectRegions(ctx, regions, func(ctx context.Context, region string) ([]models.BucketDescriptor, error) {
		collector, err := NewS3CollectorForRegion(ctx, region, logger)
		if err != nil {
			return nil, err
		}
		collector.SetMaxObjects(maxObjects)
		return collector.Collect(ctx)
	})
}
