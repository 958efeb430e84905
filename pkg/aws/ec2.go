package aws

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/utils"
)

const (
	cpuMetricNamespace = "AWS/EC2"
	cpuMetricName      = "CPUUtilization"

	currentCPUWindow = time.Hour
	currentCPUPeriod = 300
	averageCPUDays   = 7
	averageCPUPeriod = 86400
)

// EC2API is the subset of the EC2 client used by the collector
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used by the collector
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// EC2Collector builds descriptors for running instances in one region
type EC2Collector struct {
	ec2    EC2API
	cw     CloudWatchAPI
	region string
	logger zerolog.Logger
	now    func() time.Time
}

// NewEC2Collector creates a collector over the given clients
func NewEC2Collector(ec2Client EC2API, cwClient CloudWatchAPI, region string, logger zerolog.Logger) *EC2Collector {
	return &EC2Collector{
		ec2:    ec2Client,
		cw:     cwClient,
		region: region,
		logger: logger.With().Str("component", "ec2-collector").Str("region", region).Logger(),
		now:    time.Now,
	}
}

// NewEC2CollectorForRegion creates a collector with SDK clients for region
func NewEC2CollectorForRegion(ctx context.Context, region string, logger zerolog.Logger) (*EC2Collector, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewEC2Collector(ec2.NewFromConfig(cfg), cloudwatch.NewFromConfig(cfg), region, logger), nil
}

// Collect returns a descriptor for every running instance. Instances whose
// CPU metrics cannot be read are still returned with nil utilization so the
// evaluator can count them as malformed.
func (c *EC2Collector) Collect(ctx context.Context) ([]models.ResourceDescriptor, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{string(types.InstanceStateNameRunning)},
			},
		},
	}

	var resources []models.ResourceDescriptor
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying EC2 instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				resources = append(resources, c.describe(ctx, instance))
			}
		}
	}

	c.logger.Debug().Int("instances", len(resources)).Msg("EC2 collection complete")
	return resources, nil
}

func (c *EC2Collector) describe(ctx context.Context, instance types.Instance) models.ResourceDescriptor {
	now := c.now()
	id := utils.SafeDeref(instance.InstanceId)

	resource := models.ResourceDescriptor{
		InstanceID:      id,
		Name:            utils.GetName(instance.Tags),
		InstanceType:    string(instance.InstanceType),
		Region:          c.region,
		Tags:            utils.GetTagsMap(instance.Tags),
		OperatingSystem: operatingSystem(utils.SafeDeref(instance.PlatformDetails)),
	}
	if instance.Placement != nil {
		resource.AvailabilityZone = utils.SafeDeref(instance.Placement.AvailabilityZone)
	}
	if instance.State != nil {
		resource.State = string(instance.State.Name)
	}
	if instance.LaunchTime != nil {
		launch := *instance.LaunchTime
		resource.LaunchTime = &launch
		resource.UptimeHours = utils.Float64(utils.UptimeHours(launch, now))
	}

	current, err := c.cpuSamples(ctx, id, now.Add(-currentCPUWindow), now, currentCPUPeriod)
	if err != nil {
		c.logger.Warn().Err(err).Str("instance", id).Msg("Failed to read current CPU")
	} else if len(current) > 0 {
		resource.CurrentCPU = utils.Float64(current[len(current)-1])
	}

	daily, err := c.cpuSamples(ctx, id, now.AddDate(0, 0, -averageCPUDays), now, averageCPUPeriod)
	if err != nil {
		c.logger.Warn().Err(err).Str("instance", id).Msg("Failed to read 7-day CPU")
	} else if len(daily) > 0 {
		var sum float64
		for _, v := range daily {
			sum += v
		}
		resource.AverageCPU = utils.Float64(sum / float64(len(daily)))
	}

	return resource
}

// cpuSamples returns the average CPU datapoints in the window, oldest first
func (c *EC2Collector) cpuSamples(ctx context.Context, instanceID string, start, end time.Time, period int32) ([]float64, error) {
	out, err := c.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(cpuMetricNamespace),
		MetricName: aws.String(cpuMetricName),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("InstanceId"), Value: aws.String(instanceID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(period),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
		Unit:       cwtypes.StandardUnitPercent,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting %s for %s: %w", cpuMetricName, instanceID, err)
	}

	points := slices.Clone(out.Datapoints)
	slices.SortFunc(points, func(a, b cwtypes.Datapoint) int {
		return cmp.Compare(aws.ToTime(a.Timestamp).UnixNano(), aws.ToTime(b.Timestamp).UnixNano())
	})

	samples := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Average != nil {
			samples = append(samples, *p.Average)
		}
	}
	return samples, nil
}

// operatingSystem maps EC2 platform details onto pricing operating systems
func operatingSystem(platform string) string {
	switch p := strings.ToLower(platform); {
	case strings.Contains(p, "windows"):
		return "Windows"
	case strings.Contains(p, "red hat"):
		return "Red Hat Enterprise Linux"
	case strings.Contains(p, "suse"):
		return "SUSE"
	default:
		return "Linux"
	}
}

// CollectEC2 collects running instances across regions
func CollectEC2(ctx context.Context, regions []string, logger zerolog.Logger) ([]models.ResourceDescriptor, error) {
	return collectRegions(ctx, regions, func(ctx context.Context, region string) ([]models.ResourceDescriptor, error) {
		collector, err := NewEC2CollectorForRegion(ctx, region, logger)
		if err != nil {
			return nil, err
		}
		return collector.Collect(ctx)
	})
}
