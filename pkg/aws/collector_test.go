package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/costadvisor/internal/models"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeEC2 struct {
	pages []*ec2.DescribeInstancesOutput
	calls int
}

func (f *fakeEC2) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

type fakeCloudWatch struct {
	failFor string
}

func (f *fakeCloudWatch) GetMetricStatistics(_ context.Context, in *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	if aws.ToString(in.Dimensions[0].Value) == f.failFor {
		return nil, errors.New("throttled")
	}
	if aws.ToInt32(in.Period) == averageCPUPeriod {
		return &cloudwatch.GetMetricStatisticsOutput{Datapoints: []cwtypes.Datapoint{
			{Average: aws.Float64(2), Timestamp: aws.Time(testNow.AddDate(0, 0, -2))},
			{Average: aws.Float64(4), Timestamp: aws.Time(testNow.AddDate(0, 0, -1))},
		}}, nil
	}
	// returned newest first to check ordering
	return &cloudwatch.GetMetricStatisticsOutput{Datapoints: []cwtypes.Datapoint{
		{Average: aws.Float64(7), Timestamp: aws.Time(testNow.Add(-5 * time.Minute))},
		{Average: aws.Float64(1), Timestamp: aws.Time(testNow.Add(-30 * time.Minute))},
	}}, nil
}

func instance(id string, instanceType ec2types.InstanceType, platform string) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:      aws.String(id),
		InstanceType:    instanceType,
		LaunchTime:      aws.Time(testNow.Add(-48 * time.Hour)),
		Placement:       &ec2types.Placement{AvailabilityZone: aws.String("us-east-1a")},
		State:           &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		PlatformDetails: aws.String(platform),
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("web-" + id)},
			{Key: aws.String("env"), Value: aws.String("dev")},
		},
	}
}

func TestEC2Collector_Collect(t *testing.T) {
	fake := &fakeEC2{pages: []*ec2.DescribeInstancesOutput{
		{
			Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{instance("i-1", ec2types.InstanceTypeT3Micro, "Linux/UNIX")}}},
			NextToken:    aws.String("next"),
		},
		{
			Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{instance("i-2", ec2types.InstanceTypeM5Large, "Windows")}}},
		},
	}}
	c := NewEC2Collector(fake, &fakeCloudWatch{failFor: "i-2"}, "us-east-1", zerolog.Nop())
	c.now = func() time.Time { return testNow }

	resources, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, 2, fake.calls)

	first := resources[0]
	assert.Equal(t, "i-1", first.InstanceID)
	assert.Equal(t, "web-i-1", first.Name)
	assert.Equal(t, "t3.micro", first.InstanceType)
	assert.Equal(t, "us-east-1a", first.AvailabilityZone)
	assert.Equal(t, "running", first.State)
	assert.Equal(t, "Linux", first.OperatingSystem)
	assert.Equal(t, "dev", first.Tags["env"])
	require.NotNil(t, first.UptimeHours)
	assert.InDelta(t, 48, *first.UptimeHours, 1e-9)
	require.NotNil(t, first.AverageCPU)
	assert.InDelta(t, 3, *first.AverageCPU, 1e-9)
	require.NotNil(t, first.CurrentCPU)
	assert.InDelta(t, 7, *first.CurrentCPU, 1e-9)
	assert.NoError(t, first.Validate())

	second := resources[1]
	assert.Equal(t, "Windows", second.OperatingSystem)
	assert.Nil(t, second.AverageCPU, "metric failure leaves utilization unset")
	assert.ErrorIs(t, second.Validate(), models.ErrDataShape)
}

func TestOperatingSystem(t *testing.T) {
	assert.Equal(t, "Linux", operatingSystem("Linux/UNIX"))
	assert.Equal(t, "Linux", operatingSystem(""))
	assert.Equal(t, "Windows", operatingSystem("Windows with SQL Server Standard"))
	assert.Equal(t, "Red Hat Enterprise Linux", operatingSystem("Red Hat Enterprise Linux"))
	assert.Equal(t, "SUSE", operatingSystem("SUSE Linux"))
}

type fakeS3 struct {
	locations  map[string]s3types.BucketLocationConstraint
	lifecycle  map[string][]s3types.LifecycleRule
	lifecycleE map[string]error
	objects    map[string][]s3types.Object
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	out := &s3.ListBucketsOutput{}
	for _, name := range []string{"logs", "managed", "denied", "elsewhere", "broken"} {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *fakeS3) GetBucketLocation(_ context.Context, in *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	loc, ok := f.locations[aws.ToString(in.Bucket)]
	if !ok {
		return nil, apiError("AccessDenied")
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: loc}, nil
}

func (f *fakeS3) GetBucketVersioning(_ context.Context, in *s3.GetBucketVersioningInput, _ ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	if aws.ToString(in.Bucket) == "logs" {
		return &s3.GetBucketVersioningOutput{Status: s3types.BucketVersioningStatusEnabled}, nil
	}
	return &s3.GetBucketVersioningOutput{}, nil
}

func (f *fakeS3) GetBucketLogging(context.Context, *s3.GetBucketLoggingInput, ...func(*s3.Options)) (*s3.GetBucketLoggingOutput, error) {
	return &s3.GetBucketLoggingOutput{}, nil
}

func (f *fakeS3) GetBucketEncryption(_ context.Context, in *s3.GetBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	if aws.ToString(in.Bucket) != "logs" {
		return nil, apiError(errNoEncryptionConf)
	}
	return &s3.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{}},
		},
	}, nil
}

func (f *fakeS3) GetBucketTagging(_ context.Context, in *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	if aws.ToString(in.Bucket) != "logs" {
		return nil, apiError(errNoSuchTagSet)
	}
	return &s3.GetBucketTaggingOutput{TagSet: []s3types.Tag{{Key: aws.String("team"), Value: aws.String("data")}}}, nil
}

func (f *fakeS3) GetBucketLifecycleConfiguration(_ context.Context, in *s3.GetBucketLifecycleConfigurationInput, _ ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error) {
	name := aws.ToString(in.Bucket)
	if err, ok := f.lifecycleE[name]; ok {
		return nil, err
	}
	rules, ok := f.lifecycle[name]
	if !ok {
		return nil, apiError(errNoSuchLifecycle)
	}
	return &s3.GetBucketLifecycleConfigurationOutput{Rules: rules}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{Contents: f.objects[aws.ToString(in.Bucket)]}, nil
}

func object(key string, class s3types.ObjectStorageClass, size int64, modified time.Time) s3types.Object {
	return s3types.Object{
		Key:          aws.String(key),
		StorageClass: class,
		Size:         aws.Int64(size),
		LastModified: aws.Time(modified),
	}
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		locations: map[string]s3types.BucketLocationConstraint{
			"logs":      "",
			"managed":   "",
			"elsewhere": s3types.BucketLocationConstraintEu,
			"broken":    "",
		},
		lifecycle: map[string][]s3types.LifecycleRule{
			"managed": {{ID: aws.String("expire"), Status: s3types.ExpirationStatusEnabled}},
		},
		lifecycleE: map[string]error{
			"broken": apiError("InternalError"),
		},
		objects: map[string][]s3types.Object{
			"logs": {
				object("app/2024/a.log", "", 100, testNow.AddDate(0, 0, -200)),
				object("app/2025/b.log", s3types.ObjectStorageClassStandard, 300, testNow.AddDate(0, 0, -100)),
				object("archive/c.log", s3types.ObjectStorageClassGlacier, 1000, testNow.AddDate(0, 0, -400)),
				object("README", s3types.ObjectStorageClassStandard, 10, testNow.AddDate(0, 0, -50)),
			},
		},
	}
}

func TestS3Collector_Collect(t *testing.T) {
	c := NewS3Collector(newFakeS3(), "us-east-1", zerolog.Nop())

	buckets, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 2, "inaccessible, foreign and failing buckets are left out")

	logs := buckets[0]
	assert.Equal(t, "logs", logs.BucketName)
	assert.Equal(t, "us-east-1", logs.Region)
	assert.True(t, logs.VersioningEnabled)
	assert.True(t, logs.EncryptionEnabled)
	assert.False(t, logs.LoggingEnabled)
	assert.Equal(t, map[string]string{"team": "data"}, logs.Tags)
	assert.Empty(t, logs.LifecycleRules)
	assert.Equal(t, map[string]int64{"STANDARD": 3, "GLACIER": 1}, logs.ObjectsByStorageClass)
	assert.Equal(t, map[string]int64{"STANDARD": 410, "GLACIER": 1000}, logs.SizeByStorageClass)
	assert.Equal(t, map[string]string{
		"app":     testNow.AddDate(0, 0, -100).Format(time.RFC3339),
		"archive": testNow.AddDate(0, 0, -400).Format(time.RFC3339),
		"README":  testNow.AddDate(0, 0, -50).Format(time.RFC3339),
	}, logs.LastModifiedByGroup)

	managed := buckets[1]
	assert.Equal(t, []models.LifecycleRule{{ID: "expire", Status: "Enabled"}}, managed.LifecycleRules)
	assert.Nil(t, managed.Tags)
	assert.False(t, managed.EncryptionEnabled)
}

func TestS3Collector_MaxObjects(t *testing.T) {
	c := NewS3Collector(newFakeS3(), "us-east-1", zerolog.Nop())
	c.SetMaxObjects(2)

	buckets, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, buckets)
	assert.Equal(t, int64(2), buckets[0].TotalObjects())
}

func TestS3Collector_EURegion(t *testing.T) {
	c := NewS3Collector(newFakeS3(), "eu-west-1", zerolog.Nop())

	buckets, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "elsewhere", buckets[0].BucketName)
	assert.Empty(t, buckets[0].LastModifiedByGroup)
}

func TestKeyGroup(t *testing.T) {
	assert.Equal(t, "logs", keyGroup("logs/2025/a.gz"))
	assert.Equal(t, "file.txt", keyGroup("file.txt"))
	assert.Equal(t, "", keyGroup("/leading"))
}

func TestCollectRegions(t *testing.T) {
	regions := []string{"us-east-1", "eu-west-1", "ap-northeast-2"}

	items, err := collectRegions(context.Background(), regions, func(_ context.Context, region string) ([]string, error) {
		if region == "eu-west-1" {
			return nil, errors.New("denied")
		}
		return []string{region + "-a", region + "-b"}, nil
	})

	assert.Equal(t, []string{"us-east-1-a", "us-east-1-b", "ap-northeast-2-a", "ap-northeast-2-b"}, items)
	var regionErr *RegionError
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, "eu-west-1", regionErr.Region)
}

func TestIsAPIError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), apiError(errNoSuchLifecycle))
	assert.True(t, isAPIError(wrapped, "Other", errNoSuchLifecycle))
	assert.False(t, isAPIError(errors.New("plain"), errNoSuchLifecycle))
}
