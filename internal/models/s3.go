package models

// S3 storage classes as reported by ListObjectsV2
const (
	StorageClassStandard           = "STANDARD"
	StorageClassIntelligentTiering = "INTELLIGENT_TIERING"
	StorageClassStandardIA         = "STANDARD_IA"
	StorageClassOneZoneIA          = "ONEZONE_IA"
	StorageClassGlacierIR          = "GLACIER_IR"
	StorageClassGlacier            = "GLACIER"
	StorageClassDeepArchive        = "DEEP_ARCHIVE"
)

// OptimizedStorageClasses are the classes that already cost less than STANDARD
var OptimizedStorageClasses = []string{
	StorageClassIntelligentTiering,
	StorageClassStandardIA,
	StorageClassOneZoneIA,
	StorageClassGlacierIR,
	StorageClassGlacier,
	StorageClassDeepArchive,
}

// LifecycleRule is an existing lifecycle rule on a bucket
type LifecycleRule struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BucketDescriptor is a read-only snapshot of one S3 bucket's configuration
// and per-storage-class object distribution
type BucketDescriptor struct {
	BucketName        string            `json:"bucket_name"`
	Region            string            `json:"region"`
	VersioningEnabled bool              `json:"versioning_enabled"`
	LoggingEnabled    bool              `json:"logging_enabled"`
	EncryptionEnabled bool              `json:"encryption_enabled"`
	Tags              map[string]string `json:"tags,omitempty"`
	LifecycleRules    []LifecycleRule   `json:"lifecycle_rules,omitempty"`

	ObjectsByStorageClass map[string]int64 `json:"objects_by_storage_class"`
	SizeByStorageClass    map[string]int64 `json:"size_by_storage_class"` // in bytes

	// LastModifiedByGroup maps a key prefix group to the newest object
	// timestamp seen in it, formatted as RFC3339 or YYYY-MM-DD.
	LastModifiedByGroup map[string]string `json:"last_modified_by_group"`
}

// TotalObjects returns the object count across all storage classes
func (b BucketDescriptor) TotalObjects() int64 {
	var total int64
	for _, count := range b.ObjectsByStorageClass {
		total += count
	}
	return total
}

// TotalSize returns the stored bytes across all storage classes
func (b BucketDescriptor) TotalSize() int64 {
	var total int64
	for _, size := range b.SizeByStorageClass {
		total += size
	}
	return total
}

// Validate reports a DataShapeError when the bucket cannot be identified
func (b BucketDescriptor) Validate() error {
	if b.BucketName == "" {
		return &DataShapeError{Kind: "bucket", Field: "bucket_name"}
	}
	return nil
}
