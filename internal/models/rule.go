package models

// Lifecycle transition tiers
const (
	TierIA          = "IA"
	TierOneZoneIA   = "One Zone-IA"
	TierGlacierIR   = "Glacier IR"
	TierGlacier     = "Glacier"
	TierDeepArchive = "Deep Archive"
)

// TransitionStorageClass maps a transition tier name to its S3 storage class
var TransitionStorageClass = map[string]string{
	TierIA:          StorageClassStandardIA,
	TierOneZoneIA:   StorageClassOneZoneIA,
	TierGlacierIR:   StorageClassGlacierIR,
	TierGlacier:     StorageClassGlacier,
	TierDeepArchive: StorageClassDeepArchive,
}

// TierColdness orders transition tiers from warmest to coldest
var TierColdness = map[string]int{
	TierIA:          1,
	TierOneZoneIA:   2,
	TierGlacierIR:   3,
	TierGlacier:     4,
	TierDeepArchive: 5,
}

// Transition moves objects older than Days to Tier
type Transition struct {
	Days int    `json:"days" yaml:"days"`
	Tier string `json:"tier" yaml:"tier"`
}

// Rule holds the user-tunable thresholds for one evaluation domain.
// CPUThreshold, MinUptimeHours, MinSavingsUSD and ReservationTermYears only
// gate compute; the storage evaluator reads ExcludedTags and Transitions and
// ignores the rest.
type Rule struct {
	CPUThreshold         float64      `json:"cpu_threshold" yaml:"cpu_threshold"`
	MinUptimeHours       float64      `json:"min_uptime_hours" yaml:"min_uptime_hours"`
	MinSavingsUSD        float64      `json:"min_savings_usd" yaml:"min_savings_usd"`
	ExcludedTags         []string     `json:"excluded_tags" yaml:"excluded_tags"`
	ReservationTermYears int          `json:"reservation_term_years,omitempty" yaml:"reservation_term_years,omitempty"`
	Transitions          []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}
