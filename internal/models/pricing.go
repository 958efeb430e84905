package models

// HoursPerMonth is 365 days / 12 months * 24 hours
const HoursPerMonth = 730.0

// PriceSource tags where a price came from
type PriceSource string

const (
	// PriceSourceAPI indicates the AWS Pricing API answered
	PriceSourceAPI PriceSource = "api"

	// PriceSourceFallback indicates the static fallback table was used
	PriceSourceFallback PriceSource = "fallback-table"

	// PriceSourceDerived indicates an estimate from the family/size heuristic
	// or from an on-demand price and a commitment discount
	PriceSourceDerived PriceSource = "derived"

	// PriceSourceCache indicates a repeat lookup served from the resolver cache
	PriceSourceCache PriceSource = "cache"
)

// CommitmentTier is a pricing plan
type CommitmentTier string

const (
	TierOnDemand    CommitmentTier = "on-demand"
	TierReserved1Yr CommitmentTier = "reserved-1yr"
	TierReserved3Yr CommitmentTier = "reserved-3yr"
)

// IsReserved reports whether the tier is a commitment plan
func (t CommitmentTier) IsReserved() bool {
	return t == TierReserved1Yr || t == TierReserved3Yr
}

// ReservedTier returns the commitment tier for a reservation term in years
func ReservedTier(years int) CommitmentTier {
	if years == 3 {
		return TierReserved3Yr
	}
	return TierReserved1Yr
}

// PriceQuote is the resolved hourly cost for an instance shape
type PriceQuote struct {
	InstanceType    string         `json:"instance_type"`
	Region          string         `json:"region"`
	Tier            CommitmentTier `json:"tier"`
	OperatingSystem string         `json:"operating_system"`
	HourlyCost      float64        `json:"hourly_cost"`
	Source          PriceSource    `json:"source"`
}

// MonthlyCost returns the hourly cost over a 730 hour month
func (q PriceQuote) MonthlyCost() float64 {
	return q.HourlyCost * HoursPerMonth
}
