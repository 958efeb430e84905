package models

// Domain identifies which evaluator produced a recommendation
type Domain string

const (
	DomainCompute Domain = "compute"
	DomainStorage Domain = "storage"
)

// Priority is the coarse financial significance of a recommendation.
// Storage recommendations call it impact.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityForRatio classifies savings as a share of monthly cost
func PriorityForRatio(savings, monthlyCost float64) Priority {
	if monthlyCost <= 0 {
		return PriorityLow
	}
	ratio := savings / monthlyCost
	switch {
	case ratio > 0.5:
		return PriorityHigh
	case ratio > 0.25:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Recommendation actions
const (
	ActionStop         = "stop"
	ActionReserve      = "reserve"
	ActionDownsize     = "downsize"
	ActionAddLifecycle = "add-lifecycle-policy"
)

// Recommendation is one explainable savings suggestion
type Recommendation struct {
	ID           string `json:"id"`
	Domain       Domain `json:"domain"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`
	ResourceType string `json:"resource_type"`
	Region       string `json:"region"`

	Action           string   `json:"action"`
	Reason           string   `json:"reason"`
	EstimatedSavings float64  `json:"estimated_savings"` // USD per month
	MonthlyCost      float64  `json:"monthly_cost"`
	Priority         Priority `json:"priority"`

	// Metrics holds the numbers the decision was derived from
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Detail is machine-readable context for narrative generation and actuation
	Detail map[string]string `json:"detail,omitempty"`
}
