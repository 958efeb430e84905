package compute

import (
	"slices"

	"github.com/younsl/costadvisor/pkg/pricing"
)

// sizeHierarchy orders instance sizes from smallest to largest
var sizeHierarchy = []string{
	"nano",
	"micro",
	"small",
	"medium",
	"large",
	"xlarge",
	"2xlarge",
	"3xlarge",
	"4xlarge",
	"6xlarge",
	"8xlarge",
	"9xlarge",
	"12xlarge",
	"16xlarge",
	"18xlarge",
	"24xlarge",
	"32xlarge",
	"48xlarge",
}

// NextSmallerType returns the next smaller size of the same family,
// e.g. m5.xlarge -> m5.large. Metal, unknown and smallest sizes have none.
func NextSmallerType(instanceType string) (string, bool) {
	family, size := pricing.SplitInstanceType(instanceType)
	if family == "" || size == "" {
		return "", false
	}

	idx := slices.Index(sizeHierarchy, size)
	if idx <= 0 {
		return "", false
	}
	return family + "." + sizeHierarchy[idx-1], true
}
