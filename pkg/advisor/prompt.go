package advisor

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/younsl/costadvisor/internal/models"
)

// Prompt renders the report as line-oriented facts for the narrative
// generator. Output is deterministic for a given report.
func Prompt(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "intent=%s code=%s recommendations=%d total_savings=%.2f total_monthly_cost=%.2f\n",
		r.Intent, r.Code, len(r.Recommendations), r.TotalSavings, r.TotalMonthlyCost)

	switch r.Code {
	case CodeNoInput:
		b.WriteString("No resources were provided for the requested domain.\n")
		return b.String()
	case CodeInvalidRules:
		b.WriteString("The saved rules are invalid; no recommendations were produced.\n")
		return b.String()
	case CodeNoRecommendations:
		fmt.Fprintf(&b, "No resource qualified. skipped_compute=%d skipped_storage=%d\n",
			r.ComputeSkipped.Total(), r.StorageSkipped.Total())
		return b.String()
	}

	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "%d. [%s] %s (%s, %s) action=%s savings=$%.2f/month monthly_cost=$%.2f priority=%s\n",
			i+1, rec.Domain, displayName(rec), rec.ResourceType, rec.Region,
			rec.Action, rec.EstimatedSavings, rec.MonthlyCost, rec.Priority)
		fmt.Fprintf(&b, "   reason: %s\n", rec.Reason)
		if len(rec.Detail) > 0 {
			pairs := make([]string, 0, len(rec.Detail))
			for _, key := range slices.Sorted(maps.Keys(rec.Detail)) {
				if key == "lifecycle_rule" {
					continue
				}
				pairs = append(pairs, key+"="+rec.Detail[key])
			}
			fmt.Fprintf(&b, "   detail: %s\n", strings.Join(pairs, " "))
		}
	}

	return b.String()
}

// Summary is the one-line history entry for a report
func Summary(r Report) string {
	switch r.Code {
	case CodeNoInput:
		return "no resources to evaluate"
	case CodeInvalidRules:
		return "rules invalid, nothing evaluated"
	case CodeNoRecommendations:
		return fmt.Sprintf("no recommendations (%d compute and %d storage resources skipped)",
			r.ComputeSkipped.Total(), r.StorageSkipped.Total())
	}

	var computeCount, storageCount int
	for _, rec := range r.Recommendations {
		if rec.Domain == models.DomainCompute {
			computeCount++
		} else {
			storageCount++
		}
	}

	summary := fmt.Sprintf("%d recommendations (%d compute, %d storage), estimated savings $%.2f/month",
		len(r.Recommendations), computeCount, storageCount, r.TotalSavings)
	if len(r.Recommendations) > 0 {
		top := r.Recommendations[0]
		summary += fmt.Sprintf("; top: %s %s", top.Action, displayName(top))
	}
	return summary
}

func displayName(rec models.Recommendation) string {
	if rec.ResourceName != "" && rec.ResourceName != rec.ResourceID {
		return fmt.Sprintf("%s/%s", rec.ResourceID, rec.ResourceName)
	}
	return rec.ResourceID
}
