package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/advisor"
)

// PrintRecommendationsTable prints the ranked recommendations of a report
func PrintRecommendationsTable(out io.Writer, report advisor.Report, scanTime time.Time, scanDuration time.Duration) {
	printTimestamp(out, scanTime, scanDuration)

	switch report.Code {
	case advisor.CodeNoInput:
		fmt.Fprintln(out, "No resources found to evaluate.")
		return
	case advisor.CodeNoRecommendations:
		fmt.Fprintln(out, "No recommendations. Every resource is within the configured rules.")
		return
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "#\tDOMAIN\tRESOURCE\tNAME\tTYPE\tREGION\tACTION\tCOST/MO\tSAVINGS/MO\tPRIORITY\tPRICING")

	for i, rec := range report.Recommendations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			rec.Domain,
			rec.ResourceID,
			resourceName(rec.ResourceName),
			rec.ResourceType,
			rec.Region,
			rec.Action,
			formatMoney(rec.MonthlyCost),
			formatMoney(rec.EstimatedSavings),
			rec.Priority,
			pricingMarker(rec),
		)
	}

	fmt.Fprintf(w, "Total:\t\t\t\t\t\t\t%s\t%s\t\t\n",
		formatMoney(report.TotalMonthlyCost),
		formatMoney(report.TotalSavings),
	)
	w.Flush()
}

// PrintReasons prints the explanation of every presented recommendation
func PrintReasons(out io.Writer, report advisor.Report) {
	if len(report.Recommendations) == 0 {
		return
	}

	fmt.Fprintln(out, "\n## Reasons")
	for i, rec := range report.Recommendations {
		fmt.Fprintf(out, "%d. %s: %s\n", i+1, rec.ResourceID, rec.Reason)
		if rule, ok := rec.Detail["lifecycle_rule"]; ok {
			fmt.Fprintf(out, "   lifecycle rule: %s\n", rule)
		}
	}
}

// PrintStorageSummary lists bucket sizes for the storage recommendations
func PrintStorageSummary(out io.Writer, recs []models.Recommendation) {
	var buckets []models.Recommendation
	for _, rec := range recs {
		if rec.Domain == models.DomainStorage {
			buckets = append(buckets, rec)
		}
	}
	if len(buckets) == 0 {
		return
	}

	fmt.Fprintln(out, "\n## S3 Bucket Summary")
	w := newTabWriter(out)
	fmt.Fprintln(w, "BUCKET\tREGION\tOBJECTS\tTOTAL SIZE\tSTANDARD SIZE\tLAST MODIFIED\tTARGET TIER\tIMPACT")
	for _, rec := range buckets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ResourceID,
			rec.Region,
			formatCount(rec.Metrics["total_objects"]),
			formatGB(rec.Metrics["total_size_gb"]),
			formatGB(rec.Metrics["standard_size_gb"]),
			rec.Detail["last_modified"],
			rec.Detail["transition_tier"],
			rec.Detail["impact"],
		)
	}
	w.Flush()
}

// PrintSkipSummary prints how many resources each gate filtered out
func PrintSkipSummary(out io.Writer, report advisor.Report) {
	if report.ComputeSkipped.Total() == 0 && report.StorageSkipped.Total() == 0 {
		return
	}

	fmt.Fprintln(out, "\n## Skipped Resources")
	w := newTabWriter(out)
	fmt.Fprintln(w, "DOMAIN\tREASON\tCOUNT")

	rows := []struct {
		domain string
		reason string
		count  int
	}{
		{"compute", "malformed", report.ComputeSkipped.Malformed},
		{"compute", "cpu above threshold", report.ComputeSkipped.CPU},
		{"compute", "uptime below minimum", report.ComputeSkipped.Uptime},
		{"compute", "savings below minimum", report.ComputeSkipped.Savings},
		{"compute", "excluded tag", report.ComputeSkipped.Tags},
		{"storage", "malformed", report.StorageSkipped.Malformed},
		{"storage", "excluded tag", report.StorageSkipped.ExcludedTag},
		{"storage", "has lifecycle", report.StorageSkipped.HasLifecycle},
		{"storage", "no data", report.StorageSkipped.NoData},
		{"storage", "already optimized", report.StorageSkipped.AlreadyOptimized},
		{"storage", "no timestamp", report.StorageSkipped.NoTimestamp},
	}
	for _, row := range rows {
		if row.count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", row.domain, row.reason, row.count)
	}
	w.Flush()
}

// pricingMarker shows where a compute price came from
func pricingMarker(rec models.Recommendation) string {
	if source, ok := rec.Detail["price_source"]; ok {
		return source
	}
	return "-"
}
