package formatter

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/younsl/costadvisor/pkg/pricing"
)

// PrintPricingStats prints price lookup outcomes by service and region
func PrintPricingStats(out io.Writer, stats map[string]map[string]pricing.RegionStats) {
	if len(stats) == 0 {
		return
	}

	fmt.Fprintln(out, "\n## Price Resolution Statistics")
	w := newTabWriter(out)
	fmt.Fprintln(w, "SERVICE\tREGION\tLOOKUPS\tAPI\tFALLBACK\tDERIVED\tCACHE HITS\tAPI FAILURES\tAPI RATE")

	for _, service := range slices.Sorted(maps.Keys(stats)) {
		regions := stats[service]
		for _, region := range slices.Sorted(maps.Keys(regions)) {
			s := regions[region]

			apiRate := 0.0
			if attempts := s.API + s.Failure; attempts > 0 {
				apiRate = float64(s.API) / float64(attempts) * 100.0
			}

			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.1f%%\n",
				service,
				region,
				s.Total(),
				s.API,
				s.Fallback,
				s.Derived,
				s.Cache,
				s.Failure,
				apiRate,
			)
		}
	}

	w.Flush()
}
