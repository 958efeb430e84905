package pricing

import (
	"sync"

	"github.com/younsl/costadvisor/internal/models"
)

// Services tracked in Stats
const (
	serviceEC2 = "EC2"
	serviceS3  = "S3"
)

// sourceFailure counts Pricing API lookups that failed or came back empty
const sourceFailure models.PriceSource = "failure"

// RegionStats counts price lookups by outcome for one service and region
type RegionStats struct {
	API      int
	Fallback int
	Derived  int
	Cache    int
	Failure  int
}

// Total returns the number of resolved lookups, failures excluded
func (s RegionStats) Total() int {
	return s.API + s.Fallback + s.Derived + s.Cache
}

// Stats tracks lookup outcomes by service and region
type Stats struct {
	mu       sync.RWMutex
	counters map[string]map[string]*RegionStats // service -> region -> counters
}

// NewStats returns empty Stats
func NewStats() *Stats {
	return &Stats{counters: make(map[string]map[string]*RegionStats)}
}

func (s *Stats) record(service, region string, source models.PriceSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.counters[service]; !exists {
		s.counters[service] = make(map[string]*RegionStats)
	}
	counter, exists := s.counters[service][region]
	if !exists {
		counter = &RegionStats{}
		s.counters[service][region] = counter
	}

	switch source {
	case models.PriceSourceAPI:
		counter.API++
	case models.PriceSourceFallback:
		counter.Fallback++
	case models.PriceSourceDerived:
		counter.Derived++
	case models.PriceSourceCache:
		counter.Cache++
	case sourceFailure:
		counter.Failure++
	}
}

// Snapshot returns a copy of the current statistics
func (s *Stats) Snapshot() map[string]map[string]RegionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statsCopy := make(map[string]map[string]RegionStats, len(s.counters))
	for service, regions := range s.counters {
		statsCopy[service] = make(map[string]RegionStats, len(regions))
		for region, counter := range regions {
			statsCopy[service][region] = *counter
		}
	}

	return statsCopy
}
