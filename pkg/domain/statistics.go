package domain

import "time"

// GraphStatistics summarizes the shape of the dependency graph.
type GraphStatistics struct {
	ServiceCount      int64
	EdgeCount         int64
	ExternalCount     int64
	AverageFanOut     float64
	AverageFanIn      float64
	MaxFanIn          int
	MaxFanInServiceID string
	CycleCount        int
	StaleEdgeCount    int64
}

// CalculateGraphStatistics computes summary statistics over the whole graph.
func CalculateGraphStatistics(g *Graph) *GraphStatistics {
	cycleCount := len(FindCycles(g))

	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := &GraphStatistics{
		CycleCount:   cycleCount,
		ServiceCount: int64(len(g.Services)),
		EdgeCount:    int64(len(g.Edges)),
	}

	for _, svc := range g.Services {
		if svc.Type == ServiceTypeExternal {
			stats.ExternalCount++
		}
	}

	for _, edge := range g.Edges {
		if edge.IsStale {
			stats.StaleEdgeCount++
		}
	}

	if len(g.Services) > 0 {
		var totalOut, totalIn int
		for id := range g.Services {
			out := len(g.outgoing[id])
			in := len(g.incoming[id])
			totalOut += out
			totalIn += in
			if in > stats.MaxFanIn || (in == stats.MaxFanIn && in > 0 && id < stats.MaxFanInServiceID) {
				stats.MaxFanIn = in
				stats.MaxFanInServiceID = id
			}
		}
		stats.AverageFanOut = float64(totalOut) / float64(len(g.Services))
		stats.AverageFanIn = float64(totalIn) / float64(len(g.Services))
	}

	return stats
}

// CriticalityTier classifies a service by how many distinct dependents it has.
type CriticalityTier string

const (
	CriticalityLow      CriticalityTier = "low"
	CriticalityMedium   CriticalityTier = "medium"
	CriticalityHigh     CriticalityTier = "high"
	CriticalityCritical CriticalityTier = "critical"
)

// FanInTier classifies a distinct-dependent count into a CriticalityTier
// using the package's fan-in thresholds.
func FanInTier(fanIn int) CriticalityTier {
	switch {
	case fanIn >= CriticalFanInThreshold:
		return CriticalityCritical
	case fanIn >= HighFanInThreshold:
		return CriticalityHigh
	case fanIn >= MediumFanInThreshold:
		return CriticalityMedium
	default:
		return CriticalityLow
	}
}

// CriticalServiceInfo describes a service's blast radius by dependent count.
type CriticalServiceInfo struct {
	ServiceID string
	FanIn     int
	Tier      CriticalityTier
}

// FindCriticalServices returns every service whose distinct-dependent count
// meets or exceeds the medium threshold, ordered by fan-in descending.
func FindCriticalServices(g *Graph) []*CriticalServiceInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*CriticalServiceInfo
	for id := range g.Services {
		fanIn := len(g.incoming[id])
		if fanIn < MediumFanInThreshold {
			continue
		}
		result = append(result, &CriticalServiceInfo{
			ServiceID: id,
			FanIn:     fanIn,
			Tier:      FanInTier(fanIn),
		})
	}

	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].FanIn > result[i].FanIn {
				result[i], result[j] = result[j], result[i]
			}
		}
	}

	return result
}

// MarkStaleEdgesSince is a convenience wrapper for MarkStaleEdges using a
// reference time, grounded in spec.md's default 168h staleness window being
// applied via a scheduled sweep.
func MarkStaleEdgesSince(g *Graph, window time.Duration, now time.Time) int {
	return g.MarkStaleEdges(window, now)
}
