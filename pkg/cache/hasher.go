package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"slograph/pkg/domain"
)

// GraphHash computes a deterministic hash of a dependency graph for use as a
// cache key: identical graphs (regardless of map iteration order) hash equal.
func GraphHash(g *domain.Graph) string {
	if g == nil {
		return ""
	}

	data := graphToCanonical(g)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func graphToCanonical(g *domain.Graph) []byte {
	serviceIDs := make([]string, 0, g.ServiceCount())
	serviceTypes := make(map[string]domain.ServiceType)
	for id, svc := range g.Services {
		serviceIDs = append(serviceIDs, id)
		serviceTypes[id] = svc.Type
	}
	sort.Strings(serviceIDs)

	type edgeData struct {
		from, to        string
		source          domain.DiscoverySource
		criticality     domain.EdgeCriticality
		mode            domain.CommunicationMode
		confidenceScore float64
	}
	edges := make([]edgeData, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, edgeData{e.From, e.To, e.DiscoverySource, e.Criticality, e.CommunicationMode, e.ConfidenceScore})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		if edges[i].to != edges[j].to {
			return edges[i].to < edges[j].to
		}
		return edges[i].source < edges[j].source
	})

	var result []byte

	for _, id := range serviceIDs {
		result = append(result, []byte(fmt.Sprintf("n:%s:%d;", id, serviceTypes[id]))...)
	}

	for _, e := range edges {
		result = append(result, []byte(fmt.Sprintf("e:%s:%s:%d:%d:%d:%.6f;",
			e.from, e.to, e.source, e.criticality, e.mode, e.confidenceScore))...)
	}

	return result
}

// BuildAnalysisKey builds a cache key for a constraint-analysis result,
// scoped by graph hash and SLO tier.
func BuildAnalysisKey(graphHash, tier string) string {
	return fmt.Sprintf("analysis:%s:%s", tier, graphHash)
}

// BuildAnalysisKeyWithOptions builds an analysis cache key with an
// additional options hash, e.g. for a non-default target percentage.
func BuildAnalysisKeyWithOptions(graphHash, tier, optionsHash string) string {
	if optionsHash == "" {
		return BuildAnalysisKey(graphHash, tier)
	}
	return fmt.Sprintf("analysis:%s:%s:%s", tier, graphHash, optionsHash)
}

// QuickHash hashes arbitrary data with the full SHA-256 digest.
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash hashes arbitrary data, truncated to 16 hex characters.
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
