package database

// HNSW index parameters for 128-dim face-api.js descriptors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to make up for deleted faces still present in the graph.
	HNSWSearchMultiplier = 3
)

// Listing limits
const (
	DefaultHistoryLimit = 300
	DefaultAlertLimit   = 100
	MaxAlertLimit       = 500
)

const (
	// MatcherLinear scans every known face on each match.
	MatcherLinear = "linear"
	// MatcherHNSW answers matches from the in-memory HNSW graph.
	MatcherHNSW = "hnsw"
)
