// Package pageconst centralizes pagination and batch-size constants shared
// by the remote client, worker and database packages.
package pageconst

const (
	// RemoteListPageSize is the maximum number of children requested per
	// folder-listing page from the remote folder API.
	RemoteListPageSize = 200

	// AutoRefreshScanLimit is the maximum number of events scanned per
	// cleanup pass when looking for auto-refresh candidates.
	AutoRefreshScanLimit = 500

	// MatchMaxResults is the hard cap on ranked results returned by the
	// match job regardless of configured max_results.
	MatchMaxResults = 160

	// EmbeddingDim is the fixed dimensionality of every stored face and
	// cluster centroid vector.
	EmbeddingDim = 512
)
