// Package search answers fuzzy queries against the trigram index.
//
// A query string is extracted with the same normalization as indexed text.
// Owners are ranked by the summed index scores of the trigrams they share
// with the query, or by a dot product of index and query weights when
// Weighted is set. Ties break by owner ID ascending.
package search

// Defaults for Config.
const (
	DefaultLimit    = 10
	DefaultMaxLimit = 1000
)

// Options refine one Match call.
type Options struct {
	// Limit caps the number of results. Zero uses Config.DefaultLimit.
	// Values above Config.MaxLimit are clamped.
	Limit int

	// Offset skips ranked results, for pagination.
	Offset int

	// Weighted ranks by Σ index_score × query_weight instead of Σ index_score.
	Weighted bool

	// MinScore drops owners whose aggregate is below it.
	MinScore float64

	// OwnerIDs restricts candidates to these owners when non-empty.
	OwnerIDs []string
}

// Result is one ranked owner.
type Result struct {
	OwnerID string  `json:"owner_id"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched"`
}

// Config holds matcher defaults.
type Config struct {
	DefaultLimit int
	MaxLimit     int

	// CacheSize bounds the query extraction cache.
	CacheSize int

	// Weighted makes the dot-product ranking the default.
	Weighted bool
}

// DefaultConfig returns matcher defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: DefaultLimit,
		MaxLimit:     DefaultMaxLimit,
		CacheSize:    1024,
	}
}
