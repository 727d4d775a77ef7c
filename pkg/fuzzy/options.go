package fuzzy

import "github.com/Aman-CERP/fuzzidx/internal/search"

// Result is one ranked owner.
type Result struct {
	OwnerID string  `json:"owner_id"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched"`
}

// FindOptions refine a Find call. Zero values take defaults.
type FindOptions struct {
	Limit    int
	Offset   int
	Weighted bool
	MinScore float64
	OwnerIDs []string
}

// FindOption sets one FindOptions value.
type FindOption func(*FindOptions)

// WithLimit caps the result count. Defaults to 10.
func WithLimit(n int) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}

// WithOffset skips the first n ranked results.
func WithOffset(n int) FindOption {
	return func(o *FindOptions) { o.Offset = n }
}

// WithWeighted ranks by index score times query weight.
func WithWeighted() FindOption {
	return func(o *FindOptions) { o.Weighted = true }
}

// WithMinScore drops owners scoring below score.
func WithMinScore(score float64) FindOption {
	return func(o *FindOptions) { o.MinScore = score }
}

// WithOwnerIDs restricts candidates to ids.
func WithOwnerIDs(ids ...string) FindOption {
	return func(o *FindOptions) { o.OwnerIDs = ids }
}

func withOptions(in FindOptions) FindOption {
	return func(o *FindOptions) { *o = in }
}

func buildOptions(opts []FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o FindOptions) search() search.Options {
	return search.Options{
		Limit:    o.Limit,
		Offset:   o.Offset,
		Weighted: o.Weighted,
		MinScore: o.MinScore,
		OwnerIDs: o.OwnerIDs,
	}
}

func fromSearch(in []search.Result) []Result {
	out := make([]Result, len(in))
	for i, r := range in {
		out[i] = Result{OwnerID: r.OwnerID, Score: r.Score, Matched: r.Matched}
	}
	return out
}
