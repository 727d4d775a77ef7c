package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/internal/trigram"
)

// ErrNilStore is returned when creating a Matcher without a store.
var ErrNilStore = errors.New("trigram store is required")

// Matcher ranks owners by trigram overlap with a query.
// It is safe for concurrent use.
type Matcher struct {
	store  store.Store
	cache  *trigram.Cache
	config Config
	logger *slog.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMatcher creates a Matcher over st. Zero config values take defaults.
func NewMatcher(st store.Store, cfg Config, opts ...MatcherOption) (*Matcher, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}

	cache, err := trigram.NewCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	m := &Matcher{
		store:  st,
		cache:  cache,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// validate checks arguments and resolves the effective limit.
func (m *Matcher) validate(ownerType, field string, opts Options) (int, error) {
	if ownerType == "" {
		return 0, fzerrors.New(fzerrors.ErrCodeInvalidQuery, "owner type is required", nil)
	}
	if field == "" {
		return 0, fzerrors.New(fzerrors.ErrCodeInvalidQuery, "field is required", nil)
	}
	if opts.Limit < 0 {
		return 0, fzerrors.ValidationError("limit must not be negative", nil).
			WithDetail("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset < 0 {
		return 0, fzerrors.ValidationError("offset must not be negative", nil).
			WithDetail("offset", strconv.Itoa(opts.Offset))
	}
	if opts.MinScore < 0 {
		return 0, fzerrors.ValidationError("min score must not be negative", nil)
	}

	limit := opts.Limit
	if limit == 0 {
		limit = m.config.DefaultLimit
	}
	if limit > m.config.MaxLimit {
		limit = m.config.MaxLimit
	}
	return limit, nil
}

// terms extracts the distinct query trigrams with their summed weights.
func (m *Matcher) terms(query string) []store.QueryTerm {
	tgs := m.cache.Extract(query)
	if len(tgs) == 0 {
		return nil
	}
	order, weights := trigram.Distinct(tgs)
	terms := make([]store.QueryTerm, len(order))
	for i, tg := range order {
		terms[i] = store.QueryTerm{Trigram: tg, Weight: weights[tg]}
	}
	return terms
}

// Match returns owners of ownerType whose field shares trigrams with query,
// best first.
//
// Behavior:
//   - Invalid arguments fail before the store is touched.
//   - A blank query, or one sharing no trigram with any owner, returns an
//     empty slice and no error.
//   - Storage errors are returned wrapped and are not retried.
func (m *Matcher) Match(ctx context.Context, ownerType, field, query string, opts Options) ([]Result, error) {
	limit, err := m.validate(ownerType, field, opts)
	if err != nil {
		return nil, err
	}

	terms := m.terms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	matches, err := m.store.Match(ctx, store.MatchQuery{
		OwnerType: ownerType,
		Field:     field,
		Terms:     terms,
		Weighted:  opts.Weighted || m.config.Weighted,
		OwnerIDs:  opts.OwnerIDs,
		MinScore:  opts.MinScore,
		Limit:     limit,
		Offset:    opts.Offset,
	})
	if err != nil {
		return nil, fzerrors.New(fzerrors.ErrCodeMatchFailed,
			fmt.Sprintf("match %s.%s", ownerType, field), err)
	}

	results := make([]Result, len(matches))
	for i, mt := range matches {
		results[i] = Result{OwnerID: mt.OwnerID, Score: mt.Score, Matched: mt.Matched}
	}

	m.logger.Debug("match_complete",
		slog.String("owner_type", ownerType),
		slog.String("field", field),
		slog.Int("query_trigrams", len(terms)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// MatchFields runs Match on several fields of one owner type concurrently
// and sums each owner's scores across fields. Ranking, threshold and
// pagination apply to the combined scores.
func (m *Matcher) MatchFields(ctx context.Context, ownerType string, fields []string, query string, opts Options) ([]Result, error) {
	if len(fields) == 0 {
		return nil, fzerrors.New(fzerrors.ErrCodeInvalidQuery, "at least one field is required", nil)
	}
	if len(fields) == 1 {
		return m.Match(ctx, ownerType, fields[0], query, opts)
	}

	limit, err := m.validate(ownerType, fields[0], opts)
	if err != nil {
		return nil, err
	}
	for _, field := range fields[1:] {
		if field == "" {
			return nil, fzerrors.New(fzerrors.ErrCodeInvalidQuery, "field is required", nil)
		}
	}

	terms := m.terms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	// Per-field queries are unbounded so no owner loses a field's score
	// before the totals are ranked and cut.
	var mu sync.Mutex
	combined := make(map[string]*store.Match)

	g, gctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		g.Go(func() error {
			matches, err := m.store.Match(gctx, store.MatchQuery{
				OwnerType: ownerType,
				Field:     field,
				Terms:     terms,
				Weighted:  opts.Weighted || m.config.Weighted,
				OwnerIDs:  opts.OwnerIDs,
			})
			if err != nil {
				return fzerrors.New(fzerrors.ErrCodeMatchFailed,
					fmt.Sprintf("match %s.%s", ownerType, field), err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range matches {
				c, ok := combined[r.OwnerID]
				if !ok {
					c = &store.Match{OwnerID: r.OwnerID}
					combined[r.OwnerID] = c
				}
				c.Score += r.Score
				c.Matched += r.Matched
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := make([]store.Match, 0, len(combined))
	for _, c := range combined {
		if c.Score >= opts.MinScore {
			ranked = append(ranked, *c)
		}
	}
	ranked = store.Rank(ranked, opts.Offset, limit)

	results := make([]Result, len(ranked))
	for i, r := range ranked {
		results[i] = Result{OwnerID: r.OwnerID, Score: r.Score, Matched: r.Matched}
	}
	return results, nil
}
