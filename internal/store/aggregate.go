package store

import (
	"sort"
)

// aggregator sums matched rows per owner for backends that cannot rank
// inside the storage engine.
type aggregator struct {
	q       MatchQuery
	weights map[string]float64
	allowed map[string]struct{}
	totals  map[string]*Match
}

func newAggregator(q MatchQuery) *aggregator {
	weights := make(map[string]float64, len(q.Terms))
	for _, t := range q.Terms {
		weights[t.Trigram] += t.Weight
	}
	var allowed map[string]struct{}
	if len(q.OwnerIDs) > 0 {
		allowed = make(map[string]struct{}, len(q.OwnerIDs))
		for _, id := range q.OwnerIDs {
			allowed[id] = struct{}{}
		}
	}
	return &aggregator{
		q:       q,
		weights: weights,
		allowed: allowed,
		totals:  make(map[string]*Match),
	}
}

// add folds one row into the owner totals. Rows of other trigrams or owners
// outside the filter are ignored.
func (a *aggregator) add(ownerID, trigram string, score float64) {
	weight, ok := a.weights[trigram]
	if !ok {
		return
	}
	if a.allowed != nil {
		if _, ok := a.allowed[ownerID]; !ok {
			return
		}
	}

	m, ok := a.totals[ownerID]
	if !ok {
		m = &Match{OwnerID: ownerID}
		a.totals[ownerID] = m
	}
	if a.q.Weighted {
		m.Score += score * weight
	} else {
		m.Score += score
	}
	m.Matched++
}

// result ranks the totals and applies threshold and pagination.
func (a *aggregator) result() []Match {
	ranked := make([]Match, 0, len(a.totals))
	for _, m := range a.totals {
		if m.Score < a.q.MinScore {
			continue
		}
		ranked = append(ranked, *m)
	}
	sortMatches(ranked)
	return paginate(ranked, a.q.Offset, a.q.Limit)
}

// sortMatches orders by score descending, then owner ID ascending.
func sortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score > ms[j].Score
		}
		return ms[i].OwnerID < ms[j].OwnerID
	})
}

// paginate applies offset and limit. A limit of zero or less returns
// everything after offset.
func paginate(ms []Match, offset, limit int) []Match {
	if offset >= len(ms) {
		return []Match{}
	}
	if offset > 0 {
		ms = ms[offset:]
	}
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	return ms
}

// Rank sorts ms by score descending then owner ID ascending, and applies
// offset and limit. ms is reordered in place.
func Rank(ms []Match, offset, limit int) []Match {
	sortMatches(ms)
	return paginate(ms, offset, limit)
}
