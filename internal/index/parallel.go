package index

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReindexParallel runs ReindexBatch over disjoint partitions with at most
// workers partitions in flight. Partitions must not share owner IDs.
//
// The first failure cancels the remaining partitions. Committed chunks of
// every partition stay, as with ReindexBatch. The merged report is non-nil
// even when err is not.
func ReindexParallel(ctx context.Context, s *Synchronizer, ownerType, field string, parts []OwnerSource, workers int) (*BatchReport, error) {
	merged := &BatchReport{
		RunID:     uuid.NewString(),
		OwnerType: ownerType,
		Field:     field,
		Strategy:  s.Strategy(),
	}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, part := range parts {
		g.Go(func() error {
			report, err := s.ReindexBatch(gctx, ownerType, field, part)

			mu.Lock()
			merged.Owners += report.Owners
			merged.BlankOwners += report.BlankOwners
			merged.Rows += report.Rows
			merged.Chunks += report.Chunks
			merged.Statements += report.Statements
			if report.Duration > merged.Duration {
				merged.Duration = report.Duration
			}
			mu.Unlock()

			return err
		})
	}

	err := g.Wait()
	return merged, err
}

// PartitionByID splits owners into at most n sources covering disjoint,
// contiguous ID ranges. Repeated IDs always land in the same partition.
func PartitionByID(owners []Owner, n int) []OwnerSource {
	if len(owners) == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}

	sorted := make([]Owner, len(owners))
	copy(sorted, owners)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	size := (len(sorted) + n - 1) / n
	parts := make([]OwnerSource, 0, n)
	for start := 0; start < len(sorted); {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		for end < len(sorted) && sorted[end].ID == sorted[end-1].ID {
			end++
		}
		parts = append(parts, SliceSource(sorted[start:end]))
		start = end
	}
	return parts
}
