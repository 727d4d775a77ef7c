package index

import (
	"context"
)

// Owner is one indexed entity as seen by the batch path.
type Owner struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// OwnerSource lists all owners of one type in chunks.
// Implementations call fn once per chunk of at most size owners and stop at
// the first error fn returns.
type OwnerSource interface {
	Batches(ctx context.Context, size int, fn func([]Owner) error) error
}

// SliceSource serves owners from memory.
type SliceSource []Owner

var _ OwnerSource = SliceSource(nil)

// Batches splits the slice into chunks of size.
func (s SliceSource) Batches(ctx context.Context, size int, fn func([]Owner) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(s); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		if err := fn(s[start:end]); err != nil {
			return err
		}
	}
	return nil
}
