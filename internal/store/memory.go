package store

import (
	"context"
	"sync"
)

// MemoryStore keeps rows in process memory. Used for tests and the
// "memory" backend.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[OwnerKey][]Record
	caps   Capabilities
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMultiRowInsert toggles InsertMany support.
func WithMultiRowInsert(enabled bool) MemoryOption {
	return func(m *MemoryStore) {
		m.caps.MultiRowInsert = enabled
	}
}

// WithMaxRowsPerInsert bounds InsertMany batches.
func WithMaxRowsPerInsert(n int) MemoryOption {
	return func(m *MemoryStore) {
		m.caps.MaxRowsPerInsert = n
	}
}

// NewMemoryStore creates an empty store with multi-row inserts enabled.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		rows: make(map[OwnerKey][]Record),
		caps: Capabilities{MultiRowInsert: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update stages changes and applies them only when fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: m, staged: make(map[OwnerKey][]Record)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key, recs := range tx.staged {
		if len(recs) == 0 {
			delete(m.rows, key)
			continue
		}
		m.rows[key] = recs
	}
	return nil
}

// Match ranks owners sharing trigrams with q.
func (m *MemoryStore) Match(ctx context.Context, q MatchQuery) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.Terms) == 0 {
		return []Match{}, nil
	}

	agg := newAggregator(q)
	for key, recs := range m.rows {
		if key.OwnerType != q.OwnerType || key.Field != q.Field {
			continue
		}
		for _, r := range recs {
			agg.add(r.OwnerID, r.Trigram, r.Score)
		}
	}
	return agg.result(), nil
}

// Records returns a copy of the rows of key.
func (m *MemoryStore) Records(ctx context.Context, key OwnerKey) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	recs := m.rows[key]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Stats counts rows and owners.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	stats := &Stats{OwnerTypes: make(map[string]int), Backend: string(BackendMemory)}
	owners := make(map[[2]string]struct{})
	for key, recs := range m.rows {
		stats.Rows += len(recs)
		stats.OwnerTypes[key.OwnerType] += len(recs)
		owners[[2]string{key.OwnerType, key.OwnerID}] = struct{}{}
	}
	stats.Owners = len(owners)
	return stats, nil
}

// Capabilities returns the configured write features.
func (m *MemoryStore) Capabilities() Capabilities {
	return m.caps
}

// Close drops all rows.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.rows = nil
	return nil
}

// memoryTx records changes per owner key. A staged empty slice marks a
// deleted key.
type memoryTx struct {
	store  *MemoryStore
	staged map[OwnerKey][]Record
}

func (tx *memoryTx) view(key OwnerKey) []Record {
	if recs, ok := tx.staged[key]; ok {
		return recs
	}
	return tx.store.rows[key]
}

func (tx *memoryTx) Delete(ctx context.Context, key OwnerKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if key.Field != "" {
		n := len(tx.view(key))
		tx.staged[key] = []Record{}
		return n, nil
	}

	matches := func(k OwnerKey) bool {
		return k.OwnerType == key.OwnerType && k.OwnerID == key.OwnerID
	}
	keys := make(map[OwnerKey]struct{})
	for k := range tx.store.rows {
		if matches(k) {
			keys[k] = struct{}{}
		}
	}
	for k := range tx.staged {
		if matches(k) {
			keys[k] = struct{}{}
		}
	}

	var n int
	for k := range keys {
		n += len(tx.view(k))
		tx.staged[k] = []Record{}
	}
	return n, nil
}

func (tx *memoryTx) InsertOne(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	key := rec.Key()
	if staged, ok := tx.staged[key]; ok {
		tx.staged[key] = append(staged, rec)
		return nil
	}
	current := tx.store.rows[key]
	next := make([]Record, len(current), len(current)+1)
	copy(next, current)
	tx.staged[key] = append(next, rec)
	return nil
}

func (tx *memoryTx) InsertMany(ctx context.Context, recs []Record) error {
	caps := tx.store.caps
	if !caps.MultiRowInsert {
		return ErrBulkUnsupported
	}
	if caps.MaxRowsPerInsert > 0 && len(recs) > caps.MaxRowsPerInsert {
		return ErrTooManyRows
	}
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		if err := tx.InsertOne(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
