package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// blevePageSize is the number of hits fetched per search round trip.
	blevePageSize = 1000

	// seqKey stores the last assigned row sequence in index internals.
	seqKey = "fuzzidx_seq"

	// idSep separates owner key parts inside document IDs.
	idSep = "\x1f"
)

// BleveStore keeps one Bleve document per trigram row.
// A transaction becomes one Bleve batch, applied atomically on commit.
type BleveStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	caps   Capabilities
	seq    uint64
	closed bool
}

var _ Store = (*BleveStore)(nil)

// bleveRow is the indexed document shape.
type bleveRow struct {
	OwnerType string  `json:"owner_type"`
	OwnerID   string  `json:"owner_id"`
	Field     string  `json:"fuzzy_field"`
	Trigram   string  `json:"trigram"`
	Score     float64 `json:"score"`
	Seq       float64 `json:"seq"`
}

// validateBleveIntegrity checks that an existing index directory has readable
// metadata. Returns nil if the index is absent or looks healthy.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveStore opens or creates a Bleve trigram index at path.
// If path is empty, the index lives in memory.
func NewBleveStore(path string, config Config) (*BleveStore, error) {
	caps := Capabilities{MultiRowInsert: true, MaxRowsPerInsert: config.MaxRowsPerInsert}
	switch config.BulkInsert {
	case BulkAuto, BulkOn, "":
	case BulkOff:
		caps.MultiRowInsert = false
	default:
		return nil, fmt.Errorf("unknown bulk_insert mode: %s (valid options: auto, on, off)", config.BulkInsert)
	}

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(newTrigramMapping())
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bleve_trigram_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("trigram index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("bleve_trigram_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, newTrigramMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	b := &BleveStore{index: idx, path: path, caps: caps}

	raw, err := idx.GetInternal([]byte(seqKey))
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	if len(raw) == 8 {
		b.seq = binary.BigEndian.Uint64(raw)
	}

	return b, nil
}

// newTrigramMapping indexes every string field verbatim.
func newTrigramMapping() *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()
	for _, name := range []string{"owner_type", "owner_id", "fuzzy_field", "trigram"} {
		fm := bleve.NewKeywordFieldMapping()
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		doc.AddFieldMappingsAt(name, fm)
	}
	for _, name := range []string{"score", "seq"} {
		fm := bleve.NewNumericFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = keyword.Name
	return m
}

func termQuery(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func ownerQuery(key OwnerKey) query.Query {
	parts := []query.Query{
		termQuery("owner_type", key.OwnerType),
		termQuery("owner_id", key.OwnerID),
	}
	if key.Field != "" {
		parts = append(parts, termQuery("fuzzy_field", key.Field))
	}
	return bleve.NewConjunctionQuery(parts...)
}

// each pages through every hit of q in sort order and calls fn per hit.
func (b *BleveStore) each(ctx context.Context, q query.Query, sortBy []string, fields []string, fn func(id string, f map[string]any) error) error {
	for from := 0; ; from += blevePageSize {
		req := bleve.NewSearchRequestOptions(q, blevePageSize, from, false)
		req.Fields = fields
		req.SortBy(sortBy)

		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, hit := range res.Hits {
			if err := fn(hit.ID, hit.Fields); err != nil {
				return err
			}
		}
		if len(res.Hits) < blevePageSize {
			return nil
		}
	}
}

// Capabilities returns the write features of the backend.
func (b *BleveStore) Capabilities() Capabilities {
	return b.caps
}

// Update collects the changes of fn into one batch.
// fn must only use tx; calling other store methods from fn deadlocks.
func (b *BleveStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	tx := &bleveTx{
		store:   b,
		seq:     b.seq,
		deletes: make(map[string]struct{}),
		pending: make(map[string]bleveRow),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for id := range tx.deletes {
		batch.Delete(id)
	}
	for _, id := range tx.order {
		row, ok := tx.pending[id]
		if !ok {
			continue
		}
		if err := batch.Index(id, row); err != nil {
			return fmt.Errorf("failed to stage row %s: %w", id, err)
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], tx.seq)
	batch.SetInternal([]byte(seqKey), buf[:])

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	b.seq = tx.seq
	return nil
}

// Match fetches candidate rows and ranks them in process.
func (b *BleveStore) Match(ctx context.Context, q MatchQuery) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if len(q.Terms) == 0 {
		return []Match{}, nil
	}

	seen := make(map[string]struct{}, len(q.Terms))
	terms := make([]query.Query, 0, len(q.Terms))
	for _, t := range q.Terms {
		if _, ok := seen[t.Trigram]; ok {
			continue
		}
		seen[t.Trigram] = struct{}{}
		terms = append(terms, termQuery("trigram", t.Trigram))
	}

	parts := []query.Query{
		termQuery("owner_type", q.OwnerType),
		termQuery("fuzzy_field", q.Field),
		bleve.NewDisjunctionQuery(terms...),
	}
	if len(q.OwnerIDs) > 0 {
		ids := make([]query.Query, len(q.OwnerIDs))
		for i, id := range q.OwnerIDs {
			ids[i] = termQuery("owner_id", id)
		}
		parts = append(parts, bleve.NewDisjunctionQuery(ids...))
	}

	agg := newAggregator(q)
	err := b.each(ctx, bleve.NewConjunctionQuery(parts...), []string{"seq"},
		[]string{"owner_id", "trigram", "score"},
		func(_ string, f map[string]any) error {
			ownerID, _ := f["owner_id"].(string)
			tg, _ := f["trigram"].(string)
			score, _ := f["score"].(float64)
			agg.add(ownerID, tg, score)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return agg.result(), nil
}

// Records returns the rows of key ordered by insertion.
func (b *BleveStore) Records(ctx context.Context, key OwnerKey) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if key.Field == "" {
		return []Record{}, nil
	}

	recs := []Record{}
	err := b.each(ctx, ownerQuery(key), []string{"seq"},
		[]string{"trigram", "score"},
		func(_ string, f map[string]any) error {
			tg, _ := f["trigram"].(string)
			score, _ := f["score"].(float64)
			recs = append(recs, Record{
				OwnerType: key.OwnerType,
				OwnerID:   key.OwnerID,
				Field:     key.Field,
				Trigram:   tg,
				Score:     score,
			})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Stats walks every row once.
func (b *BleveStore) Stats(ctx context.Context) (*Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	stats := &Stats{OwnerTypes: make(map[string]int), Backend: string(BackendBleve)}
	owners := make(map[[2]string]struct{})
	err := b.each(ctx, bleve.NewMatchAllQuery(), []string{"_id"},
		[]string{"owner_type", "owner_id"},
		func(_ string, f map[string]any) error {
			ownerType, _ := f["owner_type"].(string)
			ownerID, _ := f["owner_id"].(string)
			stats.Rows++
			stats.OwnerTypes[ownerType]++
			owners[[2]string{ownerType, ownerID}] = struct{}{}
			return nil
		})
	if err != nil {
		return nil, err
	}
	stats.Owners = len(owners)
	return stats, nil
}

// Close closes the index.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// bleveTx stages deletes of committed documents and new rows.
type bleveTx struct {
	store   *BleveStore
	seq     uint64
	deletes map[string]struct{}
	pending map[string]bleveRow
	order   []string
}

func rowID(key OwnerKey, seq uint64) string {
	return strings.Join([]string{key.OwnerType, key.OwnerID, key.Field, strconv.FormatUint(seq, 10)}, idSep)
}

func (tx *bleveTx) Delete(ctx context.Context, key OwnerKey) (int, error) {
	var n int
	err := tx.store.each(ctx, ownerQuery(key), []string{"_id"}, nil,
		func(id string, _ map[string]any) error {
			if _, ok := tx.deletes[id]; !ok {
				tx.deletes[id] = struct{}{}
				n++
			}
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows of %s: %w", key, err)
	}

	for id, row := range tx.pending {
		if row.OwnerType != key.OwnerType || row.OwnerID != key.OwnerID {
			continue
		}
		if key.Field != "" && row.Field != key.Field {
			continue
		}
		delete(tx.pending, id)
		n++
	}
	return n, nil
}

func (tx *bleveTx) InsertOne(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	tx.seq++
	id := rowID(rec.Key(), tx.seq)
	tx.pending[id] = bleveRow{
		OwnerType: rec.OwnerType,
		OwnerID:   rec.OwnerID,
		Field:     rec.Field,
		Trigram:   rec.Trigram,
		Score:     rec.Score,
		Seq:       float64(tx.seq),
	}
	tx.order = append(tx.order, id)
	return nil
}

func (tx *bleveTx) InsertMany(ctx context.Context, recs []Record) error {
	caps := tx.store.caps
	if !caps.MultiRowInsert {
		return ErrBulkUnsupported
	}
	if caps.MaxRowsPerInsert > 0 && len(recs) > caps.MaxRowsPerInsert {
		return fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(recs), caps.MaxRowsPerInsert)
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
