// Package index keeps trigram rows in step with owner field values.
//
// A Synchronizer rebuilds the rows of one owner (ReindexOne) or of every
// owner a source lists (ReindexBatch). Rows of an owner field are always
// replaced as a whole inside one store transaction, and extraction finishes
// before the transaction starts.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/internal/trigram"
)

// DefaultBatchSize is the number of owners per batch chunk.
const DefaultBatchSize = 100

// ErrNilStore is returned when creating a Synchronizer without a store.
var ErrNilStore = errors.New("trigram store is required")

// BatchReport summarizes one ReindexBatch run. On failure it describes the
// chunks committed before the error.
type BatchReport struct {
	RunID       string        `json:"run_id"`
	OwnerType   string        `json:"owner_type"`
	Field       string        `json:"field"`
	Owners      int           `json:"owners"`
	BlankOwners int           `json:"blank_owners"`
	Rows        int           `json:"rows"`
	Chunks      int           `json:"chunks"`
	Statements  int           `json:"statements"`
	Strategy    string        `json:"strategy"`
	Duration    time.Duration `json:"duration"`
}

// ProgressFunc receives the running report after each committed chunk.
type ProgressFunc func(BatchReport)

// Synchronizer rebuilds trigram rows for owners.
//
// Synchronizer is safe for concurrent use. Writes serialize inside the store;
// concurrent reindexing of the same owner field ends with the last committed
// value.
type Synchronizer struct {
	store     store.Store
	logger    *slog.Logger
	batchSize int
	mode      WriteMode
	strategy  writeStrategy
	progress  ProgressFunc
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBatchSize sets the number of owners per chunk.
// Values below one keep DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithWriteMode overrides the write strategy selection.
func WithWriteMode(m WriteMode) Option {
	return func(s *Synchronizer) {
		s.mode = m
	}
}

// WithProgress registers a callback run after each committed chunk.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Synchronizer) {
		s.progress = fn
	}
}

// New creates a Synchronizer over st.
//
// The write strategy is chosen here, once, from the write mode and
// st.Capabilities(). Requesting WriteBulk on a store without multi-row
// inserts is a configuration error.
func New(st store.Store, opts ...Option) (*Synchronizer, error) {
	if st == nil {
		return nil, ErrNilStore
	}

	s := &Synchronizer{
		store:     st,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		mode:      WriteAuto,
	}
	for _, opt := range opts {
		opt(s)
	}

	strategy, err := selectStrategy(s.mode, st.Capabilities())
	if err != nil {
		return nil, fzerrors.ConfigError("select write strategy", err)
	}
	s.strategy = strategy

	return s, nil
}

// Strategy returns the name of the selected write strategy.
func (s *Synchronizer) Strategy() string {
	return s.strategy.name()
}

// BatchSize returns the owners per chunk.
func (s *Synchronizer) BatchSize() int {
	return s.batchSize
}

// Store returns the underlying store.
func (s *Synchronizer) Store() store.Store {
	return s.store
}

// Records builds the rows for one owner field value. Blank text yields none.
func Records(ownerType, ownerID, field, text string) []store.Record {
	tgs := trigram.Extract(text)
	recs := make([]store.Record, len(tgs))
	for i, t := range tgs {
		recs[i] = store.Record{
			OwnerType: ownerType,
			OwnerID:   ownerID,
			Field:     field,
			Trigram:   t.Text,
			Score:     t.Score,
		}
	}
	return recs
}

func validateKey(ownerType, ownerID, field string) error {
	switch {
	case ownerType == "":
		return fzerrors.ValidationError("owner type is required", nil)
	case ownerID == "":
		return fzerrors.ValidationError("owner id is required", nil).WithDetail("owner_type", ownerType)
	case field == "":
		return fzerrors.ValidationError("field is required", nil).WithDetail("owner_type", ownerType)
	}
	return nil
}

// ReindexOne replaces the rows of one owner field with those of text.
//
// Behavior:
//   - Extraction runs before the transaction opens.
//   - Delete and insert share one transaction, so readers see either the
//     old or the new row set.
//   - Blank text leaves the owner field with no rows.
//   - Storage errors are returned wrapped; the cause stays reachable with
//     errors.Is. Nothing is retried.
//
// Returns the number of rows written.
func (s *Synchronizer) ReindexOne(ctx context.Context, ownerType, ownerID, field, text string) (int, error) {
	if err := validateKey(ownerType, ownerID, field); err != nil {
		return 0, err
	}

	recs := Records(ownerType, ownerID, field, text)
	key := store.OwnerKey{OwnerType: ownerType, OwnerID: ownerID, Field: field}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.Delete(ctx, key); err != nil {
			return err
		}
		_, err := s.strategy.write(ctx, tx, recs)
		return err
	})
	if err != nil {
		return 0, storageError("reindex "+key.String(), err)
	}

	s.logger.Debug("reindex_one_complete",
		slog.String("owner_type", ownerType),
		slog.String("owner_id", ownerID),
		slog.String("field", field),
		slog.Int("rows", len(recs)))

	return len(recs), nil
}

// ReindexBatch rebuilds the rows of field for every owner src lists.
//
// Behavior:
//   - Owners arrive in chunks of BatchSize. Each chunk is one transaction:
//     every owner's rows are deleted, then the chunk's rows are written with
//     the selected strategy.
//   - An owner with blank text contributes zero rows; the chunk goes on.
//   - An owner listed twice in one chunk is indexed once, with its last text.
//   - A failing chunk is rolled back. Chunks committed before it stay, so
//     re-running the batch is always safe.
//   - ctx is checked before each chunk; cancellation stops further chunks.
//
// The returned report is non-nil even when err is not.
func (s *Synchronizer) ReindexBatch(ctx context.Context, ownerType, field string, src OwnerSource) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		OwnerType: ownerType,
		Field:     field,
		Strategy:  s.strategy.name(),
	}
	if ownerType == "" || field == "" {
		return report, fzerrors.ValidationError("owner type and field are required", nil)
	}
	if src == nil {
		return report, fzerrors.ValidationError("owner source is required", nil)
	}

	start := time.Now()
	s.logger.Info("reindex_batch_started",
		slog.String("run_id", report.RunID),
		slog.String("owner_type", ownerType),
		slog.String("field", field),
		slog.String("strategy", report.Strategy),
		slog.Int("batch_size", s.batchSize))

	err := src.Batches(ctx, s.batchSize, func(owners []Owner) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.reindexChunk(ctx, report, ownerType, field, owners)
	})
	report.Duration = time.Since(start)

	if err != nil {
		s.logger.Warn("reindex_batch_failed",
			slog.String("run_id", report.RunID),
			slog.Int("chunks_committed", report.Chunks),
			slog.String("error", err.Error()))
		return report, err
	}

	s.logger.Info("reindex_batch_complete",
		slog.String("run_id", report.RunID),
		slog.Int("owners", report.Owners),
		slog.Int("blank_owners", report.BlankOwners),
		slog.Int("rows", report.Rows),
		slog.Int("chunks", report.Chunks),
		slog.Duration("duration", report.Duration))

	return report, nil
}

func (s *Synchronizer) reindexChunk(ctx context.Context, report *BatchReport, ownerType, field string, owners []Owner) error {
	// Last occurrence of an owner ID wins.
	position := make(map[string]int, len(owners))
	unique := make([]Owner, 0, len(owners))
	for _, o := range owners {
		if o.ID == "" {
			return fzerrors.ValidationError("owner id is required", nil).
				WithDetail("owner_type", ownerType).
				WithDetail("chunk", fmt.Sprint(report.Chunks+1))
		}
		if i, ok := position[o.ID]; ok {
			unique[i] = o
			continue
		}
		position[o.ID] = len(unique)
		unique = append(unique, o)
	}

	var recs []store.Record
	var blank int
	for _, o := range unique {
		ownerRecs := Records(ownerType, o.ID, field, o.Text)
		if len(ownerRecs) == 0 {
			blank++
		}
		recs = append(recs, ownerRecs...)
	}

	var statements int
	err := s.store.Update(ctx, func(tx store.Tx) error {
		for _, o := range unique {
			key := store.OwnerKey{OwnerType: ownerType, OwnerID: o.ID, Field: field}
			if _, err := tx.Delete(ctx, key); err != nil {
				return err
			}
		}
		var err error
		statements, err = s.strategy.write(ctx, tx, recs)
		return err
	})
	if err != nil {
		return storageError(
			fmt.Sprintf("reindex %s.%s chunk %d", ownerType, field, report.Chunks+1), err).
			WithDetail("run_id", report.RunID)
	}

	report.Chunks++
	report.Owners += len(unique)
	report.BlankOwners += blank
	report.Rows += len(recs)
	report.Statements += statements

	s.logger.Debug("reindex_chunk_committed",
		slog.String("run_id", report.RunID),
		slog.Int("chunk", report.Chunks),
		slog.Int("owners", len(unique)),
		slog.Int("rows", len(recs)))

	if s.progress != nil {
		s.progress(*report)
	}
	return nil
}

// Forget removes the rows of an owner. With no fields every field of the
// owner is removed. Returns the number of rows deleted.
func (s *Synchronizer) Forget(ctx context.Context, ownerType, ownerID string, fields ...string) (int, error) {
	if err := validateKey(ownerType, ownerID, "-"); err != nil {
		return 0, err
	}

	keys := []store.OwnerKey{{OwnerType: ownerType, OwnerID: ownerID}}
	if len(fields) > 0 {
		keys = keys[:0]
		for _, f := range fields {
			keys = append(keys, store.OwnerKey{OwnerType: ownerType, OwnerID: ownerID, Field: f})
		}
	}

	var deleted int
	err := s.store.Update(ctx, func(tx store.Tx) error {
		deleted = 0
		for _, key := range keys {
			n, err := tx.Delete(ctx, key)
			if err != nil {
				return err
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, storageError(fmt.Sprintf("forget %s/%s", ownerType, ownerID), err)
	}

	s.logger.Debug("owner_forgotten",
		slog.String("owner_type", ownerType),
		slog.String("owner_id", ownerID),
		slog.Int("rows", deleted))

	return deleted, nil
}

// storageError wraps a failed write as ERR_202_STORAGE_WRITE, keeping
// ERR_301_STORAGE_BUSY so callers can still retry contention.
func storageError(msg string, err error) *fzerrors.FuzzError {
	code := fzerrors.ErrCodeStorageWrite
	if fzerrors.GetCode(err) == fzerrors.ErrCodeStorageBusy {
		code = fzerrors.ErrCodeStorageBusy
	}
	return fzerrors.New(code, msg, err)
}
