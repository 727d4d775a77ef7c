package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // Pure Go SQLite driver, registered as "sqlite"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// rowParams is the number of bound parameters per inserted row.
const rowParams = 5

// SQLiteStore implements Store on a single SQLite table.
// WAL mode lets other processes read while one process writes.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	config  Config
	version string
	caps    Capabilities
	closed  bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// validateSQLiteIntegrity checks an existing database before it is opened.
// Returns nil if the file is absent or healthy.
func validateSQLiteIntegrity(driver, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(driver, path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='trigrams'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("table 'trigrams' missing")
	}

	return nil
}

// NewSQLiteStore opens or creates a trigram database at path.
// If path is empty, the database lives in memory.
func NewSQLiteStore(path string, config Config) (*SQLiteStore, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unknown sqlite driver: %s (valid options: sqlite, sqlite3)", driver)
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(driver, path); validErr != nil {
			slog.Warn("sqlite_trigram_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("trigram index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_trigram_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: one writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cacheMB := config.CacheMB
	if cacheMB <= 0 {
		cacheMB = 64
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		config: config,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.detectCapabilities(); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("sqlite_trigram_index_opened",
		slog.String("path", path),
		slog.String("driver", driver),
		slog.String("sqlite_version", s.version),
		slog.Bool("multi_row_insert", s.caps.MultiRowInsert),
		slog.Int("max_rows_per_insert", s.caps.MaxRowsPerInsert))

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per trigram occurrence; id keeps insertion order.
	CREATE TABLE IF NOT EXISTS trigrams (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_type  TEXT NOT NULL,
		owner_id    TEXT NOT NULL,
		fuzzy_field TEXT NOT NULL,
		trigram     TEXT NOT NULL,
		score       REAL NOT NULL CHECK (score >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_trigrams_match
		ON trigrams(owner_type, fuzzy_field, trigram);
	CREATE INDEX IF NOT EXISTS idx_trigrams_owner
		ON trigrams(owner_type, owner_id, fuzzy_field);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// detectCapabilities reads the engine version once and derives the
// multi-row insert support and row limit from it.
func (s *SQLiteStore) detectCapabilities() error {
	if err := s.db.QueryRow("SELECT sqlite_version()").Scan(&s.version); err != nil {
		return fmt.Errorf("failed to read sqlite version: %w", err)
	}

	caps, err := sqliteCapabilities(s.version, s.config)
	if err != nil {
		return err
	}
	s.caps = caps
	return nil
}

// sqliteCapabilities maps an engine version and config to capabilities.
// Multi-row VALUES lists need 3.7.11. The bound variable limit is 999
// before 3.32.0 and 32766 from then on.
func sqliteCapabilities(version string, config Config) (Capabilities, error) {
	supported := versionAtLeast(version, 3, 7, 11)

	maxVars := 999
	if versionAtLeast(version, 3, 32, 0) {
		maxVars = 32766
	}
	caps := Capabilities{MaxRowsPerInsert: maxVars / rowParams}
	if config.MaxRowsPerInsert > 0 && config.MaxRowsPerInsert < caps.MaxRowsPerInsert {
		caps.MaxRowsPerInsert = config.MaxRowsPerInsert
	}

	switch config.BulkInsert {
	case BulkAuto, "":
		caps.MultiRowInsert = supported
	case BulkOn:
		if !supported {
			return Capabilities{}, fmt.Errorf("bulk_insert is on but sqlite %s lacks multi-row inserts (need 3.7.11)", version)
		}
		caps.MultiRowInsert = true
	case BulkOff:
		caps.MultiRowInsert = false
	default:
		return Capabilities{}, fmt.Errorf("unknown bulk_insert mode: %s (valid options: auto, on, off)", config.BulkInsert)
	}
	return caps, nil
}

// versionAtLeast compares a dotted version string with major.minor.patch.
// Unparseable parts count as zero.
func versionAtLeast(version string, major, minor, patch int) bool {
	want := [3]int{major, minor, patch}
	parts := strings.SplitN(version, ".", 3)
	for i := 0; i < 3; i++ {
		var got int
		if i < len(parts) {
			got, _ = strconv.Atoi(parts[i])
		}
		if got != want[i] {
			return got > want[i]
		}
	}
	return true
}

// Version returns the SQLite engine version.
func (s *SQLiteStore) Version() string {
	return s.version
}

// Path returns the database path, empty for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Capabilities returns the write features detected at open.
func (s *SQLiteStore) Capabilities() Capabilities {
	return s.caps
}

// Update runs fn in one SQL transaction.
// fn must only use tx; calling other store methods from fn deadlocks.
// Lock contention with another connection surfaces as ERR_301_STORAGE_BUSY
// once busy_timeout runs out.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return busyError("begin transaction", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = sqlTx.Rollback() }()

	tx := &sqliteTx{tx: sqlTx, caps: s.caps}
	defer tx.close()

	if err := fn(tx); err != nil {
		return busyError("write trigrams", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return busyError("commit transaction", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Match ranks owners in SQL. Query terms and owner filters are bound as
// JSON arrays so long queries stay under the variable limit.
func (s *SQLiteStore) Match(ctx context.Context, q MatchQuery) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if len(q.Terms) == 0 {
		return []Match{}, nil
	}

	type term struct {
		T string  `json:"t"`
		W float64 `json:"w"`
	}
	weights := make(map[string]float64, len(q.Terms))
	order := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if _, ok := weights[t.Trigram]; !ok {
			order = append(order, t.Trigram)
		}
		weights[t.Trigram] += t.Weight
	}
	terms := make([]term, len(order))
	for i, tg := range order {
		terms[i] = term{T: tg, W: weights[tg]}
	}
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query terms: %w", err)
	}

	scoreExpr := "SUM(t.score)"
	if q.Weighted {
		scoreExpr = "SUM(t.score * q.weight)"
	}

	var query strings.Builder
	query.WriteString(`
		WITH q(trigram, weight) AS (
			SELECT json_extract(value, '$.t'), json_extract(value, '$.w')
			FROM json_each(?)
		)
		SELECT t.owner_id, ` + scoreExpr + ` AS total, COUNT(*) AS matched
		FROM trigrams t
		JOIN q ON q.trigram = t.trigram
		WHERE t.owner_type = ? AND t.fuzzy_field = ?`)
	args := []any{string(termsJSON), q.OwnerType, q.Field}

	if len(q.OwnerIDs) > 0 {
		idsJSON, err := json.Marshal(q.OwnerIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode owner filter: %w", err)
		}
		query.WriteString(` AND t.owner_id IN (SELECT value FROM json_each(?))`)
		args = append(args, string(idsJSON))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query.WriteString(`
		GROUP BY t.owner_id
		HAVING total >= ?
		ORDER BY total DESC, t.owner_id ASC
		LIMIT ? OFFSET ?`)
	args = append(args, q.MinScore, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("match query failed: %w", err)
	}
	defer rows.Close()

	results := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.OwnerID, &m.Score, &m.Matched); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// Records returns the rows of key ordered by insertion.
func (s *SQLiteStore) Records(ctx context.Context, key OwnerKey) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_type, owner_id, fuzzy_field, trigram, score
		FROM trigrams
		WHERE owner_type = ? AND owner_id = ? AND fuzzy_field = ?
		ORDER BY id`,
		key.OwnerType, key.OwnerID, key.Field)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.OwnerType, &r.OwnerID, &r.Field, &r.Trigram, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Stats returns row and owner counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_type, COUNT(*), COUNT(DISTINCT owner_id)
		FROM trigrams
		GROUP BY owner_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{OwnerTypes: make(map[string]int), Backend: string(BackendSQLite)}
	for rows.Next() {
		var ownerType string
		var count, owners int
		if err := rows.Scan(&ownerType, &count, &owners); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.OwnerTypes[ownerType] = count
		stats.Rows += count
		stats.Owners += owners
	}
	return stats, rows.Err()
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

type sqliteTx struct {
	tx         *sql.Tx
	caps       Capabilities
	insertStmt *sql.Stmt
}

func (t *sqliteTx) close() {
	if t.insertStmt != nil {
		_ = t.insertStmt.Close()
	}
}

func (t *sqliteTx) Delete(ctx context.Context, key OwnerKey) (int, error) {
	query := `DELETE FROM trigrams WHERE owner_type = ? AND owner_id = ?`
	args := []any{key.OwnerType, key.OwnerID}
	if key.Field != "" {
		query += ` AND fuzzy_field = ?`
		args = append(args, key.Field)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows of %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows of %s: %w", key, err)
	}
	return int(n), nil
}

func (t *sqliteTx) InsertOne(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if t.insertStmt == nil {
		stmt, err := t.tx.PrepareContext(ctx,
			`INSERT INTO trigrams(owner_type, owner_id, fuzzy_field, trigram, score) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		t.insertStmt = stmt
	}
	if _, err := t.insertStmt.ExecContext(ctx, rec.OwnerType, rec.OwnerID, rec.Field, rec.Trigram, rec.Score); err != nil {
		return fmt.Errorf("failed to insert row of %s: %w", rec.Key(), err)
	}
	return nil
}

func (t *sqliteTx) InsertMany(ctx context.Context, recs []Record) error {
	if !t.caps.MultiRowInsert {
		return ErrBulkUnsupported
	}
	if len(recs) == 0 {
		return nil
	}
	if t.caps.MaxRowsPerInsert > 0 && len(recs) > t.caps.MaxRowsPerInsert {
		return fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(recs), t.caps.MaxRowsPerInsert)
	}

	placeholders := make([]string, len(recs))
	args := make([]any, 0, len(recs)*rowParams)
	for i, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
		placeholders[i] = "(?, ?, ?, ?, ?)"
		args = append(args, rec.OwnerType, rec.OwnerID, rec.Field, rec.Trigram, rec.Score)
	}

	query := "INSERT INTO trigrams(owner_type, owner_id, fuzzy_field, trigram, score) VALUES " +
		strings.Join(placeholders, ", ")
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d rows: %w", len(recs), err)
	}
	return nil
}
