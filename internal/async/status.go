// Package async runs the initial reindex of a server in the background and
// tracks its progress for status queries.
package async

import (
	"sync"
	"time"
)

// IndexingStatus is the overall state of a background reindex.
type IndexingStatus string

const (
	// StatusIndexing means the reindex is running; searches see partial results.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady means every configured field has been rebuilt.
	StatusReady IndexingStatus = "ready"
	// StatusError means the reindex stopped on an error.
	StatusError IndexingStatus = "error"
)

// IndexingStage is the step the reindex is in.
type IndexingStage string

const (
	// StageCounting reads the sources to size the run.
	StageCounting IndexingStage = "counting"
	// StageIndexing rebuilds trigram rows field by field.
	StageIndexing IndexingStage = "indexing"
)

// IndexProgressSnapshot is a point-in-time copy of IndexProgress.
type IndexProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	Field          string  `json:"field,omitempty"`
	FieldsTotal    int     `json:"fields_total"`
	FieldsDone     int     `json:"fields_done"`
	OwnersTotal    int     `json:"owners_total"`
	OwnersIndexed  int     `json:"owners_indexed"`
	Rows           int     `json:"rows"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// IndexProgress tracks a background reindex. Safe for concurrent use.
type IndexProgress struct {
	mu sync.RWMutex

	status        IndexingStatus
	stage         IndexingStage
	field         string
	fieldsTotal   int
	fieldsDone    int
	ownersTotal   int
	ownersIndexed int
	rows          int
	startTime     time.Time
	errorMessage  string
}

// NewIndexProgress returns progress in the indexing state.
func NewIndexProgress() *IndexProgress {
	return &IndexProgress{
		status:    StatusIndexing,
		stage:     StageCounting,
		startTime: time.Now(),
	}
}

// SetTotals records the number of fields and owners the run will cover and
// moves to StageIndexing.
func (p *IndexProgress) SetTotals(fields, owners int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = StageIndexing
	p.fieldsTotal = fields
	p.ownersTotal = owners
}

// StartField marks the field being rebuilt, e.g. "User.name".
func (p *IndexProgress) StartField(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.field = name
}

// AddOwners records owners and rows committed by one chunk.
func (p *IndexProgress) AddOwners(owners, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ownersIndexed += owners
	p.rows += rows
}

// FieldDone counts a finished field.
func (p *IndexProgress) FieldDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fieldsDone++
	p.field = ""
}

// SetError marks the run as failed.
func (p *IndexProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the run as complete.
func (p *IndexProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
	p.field = ""
}

// IsIndexing reports whether the run is still going.
func (p *IndexProgress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state.
func (p *IndexProgress) Snapshot() IndexProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	switch {
	case p.status == StatusReady:
		pct = 100
	case p.ownersTotal > 0:
		pct = float64(p.ownersIndexed) / float64(p.ownersTotal) * 100.0
		if pct > 100 {
			pct = 100
		}
	}

	return IndexProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		Field:          p.field,
		FieldsTotal:    p.fieldsTotal,
		FieldsDone:     p.fieldsDone,
		OwnersTotal:    p.ownersTotal,
		OwnersIndexed:  p.ownersIndexed,
		Rows:           p.rows,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
