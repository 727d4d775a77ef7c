package ui

import (
	"sync"
	"time"
)

// speedWindow is the minimum interval between speed samples.
const speedWindow = 500 * time.Millisecond

// etaSmoothingFactor weights a new ETA against the previous one.
const etaSmoothingFactor = 0.3

// ProgressTracker holds progress state for one reindex run.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	field      string
	current    int
	total      int
	startTime  time.Time
	stageStart time.Time
	errors     int
	warnings   int

	lastETA       time.Duration
	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	samples       int
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage      Stage
	Field      string
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Speed      float64 // owners per second
	AvgSpeed   float64
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a tracker in the loading stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageLoading,
		startTime:     now,
		stageStart:    now,
		lastSpeedCalc: now,
	}
}

// SetStage moves to stage for field with total owners and resets counters.
func (p *ProgressTracker) SetStage(stage Stage, field string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.field = field
	p.total = total
	p.current = 0
	p.stageStart = now
	p.lastETA = 0
	p.lastCurrent = 0
	p.lastSpeedCalc = now
	p.currentSpeed = 0
}

// Update records current progress within the stage.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current

	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed < speedWindow {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.currentSpeed = speed
		p.samples++
		if p.samples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
		}
	}
	p.lastCurrent = current
	p.lastSpeedCalc = now
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot. It takes the write lock because the ETA is
// smoothed against the previous value.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Stage:      p.stage,
		Field:      p.field,
		Current:    p.current,
		Total:      p.total,
		Progress:   progress,
		ETA:        p.calculateETA(),
		Speed:      p.currentSpeed,
		AvgSpeed:   p.avgSpeed,
		ErrorCount: p.errors,
		WarnCount:  p.warnings,
	}
}

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	progress := float64(p.current) / float64(p.total)
	if progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/progress) - elapsed
	if remaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = remaining
		return remaining
	}
	smoothed := time.Duration(etaSmoothingFactor*float64(remaining) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
