package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects file changes by comparing stat data on an interval.
// It is the fallback when fsnotify cannot be used.
type PollingWatcher struct {
	interval time.Duration
	state    map[string]fileStat
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
}

type fileStat struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileStat),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start records the current state of paths and polls until ctx is done or
// Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, paths []string) error {
	p.mu.Lock()
	for _, path := range paths {
		st, err := statFile(path)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("stat %s: %w", path, err)
		}
		p.state[path] = st
	}
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileStat{}, nil
	}
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}

func (p *PollingWatcher) poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	for path, prev := range p.state {
		cur, err := statFile(path)
		if err != nil {
			select {
			case p.errors <- fmt.Errorf("stat %s: %w", path, err):
			default:
			}
			continue
		}
		p.state[path] = cur

		var op Operation
		switch {
		case !prev.exists && cur.exists:
			op = OpCreate
		case prev.exists && !cur.exists:
			op = OpDelete
		case cur.exists && (cur.modTime != prev.modTime || cur.size != prev.size):
			op = OpModify
		default:
			continue
		}
		p.emit(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
	}
}

// emit must be called with the lock held.
func (p *PollingWatcher) emit(event FileEvent) {
	select {
	case p.events <- event:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// Stop stops polling and closes the channels. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of raw file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of stat errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
