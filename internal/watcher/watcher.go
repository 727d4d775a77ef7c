package watcher

import (
	"time"
)

// Operation is the kind of change seen on a watched file.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file content changed.
	OpModify
	// OpDelete means the file is gone.
	OpDelete
	// OpRename means the file was moved away from its watched path.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Removed reports whether the operation leaves nothing at the watched path.
func (op Operation) Removed() bool {
	return op == OpDelete || op == OpRename
}

// FileEvent is one change to a watched file.
type FileEvent struct {
	// Path is the cleaned absolute path of the file.
	Path string

	Operation Operation
	Timestamp time.Time
}

// Options configures a FileWatcher.
type Options struct {
	// DebounceWindow is how long events are held for coalescing.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the stat interval in polling mode.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel.
	// Default: 64
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 64,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
