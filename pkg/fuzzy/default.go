package fuzzy

import (
	"sync"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/store"
)

// ErrAlreadyInitialized is returned by a second Init.
var ErrAlreadyInitialized = fzerrors.New(fzerrors.ErrCodeAlreadyInitialized,
	"default registry already initialized", nil)

var (
	defaultMu  sync.RWMutex
	defaultReg *Registry
)

// Init creates the process-wide registry. It succeeds once.
func Init(st store.Store, opts ...Option) (*Registry, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg != nil {
		return nil, ErrAlreadyInitialized
	}
	r, err := NewRegistry(st, opts...)
	if err != nil {
		return nil, err
	}
	defaultReg = r
	return r, nil
}

// Default returns the registry created by Init, or nil before Init.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}
