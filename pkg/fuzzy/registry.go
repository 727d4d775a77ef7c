package fuzzy

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/index"
	"github.com/Aman-CERP/fuzzidx/internal/search"
	"github.com/Aman-CERP/fuzzidx/internal/store"
)

// NamespaceSeparator joins a registry namespace and an owner type.
const NamespaceSeparator = "::"

// Owner, OwnerSource and BatchReport are the batch path types.
type (
	Owner       = index.Owner
	OwnerSource = index.OwnerSource
	SliceSource = index.SliceSource
	BatchReport = index.BatchReport
)

// Registry holds the searchable fields bound to one store.
// It is safe for concurrent use.
type Registry struct {
	store     store.Store
	sync      *index.Synchronizer
	matcher   *search.Matcher
	namespace string
	logger    *slog.Logger

	syncOpts  []index.Option
	searchCfg search.Config

	mu     sync.RWMutex
	fields map[string]map[string]*Field
}

// Option configures a Registry.
type Option func(*Registry)

// WithNamespace prefixes every owner type the registry reads and writes, so
// several registries can share one store without seeing each other's rows.
func WithNamespace(ns string) Option {
	return func(r *Registry) {
		r.namespace = ns
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
			r.syncOpts = append(r.syncOpts, index.WithLogger(l))
		}
	}
}

// WithBatchSize sets the owners per BulkUpdate chunk.
func WithBatchSize(n int) Option {
	return func(r *Registry) {
		r.syncOpts = append(r.syncOpts, index.WithBatchSize(n))
	}
}

// WithWriteMode overrides bulk or per-row insert selection.
func WithWriteMode(m index.WriteMode) Option {
	return func(r *Registry) {
		r.syncOpts = append(r.syncOpts, index.WithWriteMode(m))
	}
}

// WithProgress reports BulkUpdate progress after each committed chunk.
func WithProgress(fn index.ProgressFunc) Option {
	return func(r *Registry) {
		r.syncOpts = append(r.syncOpts, index.WithProgress(fn))
	}
}

// WithSearchConfig sets query defaults and limits.
func WithSearchConfig(cfg search.Config) Option {
	return func(r *Registry) {
		r.searchCfg = cfg
	}
}

// NewRegistry creates a Registry over st. The caller keeps ownership of st.
func NewRegistry(st store.Store, opts ...Option) (*Registry, error) {
	if st == nil {
		return nil, index.ErrNilStore
	}

	r := &Registry{
		store:     st,
		logger:    slog.Default(),
		searchCfg: search.DefaultConfig(),
		fields:    make(map[string]map[string]*Field),
	}
	for _, opt := range opts {
		opt(r)
	}

	s, err := index.New(st, r.syncOpts...)
	if err != nil {
		return nil, err
	}
	m, err := search.NewMatcher(st, r.searchCfg, search.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	r.sync = s
	r.matcher = m
	return r, nil
}

// Namespace returns the registry namespace, empty when unset.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Store returns the underlying store.
func (r *Registry) Store() store.Store {
	return r.store
}

// Strategy returns the selected write strategy name.
func (r *Registry) Strategy() string {
	return r.sync.Strategy()
}

// storedType maps an owner type to the type written to the store.
func (r *Registry) storedType(ownerType string) string {
	if r.namespace == "" {
		return ownerType
	}
	return r.namespace + NamespaceSeparator + ownerType
}

// Searchable registers fields of ownerType and returns their handles in
// argument order. Registering an existing field returns the existing handle.
func (r *Registry) Searchable(ownerType string, fields ...string) ([]*Field, error) {
	if ownerType == "" {
		return nil, fzerrors.ValidationError("owner type is required", nil)
	}
	if len(fields) == 0 {
		return nil, fzerrors.ValidationError("at least one field is required", nil).
			WithDetail("owner_type", ownerType)
	}
	for _, f := range fields {
		if f == "" {
			return nil, fzerrors.ValidationError("field name must not be empty", nil).
				WithDetail("owner_type", ownerType)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byField, ok := r.fields[ownerType]
	if !ok {
		byField = make(map[string]*Field)
		r.fields[ownerType] = byField
	}

	handles := make([]*Field, len(fields))
	for i, name := range fields {
		f, ok := byField[name]
		if !ok {
			f = &Field{reg: r, ownerType: ownerType, name: name}
			byField[name] = f
			r.logger.Debug("field_registered",
				slog.String("owner_type", ownerType),
				slog.String("field", name),
				slog.String("namespace", r.namespace))
		}
		handles[i] = f
	}
	return handles, nil
}

// Field returns the handle of a registered field.
func (r *Registry) Field(ownerType, field string) (*Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fields[ownerType][field]
	if !ok {
		return nil, fzerrors.Newf(fzerrors.ErrCodeFieldNotRegistered,
			"field %s.%s is not searchable", ownerType, field).
			WithSuggestion("Register it with Searchable first")
	}
	return f, nil
}

// Fields returns the registered field names of ownerType, sorted.
func (r *Registry) Fields(ownerType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fields[ownerType]))
	for name := range r.fields[ownerType] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OwnerTypes returns the owner types with registered fields, sorted.
func (r *Registry) OwnerTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.fields))
	for t := range r.fields {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Find searches every registered field of ownerType and ranks owners by
// their scores summed across fields.
func (r *Registry) Find(ctx context.Context, ownerType, pattern string, opts ...FindOption) ([]Result, error) {
	fields := r.Fields(ownerType)
	if len(fields) == 0 {
		return nil, fzerrors.Newf(fzerrors.ErrCodeFieldNotRegistered,
			"owner type %s has no searchable fields", ownerType)
	}
	results, err := r.matcher.MatchFields(ctx, r.storedType(ownerType), fields, pattern, buildOptions(opts).search())
	if err != nil {
		return nil, err
	}
	return fromSearch(results), nil
}

// Forget removes the rows of ownerID for every registered field of
// ownerType. Hosts call it when the owner is destroyed.
func (r *Registry) Forget(ctx context.Context, ownerType, ownerID string) (int, error) {
	fields := r.Fields(ownerType)
	if len(fields) == 0 {
		return 0, fzerrors.Newf(fzerrors.ErrCodeFieldNotRegistered,
			"owner type %s has no searchable fields", ownerType)
	}
	return r.sync.Forget(ctx, r.storedType(ownerType), ownerID, fields...)
}

// Stats reports the store contents.
func (r *Registry) Stats(ctx context.Context) (*store.Stats, error) {
	return r.store.Stats(ctx)
}
