package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/fuzzidx/internal/config"
	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/source"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

// project is an opened index with every configured field registered.
type project struct {
	root    string
	cfg     *config.Config
	dataDir string
	backend string
	store   store.Store
	reg     *fuzzy.Registry
}

// loadConfig resolves the project root and loads its configuration.
func loadConfig() (string, *config.Config, error) {
	root, err := filepath.Abs(projectDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// openProject opens the configured store and registers every field of cfg.
// opts are applied after the options derived from cfg.
func openProject(root string, cfg *config.Config, opts ...fuzzy.Option) (*project, error) {
	backend := strings.ToLower(cfg.Storage.Backend)
	dataDir := cfg.DataDir(root)
	if backend != string(store.BackendMemory) {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fzerrors.New(fzerrors.ErrCodeStorageOpen, "cannot create data directory", err).
				WithDetail("path", dataDir)
		}
	}

	st, err := store.Open(dataDir, cfg.StoreConfig(), backend)
	if err != nil {
		return nil, err
	}

	mode, err := cfg.WriteMode()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	regOpts := []fuzzy.Option{
		fuzzy.WithNamespace(cfg.Index.Namespace),
		fuzzy.WithBatchSize(cfg.Index.BatchSize),
		fuzzy.WithWriteMode(mode),
		fuzzy.WithSearchConfig(cfg.MatcherConfig()),
	}
	reg, err := fuzzy.NewRegistry(st, append(regOpts, opts...)...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for _, f := range cfg.Fields {
		if _, err := reg.Searchable(f.OwnerType, f.Field); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return &project{
		root:    root,
		cfg:     cfg,
		dataDir: dataDir,
		backend: backend,
		store:   st,
		reg:     reg,
	}, nil
}

// Close closes the store.
func (p *project) Close() error {
	return p.store.Close()
}

// sourcePath resolves a field source against the project root.
func (p *project) sourcePath(f config.FieldConfig) string {
	if filepath.IsAbs(f.Source) {
		return f.Source
	}
	return filepath.Join(p.root, f.Source)
}

// openSource opens the JSON Lines source of f.
func (p *project) openSource(f config.FieldConfig) (*source.JSONLSource, error) {
	if f.Source == "" {
		return nil, fzerrors.ValidationError("field has no source", nil).
			WithDetail("field", f.Key()).
			WithSuggestion("Set fields[].source in .fuzzidx.yaml")
	}
	idPath := f.IDPath
	if idPath == "" {
		idPath = source.DefaultIDPath
	}
	textPath := f.TextPath
	if textPath == "" {
		textPath = f.Field
	}
	return source.NewJSONL(p.sourcePath(f), idPath, textPath)
}

// selectFields returns the configured fields named by keys ("Type.field"),
// or every field with a source when keys is empty.
func (p *project) selectFields(keys []string) ([]config.FieldConfig, error) {
	if len(keys) == 0 {
		var out []config.FieldConfig
		for _, f := range p.cfg.Fields {
			if f.Source != "" {
				out = append(out, f)
			}
		}
		return out, nil
	}

	out := make([]config.FieldConfig, 0, len(keys))
	for _, key := range keys {
		ownerType, field, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fzerrors.ValidationError("field must be written as OwnerType.field", nil).
				WithDetail("field", key)
		}
		f, found := p.cfg.Field(ownerType, field)
		if !found {
			return nil, fzerrors.Newf(fzerrors.ErrCodeFieldNotRegistered, "field %s is not configured", key).
				WithSuggestion("Declare it under fields in .fuzzidx.yaml")
		}
		out = append(out, f)
	}
	return out, nil
}
