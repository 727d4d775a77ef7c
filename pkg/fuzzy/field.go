package fuzzy

import (
	"context"
	"fmt"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/index"
)

// Field is a searchable field of one owner type.
// Handles come from Registry.Searchable and are safe for concurrent use.
type Field struct {
	reg       *Registry
	ownerType string
	name      string
}

// OwnerType returns the owner type as registered, without namespace.
func (f *Field) OwnerType() string { return f.ownerType }

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// String returns "OwnerType.field".
func (f *Field) String() string { return f.ownerType + "." + f.name }

// Find returns owners whose field value resembles pattern, best first.
// A blank pattern, or one with no overlap, returns an empty slice.
func (f *Field) Find(ctx context.Context, pattern string, opts ...FindOption) ([]Result, error) {
	results, err := f.reg.matcher.Match(ctx, f.reg.storedType(f.ownerType), f.name, pattern, buildOptions(opts).search())
	if err != nil {
		return nil, err
	}
	return fromSearch(results), nil
}

// FindArgs is Find for loosely typed callers. It accepts (pattern) or
// (pattern, FindOptions) where the options may also be a *FindOptions.
// Any other shape is an invalid-input error.
func (f *Field) FindArgs(ctx context.Context, args ...any) ([]Result, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fzerrors.ValidationError(
			fmt.Sprintf("wrong number of arguments (given %d, expected 1..2)", len(args)), nil)
	}

	pattern, ok := args[0].(string)
	if !ok {
		return nil, fzerrors.ValidationError(
			fmt.Sprintf("pattern must be a string, got %T", args[0]), nil)
	}
	if len(args) == 1 {
		return f.Find(ctx, pattern)
	}

	switch o := args[1].(type) {
	case FindOptions:
		return f.Find(ctx, pattern, withOptions(o))
	case *FindOptions:
		if o == nil {
			return f.Find(ctx, pattern)
		}
		return f.Find(ctx, pattern, withOptions(*o))
	default:
		return nil, fzerrors.ValidationError(
			fmt.Sprintf("options must be FindOptions, got %T", args[1]), nil)
	}
}

// Update rebuilds the rows of ownerID from text and returns the row count.
func (f *Field) Update(ctx context.Context, ownerID, text string) (int, error) {
	return f.reg.sync.ReindexOne(ctx, f.reg.storedType(f.ownerType), ownerID, f.name, text)
}

// Changed rebuilds the rows of ownerID when the value moved from oldText to
// newText. It reports whether a reindex ran.
func (f *Field) Changed(ctx context.Context, ownerID, oldText, newText string) (bool, error) {
	if oldText == newText {
		return false, nil
	}
	if _, err := f.Update(ctx, ownerID, newText); err != nil {
		return false, err
	}
	return true, nil
}

// BulkUpdate rebuilds the rows of every owner src lists.
func (f *Field) BulkUpdate(ctx context.Context, src OwnerSource) (*BatchReport, error) {
	return f.reg.sync.ReindexBatch(ctx, f.reg.storedType(f.ownerType), f.name, src)
}

// BulkUpdateParallel runs BulkUpdate over disjoint partitions with up to
// workers concurrent runs. Partitions must not share owner IDs.
func (f *Field) BulkUpdateParallel(ctx context.Context, parts []OwnerSource, workers int) (*BatchReport, error) {
	return index.ReindexParallel(ctx, f.reg.sync, f.reg.storedType(f.ownerType), f.name, parts, workers)
}

// Forget removes the rows of ownerID for this field.
func (f *Field) Forget(ctx context.Context, ownerID string) (int, error) {
	return f.reg.sync.Forget(ctx, f.reg.storedType(f.ownerType), ownerID, f.name)
}
