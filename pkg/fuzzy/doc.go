// Package fuzzy is the public face of fuzzidx.
//
// A Registry binds a trigram store to a set of searchable fields. Each
// Searchable call returns one *Field handle per field; the handle carries
// the operations for that field:
//
//	reg, _ := fuzzy.NewRegistry(st)
//	fields, _ := reg.Searchable("User", "name")
//	name := fields[0]
//	_, _ = name.Update(ctx, "42", "Jonathan Smith")
//	results, _ := name.Find(ctx, "jon smyth", fuzzy.WithLimit(5))
//
// Host code reports value changes with Field.Changed or Field.Update,
// rebuilds a whole field with Field.BulkUpdate, and removes destroyed owners
// with Field.Forget or Registry.Forget.
package fuzzy
