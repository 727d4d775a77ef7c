// Package watcher keeps the trigram index in step with owner source files.
//
// A FileWatcher reports changes to a fixed set of files. It uses fsnotify on
// the parent directories, so editors that save by renaming a temp file over
// the original are seen, and falls back to polling file stat data where
// fsnotify is unavailable. Events are debounced before they are emitted.
//
// An Applier turns a changed file into per-owner reindex and forget calls by
// diffing the file against the snapshot taken on the previous pass.
//
//	w, err := watcher.NewFileWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, paths)
//	for batch := range w.Events() {
//	    applier.Apply(ctx, batch)
//	}
package watcher
