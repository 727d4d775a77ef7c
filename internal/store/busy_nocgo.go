//go:build !cgo

package store

// The mattn driver needs cgo; without it only modernc errors exist.
func isMattnBusy(error) bool { return false }
