//go:build cgo

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func isMattnBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
