package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
)

// isBusy reports whether err is SQLite lock contention (SQLITE_BUSY or
// SQLITE_LOCKED, extended codes included) from either driver.
func isBusy(err error) bool {
	var me *sqlite.Error
	if errors.As(err, &me) {
		switch me.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return isMattnBusy(err)
}

// busyError turns lock contention into a retryable ERR_301_STORAGE_BUSY.
// Other errors, and errors already carrying a FuzzError, come back unchanged.
func busyError(op string, err error) error {
	if err == nil || !isBusy(err) {
		return err
	}
	if fzerrors.GetCode(err) != "" {
		return err
	}
	return fzerrors.New(fzerrors.ErrCodeStorageBusy, op, err).
		WithSuggestion("Another process is writing the index; retry shortly")
}
