// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsSQLiteBusyError reports a SQLITE_BUSY error, returned when another
// connection holds the write lock past the busy timeout.
func IsSQLiteBusyError(err error) bool {
	return errorContains(err, "SQLITE_BUSY")
}

// IsSQLiteLockedError reports the "database is locked" form of contention.
func IsSQLiteLockedError(err error) bool {
	return errorContains(err, "database is locked")
}

// IsSQLiteConflictError reports either form of SQLite lock contention.
// These are the only store errors worth retrying.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

func errorContains(err error, needle string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), needle)
}
