package sqlstore

import "errors"

// Sentinel kinds for SQL store errors.
var (
	ErrUnsupportedBackend = errors.New("sqlstore: unsupported backend")
	ErrDirty              = errors.New("sqlstore: database is in a dirty migration state")
)
