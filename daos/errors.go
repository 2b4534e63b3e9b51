package daos

import "errors"

// Sentinel errors for the data access layer.
var (
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrSchemaDrift       = errors.New("database schema does not match entity descriptors")
)
