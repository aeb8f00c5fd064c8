package tagstore

import "errors"

// Domain-specific errors for tag file operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingTagColumn is returned when the file has no "Tag" column.
	ErrMissingTagColumn = errors.New("tagstore: required Tag column is missing")

	// ErrUnsupportedFormat is returned for file extensions other than
	// .csv and .xlsx. Legacy .xls workbooks must be converted first.
	ErrUnsupportedFormat = errors.New("tagstore: unsupported file format (use .csv or .xlsx)")
)
