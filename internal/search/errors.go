package search

import (
	"errors"
	"fmt"

	"github.com/renderinc/report-search/internal/storage"
)

var (
	// ErrQueryParse indicates malformed query syntax.
	ErrQueryParse = errors.New("invalid query syntax")

	// ErrIndexIO indicates a failure in the underlying index engine.
	ErrIndexIO = errors.New("index i/o error")

	// ErrRecordResolution indicates a single hit could not be joined to its record.
	// It never escapes a search; the hit is dropped.
	ErrRecordResolution = errors.New("record resolution failed")

	// ErrIndexMissing indicates no index exists at the configured path.
	ErrIndexMissing = errors.New("index does not exist")

	// ErrIncompatibleIndex indicates the index was built with a different schema.
	ErrIncompatibleIndex = errors.New("index schema is incompatible")

	// ErrStoreRequired is returned when an engine is built without a store.
	ErrStoreRequired = errors.New("document store required")

	// ErrIndexRequired is returned when an engine is built without an index.
	ErrIndexRequired = errors.New("index required")
)

// QueryError reports a query that could not be parsed
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("parse query %q: %v", e.Query, e.Err)
}

// Unwrap exposes both ErrQueryParse and the parser's own error
func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryParse, e.Err}
}

// IsStartup reports whether err means persisted state is missing or unusable,
// in which case the serving process must not start.
func IsStartup(err error) bool {
	return errors.Is(err, ErrIndexMissing) ||
		errors.Is(err, ErrIncompatibleIndex) ||
		errors.Is(err, storage.ErrStoreMissing)
}
