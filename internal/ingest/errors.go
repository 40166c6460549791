package ingest

import "errors"

var (
	// ErrImportSource indicates the bulk source could not be read or decoded.
	ErrImportSource = errors.New("import source error")

	// ErrStoreRequired is returned when a pipeline is built without a store.
	ErrStoreRequired = errors.New("document store required")

	// ErrIndexRequired is returned when a pipeline is built without an index.
	ErrIndexRequired = errors.New("index required")
)
