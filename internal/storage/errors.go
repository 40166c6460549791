package storage

import "errors"

var (
	// ErrNotFound indicates that no value is stored under the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrStoreIO indicates a failure in the underlying storage engine.
	ErrStoreIO = errors.New("store i/o error")

	// ErrStoreMissing indicates that an existing store was required but none was found.
	ErrStoreMissing = errors.New("store does not exist")
)
