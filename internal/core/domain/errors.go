package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingDocStore indicates the retrieval pipeline has no
	// document store. The pipeline cannot hydrate chunk bodies or run
	// keyword search without one, so this is raised eagerly before any
	// backend call.
	ErrMissingDocStore = errors.New("document store is not configured")

	// ErrMissingEmbedder indicates no embedding provider is configured
	// for an operation that needs one.
	ErrMissingEmbedder = errors.New("embedding service is not configured")
)

// EmbeddingError wraps an embedding provider failure. It is fatal to the
// current retrieval round: without the query embedding there is no
// partial vector path.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageWriteError wraps a failed add/delete/drop against a backend.
// Write failures carry data-loss risk and always propagate to the
// indexing caller.
type StorageWriteError struct {
	// Op names the failed operation ("add", "delete", "drop").
	Op  string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageQueryError wraps a single backend's query failure during
// retrieval. The retrieval service catches it at the worker boundary and
// converts it into a fallback decision; it only surfaces to callers when
// every backend failed.
type StorageQueryError struct {
	// Backend names the failed search leg ("vector", "keyword").
	Backend string
	Err     error
}

func (e *StorageQueryError) Error() string {
	return fmt.Sprintf("%s search: %v", e.Backend, e.Err)
}

func (e *StorageQueryError) Unwrap() error { return e.Err }
