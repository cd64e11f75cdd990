package search

import "errors"

var (
	// ErrIndexUnavailable means there is no index in memory or on disk. It is
	// recoverable by building the index.
	ErrIndexUnavailable = errors.New("index unavailable, build first")

	// ErrModelMismatch means the index was built with a different model than
	// the one answering queries.
	ErrModelMismatch = errors.New("index was built with a different embedding model")

	// ErrInvalidTopK means Query.TopK was not positive.
	ErrInvalidTopK = errors.New("top_k must be positive")
)
