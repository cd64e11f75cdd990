package embeddings

import "errors"

var (
	// ErrModelUnavailable indicates the embedding model could not be reached or
	// loaded. It is fatal for the engine; there is no degraded mode.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEmptyInput indicates EncodeBatch was called with no texts.
	ErrEmptyInput = errors.New("empty input for embedding")

	// ErrDimensionMismatch indicates the model returned a vector of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnsupportedProvider indicates an unknown provider name in config.
	ErrUnsupportedProvider = errors.New("unsupported embeddings provider")
)
