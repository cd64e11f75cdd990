package index

import "errors"

var (
	// ErrVectorLengthMismatch indicates two vectors have different dimensions.
	ErrVectorLengthMismatch = errors.New("vector length mismatch")

	// ErrEmptyCatalog is returned by Build when there are no records to index.
	ErrEmptyCatalog = errors.New("nothing to index: catalog is empty")

	// ErrDuplicateID is returned by Build when two records share an id.
	ErrDuplicateID = errors.New("duplicate catalog id")

	// ErrNotFound is returned by Load when either companion blob is absent.
	ErrNotFound = errors.New("index not found")

	// ErrCorruptIndex is returned by Load when the blobs are present but do not
	// form a consistent pair.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrNoResidentIndex is returned by Save when given no index.
	ErrNoResidentIndex = errors.New("no resident index")
)
