// Package catalog holds the asset records extracted from game packages and the
// store they are read from when building an index or resolving search hits.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("catalog record not found")

// Record is one asset row. ID is assigned by the store and is regenerated by
// every full rescan.
type Record struct {
	ID        int64  `json:"id"`
	Package   string `json:"package"`
	AssetType string `json:"asset_type"`
	AssetName string `json:"asset_name"`
	RawLine   string `json:"-"`
}

// Store is the read side of the catalog used by the index and search engine.
type Store interface {
	Get(ctx context.Context, id int64) (Record, error)
	ListAll(ctx context.Context) ([]Record, error)
}
