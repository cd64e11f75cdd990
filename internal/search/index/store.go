package index

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/metrics"
)

// Store owns the resident index for one path prefix. The resident index is
// replaced wholesale by pointer swap, so readers holding the previous one keep
// a consistent view.
type Store struct {
	prefix  string
	enc     Encoder
	log     *zap.Logger
	current atomic.Pointer[Index]
}

// NewStore returns a Store with no resident index.
func NewStore(prefix string, enc Encoder, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{prefix: prefix, enc: enc, log: log}
}

// Prefix is the path prefix the store saves to and loads from.
func (s *Store) Prefix() string { return s.prefix }

// Current returns the resident index, or nil.
func (s *Store) Current() *Index { return s.current.Load() }

// Publish makes idx the resident index.
func (s *Store) Publish(idx *Index) {
	s.current.Store(idx)
	s.published(idx)
}

func (s *Store) published(idx *Index) {
	metrics.IndexEntries.Set(float64(idx.Len()))
	s.log.Info("index published",
		zap.String("generation", idx.Manifest.Generation),
		zap.Int("entries", idx.Len()),
		zap.Int("dim", idx.Dim()))
}

// Build embeds records, persists the result under the store's prefix and
// publishes it. On failure the resident index and the files on disk are left
// as they were. Callers that can race with another writer hold Lock.
func (s *Store) Build(ctx context.Context, records []catalog.Record) (*Index, error) {
	idx, err := Build(ctx, s.enc, records)
	if err != nil {
		return nil, err
	}
	if err := Save(s.prefix, idx); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}
	s.Publish(idx)
	return idx, nil
}

// Load reads the persisted index and publishes it if nothing is resident yet.
// When an index was published while the files were being read, that index
// wins and is returned instead.
func (s *Store) Load() (*Index, error) {
	idx, err := Load(s.prefix)
	if err != nil {
		return nil, err
	}
	if !s.current.CompareAndSwap(nil, idx) {
		return s.Current(), nil
	}
	s.published(idx)
	return idx, nil
}
