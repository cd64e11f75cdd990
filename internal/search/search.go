// Package search answers natural-language queries against the asset index.
//
// A query is embedded, compared against every indexed vector, and the best
// Overfetch candidates are resolved through the catalog. Package and type
// filters run after ranking, so a filtered search can return fewer than TopK
// results even when more matching assets exist further down the ranking.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/metrics"
	"github.com/kamusis/upksearch/internal/search/index"
)

const (
	defaultOverfetch   = 100
	defaultMinScore    = 0.30
	defaultLockTimeout = 30 * time.Second
)

// Encoder embeds query and catalog text.
type Encoder interface {
	index.Encoder
	EncodeOne(ctx context.Context, text string) ([]float32, error)
}

// Options tunes the engine. Zero Overfetch, LockTimeout and Logger take
// defaults; MinScore is used as given, see DefaultOptions.
type Options struct {
	// Overfetch is how many ranked candidates are resolved before filtering.
	Overfetch int
	// MinScore drops candidates whose cosine similarity is below it.
	MinScore float64
	// LockTimeout bounds the wait for the rebuild lock.
	LockTimeout time.Duration
	Logger      *zap.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Overfetch:   defaultOverfetch,
		MinScore:    defaultMinScore,
		LockTimeout: defaultLockTimeout,
	}
}

// Engine is safe for concurrent use. Searches run against whichever index
// generation was resident when they started.
type Engine struct {
	enc   Encoder
	cat   catalog.Store
	store *index.Store
	opts  Options
	log   *zap.Logger
	loads singleflight.Group
}

// New returns an engine with no index loaded. The first Search (or Warm)
// loads the persisted index from the store's prefix.
func New(enc Encoder, cat catalog.Store, store *index.Store, opts Options) *Engine {
	if opts.Overfetch <= 0 {
		opts.Overfetch = defaultOverfetch
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{enc: enc, cat: cat, store: store, opts: opts, log: log}
}

// Search ranks the index against q.Text and returns at most q.TopK results
// ordered by score (descending), then catalog ID (ascending).
func (e *Engine) Search(ctx context.Context, q Query) (results []Result, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.SearchLatencySeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.SearchResultsReturned.Observe(float64(len(results)))
		}
	}()

	if q.TopK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, q.TopK)
	}

	idx, err := e.resident()
	if err != nil {
		return nil, err
	}
	if idx.Manifest.ModelID != e.enc.ModelID() {
		return nil, fmt.Errorf("%w: %w (index=%s embedder=%s)",
			ErrIndexUnavailable, ErrModelMismatch, idx.Manifest.ModelID, e.enc.ModelID())
	}

	qv, err := e.enc.EncodeOne(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != idx.Dim() {
		return nil, fmt.Errorf("%w: query has %d values, index dim is %d",
			index.ErrVectorLengthMismatch, len(qv), idx.Dim())
	}

	minScore := e.opts.MinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}

	cands := topCandidates(idx, qv, min(e.opts.Overfetch, idx.Len()))
	results = make([]Result, 0, min(q.TopK, len(cands)))

	var lookups, failures int
	var lastErr error
	for i, c := range cands {
		if len(results) >= q.TopK {
			break
		}
		if c.score < minScore {
			metrics.CandidatesDropped.WithLabelValues("score").Add(float64(len(cands) - i))
			break
		}

		lookups++
		rec, err := e.cat.Get(ctx, c.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, catalog.ErrNotFound) {
				metrics.CandidatesDropped.WithLabelValues("stale").Inc()
				e.log.Debug("index entry has no catalog record", zap.Int64("id", c.id))
				continue
			}
			failures++
			lastErr = err
			metrics.CandidatesDropped.WithLabelValues("lookup_error").Inc()
			e.log.Warn("catalog lookup failed", zap.Int64("id", c.id), zap.Error(err))
			continue
		}

		if q.Package != "" && rec.Package != q.Package {
			metrics.CandidatesDropped.WithLabelValues("package").Inc()
			continue
		}
		if q.Type != "" && rec.AssetType != q.Type {
			metrics.CandidatesDropped.WithLabelValues("type").Inc()
			continue
		}

		results = append(results, Result{
			ID:        rec.ID,
			Package:   rec.Package,
			AssetType: rec.AssetType,
			AssetName: rec.AssetName,
			Score:     c.score,
		})
	}

	// Every lookup failing means the catalog itself is down.
	if len(results) == 0 && failures > 0 && failures == lookups {
		return nil, fmt.Errorf("resolve candidates: %w", lastErr)
	}
	return results, nil
}

// Rebuild re-embeds the whole catalog, persists the new generation and makes
// it resident. The previous index stays resident if any step fails.
func (e *Engine) Rebuild(ctx context.Context) (*index.Index, error) {
	start := time.Now()

	unlock, err := index.Lock(e.store.Prefix(), e.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	records, err := e.cat.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	e.log.Info("rebuilding index", zap.Int("records", len(records)), zap.String("model", e.enc.ModelID()))

	idx, err := e.store.Build(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	elapsed := time.Since(start)
	metrics.IndexBuildSeconds.Observe(elapsed.Seconds())
	e.log.Info("index rebuilt",
		zap.String("generation", idx.Manifest.Generation),
		zap.Int("entries", idx.Len()),
		zap.Duration("elapsed", elapsed))
	return idx, nil
}

// Warm loads the persisted index ahead of the first query and warns when it
// no longer matches the catalog.
func (e *Engine) Warm(ctx context.Context) error {
	idx, err := e.resident()
	if err != nil {
		return err
	}
	if idx.Manifest.ModelID != e.enc.ModelID() {
		e.log.Warn("index was built with a different model; rebuild it",
			zap.String("index_model", idx.Manifest.ModelID),
			zap.String("embedder_model", e.enc.ModelID()))
	}

	records, err := e.cat.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	if digest := index.CatalogDigest(records); digest != idx.Manifest.CatalogDigest {
		e.log.Warn("index is stale against the catalog; rebuild it",
			zap.Int("index_entries", idx.Len()),
			zap.Int("catalog_records", len(records)))
	}
	return nil
}

// Status reports on the resident index without loading one.
func (e *Engine) Status() Status {
	idx := e.store.Current()
	if idx == nil {
		return Status{}
	}
	return Status{
		Ready:      true,
		Generation: idx.Manifest.Generation,
		ModelID:    idx.Manifest.ModelID,
		CreatedAt:  idx.Manifest.CreatedAt,
		Entries:    idx.Len(),
		Dim:        idx.Dim(),
	}
}

// resident returns the in-memory index, loading it from disk on first use.
// Concurrent first callers share one load.
func (e *Engine) resident() (*index.Index, error) {
	if idx := e.store.Current(); idx != nil {
		return idx, nil
	}
	v, err, _ := e.loads.Do("load", func() (any, error) {
		if idx := e.store.Current(); idx != nil {
			return idx, nil
		}
		return e.store.Load()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	return v.(*index.Index), nil
}
