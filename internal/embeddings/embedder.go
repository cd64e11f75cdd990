// Package embeddings maps text to dense vectors through a pretrained
// sentence-embedding model served by a Provider.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/upksearch/internal/metrics"
)

// warmupText is embedded once at construction to prove the model is loaded.
const warmupText = "StaticMesh warm up"

// Options tunes batching. Zero values select defaults.
type Options struct {
	BatchSize   int
	Concurrency int
	Logger      *zap.Logger
}

// Embedder is the process-wide handle on the embedding model. It is read-only
// after New returns and safe for concurrent use.
type Embedder struct {
	prov        Provider
	dim         int
	batchSize   int
	concurrency int
	log         *zap.Logger
}

// New probes prov with a warm-up text and returns a ready Embedder. This is the
// slow initialization step; call it once at startup and share the result. Any
// failure is reported as ErrModelUnavailable.
func New(ctx context.Context, prov Provider, opts Options) (*Embedder, error) {
	if prov == nil {
		return nil, fmt.Errorf("%w: no provider", ErrModelUnavailable)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	start := time.Now()
	vecs, err := prov.Embed(ctx, []string{warmupText})
	if err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues(prov.ModelID(), "error").Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, prov.ModelID(), err)
	}
	metrics.EmbedRequestsTotal.WithLabelValues(prov.ModelID(), "ok").Inc()
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: %s returned no vector for warm-up text", ErrModelUnavailable, prov.ModelID())
	}
	if d := prov.Dim(); d > 0 && d != len(vecs[0]) {
		return nil, fmt.Errorf("%w: %w: %s reports dim %d but returned %d values",
			ErrModelUnavailable, ErrDimensionMismatch, prov.ModelID(), d, len(vecs[0]))
	}

	e := &Embedder{
		prov:        prov,
		dim:         len(vecs[0]),
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
	e.log.Info("embedding model ready",
		zap.String("model", prov.ModelID()),
		zap.Int("dim", e.dim),
		zap.Duration("took", time.Since(start)))
	return e, nil
}

// ModelID identifies the model; it is recorded in every index built with it.
func (e *Embedder) ModelID() string { return e.prov.ModelID() }

// Dim is the vector length produced by the model.
func (e *Embedder) Dim() int { return e.dim }

// EncodeBatch returns one vector per text, in order. texts must be non-empty.
func (e *Embedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeOne embeds a single text, typically a search query.
func (e *Embedder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.prov.Embed(ctx, texts)
	if err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues(e.prov.ModelID(), "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, e.prov.ModelID(), err)
	}
	metrics.EmbedRequestsTotal.WithLabelValues(e.prov.ModelID(), "ok").Inc()
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrDimensionMismatch, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != e.dim {
			return nil, fmt.Errorf("%w: vector %d has %d values, model dim is %d", ErrDimensionMismatch, i, len(v), e.dim)
		}
	}
	return vecs, nil
}
