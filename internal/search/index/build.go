package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kamusis/upksearch/internal/catalog"
)

// Encoder is the part of the embedder the index needs.
type Encoder interface {
	ModelID() string
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Build embeds every record and returns a new index generation. Records keep
// their given order. Nothing is written to disk; see Save.
func Build(ctx context.Context, enc Encoder, records []catalog.Record) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCatalog
	}

	ids := make([]int64, len(records))
	texts := make([]string, len(records))
	seen := make(map[int64]struct{}, len(records))
	for i, r := range records {
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		ids[i] = r.ID
		texts[i] = CanonicalText(r)
	}

	embs, err := enc.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embs) != len(records) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d records", len(embs), len(records))
	}

	dim := len(embs[0])
	vectors := make([]float32, 0, len(records)*dim)
	for i, v := range embs {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding dim changed mid-run: got %d want %d (record %d)", len(v), dim, ids[i])
		}
		vectors = append(vectors, v...)
	}

	return New(Manifest{
		IndexVersion:  FormatVersion,
		Generation:    uuid.NewString(),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		ModelID:       enc.ModelID(),
		Dim:           dim,
		CatalogDigest: CatalogDigest(records),
	}, ids, vectors)
}
