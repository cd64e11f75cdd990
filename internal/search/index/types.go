package index

import "fmt"

// Manifest describes one index generation and how to interpret its blobs. The
// same manifest is embedded in both companion blobs.
type Manifest struct {
	IndexVersion  int    `json:"index_version"`
	Generation    string `json:"generation"`
	CreatedAt     string `json:"created_at"`
	ModelID       string `json:"model_id"`
	Dim           int    `json:"dim"`
	Count         int    `json:"count"`
	CatalogDigest string `json:"catalog_digest"`
}

// Index is an immutable set of (catalog id, vector) pairs. Vectors are stored
// row-major: row i is Vectors[i*Dim : (i+1)*Dim] and belongs to IDs[i].
type Index struct {
	Manifest Manifest
	IDs      []int64
	Vectors  []float32

	norms []float64
}

// New validates the parallel sequences and returns an Index over them. The
// slices are retained, not copied.
func New(m Manifest, ids []int64, vectors []float32) (*Index, error) {
	if m.Dim <= 0 {
		return nil, fmt.Errorf("invalid dim: %d", m.Dim)
	}
	if len(vectors) != len(ids)*m.Dim {
		return nil, fmt.Errorf("%w: %d ids but %d values for dim %d", ErrVectorLengthMismatch, len(ids), len(vectors), m.Dim)
	}
	m.Count = len(ids)
	idx := &Index{Manifest: m, IDs: ids, Vectors: vectors, norms: make([]float64, len(ids))}
	for i := range ids {
		idx.norms[i] = Norm(idx.Row(i))
	}
	return idx, nil
}

// Len is the number of entries.
func (x *Index) Len() int { return len(x.IDs) }

// Dim is the vector dimension.
func (x *Index) Dim() int { return x.Manifest.Dim }

// Row returns the vector for entry i without copying.
func (x *Index) Row(i int) []float32 {
	d := x.Manifest.Dim
	return x.Vectors[i*d : (i+1)*d]
}

// RowNorm returns the precomputed L2 norm of entry i.
func (x *Index) RowNorm(i int) float64 { return x.norms[i] }
