package index

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/embeddings"
	"github.com/kamusis/upksearch/internal/embeddings/embeddingstest"
)

func scenarioCatalog() []catalog.Record {
	return []catalog.Record{
		{ID: 1, Package: "pkgA", AssetType: "StaticMesh", AssetName: "Fuel_Drum"},
		{ID: 2, Package: "pkgA", AssetType: "Texture2D", AssetName: "Blue_Barrel_Diffuse"},
		{ID: 3, Package: "pkgB", AssetType: "StaticMesh", AssetName: "Rail_Track"},
	}
}

func newEncoder(t *testing.T) *embeddings.Embedder {
	t.Helper()
	e, err := embeddings.New(context.Background(), embeddingstest.NewLexical(64), embeddings.Options{})
	if err != nil {
		t.Fatalf("embeddings.New: %v", err)
	}
	return e
}

func TestCanonicalText(t *testing.T) {
	cases := []struct {
		rec  catalog.Record
		want string
	}{
		{catalog.Record{AssetType: "StaticMesh", AssetName: "Fuel_Drum"}, "StaticMesh Fuel Drum"},
		{catalog.Record{AssetType: "Texture2D", AssetName: "Blue__Barrel_"}, "Texture2D Blue  Barrel "},
		{catalog.Record{AssetType: "Material", AssetName: "M-Rust.01"}, "Material M-Rust.01"},
	}
	for _, c := range cases {
		if got := CanonicalText(c.rec); got != c.want {
			t.Fatalf("CanonicalText(%+v)=%q want %q", c.rec, got, c.want)
		}
	}
}

func TestCosine(t *testing.T) {
	if s, err := Cosine([]float32{1, 0}, []float32{1, 0}); err != nil || s != 1 {
		t.Fatalf("identical: %v %v", s, err)
	}
	if s, err := Cosine([]float32{1, 0}, []float32{0, 1}); err != nil || s != 0 {
		t.Fatalf("orthogonal: %v %v", s, err)
	}
	if s, err := Cosine([]float32{0, 0}, []float32{1, 1}); err != nil || s != -1 {
		t.Fatalf("zero norm should score -1: %v %v", s, err)
	}
	if _, err := Cosine([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestCosineNorms(t *testing.T) {
	a, b := []float32{3, 4}, []float32{4, 3}
	want, err := Cosine(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := CosineNorms(a, b, 5, 5); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := CosineNorms(a, b, 0, 5); got != -1 {
		t.Fatalf("zero norm should score -1, got %v", got)
	}
}

func TestBuild_Invariants(t *testing.T) {
	idx, err := Build(context.Background(), newEncoder(t), scenarioCatalog())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Len() != 3 || len(idx.Vectors) != 3*idx.Dim() {
		t.Fatalf("len mismatch: ids=%d vectors=%d dim=%d", idx.Len(), len(idx.Vectors), idx.Dim())
	}
	seen := map[int64]bool{}
	for _, id := range idx.IDs {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if idx.Manifest.ModelID != "test:lexical" {
		t.Fatalf("model id: %q", idx.Manifest.ModelID)
	}
	if idx.Manifest.Generation == "" || idx.Manifest.CatalogDigest == "" {
		t.Fatalf("manifest not stamped: %+v", idx.Manifest)
	}
	if idx.Manifest.CatalogDigest != CatalogDigest(scenarioCatalog()) {
		t.Fatalf("digest mismatch")
	}
}

func TestBuild_EmptyCatalog(t *testing.T) {
	_, err := Build(context.Background(), newEncoder(t), nil)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	recs := append(scenarioCatalog(), catalog.Record{ID: 2, AssetType: "Material", AssetName: "Dup"})
	_, err := Build(context.Background(), newEncoder(t), recs)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "idx", "assets")
	idx, err := Build(context.Background(), newEncoder(t), scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(prefix, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(prefix)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Manifest != idx.Manifest {
		t.Fatalf("manifest mismatch:\n got %+v\nwant %+v", got.Manifest, idx.Manifest)
	}
	if len(got.IDs) != len(idx.IDs) {
		t.Fatalf("ids length mismatch")
	}
	for i := range idx.IDs {
		if got.IDs[i] != idx.IDs[i] {
			t.Fatalf("ids[%d]=%d want %d", i, got.IDs[i], idx.IDs[i])
		}
	}
	for i := range idx.Vectors {
		if math.Abs(float64(got.Vectors[i]-idx.Vectors[i])) > 1e-7 {
			t.Fatalf("vectors[%d]=%v want %v", i, got.Vectors[i], idx.Vectors[i])
		}
	}
	for i := 0; i < got.Len(); i++ {
		if math.Abs(got.RowNorm(i)-idx.RowNorm(i)) > 1e-9 {
			t.Fatalf("norm %d mismatch", i)
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	if _, err := Load(prefix); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_OnlyVectorsBlobIsNotFound(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	idx, err := Build(context.Background(), newEncoder(t), scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(prefix, idx); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(IDsPath(prefix)); err != nil {
		t.Fatal(err)
	}

	_, err = Load(prefix)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("missing blob must not be reported as corrupt")
	}
}

func TestLoad_MixedGenerationsIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	enc := newEncoder(t)

	first, err := Build(context.Background(), enc, scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(context.Background(), enc, scenarioCatalog()[:2])
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(a, first); err != nil {
		t.Fatal(err)
	}
	if err := Save(b, second); err != nil {
		t.Fatal(err)
	}
	// Simulate a crash after the vectors rename of a newer generation.
	if err := os.Rename(VectorsPath(b), VectorsPath(a)); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(a); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoad_DamagedBlobIsCorrupt(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	idx, err := Build(context.Background(), newEncoder(t), scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(prefix, idx); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(IDsPath(prefix))
	if err != nil {
		t.Fatal(err)
	}

	// flipped payload byte
	flipped := append([]byte(nil), b...)
	flipped[len(flipped)-12] ^= 0xff
	if err := os.WriteFile(IDsPath(prefix), flipped, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(prefix); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("flipped byte: expected ErrCorruptIndex, got %v", err)
	}

	// truncated
	if err := os.WriteFile(IDsPath(prefix), b[:len(b)/2], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(prefix); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("truncated: expected ErrCorruptIndex, got %v", err)
	}
}

func TestStore_FailedBuildKeepsResident(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	s := NewStore(prefix, newEncoder(t), nil)

	first, err := s.Build(context.Background(), scenarioCatalog())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Build(context.Background(), nil); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if s.Current() != first {
		t.Fatalf("resident index replaced by failed build")
	}

	// Build persisted the first generation; the failed one wrote nothing.
	other := NewStore(prefix, nil, nil)
	loaded, err := other.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if other.Current() != loaded || loaded.Manifest.Generation != first.Manifest.Generation {
		t.Fatalf("loaded generation mismatch")
	}
}

func TestStore_LoadKeepsPublishedIndex(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	enc := newEncoder(t)

	onDisk, err := Build(context.Background(), enc, scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(prefix, onDisk); err != nil {
		t.Fatal(err)
	}
	newer, err := Build(context.Background(), enc, scenarioCatalog())
	if err != nil {
		t.Fatal(err)
	}

	s := NewStore(prefix, enc, nil)
	s.Publish(newer)
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != newer || s.Current() != newer {
		t.Fatalf("load replaced generation %s with %s", newer.Manifest.Generation, s.Current().Manifest.Generation)
	}
}

func TestSave_WithoutIndex(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "assets"), nil); !errors.Is(err, ErrNoResidentIndex) {
		t.Fatalf("expected ErrNoResidentIndex, got %v", err)
	}
}

func TestLock_Exclusive(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "assets")
	release, err := Lock(prefix, 0)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := Lock(prefix, 0); err == nil {
		t.Fatalf("expected second lock to fail while held")
	}
	release()
	release2, err := Lock(prefix, 0)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	release2()
}
