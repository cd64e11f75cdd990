package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio"
)

// FormatVersion is the blob layout version written into every manifest.
const FormatVersion = 1

var (
	vectorsMagic = [8]byte{'U', 'P', 'K', 'V', 'E', 'C', '0', '1'}
	idsMagic     = [8]byte{'U', 'P', 'K', 'I', 'D', 'S', '0', '1'}
)

// VectorsPath is the vectors blob for prefix.
func VectorsPath(prefix string) string { return prefix + "_vectors.bin" }

// IDsPath is the ids blob for prefix.
func IDsPath(prefix string) string { return prefix + "_ids.bin" }

// Save writes idx as two companion blobs under prefix.
//
// Blob layout: 8-byte magic, uint32 manifest length, manifest JSON, payload
// (little-endian float32 rows or int64 ids), then an xxhash64 of every
// preceding byte. Each blob replaces its predecessor by rename, so a reader
// sees either the old or the new file, never a partial one. Both blobs carry
// the same generation, which lets Load reject a pair left behind by a crash
// between the two renames.
func Save(prefix string, idx *Index) error {
	if idx == nil {
		return ErrNoResidentIndex
	}
	m := idx.Manifest
	if m.Dim <= 0 {
		return fmt.Errorf("invalid dim: %d", m.Dim)
	}
	if len(idx.IDs) == 0 {
		return fmt.Errorf("no entries to write")
	}
	if len(idx.Vectors) != len(idx.IDs)*m.Dim {
		return fmt.Errorf("vector length mismatch: got %d want %d", len(idx.Vectors), len(idx.IDs)*m.Dim)
	}
	m.Count = len(idx.IDs)
	if m.IndexVersion == 0 {
		m.IndexVersion = FormatVersion
	}

	if err := os.MkdirAll(filepath.Dir(VectorsPath(prefix)), 0o755); err != nil {
		return fmt.Errorf("cannot create index dir for %s: %w", prefix, err)
	}

	// vectors
	if err := writeBlob(VectorsPath(prefix), vectorsMagic, m, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, idx.Vectors)
	}); err != nil {
		return fmt.Errorf("cannot write vectors: %w", err)
	}

	// ids
	if err := writeBlob(IDsPath(prefix), idsMagic, m, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, idx.IDs)
	}); err != nil {
		return fmt.Errorf("cannot write ids: %w", err)
	}
	return nil
}

func writeBlob(path string, magic [8]byte, m Manifest, payload func(io.Writer) error) error {
	mb, err := json.Marshal(m)
	if err != nil {
		return err
	}

	pf, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer func() { _ = pf.Cleanup() }()

	h := xxhash.New()
	bw := bufio.NewWriter(io.MultiWriter(pf, h))
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(mb))); err != nil {
		return err
	}
	if _, err := bw.Write(mb); err != nil {
		return err
	}
	if err := payload(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := binary.Write(pf, binary.LittleEndian, h.Sum64()); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
