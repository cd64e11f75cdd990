package index

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Load reads the companion blobs under prefix. It returns ErrNotFound when
// either blob is absent and ErrCorruptIndex when both exist but are damaged or
// belong to different generations. It never truncates to the shorter sequence.
func Load(prefix string) (*Index, error) {
	vpath, ipath := VectorsPath(prefix), IDsPath(prefix)
	for _, p := range []string{vpath, ipath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s missing", ErrNotFound, p)
			}
			return nil, fmt.Errorf("cannot stat %s: %w", p, err)
		}
	}

	vm, vpayload, err := readBlob(vpath, vectorsMagic)
	if err != nil {
		return nil, err
	}
	im, ipayload, err := readBlob(ipath, idsMagic)
	if err != nil {
		return nil, err
	}

	if vm.IndexVersion > FormatVersion {
		return nil, fmt.Errorf("%w: format v%d is newer than this build (v%d)", ErrCorruptIndex, vm.IndexVersion, FormatVersion)
	}
	if vm.Generation != im.Generation {
		return nil, fmt.Errorf("%w: vectors generation %s does not match ids generation %s", ErrCorruptIndex, vm.Generation, im.Generation)
	}
	if vm.Count != im.Count || vm.Dim != im.Dim {
		return nil, fmt.Errorf("%w: manifests disagree (count %d/%d, dim %d/%d)", ErrCorruptIndex, vm.Count, im.Count, vm.Dim, im.Dim)
	}
	if vm.Dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dim in manifest: %d", ErrCorruptIndex, vm.Dim)
	}

	if want := vm.Count * vm.Dim * 4; len(vpayload) != want {
		return nil, fmt.Errorf("%w: vector payload size mismatch: got %d want %d (count=%d dim=%d)", ErrCorruptIndex, len(vpayload), want, vm.Count, vm.Dim)
	}
	if want := im.Count * 8; len(ipayload) != want {
		return nil, fmt.Errorf("%w: id payload size mismatch: got %d want %d (count=%d)", ErrCorruptIndex, len(ipayload), want, im.Count)
	}

	vectors := make([]float32, vm.Count*vm.Dim)
	if err := binary.Read(bytes.NewReader(vpayload), binary.LittleEndian, vectors); err != nil {
		return nil, fmt.Errorf("cannot read vectors from %s: %w", vpath, err)
	}
	ids := make([]int64, im.Count)
	if err := binary.Read(bytes.NewReader(ipayload), binary.LittleEndian, ids); err != nil {
		return nil, fmt.Errorf("cannot read ids from %s: %w", ipath, err)
	}

	idx, err := New(vm, ids, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	return idx, nil
}

// readBlob verifies magic and checksum and splits a blob into manifest and payload.
func readBlob(path string, magic [8]byte) (Manifest, []byte, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	const header = len(magic) + 4
	if len(data) < header+8 {
		return m, nil, fmt.Errorf("%w: %s is truncated (%d bytes)", ErrCorruptIndex, path, len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return m, nil, fmt.Errorf("%w: %s has bad magic", ErrCorruptIndex, path)
	}

	body, trailer := data[:len(data)-8], data[len(data)-8:]
	if got, want := xxhash.Sum64(body), binary.LittleEndian.Uint64(trailer); got != want {
		return m, nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorruptIndex, path)
	}

	mlen := int(binary.LittleEndian.Uint32(data[len(magic):header]))
	if header+mlen > len(body) {
		return m, nil, fmt.Errorf("%w: %s manifest overruns file", ErrCorruptIndex, path)
	}
	if err := json.Unmarshal(body[header:header+mlen], &m); err != nil {
		return m, nil, fmt.Errorf("%w: invalid manifest JSON in %s: %w", ErrCorruptIndex, path, err)
	}
	return m, body[header+mlen:], nil
}
