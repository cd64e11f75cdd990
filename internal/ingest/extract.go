package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/transform"
)

// ErrListerNotFound means the configured lister binary does not exist.
var ErrListerNotFound = errors.New("package lister not found")

// Lister lists the exports of one package.
type Lister interface {
	Discover() ([]string, error)
	List(ctx context.Context, pkg string) (io.Reader, error)
}

// Extractor runs an external package lister (umodel) over a game data
// directory.
type Extractor struct {
	Binary   string
	DataDir  string
	Encoding string
}

// Check verifies the lister binary and data directory exist.
func (x Extractor) Check() error {
	if _, err := exec.LookPath(x.Binary); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListerNotFound, x.Binary, err)
	}
	info, err := os.Stat(x.DataDir)
	if err != nil {
		return fmt.Errorf("game data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("game data path is not a directory: %s", x.DataDir)
	}
	if _, err := Decoder(x.Encoding); err != nil {
		return err
	}
	return nil
}

// Discover returns the package file names in the data directory, sorted.
func (x Extractor) Discover() ([]string, error) {
	entries, err := os.ReadDir(x.DataDir)
	if err != nil {
		return nil, fmt.Errorf("read game data directory: %w", err)
	}
	var pkgs []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".upk") {
			continue
		}
		pkgs = append(pkgs, e.Name())
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// List runs the lister on pkg and returns its decoded standard output. A
// non-zero exit is only an error when nothing was printed.
func (x Extractor) List(ctx context.Context, pkg string) (io.Reader, error) {
	dec, err := Decoder(x.Encoding)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, x.Binary, "-path="+x.DataDir, "-list", pkg)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil && stdout.Len() == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("list %s: %w: %s", pkg, err, strings.TrimSpace(stderr.String()))
	}
	return transform.NewReader(&stdout, dec), nil
}
