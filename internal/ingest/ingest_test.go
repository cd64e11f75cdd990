package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/kamusis/upksearch/internal/catalog"
)

const sampleListing = `Loading package Props.upk
   0    00001F3A    00000400 Package Props
   1    00002000    000010A0 StaticMesh Fuel_Drum
   2    000030A0    00000200 RB_BodySetup B_Fuel_Drum
   3    000032A0    00008000 Texture2D Blue_Barrel_Diffuse
   4    0000B2A0    00000300 MaterialInstanceConstant MI_Rust
not an export row
`

func TestParseListing(t *testing.T) {
	got, err := ParseListing("Props.upk", strings.NewReader(sampleListing), DefaultAllowedTypes)
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, catalog.Record{
		Package:   "Props.upk",
		AssetType: "StaticMesh",
		AssetName: "Fuel_Drum",
		RawLine:   "1    00002000    000010A0 StaticMesh Fuel_Drum",
	}, got[0])
	require.Equal(t, "Texture2D", got[1].AssetType)
	require.Equal(t, "MI_Rust", got[2].AssetName)
}

func TestParseListing_AllowList(t *testing.T) {
	got, err := ParseListing("Props.upk", strings.NewReader(sampleListing), []string{"RB_BodySetup"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "B_Fuel_Drum", got[0].AssetName)
}

func TestDecoder(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("   1    00002000    000010A0 StaticMesh 油桶")
	require.NoError(t, err)

	dec, err := Decoder("GBK")
	require.NoError(t, err)
	out, err := dec.String(gbk)
	require.NoError(t, err)
	require.Contains(t, out, "油桶")

	dec, err = Decoder("utf-8")
	require.NoError(t, err)
	out, err = dec.String("ok \xff")
	require.NoError(t, err)
	require.Equal(t, "ok �", out)

	_, err = Decoder("ebcdic")
	require.Error(t, err)
}

type fakeLister struct {
	pkgs    []string
	outputs map[string]string
}

func (f fakeLister) Discover() ([]string, error) { return f.pkgs, nil }

func (f fakeLister) List(_ context.Context, pkg string) (io.Reader, error) {
	out, ok := f.outputs[pkg]
	if !ok {
		return nil, errors.New("lister crashed")
	}
	return strings.NewReader(out), nil
}

type memSink struct {
	got   []catalog.Record
	calls int
}

func (s *memSink) ReplaceAll(_ context.Context, records []catalog.Record) ([]catalog.Record, error) {
	s.calls++
	s.got = make([]catalog.Record, len(records))
	for i, r := range records {
		r.ID = int64(i + 1)
		s.got[i] = r
	}
	return s.got, nil
}

func TestRun_SkipsFailingPackages(t *testing.T) {
	lister := fakeLister{
		pkgs: []string{"Broken.upk", "Props.upk", "Rail.upk"},
		outputs: map[string]string{
			"Props.upk": sampleListing,
			"Rail.upk":  "   7    00000010    00000020 StaticMesh Rail_Track\n",
		},
	}
	sink := &memSink{}

	rep, err := Run(context.Background(), lister, sink, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, rep.Packages)
	require.Equal(t, []string{"Broken.upk"}, rep.Failed)
	require.Len(t, rep.Records, 4)
	require.Equal(t, 1, sink.calls)
	require.Equal(t, "Rail.upk", rep.Records[3].Package)
	require.Equal(t, int64(4), rep.Records[3].ID)
}

func TestRun_NothingExtractedLeavesCatalog(t *testing.T) {
	sink := &memSink{}
	_, err := Run(context.Background(), fakeLister{pkgs: []string{"Broken.upk"}}, sink, Options{})
	require.ErrorIs(t, err, ErrNothingExtracted)
	require.Zero(t, sink.calls)
}

func TestExtractor_DiscoverAndList(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the lister")
	}
	dir := t.TempDir()
	for _, name := range []string{"b.upk", "a.UPK", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.upk"), 0o755))

	bin := filepath.Join(t.TempDir(), "umodel")
	script := "#!/bin/sh\necho \"   1    00002000    000010A0 StaticMesh $3\"\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	x := Extractor{Binary: bin, DataDir: dir, Encoding: "utf-8"}
	require.NoError(t, x.Check())

	pkgs, err := x.Discover()
	require.NoError(t, err)
	require.Equal(t, []string{"a.UPK", "b.upk"}, pkgs)

	out, err := x.List(context.Background(), "b.upk")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = io.Copy(&buf, out)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "StaticMesh b.upk")
}

func TestExtractor_MissingBinary(t *testing.T) {
	x := Extractor{Binary: filepath.Join(t.TempDir(), "nope"), DataDir: t.TempDir()}
	require.ErrorIs(t, x.Check(), ErrListerNotFound)
}
