// Package ingest scans game packages with an external lister and turns its
// output into catalog records.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kamusis/upksearch/internal/catalog"
)

// DefaultAllowedTypes are the asset types kept when none are configured.
var DefaultAllowedTypes = []string{"StaticMesh", "Material", "MaterialInstanceConstant", "Texture2D"}

// listingLine matches one export row of the lister: ordinal, offset and size
// columns, then the asset type and name.
var listingLine = regexp.MustCompile(`\s+\d+\s+[0-9A-F]+\s+[0-9A-F]+\s+([a-zA-Z0-9_]+)\s+([a-zA-Z0-9_]+)`)

// ParseListing extracts records of the allowed types from one package's
// listing. Lines that do not look like export rows are ignored. The returned
// records have no ID yet.
func ParseListing(pkg string, r io.Reader, allowed []string) ([]catalog.Record, error) {
	allow := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allow[t] = struct{}{}
	}

	var out []catalog.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		m := listingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, ok := allow[m[1]]; !ok {
			continue
		}
		out = append(out, catalog.Record{
			Package:   pkg,
			AssetType: m[1],
			AssetName: m[2],
			RawLine:   strings.TrimSpace(line),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read listing of %s: %w", pkg, err)
	}
	return out, nil
}
