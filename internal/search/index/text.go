package index

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kamusis/upksearch/internal/catalog"
)

// CanonicalText returns the text embedded for a record: the asset type, a space,
// and the asset name with every underscore replaced by a space.
// "StaticMesh", "Fuel_Drum" -> "StaticMesh Fuel Drum".
func CanonicalText(r catalog.Record) string {
	return r.AssetType + " " + strings.ReplaceAll(r.AssetName, "_", " ")
}

// CatalogDigest fingerprints the (id, package, type, name) rows an index was
// built from, so a later catalog rescan that renumbers ids can be detected.
func CatalogDigest(records []catalog.Record) string {
	h := xxhash.New()
	var buf [8]byte
	for _, r := range records {
		binary.LittleEndian.PutUint64(buf[:], uint64(r.ID))
		_, _ = h.Write(buf[:])
		for _, s := range []string{r.Package, r.AssetType, r.AssetName} {
			_, _ = h.WriteString(s)
			_, _ = h.Write([]byte{0})
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
