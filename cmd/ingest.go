package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/upksearch/internal/ingest"
)

var flagIngestIndex bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan game packages into the asset catalog",
	Long: `Run the package lister over every .upk in the game data directory and
replace the catalog with the exports found.

Catalog ids are reassigned on every scan, so the index is rebuilt afterwards
unless --index=false is given.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&flagIngestIndex, "index", true, "Rebuild the search index after the scan")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	x := ingest.Extractor{
		Binary:   a.cfg.Ingest.DecompilerPath,
		DataDir:  a.cfg.Ingest.GameDataPath,
		Encoding: a.cfg.Ingest.Encoding,
	}
	if err := x.Check(); err != nil {
		return err
	}

	printSection("upksearch ingest")
	rep, err := ingest.Run(ctx, x, a.cat, ingest.Options{
		AllowedTypes:   a.cfg.Ingest.AllowedTypes,
		PackageTimeout: a.cfg.Ingest.Timeout,
		Logger:         a.log,
	})
	for _, pkg := range rep.Failed {
		printWarn(pkg, "scan failed, skipped")
	}
	if errors.Is(err, ingest.ErrNothingExtracted) {
		return fmt.Errorf("%w from %d package(s); catalog left unchanged", err, rep.Packages)
	}
	if err != nil {
		return err
	}
	printOK("", fmt.Sprintf("%d asset(s) from %d package(s) written to %s", len(rep.Records), rep.Packages, a.cfg.CatalogPath))

	if !flagIngestIndex {
		printInfo("", "index not rebuilt; run 'upksearch index' before searching")
		return nil
	}
	if err := a.initEngine(ctx); err != nil {
		return err
	}
	return rebuildIndex(ctx, a)
}
