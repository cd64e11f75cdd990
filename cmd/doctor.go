package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/ingest"
	"github.com/kamusis/upksearch/internal/logging"
	searchindex "github.com/kamusis/upksearch/internal/search/index"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that upksearch's dependencies and environment are correctly configured.
Run this command when something seems wrong, or before filing a bug report.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("upksearch doctor")
	fmt.Println()

	// ── Check 1: config ───────────────────────────────────────────────────────
	fmt.Println("[ upksearch.yaml ]")
	cfg, err := loadConfig()
	if err != nil {
		failD("%v", err)
		return fmt.Errorf("doctor found problems")
	}
	if cfg.Path == "" {
		printInfo("", "no config file found, using defaults")
	} else {
		printOK("", fmt.Sprintf("valid YAML: %s", cfg.Path))
	}
	fmt.Println()

	// ── Check 2: package lister ───────────────────────────────────────────────
	fmt.Println("[ package lister ]")
	x := ingest.Extractor{Binary: cfg.Ingest.DecompilerPath, DataDir: cfg.Ingest.GameDataPath, Encoding: cfg.Ingest.Encoding}
	if err := x.Check(); err != nil {
		failD("%v", err)
	} else if pkgs, err := x.Discover(); err != nil {
		failD("%v", err)
	} else {
		printOK("", fmt.Sprintf("%s, %d package(s) in %s", x.Binary, len(pkgs), x.DataDir))
	}
	fmt.Println()

	// ── Check 3: catalog ──────────────────────────────────────────────────────
	ctx := context.Background()
	fmt.Println("[ catalog ]")
	var records []catalog.Record
	if cat, err := catalog.Open(cfg.CatalogPath); err != nil {
		failD("cannot open %s: %v", cfg.CatalogPath, err)
	} else {
		records, err = cat.ListAll(ctx)
		_ = cat.Close()
		if err != nil {
			failD("cannot read %s: %v", cfg.CatalogPath, err)
		} else if len(records) == 0 {
			failD("%s is empty — run 'upksearch ingest'", cfg.CatalogPath)
		} else {
			printOK("", fmt.Sprintf("%d asset(s)", len(records)))
		}
	}
	fmt.Println()

	// ── Check 4: embedding model ──────────────────────────────────────────────
	fmt.Println("[ embedding model ]")
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	enc, err := newEmbedder(probeCtx, cfg, logging.DiscardLogger())
	cancel()
	if err != nil {
		failD("%v", err)
	} else {
		printOK("", fmt.Sprintf("%s answers, dim %d", enc.ModelID(), enc.Dim()))
	}
	fmt.Println()

	// ── Check 5: index ────────────────────────────────────────────────────────
	fmt.Println("[ index ]")
	if idx, err := searchindex.Load(cfg.IndexPrefix); err != nil {
		failD("%v — run 'upksearch index'", err)
	} else {
		printOK("", fmt.Sprintf("%d vector(s), generation %s", idx.Len(), idx.Manifest.Generation))
		if enc != nil && idx.Manifest.ModelID != enc.ModelID() {
			failD("index was built with %s but the configured model is %s", idx.Manifest.ModelID, enc.ModelID())
		}
		if len(records) > 0 && searchindex.CatalogDigest(records) != idx.Manifest.CatalogDigest {
			printWarn("", "index is stale against the catalog — run 'upksearch index'")
		}
	}

	fmt.Println()
	if !allOK {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Println("✓  all checks passed")
	return nil
}
