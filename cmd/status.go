package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	searchindex "github.com/kamusis/upksearch/internal/search/index"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog and index state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	printSection("Catalog")
	records, err := a.cat.ListAll(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.cat.Packages(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printMiss("", fmt.Sprintf("%s is empty — run 'upksearch ingest'", a.cfg.CatalogPath))
	} else {
		printOK("", fmt.Sprintf("%d asset(s) in %d package(s): %s", len(records), len(pkgs), a.cfg.CatalogPath))
	}

	printSection("Index")
	idx, err := searchindex.Load(a.cfg.IndexPrefix)
	switch {
	case errors.Is(err, searchindex.ErrNotFound):
		printMiss("", fmt.Sprintf("no index at %s — run 'upksearch index'", a.cfg.IndexPrefix))
		return nil
	case err != nil:
		printErr("", err.Error())
		return nil
	}
	m := idx.Manifest
	printOK("", fmt.Sprintf("%d vector(s), dim %d, model %s", idx.Len(), m.Dim, m.ModelID))
	printInfo("", fmt.Sprintf("generation %s, built %s", m.Generation, m.CreatedAt))
	if len(records) > 0 && searchindex.CatalogDigest(records) != m.CatalogDigest {
		printWarn("", "index is stale against the catalog — run 'upksearch index'")
	}
	return nil
}
