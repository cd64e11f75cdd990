package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the semantic index from the catalog",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return rebuildIndex(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func rebuildIndex(ctx context.Context, a *app) error {
	printInfo("", fmt.Sprintf("building semantic index using %s", a.enc.ModelID()))
	idx, err := a.engine.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}
	printOK("", fmt.Sprintf("%d vector(s), dim %d, generation %s", idx.Len(), idx.Dim(), idx.Manifest.Generation))
	printOK("", fmt.Sprintf("semantic index written: %s", a.cfg.IndexPrefix))
	return nil
}
