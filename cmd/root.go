package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "upksearch",
	Short:        "upksearch — semantic search over Unreal package asset catalogs",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `upksearch catalogs the exports of Unreal .upk packages and finds assets by
meaning: "blue barrel" finds Texture2D Blue_Barrel_Diffuse even when the words
are not an exact match, in English or Chinese.`,
}

var flagConfig string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to upksearch.yaml (default ./upksearch.yaml)")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
