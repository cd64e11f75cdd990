package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kamusis/upksearch/internal/config"
)

var (
	flagInitGameData   string
	flagInitDecompiler string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default upksearch.yaml and .env template",
	Long: `Create upksearch.yaml (at --config, or in the current directory) with the
default settings, a commented .env template next to it, and the index
directory. Existing files are left alone.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&flagInitGameData, "game-data", "", "Directory holding the .upk packages")
	initCmd.Flags().StringVar(&flagInitDecompiler, "decompiler", "", "Path to the umodel binary")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.DefaultConfigFile
	}
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	// ── 1. Write upksearch.yaml if missing ────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if flagInitGameData != "" {
			cfg.Ingest.GameDataPath = flagInitGameData
		}
		if flagInitDecompiler != "" {
			cfg.Ingest.DecompilerPath = flagInitDecompiler
		}
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 2. .env template for provider secrets ─────────────────────────────────
	envPath := filepath.Join(dir, ".env")
	existed := fileExists(envPath)
	if err := config.EnsureDotEnvTemplate(envPath); err != nil {
		return err
	}
	if existed {
		printSkip("", fmt.Sprintf(".env already exists: %s", envPath))
	} else {
		printOK("", fmt.Sprintf(".env template written: %s", envPath))
	}

	// ── 3. Index directory ────────────────────────────────────────────────────
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	indexDir := filepath.Dir(cfg.IndexPrefix)
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("cannot create index directory %s: %w", indexDir, err)
	}
	printOK("", fmt.Sprintf("Index directory ready: %s", indexDir))

	fmt.Println("\n✓  upksearch init complete. Run 'upksearch doctor' to verify your environment.")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
