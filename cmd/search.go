package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/upksearch/internal/search"
)

var (
	flagSearchPkg      string
	flagSearchType     string
	flagSearchK        int
	flagSearchMinScore float64
	flagSearchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find assets by meaning",
	Long: `Embed the query and rank every indexed asset by cosine similarity.

Results can number fewer than -k for two reasons. Candidates scoring below
search.min_score (0.30 by default) are dropped, and --pkg and --type filter
the ranked candidates after the fact. Pass --min-score -1 to keep every
candidate regardless of score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchPkg, "pkg", "", "Only return assets from this package (exact match)")
	searchCmd.Flags().StringVar(&flagSearchType, "type", "", "Only return assets of this type (exact match, e.g. StaticMesh)")
	searchCmd.Flags().IntVarP(&flagSearchK, "top-k", "k", 0, "Number of results to show (default search.default_top_k)")
	searchCmd.Flags().Float64Var(&flagSearchMinScore, "min-score", 0, "Minimum cosine similarity score to include (default search.min_score)")
	searchCmd.Flags().BoolVar(&flagSearchJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	q := search.Query{
		Text:    strings.Join(args, " "),
		Package: flagSearchPkg,
		Type:    flagSearchType,
		TopK:    a.cfg.Search.DefaultTopK,
	}
	if cmd.Flags().Changed("top-k") {
		q.TopK = flagSearchK
	}
	if cmd.Flags().Changed("min-score") {
		q.MinScore = &flagSearchMinScore
	}

	results, err := a.engine.Search(ctx, q)
	if errors.Is(err, search.ErrIndexUnavailable) {
		return fmt.Errorf("%w\nRun 'upksearch index' to build it.", err)
	}
	if err != nil {
		return err
	}

	if flagSearchJSON {
		return writeResultsJSON(os.Stdout, results)
	}
	printSearchResults(os.Stdout, q, results)
	return nil
}

func writeResultsJSON(w io.Writer, results []search.Result) error {
	if results == nil {
		results = []search.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func printSearchResults(w io.Writer, q search.Query, results []search.Result) {
	fmt.Fprintf(w, "\nupksearch search %q\n\n", q.Text)
	fmt.Fprintf(w, "Results (%d found):\n", len(results))
	if len(results) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range results {
		fmt.Fprintf(tw, "  %d.\t[%.3f]\t%s\t%s\t%s\n", i+1, r.Score, r.AssetType, r.AssetName, r.Package)
	}
	_ = tw.Flush()
}
