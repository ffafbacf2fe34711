package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hireloop/jobrag/internal/agent"
	"github.com/hireloop/jobrag/internal/config"
	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/loader"
)

// parseFilter turns repeated key=value flags into a metadata filter.
func parseFilter(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", p)
		}
		filter[k] = v
	}
	return filter, nil
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index job postings from files or directories",
	Long: `Index job postings from files or directories.

Supported formats: .txt, .md, .json (single posting or array), .pdf.

Examples:
  jobrag index ./postings/
  jobrag index posting.pdf batch.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		var docs []corpus.Document
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			var loaded []corpus.Document
			if info.IsDir() {
				loaded, err = loader.LoadDir(path)
			} else {
				loaded, err = loader.Load(path)
			}
			if err != nil {
				return err
			}
			docs = append(docs, loaded...)
		}
		if len(docs) == 0 {
			printWarning("No postings found under the given paths")
			return nil
		}

		report, err := app.svc.IndexDocuments(cmd.Context(), docs)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d of %d postings", report.Indexed, len(docs))
		for _, id := range report.FailedIDs {
			printWarning("failed: %s", id)
		}
		return nil
	},
}

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question over the indexed postings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		filterPairs, _ := cmd.Flags().GetStringArray("filter")
		filter, err := parseFilter(filterPairs)
		if err != nil {
			return err
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.svc.Query(cmd.Context(), question, filter)
		if err != nil {
			return err
		}

		fmt.Println(out.Answer)
		if !out.Grounded {
			printWarning("No postings indexed; the answer is not grounded in the corpus")
		}
		printStatus("Iterations", "%d", out.Iterations)
		if out.Grounded {
			printStatus("Relevance", "%.2f", out.RelevanceRatio)
			printStatus("Sources", "%s", sourceList(out))
		}
		return nil
	},
}

// --- similar ---

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find chunks most similar to the given text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		k, _ := cmd.Flags().GetInt("limit")
		filterPairs, _ := cmd.Flags().GetStringArray("filter")
		filter, err := parseFilter(filterPairs)
		if err != nil {
			return err
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		results, err := app.svc.RetrieveSimilar(cmd.Context(), text, k, filter)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f, posting: %s]\n",
				colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.VectorScore, r.Chunk.DocumentID)
			excerpt := r.Chunk.Text
			if len(excerpt) > 500 {
				excerpt = excerpt[:500] + "..."
			}
			fmt.Printf("  %s\n", excerpt)
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		st, err := app.svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Documents", "%d", st.DocumentCount)
		printStatus("Chunks", "%d", st.ChunkCount)
		printStatus("Backend", "%s", app.cfg.Index.Backend)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func sourceList(out agent.Outcome) string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range out.Results {
		if !seen[r.Chunk.DocumentID] {
			seen[r.Chunk.DocumentID] = true
			ids = append(ids, r.Chunk.DocumentID)
		}
	}
	return strings.Join(ids, ", ")
}

func init() {
	queryCmd.Flags().StringArray("filter", nil, "metadata filter, key=value (repeatable)")
	similarCmd.Flags().Int("limit", 5, "maximum number of results")
	similarCmd.Flags().StringArray("filter", nil, "metadata filter, key=value (repeatable)")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
