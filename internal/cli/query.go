package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the most relevant chunks for a question",
	Long: `Embed the question and print the nearest indexed chunks with their source
documents and distances, without calling the chat model.

Examples:
  docrag query -q "how do I deploy"
  docrag query -q "backup schedule" -k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to search for (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	Path     string  `json:"path"`
	Seq      int     `json:"seq"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	if cfg.FolderPath != "" {
		dir = cfg.FolderPath
	}

	idx, err := openExistingIndex(dir)
	if err != nil {
		return err
	}
	defer idx.Close()

	retriever, err := newRetriever(cfg, idx)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	matches, err := retriever.Retrieve(context.Background(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]queryResult, len(matches))
	for i, m := range matches {
		results[i] = queryResult{
			Path:     m.Chunk.DocPath,
			Seq:      m.Chunk.Seq,
			Distance: m.Distance,
			Text:     m.Chunk.Text,
		}
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s#%d (distance: %.4f) ---\n", i+1, r.Path, r.Seq, r.Distance)
		fmt.Println(truncate(r.Text, 500))
		fmt.Println()
	}
	return nil
}

// truncate shortens display text to at most n characters, cutting on a rune
// boundary so multi-byte text is never split mid-sequence.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
