package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"docrag/config"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list every indexed document")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	if cfg.FolderPath != "" {
		dir = cfg.FolderPath
	}

	dbPath := config.IndexDBPath(dir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No index found. Run 'docrag rebuild' first.")
		return nil
	}

	idx, err := openIndex(dir)
	if err != nil {
		return err
	}
	defer idx.Close()

	docs := idx.Docs()
	fmt.Printf("Index: %s\n", dbPath)
	fmt.Printf("  Documents: %d\n", len(docs))
	fmt.Printf("  Chunks:    %d\n", idx.Count())
	if model := idx.ModelName(); model != "" {
		fmt.Printf("  Model:     %s (dimension %d)\n", model, idx.Dimension())
	}

	if statusVerbose && len(docs) > 0 {
		paths := make([]string, 0, len(docs))
		for p := range docs {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		fmt.Println()
		for _, p := range paths {
			d := docs[p]
			fmt.Printf("  %s  (%d chunks, modified %s)\n", p, d.Chunks, d.ModTime.Format("2006-01-02 15:04"))
		}
	}
	return nil
}
