package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var rebuildFull bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Synchronize the index with the document folder",
	Long: `Scan the folder and bring the index up to date: new and modified documents
are re-embedded, deleted documents are removed. Unchanged documents are
skipped unless --full is given.

Examples:
  docrag rebuild           # Incremental sync
  docrag rebuild --full    # Re-embed everything from scratch`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().BoolVar(&rebuildFull, "full", false, "rebuild the whole index, ignoring change detection")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	if cfg.FolderPath != "" {
		dir = cfg.FolderPath
	}

	idx, err := openIndex(dir)
	if err != nil {
		return err
	}
	defer idx.Close()

	ingestor, err := newIngestor(cfg, idx)
	if err != nil {
		return err
	}

	// Ctrl-C aborts the rebuild; the previously persisted index survives.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Scanning %s...\n", dir)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progress := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(processed)
	}

	result, err := ingestor.Rebuild(ctx, dir, rebuildFull, progress)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	printRebuildResult(result, dir)
	return nil
}

func printRebuildResult(result *usecase.Result, dir string) {
	fmt.Printf("\nRebuild complete:\n")
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Printf("  Files removed:  %d\n", result.FilesRemoved)
	fmt.Printf("  Chunks created: %d\n", result.ChunksCreated)

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}
