package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"docrag/internal/server"
)

var (
	servePort    int
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a web chat UI over the indexed documents",
	Long: `Start an HTTP server with a browser chat page. Unless --no-watch is given,
the document folder is watched and the index rebuilt automatically when
files change.

Examples:
  docrag serve               # http://localhost:8080
  docrag serve -p 3000       # custom port`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable automatic rebuild on file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
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
	chat, err := newChat(cfg, idx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !serveNoWatch {
		watcher := server.NewWatcher(ingestor, dir, cfg.IgnoreDirs)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "watcher stopped: %v\n", err)
			}
		}()
	}

	addr := fmt.Sprintf(":%d", servePort)
	fmt.Printf("Serving %s on http://localhost%s\n", dir, addr)
	return server.New(chat, ingestor, dir).Run(ctx, addr)
}
