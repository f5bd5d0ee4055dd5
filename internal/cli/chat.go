package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the indexed documents",
	Long: `Open a terminal chat session. Answers are grounded in the indexed
documents; questions the documents cannot answer get "I don't know".`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	if idx.Count() == 0 {
		return fmt.Errorf("index is empty, run 'docrag rebuild' first")
	}

	chat, err := newChat(cfg, idx)
	if err != nil {
		return err
	}

	return tui.Run(chat, dir)
}
