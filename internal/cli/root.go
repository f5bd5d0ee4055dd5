package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docrag/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Chat with your documents - local RAG over a folder of files",
	Long: `docrag indexes a folder of text, markdown, and PDF documents into a local
vector index and answers questions about them, grounded strictly in the
indexed content.

Example usage:
  docrag init ~/notes              # Create config and build the index
  docrag rebuild                   # Sync the index with the folder
  docrag query -q "deploy steps"   # Retrieve relevant chunks
  docrag chat                      # Interactive chat over the documents
  docrag serve                     # Web UI with auto-rebuild on changes`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a .env next to where the tool runs.
		_ = godotenv.Load()

		if cmd.Name() == "init" {
			return nil
		}

		var err error
		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("invalid directory: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config (run 'docrag init' first?): %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/rag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "document folder (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
