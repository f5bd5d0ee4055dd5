package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docrag/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a folder for document chat",
	Long: `Write a default rag.yaml into the folder and build the initial index.

Examples:
  docrag init .            # Initialize current directory
  docrag init ~/notes      # Initialize a specific folder`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing rag.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	folder := "."
	if len(args) > 0 {
		folder = args[0]
	}
	folder, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("folder does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", folder)
	}

	cfgPath := filepath.Join(folder, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	freshCfg := config.DefaultConfig(folder)
	if err := freshCfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", cfgPath)

	// Adopt the new config and build the first index.
	cfg = freshCfg
	rootDir = folder
	rebuildFull = true
	return runRebuild(cmd, nil)
}
