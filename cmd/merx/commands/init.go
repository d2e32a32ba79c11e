package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/merxlabs/merx/internal/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Merx configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		filepath.Dir(cfg.Store.Path),
		cfg.Local.Workspace,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Merx initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Store: %s\n", cfg.Store.Path)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add your provider credentials\n", configPath)
	fmt.Printf("2. Run 'merx serve' to start the agent, or 'merx command \"Show me system status\"'\n")

	return nil
}
