package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/store"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Merx configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("=== Merx Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'merx init')")
	}

	fmt.Printf("\nBrand: %s\n", cfg.Agent.BrandName)
	fmt.Printf("Dry run: %v\n", cfg.Agent.DryRun)
	fmt.Printf("Approvals: %v\n", cfg.Agent.ApprovalsEnabled)
	fmt.Printf("Local actions: %v\n", cfg.Local.ActionsEnabled)

	fmt.Println("\nProviders:")
	providers := map[string]string{
		"OpenAI": cfg.Providers.OpenAI.APIKey,
		"Ollama": cfg.Providers.Ollama.BaseURL,
	}
	for name, key := range providers {
		status := "Not configured"
		if key != "" {
			status = "Configured"
		}
		fmt.Printf("  %s: %s\n", name, status)
	}

	fmt.Println("\nChannels:")
	channels := map[string]string{
		"Shopify":  cfg.Shopify.AccessToken,
		"Facebook": cfg.Facebook.AccessToken,
		"WhatsApp": cfg.WhatsApp.AccessToken,
	}
	for name, key := range channels {
		status := "Not configured"
		if key != "" {
			status = "Configured"
		}
		fmt.Printf("  %s: %s\n", name, status)
	}

	fmt.Println("\nGateway:")
	fmt.Printf("  Address: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token != "" {
		fmt.Println("  Auth:    token configured")
	} else {
		fmt.Println("  Auth:    no token (open)")
	}

	fmt.Println("\nSchedules:")
	enabled := 0
	for _, job := range cfg.Schedules {
		if job.Enabled {
			enabled++
		}
	}
	fmt.Printf("  Jobs: %d total, %d enabled\n", len(cfg.Schedules), enabled)
	for _, job := range cfg.Schedules {
		state := "disabled"
		if job.Enabled {
			state = "enabled"
		}
		fmt.Printf("    - %s (%s, %s)\n", job.Name, job.Expr, state)
	}

	fmt.Println("\nStore:")
	fmt.Printf("  Path: %s\n", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Println("  Status: unavailable")
		return nil
	}
	defer st.Close()
	ctx := cmd.Context()
	pending, err := st.CountPendingApprovals(ctx)
	if err == nil {
		fmt.Printf("  Pending approvals: %d\n", pending)
	}
	runs, err := st.ListRuns(ctx, 5)
	if err == nil {
		fmt.Printf("  Recent runs: %d\n", len(runs))
		for _, r := range runs {
			fmt.Printf("    - #%d [%s] %s\n", r.ID, r.Status, r.CommandText)
		}
	}

	return nil
}
