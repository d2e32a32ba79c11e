package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/llm"
	"github.com/merxlabs/merx/internal/orchestrator"
	"github.com/merxlabs/merx/internal/planner"
	"github.com/merxlabs/merx/internal/policy"
	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
)

func NewCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command [text]",
		Short: "Run one agent command and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCommand,
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("command text is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	gen := llm.NewGenerator(ctx, cfg)
	toolset := tools.NewToolset(cfg, st, gen)
	registry := tools.NewRegistry()
	if err := toolset.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	evaluator := policy.NewEvaluator(policy.Config{
		LocalActionsEnabled: cfg.Local.ActionsEnabled,
		DryRun:              cfg.Agent.DryRun,
	})
	orch := orchestrator.New(st, planner.New(), evaluator, tools.NewExecutor(registry), cfg.Agent.ApprovalsEnabled)

	resp, err := orch.HandleCommand(ctx, text)
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
