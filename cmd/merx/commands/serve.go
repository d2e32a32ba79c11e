package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/merxlabs/merx/internal/approval"
	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/gateway"
	"github.com/merxlabs/merx/internal/llm"
	"github.com/merxlabs/merx/internal/orchestrator"
	"github.com/merxlabs/merx/internal/planner"
	"github.com/merxlabs/merx/internal/policy"
	"github.com/merxlabs/merx/internal/scheduler"
	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Merx agent server",
		RunE:  runServer,
	}
}

// commandSubmitter adapts the orchestrator to the scheduler's runner
// contract; scheduled jobs only care that the command was accepted.
type commandSubmitter struct {
	orch *orchestrator.Orchestrator
}

func (c commandSubmitter) HandleCommand(ctx context.Context, text string) error {
	_, err := c.orch.HandleCommand(ctx, text)
	return err
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	gen := llm.NewGenerator(ctx, cfg)
	toolset := tools.NewToolset(cfg, st, gen)
	registry := tools.NewRegistry()
	if err := toolset.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	executor := tools.NewExecutor(registry)

	evaluator := policy.NewEvaluator(policy.Config{
		LocalActionsEnabled: cfg.Local.ActionsEnabled,
		DryRun:              cfg.Agent.DryRun,
	})
	orch := orchestrator.New(st, planner.New(), evaluator, executor, cfg.Agent.ApprovalsEnabled)
	approvals := approval.NewService(st)

	sched := scheduler.NewService(cfg.Schedules, commandSubmitter{orch: orch}, st)
	sched.Start()

	gatewayServer := gateway.New(cfg.Gateway, gateway.Deps{
		Cfg:       cfg,
		Store:     st,
		Commands:  orch,
		Approvals: approvals,
		Gen:       gen,
		Executor:  executor,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Merx server running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	sched.Stop()
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
