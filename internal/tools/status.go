package tools

import (
	"context"
	"fmt"
)

func (t *Toolset) statusSummary(ctx context.Context, _ map[string]any) (any, error) {
	pending, err := t.store.CountPendingApprovals(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}
	runs, err := t.store.ListRuns(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}

	recent := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		recent = append(recent, map[string]any{
			"id":         r.ID,
			"created_at": r.CreatedAt,
			"status":     r.Status,
			"summary":    r.Summary,
		})
	}
	return Result{
		"ok":                true,
		"dry_run":           t.cfg.Agent.DryRun,
		"brand":             t.cfg.Agent.BrandName,
		"pending_approvals": pending,
		"recent_runs":       recent,
	}, nil
}
