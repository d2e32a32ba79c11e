package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/merxlabs/merx/internal/policy"
	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
)

// Planner turns free-form command text into an ordered tool call plan.
type Planner interface {
	Plan(text string) []tools.Call
}

// StepResult is the outcome of one planned tool call.
type StepResult struct {
	Index  int            `json:"index"`
	Tool   string         `json:"tool"`
	Risk   string         `json:"risk"`
	Status string         `json:"status"`
	Output map[string]any `json:"output"`
	Error  string         `json:"error,omitempty"`
}

// Step status values.
const (
	StepExecuted       = "executed"
	StepBlocked        = "blocked"
	StepError          = "error"
	StepQueuedApproval = "queued_approval"
)

// CommandResponse aggregates one full run.
type CommandResponse struct {
	RunID           int64        `json:"run_id"`
	Status          string       `json:"status"`
	Summary         string       `json:"summary"`
	Steps           []StepResult `json:"steps"`
	ApprovalsQueued int          `json:"approvals_queued"`
}

// Orchestrator sequences a command through planning, policy evaluation
// and execution, persisting every decision and outcome before the next
// step proceeds.
//
// It never fails a run because of step outcomes; the only hard failures
// are persistence errors, which propagate to the caller.
type Orchestrator struct {
	store            *store.Store
	planner          Planner
	evaluator        policy.Evaluator
	executor         *tools.Executor
	approvalsEnabled bool
	logger           *slog.Logger
}

// New creates an orchestrator over the given collaborators.
func New(st *store.Store, pl Planner, ev policy.Evaluator, ex *tools.Executor, approvalsEnabled bool) *Orchestrator {
	return &Orchestrator{
		store:            st,
		planner:          pl,
		evaluator:        ev,
		executor:         ex,
		approvalsEnabled: approvalsEnabled,
		logger:           slog.Default().With("component", "orchestrator"),
	}
}

func (o *Orchestrator) audit(ctx context.Context, runID int64, stepIndex int, eventType, message string, payload map[string]any) error {
	_, err := o.store.AppendAudit(ctx, store.AuditEntry{
		RunID:     &runID,
		StepIndex: stepIndex,
		EventType: eventType,
		Message:   message,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// HandleCommand runs one operator command end to end. Every audit write
// commits before the next step starts, so a crash leaves a consistent
// prefix of the run on disk.
func (o *Orchestrator) HandleCommand(ctx context.Context, text string) (*CommandResponse, error) {
	run, err := o.store.CreateRun(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	calls := o.planner.Plan(text)
	planPayload := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		planPayload = append(planPayload, map[string]any{"name": c.Name, "args": c.Args})
	}
	if err := o.audit(ctx, run.ID, 0, store.AuditEventSystem, "planned", map[string]any{
		"command": text,
		"calls":   planPayload,
	}); err != nil {
		return nil, err
	}
	o.logger.Info("planned", "run_id", run.ID, "steps", len(calls))

	steps := make([]StepResult, 0, len(calls))
	approvalsQueued := 0

	for idx, call := range calls {
		i := idx + 1
		decision := o.evaluator.Evaluate(policy.Input{ToolName: call.Name})

		queued := false
		if decision.Action == policy.ActionNeedsApproval {
			if o.approvalsEnabled {
				queued = true
			} else {
				decision.Action = policy.ActionAllowed
				decision.Reason = decision.Reason + " | approvals_disabled: executed immediately"
			}
		}

		if err := o.audit(ctx, run.ID, i, store.AuditEventStep, "policy", map[string]any{
			"tool": call.Name,
			"args": call.Args,
			"decision": map[string]any{
				"action": string(decision.Action),
				"risk":   string(decision.Risk),
				"reason": decision.Reason,
			},
		}); err != nil {
			return nil, err
		}

		if decision.Action == policy.ActionBlocked {
			steps = append(steps, StepResult{
				Index:  i,
				Tool:   call.Name,
				Risk:   string(decision.Risk),
				Status: StepBlocked,
				Output: map[string]any{"reason": decision.Reason},
			})
			continue
		}

		if queued {
			appr, err := o.store.CreateApproval(ctx, store.Approval{
				RunID:     &run.ID,
				Status:    store.ApprovalPending,
				RiskLevel: string(decision.Risk),
				ToolName:  call.Name,
				ToolArgs:  call.Args,
			})
			if err != nil {
				return nil, fmt.Errorf("queue approval: %w", err)
			}
			if err := o.audit(ctx, run.ID, i, store.AuditEventApproval, "queued", map[string]any{
				"tool":        call.Name,
				"approval_id": appr.ID,
			}); err != nil {
				return nil, err
			}
			approvalsQueued++
			steps = append(steps, StepResult{
				Index:  i,
				Tool:   call.Name,
				Risk:   string(decision.Risk),
				Status: StepQueuedApproval,
				Output: map[string]any{"approval_id": appr.ID, "reason": decision.Reason},
			})
			continue
		}

		out := o.executor.Execute(ctx, call)
		if out.OK() {
			steps = append(steps, StepResult{
				Index:  i,
				Tool:   call.Name,
				Risk:   string(decision.Risk),
				Status: StepExecuted,
				Output: out,
			})
			if err := o.audit(ctx, run.ID, i, store.AuditEventStep, "executed", map[string]any{
				"tool":   call.Name,
				"output": map[string]any(out),
			}); err != nil {
				return nil, err
			}
			continue
		}

		steps = append(steps, StepResult{
			Index:  i,
			Tool:   call.Name,
			Risk:   string(decision.Risk),
			Status: StepError,
			Output: out,
			Error:  out.ErrorMessage(),
		})
		if err := o.audit(ctx, run.ID, i, store.AuditEventStep, "error", map[string]any{
			"tool":   call.Name,
			"output": map[string]any(out),
		}); err != nil {
			return nil, err
		}
	}

	stepDump := make([]map[string]any, 0, len(steps))
	for _, s := range steps {
		stepDump = append(stepDump, map[string]any{
			"index":  s.Index,
			"tool":   s.Tool,
			"risk":   s.Risk,
			"status": s.Status,
			"output": s.Output,
			"error":  s.Error,
		})
	}
	result := map[string]any{
		"steps":              stepDump,
		"approvals_queued":   approvalsQueued,
		"approvals_disabled": !o.approvalsEnabled,
	}
	if err := o.store.CompleteRun(ctx, run.ID, "Completed.", result); err != nil {
		return nil, fmt.Errorf("complete run: %w", err)
	}

	return &CommandResponse{
		RunID:           run.ID,
		Status:          store.RunStatusCompleted,
		Summary:         "Completed.",
		Steps:           steps,
		ApprovalsQueued: approvalsQueued,
	}, nil
}

// ResumeFromApproval is present for external callers but inert while
// approvals do not suspend runs.
func (o *Orchestrator) ResumeFromApproval(_ context.Context, runID, approvalID int64) *CommandResponse {
	o.logger.Warn("resume_from_approval called", "run_id", runID, "approval_id", approvalID)
	return &CommandResponse{
		RunID:           runID,
		Status:          "failed",
		Summary:         "Approvals are disabled; nothing to resume.",
		Steps:           []StepResult{},
		ApprovalsQueued: 0,
	}
}
