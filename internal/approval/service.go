package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/merxlabs/merx/internal/store"
)

// Service orchestrates approval lifecycle operations over the store.
type Service struct {
	store *store.Store
}

// NewService creates a service backed by the shared database.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// CreateInput contains fields needed to create an approval request.
type CreateInput struct {
	RunID     *int64
	ToolName  string
	ToolArgs  map[string]any
	RiskLevel string
}

// DecisionInput contains fields needed to approve or reject a request.
type DecisionInput struct {
	Note string
}

// Create inserts a new pending approval request.
func (s *Service) Create(ctx context.Context, input CreateInput) (*store.Approval, error) {
	toolName := strings.TrimSpace(input.ToolName)
	if toolName == "" {
		return nil, fmt.Errorf("tool_name is required")
	}
	risk := strings.TrimSpace(input.RiskLevel)
	if risk == "" {
		risk = "high"
	}

	return s.store.CreateApproval(ctx, store.Approval{
		RunID:     input.RunID,
		Status:    store.ApprovalPending,
		RiskLevel: risk,
		ToolName:  toolName,
		ToolArgs:  input.ToolArgs,
	})
}

// Approve marks a pending request as approved.
func (s *Service) Approve(ctx context.Context, id int64, decision DecisionInput) (*store.Approval, error) {
	return s.decide(ctx, id, store.ApprovalApproved, decision, "approved")
}

// Reject marks a pending request as rejected.
func (s *Service) Reject(ctx context.Context, id int64, decision DecisionInput) (*store.Approval, error) {
	return s.decide(ctx, id, store.ApprovalRejected, decision, "rejected")
}

// Get returns one approval by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.Approval, error) {
	return s.store.GetApproval(ctx, id)
}

// List returns recent approval requests, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*store.Approval, error) {
	return s.store.ListApprovals(ctx, limit)
}

// CountPending returns the number of pending requests.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.store.CountPendingApprovals(ctx)
}

func (s *Service) decide(ctx context.Context, id int64, status string, decision DecisionInput, defaultNote string) (*store.Approval, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id is required")
	}

	existing, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != store.ApprovalPending {
		return nil, fmt.Errorf("approval %d is not pending", id)
	}

	note := strings.TrimSpace(decision.Note)
	if note == "" {
		note = defaultNote
	}
	return s.store.DecideApproval(ctx, id, status, note)
}
