package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/merxlabs/merx/internal/approval"
	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/store"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalApproveCmd(),
		newApprovalRejectCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent approval requests",
		RunE:  runApprovalList,
	}
}

func newApprovalApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve an approval request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	cmd.Flags().String("note", "", "Decision note")
	return cmd
}

func newApprovalRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an approval request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalReject,
	}
	cmd.Flags().String("note", "", "Decision note")
	return cmd
}

func loadApprovalService() (*approval.Service, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return approval.NewService(st), st, nil
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	svc, st, err := loadApprovalService()
	if err != nil {
		return err
	}
	defer st.Close()

	requests, err := svc.List(cmd.Context(), 50)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("No approvals.")
		return nil
	}

	for _, req := range requests {
		fmt.Printf("%d %s %s %s\n", req.ID, req.ToolName, req.RiskLevel, req.Status)
	}
	return nil
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], true)
}

func runApprovalReject(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], false)
}

func runApprovalDecision(cmd *cobra.Command, rawID string, approve bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("approval id must be an integer: %s", rawID)
	}

	svc, st, err := loadApprovalService()
	if err != nil {
		return err
	}
	defer st.Close()

	note, _ := cmd.Flags().GetString("note")
	decision := approval.DecisionInput{Note: note}

	var decided *store.Approval
	if approve {
		decided, err = svc.Approve(cmd.Context(), id, decision)
	} else {
		decided, err = svc.Reject(cmd.Context(), id, decision)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Approval %d is now %s.\n", decided.ID, decided.Status)
	return nil
}
