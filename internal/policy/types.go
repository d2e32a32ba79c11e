package policy

// Action is the policy decision for a tool execution request.
type Action string

const (
	ActionAllowed       Action = "allowed"
	ActionNeedsApproval Action = "needs_approval"
	ActionBlocked       Action = "blocked"
)

// Risk classifies the blast radius of a tool.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Config contains the settings read by the evaluator.
type Config struct {
	LocalActionsEnabled bool
	DryRun              bool
}

// Input is the minimum evaluation context.
type Input struct {
	ToolName string
}

// Decision is the deterministic policy result.
type Decision struct {
	Action Action
	Risk   Risk
	Reason string
}
