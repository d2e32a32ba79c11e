package policy

import "strings"

// Tools that cause external side effects and require approval.
var riskyTools = map[string]struct{}{
	"shopify.publish_product": {},
	"facebook.create_post":    {},
	"facebook.reply_comment":  {},
	"facebook.reply_message":  {},
	"whatsapp.send_reply":     {},
	"local.write_file":        {},
	"local.exec":              {},
}

// The autopilot tool runs without approval regardless of its risk.
var alwaysAllowed = map[string]struct{}{
	"shopify.autopilot_add_product": {},
}

var safePrefixes = []string{
	"status.",
	"research.",
	"content.",
	"supplier.",
	"call_fallback.",
}

var safeTools = map[string]struct{}{
	"facebook.queue_posts_for_approval": {},
}

const localPrefix = "local."

// Evaluator performs pure policy decisions. It is total over every tool
// name in the registry and deterministic given its Config.
type Evaluator struct {
	cfg Config
}

// NewEvaluator builds a deterministic, side-effect free evaluator.
func NewEvaluator(cfg Config) Evaluator {
	return Evaluator{cfg: cfg}
}

// Evaluate returns a deterministic decision for the given input.
func (e Evaluator) Evaluate(input Input) Decision {
	name := strings.TrimSpace(input.ToolName)

	if _, ok := alwaysAllowed[name]; ok {
		return Decision{Action: ActionAllowed, Risk: RiskHigh, Reason: "Shopify autopilot allowed"}
	}

	if _, ok := safeTools[name]; ok {
		return Decision{Action: ActionAllowed, Risk: RiskLow, Reason: "Safe tool"}
	}

	for _, p := range safePrefixes {
		if strings.HasPrefix(name, p) {
			return Decision{Action: ActionAllowed, Risk: RiskLow, Reason: "Safe tool"}
		}
	}

	if strings.HasPrefix(name, localPrefix) {
		if !e.cfg.LocalActionsEnabled {
			return Decision{Action: ActionBlocked, Risk: RiskHigh, Reason: "Local actions disabled"}
		}
		return Decision{Action: ActionNeedsApproval, Risk: RiskHigh, Reason: "Local actions require approval"}
	}

	if _, ok := riskyTools[name]; ok {
		if e.cfg.DryRun {
			return Decision{Action: ActionNeedsApproval, Risk: RiskHigh, Reason: "DRY_RUN: risky action requires approval"}
		}
		return Decision{Action: ActionNeedsApproval, Risk: RiskHigh, Reason: "Risky external action requires approval"}
	}

	return Decision{Action: ActionBlocked, Risk: RiskHigh, Reason: "Unknown tool"}
}
