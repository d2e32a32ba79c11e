package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/merxlabs/merx/internal/approval"
	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/llm"
	"github.com/merxlabs/merx/internal/orchestrator"
	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
	"github.com/merxlabs/merx/internal/version"
)

// CommandHandler is the orchestration entry point the gateway relays to.
type CommandHandler interface {
	HandleCommand(ctx context.Context, text string) (*orchestrator.CommandResponse, error)
	ResumeFromApproval(ctx context.Context, runID, approvalID int64) *orchestrator.CommandResponse
}

// Deps are the collaborators the gateway routes to.
type Deps struct {
	Cfg       *config.Config
	Store     *store.Store
	Commands  CommandHandler
	Approvals *approval.Service
	Gen       *llm.Generator
	Executor  *tools.Executor
}

// NewHandler builds the gateway route table.
func NewHandler(cfg config.GatewayConfig, deps Deps) http.Handler {
	h := &handler{token: cfg.Token, deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/version", h.version)
	mux.HandleFunc("/api/command", h.requireAuth(h.command))
	mux.HandleFunc("/api/runs", h.requireAuth(h.listRuns))
	mux.HandleFunc("/api/run/shopify", h.requireAuth(h.runShopify))
	mux.HandleFunc("/api/run/inbox", h.requireAuth(h.runInbox))
	mux.HandleFunc("/api/logs", h.requireAuth(h.listLogs))
	mux.HandleFunc("/api/status", h.requireAuth(h.status))
	mux.HandleFunc("/api/status/summary", h.requireAuth(h.statusSummary))
	mux.HandleFunc("/api/approvals", h.requireAuth(h.listApprovals))
	mux.HandleFunc("/api/approvals/", h.requireAuth(h.decideApproval))
	mux.HandleFunc("/webhooks/facebook", h.facebookWebhook)
	mux.HandleFunc("/webhooks/whatsapp", h.whatsappWebhook)
	return mux
}

type handler struct {
	token string
	deps  Deps
}

func (h *handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(h.token) != "" && !isAuthorized(r, h.token) {
			writeError(w, getRequestID(r), http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"request_id": requestID,
	})
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    version.Version,
		"request_id": requestID,
	})
}

func (h *handler) command(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "text is required")
		return
	}

	resp, err := h.deps.Commands.HandleCommand(r.Context(), text)
	if err != nil {
		slog.Error("gateway command failed", "request_id", requestID, "error", err)
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process command")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	limit := queryInt(r, "limit", 20)

	runs, err := h.deps.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "request_id": requestID})
}

func (h *handler) runShopify(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req struct {
		Action    string `json:"action"`
		ProductID int64  `json:"product_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	var text string
	switch req.Action {
	case "analyze_pricing":
		text = "Analyze product and propose best price"
	case "publish":
		id := req.ProductID
		if id == 0 {
			id = 123
		}
		text = "Publish product " + strconv.FormatInt(id, 10)
	default:
		text = "Add a winning product and prepare it to sell"
	}

	resp, err := h.deps.Commands.HandleCommand(r.Context(), text)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process command")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) runInbox(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	text := "Show me system status"
	if req.Action == "" || req.Action == "triage" {
		text = "Triage inbox"
	}

	resp, err := h.deps.Commands.HandleCommand(r.Context(), text)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process command")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listLogs(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	filter := store.AuditFilter{Limit: queryInt(r, "limit", 50)}
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "run_id must be an integer")
			return
		}
		filter.RunID = &id
	}

	logs, err := h.deps.Store.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "request_id": requestID})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	cfg := h.deps.Cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                    true,
		"dry_run":               cfg.Agent.DryRun,
		"brand":                 cfg.Agent.BrandName,
		"db_path":               cfg.Store.Path,
		"local_actions_enabled": cfg.Local.ActionsEnabled,
		"ollama_enabled":        cfg.Providers.Ollama.Enabled,
		"request_id":            requestID,
	})
}

func (h *handler) statusSummary(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	ctx := r.Context()
	pending, err := h.deps.Approvals.CountPending(ctx)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to count approvals")
		return
	}
	runs, err := h.deps.Store.ListRuns(ctx, 10)
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	logs, err := h.deps.Store.ListAudit(ctx, store.AuditFilter{Limit: 20})
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                true,
		"dry_run":           h.deps.Cfg.Agent.DryRun,
		"pending_approvals": pending,
		"recent_runs":       runs,
		"recent_logs":       logs,
		"request_id":        requestID,
	})
}

func (h *handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	approvals, err := h.deps.Approvals.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list approvals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals, "request_id": requestID})
}

// decideApproval handles POST /api/approvals/{id}/decision.
func (h *handler) decideApproval(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)

	// A bare trailing slash is the list route.
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/approvals/"), "/")
	if rest == "" {
		h.listApprovals(w, r)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "decision" {
		writeError(w, requestID, http.StatusNotFound, "not_found", "unknown approvals route")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "approval id must be an integer")
		return
	}

	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
		return
	}

	ctx := r.Context()
	var decided *store.Approval
	switch req.Decision {
	case "approve":
		decided, err = h.deps.Approvals.Approve(ctx, id, approval.DecisionInput{Note: req.Note})
	case "reject":
		decided, err = h.deps.Approvals.Reject(ctx, id, approval.DecisionInput{Note: req.Note})
	default:
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "decision must be approve or reject")
		return
	}
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if _, err := h.deps.Store.AppendAudit(ctx, store.AuditEntry{
		RunID:     decided.RunID,
		EventType: store.AuditEventApproval,
		Message:   "approval_" + decided.Status,
		Payload: map[string]any{
			"approval_id": decided.ID,
			"tool_name":   decided.ToolName,
			"risk":        decided.RiskLevel,
		},
	}); err != nil {
		slog.Warn("audit write failed", "event", "approval_"+decided.Status, "error", err)
	}

	if decided.RunID == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":           0,
			"status":           "completed",
			"summary":          "Approval " + decided.Status + ". No run found to resume.",
			"steps":            []any{},
			"approvals_queued": 0,
		})
		return
	}

	resp := h.deps.Commands.ResumeFromApproval(ctx, *decided.RunID, decided.ID)
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
