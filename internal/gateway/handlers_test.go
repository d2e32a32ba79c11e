package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/merxlabs/merx/internal/approval"
	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/llm"
	"github.com/merxlabs/merx/internal/orchestrator"
	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
)

type stubCommands struct {
	lastText string
	resp     *orchestrator.CommandResponse
}

func (s *stubCommands) HandleCommand(_ context.Context, text string) (*orchestrator.CommandResponse, error) {
	s.lastText = text
	if s.resp != nil {
		return s.resp, nil
	}
	return &orchestrator.CommandResponse{RunID: 1, Status: "completed", Summary: "Completed."}, nil
}

func (s *stubCommands) ResumeFromApproval(_ context.Context, runID, approvalID int64) *orchestrator.CommandResponse {
	return &orchestrator.CommandResponse{
		RunID:   runID,
		Status:  "failed",
		Summary: "Approvals are disabled; nothing to resume.",
		Steps:   []orchestrator.StepResult{},
	}
}

func testDeps(t *testing.T, mutate func(*config.Config)) (Deps, *stubCommands) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "merx.db")
	cfg.Local.Workspace = filepath.Join(dir, "workspace")
	cfg.Agent.DryRun = true
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gen := llm.NewGenerator(context.Background(), cfg)
	toolset := tools.NewToolset(cfg, st, gen)
	registry := tools.NewRegistry()
	if err := toolset.RegisterAll(registry); err != nil {
		t.Fatalf("register tools: %v", err)
	}

	commands := &stubCommands{}
	return Deps{
		Cfg:       cfg,
		Store:     st,
		Commands:  commands,
		Approvals: approval.NewService(st),
		Gen:       gen,
		Executor:  tools.NewExecutor(registry),
	}, commands
}

func doRequest(t *testing.T, deps Deps, token string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(config.GatewayConfig{Token: token}, deps)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	deps, _ := testDeps(t, nil)

	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestVersion(t *testing.T) {
	deps, _ := testDeps(t, nil)

	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCommand_RequiresAuthWhenTokenSet(t *testing.T) {
	deps, _ := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"status"}`))
	rec := doRequest(t, deps, "secret", req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"status"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = doRequest(t, deps, "secret", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestCommand_RelaysText(t *testing.T) {
	deps, commands := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"Show me system status"}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if commands.lastText != "Show me system status" {
		t.Fatalf("expected command relayed, got %q", commands.lastText)
	}
}

func TestCommand_RejectsEmptyText(t *testing.T) {
	deps, _ := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"  "}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunShopify_MapsActions(t *testing.T) {
	deps, commands := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/run/shopify", strings.NewReader(`{"action":"publish","product_id":55}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if commands.lastText != "Publish product 55" {
		t.Fatalf("unexpected command: %q", commands.lastText)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/run/shopify", strings.NewReader(`{}`))
	_ = doRequest(t, deps, "", req)
	if commands.lastText != "Add a winning product and prepare it to sell" {
		t.Fatalf("unexpected default command: %q", commands.lastText)
	}
}

func TestRunInbox_DefaultsToTriage(t *testing.T) {
	deps, commands := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/run/inbox", strings.NewReader(`{}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if commands.lastText != "Triage inbox" {
		t.Fatalf("unexpected command: %q", commands.lastText)
	}
}

func TestStatus(t *testing.T) {
	deps, _ := testDeps(t, nil)

	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["dry_run"] != true {
		t.Fatalf("expected dry_run true, got %v", body["dry_run"])
	}
}

func TestStatusSummary(t *testing.T) {
	deps, _ := testDeps(t, nil)

	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, "/api/status/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["pending_approvals"] != float64(0) {
		t.Fatalf("expected 0 pending approvals, got %v", body["pending_approvals"])
	}
}

func TestApprovalDecision(t *testing.T) {
	deps, _ := testDeps(t, nil)
	ctx := context.Background()

	a, err := deps.Approvals.Create(ctx, approval.CreateInput{ToolName: "facebook.create_post"})
	if err != nil {
		t.Fatalf("create approval: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/1/decision", strings.NewReader(`{"decision":"approve","note":"ok"}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	decided, err := deps.Approvals.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get approval: %v", err)
	}
	if decided.Status != store.ApprovalApproved {
		t.Fatalf("expected approved, got %q", decided.Status)
	}
}

func TestApprovalDecision_InvalidDecision(t *testing.T) {
	deps, _ := testDeps(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/1/decision", strings.NewReader(`{"decision":"maybe"}`))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestApprovals_TrailingSlashLists(t *testing.T) {
	deps, _ := testDeps(t, nil)

	if _, err := deps.Approvals.Create(context.Background(), approval.CreateInput{ToolName: "facebook.create_post"}); err != nil {
		t.Fatalf("create approval: %v", err)
	}

	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, "/api/approvals/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	approvals, ok := body["approvals"].([]any)
	if !ok || len(approvals) != 1 {
		t.Fatalf("expected 1 listed approval, got %v", body["approvals"])
	}
}

func TestFacebookVerify_Handshake(t *testing.T) {
	deps, _ := testDeps(t, func(cfg *config.Config) {
		cfg.Facebook.VerifyToken = "verify-me"
	})

	url := "/webhooks/facebook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=4242"
	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "4242" {
		t.Fatalf("expected challenge echo 4242, got %q", got)
	}
}

func TestFacebookVerify_WrongToken(t *testing.T) {
	deps, _ := testDeps(t, func(cfg *config.Config) {
		cfg.Facebook.VerifyToken = "verify-me"
	})

	url := "/webhooks/facebook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=4242"
	rec := doRequest(t, deps, "", httptest.NewRequest(http.MethodGet, url, nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["ok"] != false {
		t.Fatalf("expected ok false, got %v", body["ok"])
	}
}

func TestWhatsAppWebhook_IngestsAndReplies(t *testing.T) {
	deps, _ := testDeps(t, nil)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{
						"from": "15550001111",
						"id": "wamid.42",
						"text": {"body": "where is my order?"}
					}]
				}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(payload))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	msgs, err := deps.Store.ListMessageEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 ingested message, got %d", len(msgs))
	}
	if msgs[0].Channel != "whatsapp_message" {
		t.Fatalf("expected whatsapp_message, got %q", msgs[0].Channel)
	}
	if msgs[0].FromUser != "15550001111" {
		t.Fatalf("unexpected sender: %q", msgs[0].FromUser)
	}
	// Dry-run send succeeds, so the event gets marked processed.
	if !msgs[0].Processed {
		t.Fatal("expected message to be processed after auto-reply")
	}
}

func TestWhatsAppWebhook_OkWhenStoreUnavailable(t *testing.T) {
	deps, _ := testDeps(t, nil)
	if err := deps.Store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{
						"from": "15550001111",
						"id": "wamid.43",
						"text": {"body": "hello"}
					}]
				}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(payload))
	rec := doRequest(t, deps, "", req)

	// Audit and ingest writes fail and are logged; the endpoint still
	// acknowledges so the platform does not retry forever.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestFacebookWebhook_IngestsMessage(t *testing.T) {
	deps, _ := testDeps(t, nil)

	payload := `{
		"entry": [{
			"messaging": [{
				"sender": {"id": "psid-9"},
				"message": {"mid": "mid.1", "text": "I want a refund"}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/facebook", strings.NewReader(payload))
	rec := doRequest(t, deps, "", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	msgs, _ := deps.Store.ListMessageEvents(context.Background(), 10)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 ingested message, got %d", len(msgs))
	}
	if msgs[0].Channel != "facebook_message" {
		t.Fatalf("expected facebook_message, got %q", msgs[0].Channel)
	}
}

func TestFacebookWebhook_IgnoresEcho(t *testing.T) {
	deps, _ := testDeps(t, nil)

	payload := `{
		"entry": [{
			"messaging": [{
				"sender": {"id": "psid-9"},
				"message": {"mid": "mid.1", "text": "echo", "is_echo": true}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/facebook", strings.NewReader(payload))
	_ = doRequest(t, deps, "", req)

	msgs, _ := deps.Store.ListMessageEvents(context.Background(), 10)
	if len(msgs) != 0 {
		t.Fatalf("expected echo to be ignored, got %d messages", len(msgs))
	}
}

func TestFacebookWebhook_IngestsComment(t *testing.T) {
	deps, _ := testDeps(t, nil)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"item": "comment",
					"verb": "add",
					"comment_id": "c_77",
					"message": "is this still available?",
					"from": {"id": "u_5"}
				}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/facebook", strings.NewReader(payload))
	_ = doRequest(t, deps, "", req)

	msgs, _ := deps.Store.ListMessageEvents(context.Background(), 10)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 ingested comment, got %d", len(msgs))
	}
	if msgs[0].Channel != "facebook_comment" {
		t.Fatalf("expected facebook_comment, got %q", msgs[0].Channel)
	}
	if msgs[0].ExternalID != "c_77" {
		t.Fatalf("unexpected external id: %q", msgs[0].ExternalID)
	}
}

func TestWebhooks_SkipBearerAuth(t *testing.T) {
	deps, _ := testDeps(t, nil)

	// Webhooks authenticate with the verify token, not the gateway
	// bearer token.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{"entry":[]}`))
	rec := doRequest(t, deps, "secret", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without bearer token, got %d", rec.Code)
	}
}
