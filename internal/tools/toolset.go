package tools

import (
	"fmt"
	"net/http"
	"time"

	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/llm"
	"github.com/merxlabs/merx/internal/store"
)

const defaultHTTPTimeout = 20 * time.Second

// Toolset owns the built-in tool handlers and their shared
// collaborators. Handlers do all external side effects; the executor
// and orchestrator above them never touch providers directly.
type Toolset struct {
	cfg    *config.Config
	store  *store.Store
	gen    *llm.Generator
	client *http.Client

	postBuffer []map[string]any
}

// NewToolset creates the built-in toolset.
func NewToolset(cfg *config.Config, st *store.Store, gen *llm.Generator) *Toolset {
	return &Toolset{
		cfg:    cfg,
		store:  st,
		gen:    gen,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// RegisterAll registers every built-in tool on the registry.
func (t *Toolset) RegisterAll(r *Registry) error {
	handlers := map[string]Handler{
		"research.find_winning_product":      t.findWinningProduct,
		"research.analyze_pricing":           t.analyzePricing,
		"shopify.draft_product":              t.draftProduct,
		"shopify.publish_product":            t.publishProduct,
		"shopify.autopilot_add_product":      t.autopilotAddProduct,
		"facebook.create_post":               t.createPost,
		"facebook.reply_comment":             t.replyComment,
		"facebook.reply_message":             t.replyMessage,
		"facebook.queue_posts_for_approval":  t.queuePostsForApproval,
		"whatsapp.send_reply":                t.sendWhatsAppReply,
		"content.triage_inbox":               t.triageInbox,
		"content.generate_post":              t.generatePost,
		"content.generate_posts_batch":       t.generatePostsBatch,
		"content.generate_product_copy":      t.generateProductCopy,
		"supplier.outreach_draft":            t.outreachDraft,
		"call_fallback.missed_call_followup": t.missedCallFollowup,
		"local.write_file":                   t.writeFile,
		"local.exec":                         t.execCommand,
		"status.summary":                     t.statusSummary,
	}

	for name, handler := range handlers {
		if err := r.Register(name, handler); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// --- argument helpers ---

func argString(args map[string]any, key, fallback string) string {
	switch v := args[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	}
	return fallback
}

func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
