package planner

import (
	"reflect"
	"testing"
)

func TestPlan_StatusSummary(t *testing.T) {
	p := New()
	calls := p.Plan("Show me system status")

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "status.summary" {
		t.Fatalf("expected status.summary, got %q", calls[0].Name)
	}
	if len(calls[0].Args) != 0 {
		t.Fatalf("expected empty args, got %v", calls[0].Args)
	}
}

func TestPlan_TriageInbox(t *testing.T) {
	p := New()
	calls := p.Plan("Triage inbox")

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "content.triage_inbox" {
		t.Fatalf("expected content.triage_inbox, got %q", calls[0].Name)
	}
	if got := calls[0].Args["limit"]; got != 50 {
		t.Fatalf("expected limit 50, got %v", got)
	}
}

func TestPlan_PrepareChain(t *testing.T) {
	p := New()
	calls := p.Plan("Add a winning product and prepare it to sell")

	want := []string{
		"research.find_winning_product",
		"shopify.draft_product",
		"research.analyze_pricing",
		"content.generate_product_copy",
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, name := range want {
		if calls[i].Name != name {
			t.Fatalf("call %d: expected %q, got %q", i, name, calls[i].Name)
		}
	}
	if got := calls[0].Args["niche"]; got != "general" {
		t.Fatalf("expected niche general, got %v", got)
	}
	if got := calls[1].Args["source"]; got != "research" {
		t.Fatalf("expected source research, got %v", got)
	}
}

func TestPlan_PublishProduct(t *testing.T) {
	p := New()
	calls := p.Plan("Publish product 123")

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "shopify.publish_product" {
		t.Fatalf("expected shopify.publish_product, got %q", calls[0].Name)
	}
	if got := calls[0].Args["product_id"]; got != 123 {
		t.Fatalf("expected product_id 123, got %v", got)
	}
}

func TestPlan_AnalyzePricing(t *testing.T) {
	p := New()
	calls := p.Plan("Analyze product and propose best price")

	if len(calls) != 1 || calls[0].Name != "research.analyze_pricing" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["mode"]; got != "latest_draft" {
		t.Fatalf("expected mode latest_draft, got %v", got)
	}
}

func TestPlan_PostsBatch(t *testing.T) {
	p := New()
	calls := p.Plan("Generate 7 posts and queue for approval")

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "content.generate_posts_batch" {
		t.Fatalf("expected content.generate_posts_batch, got %q", calls[0].Name)
	}
	if got := calls[0].Args["count"]; got != 7 {
		t.Fatalf("expected count 7, got %v", got)
	}
	if calls[1].Name != "facebook.queue_posts_for_approval" {
		t.Fatalf("expected facebook.queue_posts_for_approval, got %q", calls[1].Name)
	}
}

func TestPlan_FacebookPostAbout(t *testing.T) {
	p := New()
	calls := p.Plan("Create a facebook post about product AirBrush")

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "content.generate_post" {
		t.Fatalf("expected content.generate_post, got %q", calls[0].Name)
	}
	if got := calls[0].Args["product"]; got != "AirBrush" {
		t.Fatalf("expected product AirBrush, got %v", got)
	}
	if calls[1].Name != "facebook.create_post" {
		t.Fatalf("expected facebook.create_post, got %q", calls[1].Name)
	}
	if got := calls[1].Args["text_from"]; got != "product:AirBrush" {
		t.Fatalf("expected text_from product:AirBrush, got %v", got)
	}
}

func TestPlan_ReplyComment(t *testing.T) {
	p := New()
	calls := p.Plan("Reply to comment 42_77 with Thanks for reaching out!")

	if len(calls) != 1 || calls[0].Name != "facebook.reply_comment" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["comment_id"]; got != "42_77" {
		t.Fatalf("expected comment_id 42_77, got %v", got)
	}
	if got := calls[0].Args["text"]; got != "Thanks for reaching out!" {
		t.Fatalf("unexpected text: %v", got)
	}
}

func TestPlan_ReplyMessage(t *testing.T) {
	p := New()
	calls := p.Plan("Reply to message from user 9981 your order has shipped")

	if len(calls) != 1 || calls[0].Name != "facebook.reply_message" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["user_id"]; got != "9981" {
		t.Fatalf("expected user_id 9981, got %v", got)
	}
}

func TestPlan_WhatsAppReply(t *testing.T) {
	p := New()
	calls := p.Plan("Reply on whatsapp to +1 (555) 010-9999 with your refund is on its way")

	if len(calls) != 1 || calls[0].Name != "whatsapp.send_reply" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["to"]; got != "15550109999" {
		t.Fatalf("expected digits-only number, got %v", got)
	}
	if got := calls[0].Args["text"]; got != "your refund is on its way" {
		t.Fatalf("unexpected text: %v", got)
	}
}

func TestPlan_AutopilotNicheAndQty(t *testing.T) {
	p := New()
	calls := p.Plan("Add a product for pet grooming, qty: 250")

	if len(calls) != 1 || calls[0].Name != "shopify.autopilot_add_product" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["niche"]; got != "pet grooming" {
		t.Fatalf("unexpected niche: %v", got)
	}
	if got := calls[0].Args["inventory_qty"]; got != 250 {
		t.Fatalf("expected inventory_qty 250, got %v", got)
	}
}

func TestPlan_AutopilotExplicitNiche(t *testing.T) {
	p := New()
	calls := p.Plan(`Create a product niche: "home fitness"`)

	if len(calls) != 1 || calls[0].Name != "shopify.autopilot_add_product" {
		t.Fatalf("unexpected plan: %v", calls)
	}
	if got := calls[0].Args["niche"]; got != "home fitness" {
		t.Fatalf("expected niche home fitness, got %v", got)
	}
}

func TestPlan_FallbackForUnmatchedInput(t *testing.T) {
	p := New()
	calls := p.Plan("qwerty asdf zzz")

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "content.triage_inbox" {
		t.Fatalf("expected content.triage_inbox, got %q", calls[0].Name)
	}
	if got := calls[0].Args["limit"]; got != 20 {
		t.Fatalf("expected limit 20, got %v", got)
	}
	if calls[1].Name != "status.summary" {
		t.Fatalf("expected status.summary, got %q", calls[1].Name)
	}
}

func TestPlan_AlwaysNonEmpty(t *testing.T) {
	p := New()
	inputs := []string{"", "   ", "hello", "do the thing", "???", "publish"}
	for _, in := range inputs {
		if calls := p.Plan(in); len(calls) == 0 {
			t.Fatalf("expected non-empty plan for %q", in)
		}
	}
}

func TestPlan_Pure(t *testing.T) {
	p := New()
	first := p.Plan("Generate 3 posts")
	second := p.Plan("Generate 3 posts")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical plans, got %v and %v", first, second)
	}
}
