package tools

import (
	"context"
	"fmt"
	"strings"
)

var orderKeywords = []string{"order", "shipping", "delivery", "where"}
var refundKeywords = []string{"refund", "return", "money back"}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (t *Toolset) triageInbox(ctx context.Context, args map[string]any) (any, error) {
	limit := argInt(args, "limit", 50)

	msgs, err := t.store.ListMessageEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("triage inbox: %w", err)
	}

	buckets := map[string][]map[string]any{
		"order":   {},
		"refund":  {},
		"general": {},
	}
	for _, m := range msgs {
		low := strings.ToLower(m.Text)
		row := map[string]any{
			"id":      m.ID,
			"channel": m.Channel,
			"from":    m.FromUser,
			"text":    m.Text,
		}
		switch {
		case containsAny(low, orderKeywords):
			buckets["order"] = append(buckets["order"], row)
		case containsAny(low, refundKeywords):
			buckets["refund"] = append(buckets["refund"], row)
		default:
			buckets["general"] = append(buckets["general"], row)
		}
	}

	counts := map[string]any{}
	for k, v := range buckets {
		counts[k] = len(v)
	}
	return Result{"ok": true, "limit": limit, "counts": counts, "buckets": buckets}, nil
}

func (t *Toolset) generatePost(_ context.Context, args map[string]any) (any, error) {
	channel := argString(args, "channel", "facebook")
	product := argString(args, "product", "Product")
	if tf := argString(args, "text_from", ""); tf != "" {
		product = strings.TrimPrefix(tf, "product:")
	}

	brand := t.cfg.Agent.BrandName
	text := fmt.Sprintf(
		"I'm the AI assistant for %s. New drop: %s. Limited stock, tap to shop and DM your order number if you need help.",
		brand, product,
	)
	return Result{"ok": true, "channel": channel, "text": text, "product": product}, nil
}

func (t *Toolset) generatePostsBatch(_ context.Context, args map[string]any) (any, error) {
	channel := argString(args, "channel", "facebook")
	count := argInt(args, "count", 7)

	brand := t.cfg.Agent.BrandName
	posts := make([]map[string]any, 0, count)
	for i := 1; i <= count; i++ {
		posts = append(posts, map[string]any{
			"idx": i,
			"text": fmt.Sprintf(
				"I'm the AI assistant for %s. Post #%d: New arrivals today, grab yours before they're gone. Need help? Share your order number.",
				brand, i,
			),
		})
	}
	return Result{"ok": true, "channel": channel, "count": count, "posts": posts}, nil
}

func (t *Toolset) generateProductCopy(ctx context.Context, args map[string]any) (any, error) {
	_ = argString(args, "mode", "latest_draft")

	draft, err := t.store.LatestDraft(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest draft: %w", err)
	}
	if draft == nil {
		return Result{"ok": true, "found_draft": false, "title": "", "description": "No draft found."}, nil
	}

	bullets := []string{
		"Compact and easy to use",
		"Great for beginners and pros",
		"Fast setup, consistent results",
		"Perfect for gifts and daily use",
	}
	var sb strings.Builder
	sb.WriteString(draft.Description)
	sb.WriteString("\n\nHighlights:\n")
	for _, b := range bullets {
		sb.WriteString("- ")
		sb.WriteString(b)
		sb.WriteString("\n")
	}
	sb.WriteString("\nSupport: For order questions, ask for the order number.")

	return Result{
		"ok":                   true,
		"found_draft":          true,
		"draft_id":             draft.ID,
		"title":                draft.Title,
		"enhanced_description": sb.String(),
	}, nil
}
