package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/merxlabs/merx/internal/config"
)

// Reply is one generated customer-facing reply.
type Reply struct {
	Text     string
	Provider string
}

// Generator produces brand-voiced replies and marketing copy. When a
// chat model is configured it is used first; the deterministic
// template path is always available as a fallback, so generation never
// fails.
type Generator struct {
	brand    string
	model    model.ChatModel
	provider string
}

// NewGenerator builds a generator from provider config. A provider
// construction failure degrades to the deterministic path.
func NewGenerator(ctx context.Context, cfg *config.Config) *Generator {
	g := &Generator{brand: cfg.Agent.BrandName, provider: "deterministic"}

	chatModel, provider, err := newChatModel(ctx, cfg)
	if err != nil {
		slog.Warn("llm provider unavailable, using deterministic replies", "error", err)
		return g
	}
	if chatModel != nil {
		g.model = chatModel
		g.provider = provider
	}
	return g
}

func newChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, string, error) {
	p := cfg.Providers
	switch {
	case p.Ollama.Enabled && p.Ollama.BaseURL != "":
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: p.Ollama.BaseURL,
			Model:   p.Ollama.Model,
		})
		if err != nil {
			return nil, "", fmt.Errorf("ollama model: %w", err)
		}
		return m, "ollama", nil
	case p.OpenAI.APIKey != "":
		mcfg := &openai.ChatModelConfig{
			Model:  p.OpenAI.Model,
			APIKey: p.OpenAI.APIKey,
		}
		if p.OpenAI.BaseURL != "" {
			mcfg.BaseURL = p.OpenAI.BaseURL
		}
		m, err := openai.NewChatModel(ctx, mcfg)
		if err != nil {
			return nil, "", fmt.Errorf("openai model: %w", err)
		}
		return m, "openai", nil
	default:
		return nil, "", nil
	}
}

// DraftReply generates a reply to one inbound customer message.
func (g *Generator) DraftReply(ctx context.Context, channel, userText string) Reply {
	if g.model != nil {
		messages := []*schema.Message{
			schema.SystemMessage(g.systemPrompt(channel)),
			schema.UserMessage(userText),
		}
		resp, err := g.model.Generate(ctx, messages)
		if err != nil {
			slog.Warn("llm generate failed, falling back", "provider", g.provider, "error", err)
		} else if text := strings.TrimSpace(resp.Content); text != "" {
			return Reply{Text: g.finalize(text), Provider: g.provider}
		}
	}
	return Reply{Text: g.deterministicReply(channel, userText), Provider: "deterministic"}
}

func (g *Generator) systemPrompt(channel string) string {
	where := "private message"
	if strings.Contains(channel, "comment") {
		where = "public comment"
	}
	return "You are a customer support assistant for an e-commerce brand.\n" +
		"You are replying in a " + where + ".\n\n" +
		"Hard rules:\n" +
		fmt.Sprintf("- The reply MUST include exactly once the phrase: %q.\n", g.requiredPhrase()) +
		"- Never hallucinate order status.\n" +
		"- If the message is about order/shipping/delivery: ask for order number + email/phone used at checkout.\n" +
		"- If the message is about refund/return: ask for order number and say a human will review.\n" +
		"- Never promise refunds.\n" +
		"- Keep it human-like and concise.\n" +
		"- Ask at most ONE question per reply.\n" +
		"- Do not mention policies, tools, tokens, webhooks, or internal systems.\n"
}

var requiredPhraseRe = regexp.MustCompile(`(?i)I'm the AI assistant for ([^.\n]+)\.`)

func (g *Generator) requiredPhrase() string {
	return fmt.Sprintf("I'm the AI assistant for %s", g.brand)
}

// finalize enforces the required brand phrase exactly once at the
// start of the reply.
func (g *Generator) finalize(text string) string {
	cleaned := requiredPhraseRe.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(wsRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		cleaned = "Thanks for reaching out—how can I help?"
	}
	return g.requiredPhrase() + ". " + cleaned
}

var wsRe = regexp.MustCompile(`\s+`)

func (g *Generator) deterministicReply(channel, userText string) string {
	t := strings.ToLower(strings.TrimSpace(userText))
	isPublic := strings.Contains(channel, "comment")

	switch {
	case containsAny(t, "order", "shipping", "delivery", "delivered", "where", "track", "tracking"):
		body := "Sure—please share your order number and the email/phone used at checkout"
		if !isPublic {
			body += " (so I can look it up)."
		}
		return g.finalize(body)
	case containsAny(t, "refund", "return", "money back", "cancel"):
		return g.finalize("I can help with next steps—please share your order number and a human will review your request.")
	case isPublic:
		return g.finalize("Thanks for the comment—what do you need help with?")
	default:
		return g.finalize("Thanks for reaching out—what can I help you with today?")
	}
}

func containsAny(s string, keys ...string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
