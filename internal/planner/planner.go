package planner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/merxlabs/merx/internal/tools"
)

// Planner turns free-text operator commands into an ordered list of
// tool calls. It is a fixed-priority rule cascade: rules are evaluated
// top to bottom, the first match wins, and an explicit fallback
// guarantees a non-empty plan for every input. Planning is pure; the
// same text always yields the same call sequence.
type Planner struct {
	rules []rule
}

// A rule pairs a recognizer with a plan builder. build receives the
// whitespace-normalized text and its lowercase form, and reports
// whether it matched.
type rule struct {
	name  string
	build func(norm, low string) ([]tools.Call, bool)
}

// New creates a planner with the built-in rule cascade.
func New() *Planner {
	return &Planner{rules: defaultRules()}
}

// Plan maps command text to a non-empty ordered list of tool calls.
func (p *Planner) Plan(text string) []tools.Call {
	norm := normalize(text)
	low := strings.ToLower(norm)

	for _, r := range p.rules {
		if calls, ok := r.build(norm, low); ok {
			return calls
		}
	}

	// Unmatched input triages the inbox and reports status.
	return []tools.Call{
		{Name: "content.triage_inbox", Args: map[string]any{"limit": 20}},
		{Name: "status.summary", Args: map[string]any{}},
	}
}

func normalize(text string) string {
	return wsRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

var (
	wsRe   = regexp.MustCompile(`\s+`)
	wordRe = regexp.MustCompile(`[a-z0-9]+`)

	nicheExplicitRe = regexp.MustCompile(`(?i)\bniche\s*[:=]\s*("[^"]+"|'[^']+'|[^,;\n]+)`)
	nicheForRe      = regexp.MustCompile(`\bfor\s+([a-z0-9 &\-_]+)`)
	nicheSpanRe     = regexp.MustCompile(`\b(?:add|create|make|publish|post|put|launch|upload)\b(.*?)(?:\bproduct\b|\bitem\b|\bgoods\b|\bsku\b)`)
	qtyRe           = regexp.MustCompile(`(?i)\b(?:qty|quantity|inventory|inventory_qty)\s*[:=]\s*(\d+)`)

	publishRe      = regexp.MustCompile(`(?i)\bpublish\s+product\s+(\d+)\b`)
	postsBatchRe   = regexp.MustCompile(`(?i)\bgenerate\s+(\d+)\s+posts?\b`)
	fbPostRe       = regexp.MustCompile(`(?i)\bcreate\s+a\s+facebook\s+post\s+about\s+(?:product\s+)?(.+)$`)
	replyCommentRe = regexp.MustCompile(`(?i)\breply\s+to\s+comment\s+(\S+)\s+with\s+(.+)$`)
	replyMessageRe = regexp.MustCompile(`(?i)\breply\s+to\s+message\s+from\s+user\s+(\S+)\s+(.+)$`)
	whatsappRe     = regexp.MustCompile(`(?i)\breply\s+on\s+whatsapp\s+to\s+([+\d][-+()\d\s.]*?)\s+with\s+(.+)$`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

var addHints = []string{"add", "create", "make", "publish", "post", "put", "launch", "upload"}

var productHints = []string{"product", "item", "goods", "sku"}

// Stopwords removed during niche extraction: command verbs, articles
// and store nouns, leaving only the semantic niche phrase.
var nicheStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {}, "in": {}, "on": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "and": {}, "please": {},
	"shopify": {}, "store": {}, "shop": {},
	"product": {}, "item": {}, "goods": {}, "sku": {},
	"add": {}, "create": {}, "make": {}, "publish": {}, "post": {},
	"put": {}, "launch": {}, "upload": {},
	"winning": {}, "wining": {}, "best": {}, "top": {}, "hot": {},
	"viral": {}, "trending": {}, "new": {}, "latest": {},
}

func defaultRules() []rule {
	return []rule{
		{name: "status_summary", build: buildStatus},
		{name: "triage_inbox", build: buildTriage},
		// Specific intents are checked before the broad add-product
		// rule so that "publish product 3" or the prepare chain are
		// not swallowed by the verb+noun co-occurrence match.
		{name: "winning_product_prepare", build: buildPrepareChain},
		{name: "publish_product", build: buildPublishProduct},
		{name: "analyze_pricing", build: buildAnalyzePricing},
		{name: "generate_posts_batch", build: buildPostsBatch},
		{name: "facebook_post_about", build: buildFacebookPost},
		{name: "reply_comment", build: buildReplyComment},
		{name: "reply_message", build: buildReplyMessage},
		{name: "whatsapp_reply", build: buildWhatsAppReply},
		{name: "autopilot_add_product", build: buildAutopilot},
	}
}

func buildStatus(_, low string) ([]tools.Call, bool) {
	for _, k := range []string{"show me system status", "system status", "status summary", "health"} {
		if strings.Contains(low, k) {
			return []tools.Call{{Name: "status.summary", Args: map[string]any{}}}, true
		}
	}
	return nil, false
}

func buildTriage(_, low string) ([]tools.Call, bool) {
	if strings.Contains(low, "triage inbox") || (strings.Contains(low, "triage") && strings.Contains(low, "inbox")) {
		return []tools.Call{{Name: "content.triage_inbox", Args: map[string]any{"limit": 50}}}, true
	}
	return nil, false
}

func buildPrepareChain(_, low string) ([]tools.Call, bool) {
	matched := strings.Contains(low, "add a winning product") ||
		((strings.Contains(low, "winning product") || strings.Contains(low, "wining product")) && strings.Contains(low, "prepare"))
	if !matched {
		return nil, false
	}
	return []tools.Call{
		{Name: "research.find_winning_product", Args: map[string]any{"niche": "general"}},
		{Name: "shopify.draft_product", Args: map[string]any{"source": "research"}},
		{Name: "research.analyze_pricing", Args: map[string]any{"mode": "latest_draft"}},
		{Name: "content.generate_product_copy", Args: map[string]any{"mode": "latest_draft"}},
	}, true
}

func buildPublishProduct(norm, _ string) ([]tools.Call, bool) {
	m := publishRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return []tools.Call{{Name: "shopify.publish_product", Args: map[string]any{"product_id": id}}}, true
}

func buildAnalyzePricing(_, low string) ([]tools.Call, bool) {
	if strings.Contains(low, "analyze product") && strings.Contains(low, "price") {
		return []tools.Call{{Name: "research.analyze_pricing", Args: map[string]any{"mode": "latest_draft"}}}, true
	}
	return nil, false
}

func buildPostsBatch(norm, _ string) ([]tools.Call, bool) {
	m := postsBatchRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	count, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return []tools.Call{
		{Name: "content.generate_posts_batch", Args: map[string]any{"channel": "facebook", "count": count}},
		{Name: "facebook.queue_posts_for_approval", Args: map[string]any{"count": count}},
	}, true
}

func buildFacebookPost(norm, _ string) ([]tools.Call, bool) {
	m := fbPostRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	product := strings.TrimSpace(m[1])
	if product == "" {
		return nil, false
	}
	return []tools.Call{
		{Name: "content.generate_post", Args: map[string]any{"channel": "facebook", "product": product}},
		{Name: "facebook.create_post", Args: map[string]any{"text_from": "product:" + product}},
	}, true
}

func buildReplyComment(norm, _ string) ([]tools.Call, bool) {
	m := replyCommentRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	return []tools.Call{{Name: "facebook.reply_comment", Args: map[string]any{
		"comment_id": m[1],
		"text":       strings.TrimSpace(m[2]),
	}}}, true
}

func buildReplyMessage(norm, _ string) ([]tools.Call, bool) {
	m := replyMessageRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	return []tools.Call{{Name: "facebook.reply_message", Args: map[string]any{
		"user_id": m[1],
		"text":    strings.TrimSpace(m[2]),
	}}}, true
}

func buildWhatsAppReply(norm, _ string) ([]tools.Call, bool) {
	m := whatsappRe.FindStringSubmatch(norm)
	if m == nil {
		return nil, false
	}
	to := nonDigitRe.ReplaceAllString(m[1], "")
	if to == "" {
		return nil, false
	}
	return []tools.Call{{Name: "whatsapp.send_reply", Args: map[string]any{
		"to":   to,
		"text": strings.TrimSpace(m[2]),
	}}}, true
}

func buildAutopilot(norm, low string) ([]tools.Call, bool) {
	matched := (containsAny(low, addHints) && containsAny(low, productHints)) ||
		strings.Contains(low, "winning product") || strings.Contains(low, "wining product")
	if !matched {
		return nil, false
	}

	args := map[string]any{}
	if niche := extractNiche(norm, low); niche != "" {
		args["niche"] = niche
	}
	if m := qtyRe.FindStringSubmatch(norm); m != nil {
		if qty, err := strconv.Atoi(m[1]); err == nil {
			args["inventory_qty"] = qty
		}
	}
	return []tools.Call{{Name: "shopify.autopilot_add_product", Args: args}}, true
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// extractNiche pulls the niche phrase out of an add-product command.
// Strategies in priority order: an explicit niche:/niche= capture, the
// phrase following "for ", then the words spanning the matched verb
// and product noun; stopwords are stripped from the latter two.
func extractNiche(norm, low string) string {
	if m := nicheExplicitRe.FindStringSubmatch(norm); m != nil {
		v := strings.TrimSpace(m[1])
		v = strings.Trim(v, `"'`)
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	if m := nicheForRe.FindStringSubmatch(low); m != nil {
		if niche := stripStopwords(m[1]); niche != "" {
			return niche
		}
	}

	if m := nicheSpanRe.FindStringSubmatch(low); m != nil {
		if niche := stripStopwords(m[1]); niche != "" {
			return niche
		}
	}

	return ""
}

func stripStopwords(candidate string) string {
	var kept []string
	for _, w := range wordRe.FindAllString(candidate, -1) {
		if _, stop := nicheStopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
