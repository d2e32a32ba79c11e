package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/merxlabs/merx/internal/store"
)

var (
	keywordRe = regexp.MustCompile(`[a-z0-9]+`)
	skuRe     = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

func pricePair(cost float64) (price, compareAt float64) {
	factor := 2.6
	if cost < 10 {
		factor = 3.0
	}
	price = psychPrice(cost * factor)
	compareAt = psychPrice(price * 1.25)
	return price, compareAt
}

func seoKeywords(title, niche string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, w := range keywordRe.FindAllString(strings.ToLower(title+" "+niche), -1) {
		if len(w) <= 2 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == 15 {
			break
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func seoBodyHTML(title, niche, shortDesc string, keys []string) string {
	kline := strings.Join(keys, ", ")
	if len(keys) > 10 {
		kline = strings.Join(keys[:10], ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", title)
	fmt.Fprintf(&b, "<p><strong>Best for:</strong> %s shoppers • <strong>Keywords:</strong> %s</p>\n\n", titleCase(niche), kline)
	fmt.Fprintf(&b, "<p>%s</p>\n\n", shortDesc)

	b.WriteString("<h2>Why this product sells</h2>\n<ul>\n")
	for _, benefit := range []string{
		"Designed for daily use and consistent results",
		"Simple setup — works great right out of the box",
		"High-perceived value that converts well",
		"Giftable and easy to ship",
		"Strong niche fit with broad demand",
	} {
		fmt.Fprintf(&b, "<li>%s</li>\n", benefit)
	}
	b.WriteString("</ul>\n\n")

	fmt.Fprintf(&b, "<h2>What you get</h2>\n<ul>\n<li>1× %s</li>\n<li>Simple instructions included</li>\n<li>Quality checked packaging</li>\n</ul>\n\n", title)

	b.WriteString("<h2>FAQ</h2>\n")
	faq := [][2]string{
		{"Is it easy to use?", "Yes — it’s designed for simple daily use."},
		{"Is it giftable?", "Absolutely. It’s a practical item people love to receive."},
		{"Does it work for this niche?", fmt.Sprintf("Yes — it’s a strong match for %s.", niche)},
	}
	for _, qa := range faq {
		fmt.Fprintf(&b, "<details><summary><strong>%s</strong></summary><p>%s</p></details>\n", qa[0], qa[1])
	}
	return strings.TrimSpace(b.String())
}

// autopilotAddProduct runs the full research → price → copy → publish
// chain as one tool. It is the single allow-listed high-risk tool and
// therefore bypasses the approval gate.
func (t *Toolset) autopilotAddProduct(ctx context.Context, args map[string]any) (any, error) {
	niche := strings.TrimSpace(argString(args, "niche", t.cfg.Agent.StoreNiche))
	if niche == "" {
		niche = "general"
	}
	qty := argInt(args, "inventory_qty", t.cfg.Agent.DefaultInventory)

	researchOut, err := t.findWinningProduct(ctx, map[string]any{"niche": niche})
	if err != nil {
		return nil, err
	}
	research := researchOut.(Result)
	top := research["top_pick"].(map[string]any)
	title := top["title"].(string)
	shortDesc := top["description"].(string)
	cost, _ := top["suggested_cost"].(float64)
	if cost == 0 {
		cost = 10.0
	}

	price, compareAt := pricePair(cost)
	keys := seoKeywords(title, niche)
	tags := strings.Join(keys, ", ")
	bodyHTML := seoBodyHTML(title, niche, shortDesc, keys)

	if t.cfg.Agent.DryRun || !t.shopifyConfigured() {
		draft := &store.ProductDraft{
			Title:       title,
			Description: bodyHTML,
			Price:       price,
			Currency:    "USD",
			Status:      store.DraftStatusSimulatedPublished,
			Meta: map[string]any{
				"niche":      niche,
				"cost":       cost,
				"compare_at": compareAt,
				"tags":       tags,
				"keywords":   keys,
			},
		}
		if err := t.store.CreateDraft(ctx, draft); err != nil {
			return nil, err
		}
		return Result{
			"ok":           true,
			"simulated":    true,
			"draft_id":     draft.ID,
			"title":        title,
			"price":        price,
			"compare_at":   compareAt,
			"chosen_niche": niche,
			"note":         "DRY_RUN or missing Shopify creds: product not created in Shopify.",
		}, nil
	}

	sku := strings.Trim(skuRe.ReplaceAllString(strings.ToUpper(title), "-"), "-")
	if len(sku) > 32 {
		sku = sku[:32]
	}
	payload := map[string]any{
		"product": map[string]any{
			"title":        title,
			"body_html":    bodyHTML,
			"vendor":       t.cfg.Agent.BrandName,
			"product_type": niche,
			"tags":         tags,
			"status":       "active",
			"variants": []map[string]any{{
				"price":                fmt.Sprintf("%.2f", price),
				"compare_at_price":     fmt.Sprintf("%.2f", compareAt),
				"sku":                  sku,
				"inventory_management": "shopify",
				"inventory_policy":     "continue",
				"inventory_quantity":   qty,
				"requires_shipping":    true,
			}},
		},
	}

	status, body, err := t.shopifyRequest(ctx, http.MethodPost, t.shopifyURL("/products.json"), payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return Result{
			"ok":          false,
			"error":       "shopify_http_error",
			"status_code": status,
			"body":        string(body),
		}, nil
	}

	var created struct {
		Product struct {
			ID     int64  `json:"id"`
			Handle string `json:"handle"`
		} `json:"product"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("decode shopify product: %w", err)
	}

	externalID := ""
	if created.Product.ID != 0 {
		externalID = fmt.Sprintf("%d", created.Product.ID)
	}
	draft := &store.ProductDraft{
		Title:       title,
		Description: bodyHTML,
		Price:       price,
		Currency:    "USD",
		Status:      store.DraftStatusPublished,
		ExternalID:  externalID,
		Meta: map[string]any{
			"niche":          niche,
			"cost":           cost,
			"compare_at":     compareAt,
			"tags":           tags,
			"keywords":       keys,
			"shopify_handle": created.Product.Handle,
		},
	}
	if err := t.store.CreateDraft(ctx, draft); err != nil {
		return nil, err
	}

	return Result{
		"ok":                 true,
		"simulated":          false,
		"draft_id":           draft.ID,
		"shopify_product_id": created.Product.ID,
		"shopify_handle":     created.Product.Handle,
		"title":              title,
		"price":              price,
		"compare_at":         compareAt,
		"chosen_niche":       niche,
	}, nil
}
