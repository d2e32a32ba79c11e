package tools

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// Offline product catalog used for research scoring. Live marketplace
// signals are a provider concern; scoring stays deterministic per
// title so research results are reproducible.
var catalog = []map[string]any{
	{
		"title":          "AirBrush Pro Mini Compressor",
		"description":    "Compact airbrush kit for crafts and nail art with adjustable pressure.",
		"suggested_cost": 24.0,
		"niche":          "beauty/crafts",
	},
	{
		"title":          "Smart Posture Trainer Clip",
		"description":    "Wearable posture reminder with gentle vibration and app-less usage.",
		"suggested_cost": 9.5,
		"niche":          "health/fitness",
	},
	{
		"title":          "Magnetic Cable Organizer Set",
		"description":    "Desk cable clips with magnetic bases for clean workspace routing.",
		"suggested_cost": 4.5,
		"niche":          "home/office",
	},
	{
		"title":          "Portable Blender Bottle 350ml",
		"description":    "USB rechargeable mini blender for shakes and smoothies, travel friendly.",
		"suggested_cost": 12.0,
		"niche":          "kitchen/fitness",
	},
	{
		"title":          "Pet Hair Remover Roller XL",
		"description":    "Reusable lint roller for sofas and car seats; no refills needed.",
		"suggested_cost": 6.0,
		"niche":          "pets/home",
	},
}

func scoreProduct(title string) (float64, map[string]any) {
	seed := 0
	for _, c := range title {
		seed += int(c)
	}
	rng := rand.New(rand.NewSource(int64(seed % 10000)))

	demand := 0.40 + rng.Float64()*0.55
	competition := 0.20 + rng.Float64()*0.70
	margin := 0.30 + rng.Float64()*0.60
	shippingRisk := 0.10 + rng.Float64()*0.70

	score := demand*0.45 + (1-competition)*0.25 + margin*0.25 + (1-shippingRisk)*0.05
	score = math.Round(score*1000) / 10

	round3 := func(f float64) float64 { return math.Round(f*1000) / 1000 }
	return score, map[string]any{
		"demand":        round3(demand),
		"competition":   round3(competition),
		"margin":        round3(margin),
		"shipping_risk": round3(shippingRisk),
	}
}

func (t *Toolset) findWinningProduct(_ context.Context, args map[string]any) (any, error) {
	niche := argString(args, "niche", "general")

	ranked := make([]map[string]any, 0, len(catalog))
	for _, c := range catalog {
		score, breakdown := scoreProduct(c["title"].(string))
		entry := map[string]any{}
		for k, v := range c {
			entry[k] = v
		}
		entry["score"] = score
		entry["breakdown"] = breakdown
		ranked = append(ranked, entry)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i]["score"].(float64) > ranked[j]["score"].(float64)
	})

	return Result{
		"ok":       true,
		"niche":    niche,
		"top_pick": ranked[0],
		"top_5":    ranked,
		"method":   "offline_heuristic_scoring",
	}, nil
}

func psychPrice(x float64) float64 {
	return math.Floor(x) + 0.99
}

func (t *Toolset) analyzePricing(ctx context.Context, args map[string]any) (any, error) {
	mode := argString(args, "mode", "latest_draft")

	draft, err := t.store.LatestDraft(ctx)
	if err != nil {
		return nil, err
	}

	if mode != "latest_draft" || draft == nil {
		cost := 10.0
		return Result{
			"ok":                true,
			"mode":              mode,
			"found_draft":       false,
			"recommended_price": psychPrice(cost * 3.2),
			"currency":          "USD",
			"rationale": map[string]any{
				"assumed_cost": cost,
				"multiplier":   3.2,
				"psych_price":  true,
				"note":         "No draft found; using generic cost model.",
			},
		}, nil
	}

	cost := 12.0
	if c, ok := draft.Meta["cost"].(float64); ok {
		cost = c
	}
	multiplier := 2.6
	if cost < 10 {
		multiplier = 3.0
	}

	currency := draft.Currency
	if currency == "" {
		currency = "USD"
	}

	return Result{
		"ok":                true,
		"mode":              mode,
		"found_draft":       true,
		"draft_id":          draft.ID,
		"recommended_price": psychPrice(cost * multiplier),
		"currency":          currency,
		"rationale": map[string]any{
			"cost":        cost,
			"multiplier":  multiplier,
			"psych_price": true,
			"note":        "Offline model: margin + competitive buffer.",
		},
	}, nil
}
