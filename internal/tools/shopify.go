package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/merxlabs/merx/internal/store"
)

func (t *Toolset) shopifyConfigured() bool {
	return t.cfg.Shopify.Shop != "" && t.cfg.Shopify.AccessToken != ""
}

func (t *Toolset) shopifyURL(path string) string {
	return fmt.Sprintf("https://%s/admin/api/%s%s", t.cfg.Shopify.Shop, t.cfg.Shopify.APIVersion, path)
}

func (t *Toolset) shopifyRequest(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal shopify payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build shopify request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", t.cfg.Shopify.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("shopify request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read shopify response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (t *Toolset) draftProduct(ctx context.Context, args map[string]any) (any, error) {
	source := argString(args, "source", "research")

	title := "Winning Product"
	description := "High potential product draft."
	cost := 12.0
	if source == "research" {
		title = "AirBrush Pro Mini Compressor"
		description = "Compact airbrush kit for crafts and nail art with adjustable pressure."
		cost = 24.0
	}

	draft := &store.ProductDraft{
		Title:       title,
		Description: description,
		Currency:    "USD",
		Status:      store.DraftStatusDraft,
		Meta:        map[string]any{"cost": cost, "source": source},
	}
	if err := t.store.CreateDraft(ctx, draft); err != nil {
		return nil, err
	}

	return Result{
		"ok":       true,
		"draft_id": draft.ID,
		"title":    draft.Title,
		"status":   draft.Status,
		"dry_run":  t.cfg.Agent.DryRun,
	}, nil
}

func (t *Toolset) publishProduct(ctx context.Context, args map[string]any) (any, error) {
	productID := int64(argInt(args, "product_id", 0))

	draft, err := t.store.GetDraft(ctx, productID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return Result{
			"ok":         true,
			"simulated":  true,
			"product_id": productID,
			"note":       "Draft not found; simulated publish.",
		}, nil
	}

	if t.cfg.Agent.DryRun || !t.shopifyConfigured() {
		if err := t.store.UpdateDraftStatus(ctx, draft.ID, store.DraftStatusSimulatedPublished, ""); err != nil {
			return nil, err
		}
		return Result{
			"ok":        true,
			"simulated": true,
			"draft_id":  draft.ID,
			"status":    store.DraftStatusSimulatedPublished,
			"note":      "DRY_RUN or missing creds: no external call made.",
		}, nil
	}

	extID := draft.ExternalID
	if extID == "" {
		extID = fmt.Sprintf("%d", draft.ID)
	}
	payload := map[string]any{
		"product": map[string]any{"id": extID, "status": "active"},
	}

	status, body, err := t.shopifyRequest(ctx, http.MethodPut, t.shopifyURL(fmt.Sprintf("/products/%s.json", extID)), payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return Result{
			"ok":          false,
			"error":       "shopify_error",
			"status_code": status,
			"body":        string(body),
		}, nil
	}

	if err := t.store.UpdateDraftStatus(ctx, draft.ID, store.DraftStatusPublished, ""); err != nil {
		return nil, err
	}
	return Result{
		"ok":        true,
		"simulated": false,
		"draft_id":  draft.ID,
		"status":    store.DraftStatusPublished,
	}, nil
}
