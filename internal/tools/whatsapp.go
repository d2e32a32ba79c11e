package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

func (t *Toolset) sendWhatsAppReply(ctx context.Context, args map[string]any) (any, error) {
	to := argString(args, "to", "")
	text := argString(args, "text", "")

	if t.cfg.Agent.DryRun {
		return Result{"ok": true, "simulated": true, "to": to, "text": text}, nil
	}

	if t.cfg.WhatsApp.AccessToken == "" || t.cfg.WhatsApp.PhoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp cloud api credentials are missing")
	}

	endpoint := fmt.Sprintf("https://graph.facebook.com/v19.0/%s/messages", t.cfg.WhatsApp.PhoneNumberID)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.WhatsApp.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := t.doGraph(req)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return Result{
			"ok":          false,
			"error":       "whatsapp_error",
			"status_code": status,
			"body":        string(respBody),
		}, nil
	}

	out := map[string]any{}
	_ = json.Unmarshal(respBody, &out)
	return Result{"ok": true, "simulated": false, "to": to, "result": out}, nil
}
