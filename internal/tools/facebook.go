package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func (t *Toolset) graphURL(path string) string {
	v := strings.TrimSpace(t.cfg.Facebook.GraphVersion)
	if v == "" {
		v = "v19.0"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://graph.facebook.com/" + v + path
}

func (t *Toolset) facebookConfigured() error {
	if t.cfg.Facebook.AccessToken == "" {
		return fmt.Errorf("facebook access token is missing")
	}
	if t.cfg.Facebook.PageID == "" {
		return fmt.Errorf("facebook page id is missing")
	}
	return nil
}

func (t *Toolset) graphPostForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.doGraph(req)
}

func (t *Toolset) graphPostJSON(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal graph payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.doGraph(req)
}

func (t *Toolset) doGraph(req *http.Request) (int, []byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read graph response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func graphResult(status int, body []byte) (Result, bool) {
	if status >= 400 {
		return Result{
			"ok":          false,
			"error":       "facebook_error",
			"status_code": status,
			"body":        string(body),
		}, false
	}
	out := map[string]any{}
	_ = json.Unmarshal(body, &out)
	return Result{"ok": true, "simulated": false, "result": out}, true
}

func (t *Toolset) createPost(ctx context.Context, args map[string]any) (any, error) {
	textFrom := argString(args, "text_from", "generated")
	text := argString(args, "text", "")
	if text == "" {
		text = fmt.Sprintf("New drop! (%s) Reply with your order number if you need help.", textFrom)
	}

	if t.cfg.Agent.DryRun {
		pageID := t.cfg.Facebook.PageID
		if pageID == "" {
			pageID = "dry_run_page"
		}
		return Result{"ok": true, "simulated": true, "page_id": pageID, "text": text}, nil
	}

	if err := t.facebookConfigured(); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", t.cfg.Facebook.AccessToken)

	status, body, err := t.graphPostForm(ctx, t.graphURL("/"+t.cfg.Facebook.PageID+"/feed"), form)
	if err != nil {
		return nil, err
	}
	res, ok := graphResult(status, body)
	if ok {
		res["text"] = text
	}
	return res, nil
}

func (t *Toolset) replyComment(ctx context.Context, args map[string]any) (any, error) {
	commentID := argString(args, "comment_id", "")
	text := argString(args, "text", "")

	if t.cfg.Agent.DryRun {
		return Result{"ok": true, "simulated": true, "comment_id": commentID, "text": text}, nil
	}

	if err := t.facebookConfigured(); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", t.cfg.Facebook.AccessToken)

	status, body, err := t.graphPostForm(ctx, t.graphURL("/"+commentID+"/comments"), form)
	if err != nil {
		return nil, err
	}
	res, ok := graphResult(status, body)
	if ok {
		res["comment_id"] = commentID
	}
	return res, nil
}

func (t *Toolset) replyMessage(ctx context.Context, args map[string]any) (any, error) {
	userID := argString(args, "user_id", "")
	text := argString(args, "text", "")

	if t.cfg.Agent.DryRun {
		return Result{"ok": true, "simulated": true, "psid": userID, "text": text}, nil
	}

	if err := t.facebookConfigured(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"recipient":      map[string]any{"id": userID},
		"message":        map[string]any{"text": text},
		"messaging_type": "RESPONSE",
		"access_token":   t.cfg.Facebook.AccessToken,
	}

	status, body, err := t.graphPostJSON(ctx, t.graphURL("/me/messages"), payload)
	if err != nil {
		return nil, err
	}
	res, ok := graphResult(status, body)
	if ok {
		res["psid"] = userID
	}
	return res, nil
}

func (t *Toolset) queuePostsForApproval(_ context.Context, args map[string]any) (any, error) {
	count := argInt(args, "count", 7)

	queued := make([]map[string]any, 0, count)
	for i := 1; i <= count; i++ {
		item := map[string]any{"idx": i, "text": fmt.Sprintf("Post #%d", i)}
		queued = append(queued, item)
		t.postBuffer = append(t.postBuffer, item)
	}
	return Result{"ok": true, "queued": queued, "buffer_size": len(t.postBuffer)}, nil
}
