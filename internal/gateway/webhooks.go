package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/merxlabs/merx/internal/store"
	"github.com/merxlabs/merx/internal/tools"
)

// verifyHandshake answers the Meta hub.challenge subscription check.
// Returns true when the request was a verification attempt and has been
// answered.
func (h *handler) verifyHandshake(w http.ResponseWriter, r *http.Request, expectedToken, auditMessage string) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == expectedToken {
		params := map[string]any{}
		for k := range q {
			params[k] = q.Get(k)
		}
		if _, err := h.deps.Store.AppendAudit(r.Context(), store.AuditEntry{
			EventType: store.AuditEventWebhook,
			Message:   auditMessage,
			Payload:   params,
		}); err != nil {
			slog.Warn("audit write failed", "event", auditMessage, "error", err)
		}

		n, err := strconv.Atoi(challenge)
		if err != nil {
			n = 0
		}
		writeJSON(w, http.StatusOK, n)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": false})
}

func (h *handler) facebookWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	switch r.Method {
	case http.MethodGet:
		h.verifyHandshake(w, r, h.deps.Cfg.Facebook.VerifyToken, "facebook_verify")
	case http.MethodPost:
		h.facebookEvent(w, r)
	default:
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *handler) facebookEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, getRequestID(r), http.StatusBadRequest, "bad_request", "invalid json payload")
		return
	}
	if _, err := h.deps.Store.AppendAudit(ctx, store.AuditEntry{
		EventType: store.AuditEventWebhook,
		Message:   "facebook_event",
		Payload:   payload,
	}); err != nil {
		slog.Warn("audit write failed", "event", "facebook_event", "error", err)
	}

	for _, entry := range asSlice(payload["entry"]) {
		e := asMap(entry)

		// Messenger messages arrive under entry[].messaging[].
		for _, raw := range asSlice(e["messaging"]) {
			msg := asMap(raw)
			message := asMap(msg["message"])
			if echo, _ := message["is_echo"].(bool); echo {
				continue
			}
			sender := stringField(asMap(msg["sender"]), "id")
			text := stringField(message, "text")
			mid := stringField(message, "mid")
			if sender == "" || text == "" {
				continue
			}

			h.ingestAndReply(ctx, &store.MessageEvent{
				Channel:    "facebook_message",
				ExternalID: mid,
				FromUser:   sender,
				Text:       text,
				Meta:       map[string]any{"raw": msg},
			}, tools.Call{
				Name: "facebook.reply_message",
				Args: map[string]any{"user_id": sender},
			})
		}

		// Feed comments arrive under entry[].changes[].value.
		for _, raw := range asSlice(e["changes"]) {
			ch := asMap(raw)
			value := asMap(ch["value"])
			item := stringField(value, "item")
			verb := stringField(value, "verb")
			if item != "comment" || (verb != "add" && verb != "edited") {
				continue
			}

			commentID := stringField(value, "comment_id")
			if commentID == "" {
				commentID = stringField(value, "id")
			}
			text := stringField(value, "message")
			from := stringField(asMap(value["from"]), "id")
			if from == "" {
				from = "unknown"
			}
			if commentID == "" || text == "" {
				continue
			}

			h.ingestAndReply(ctx, &store.MessageEvent{
				Channel:    "facebook_comment",
				ExternalID: commentID,
				FromUser:   from,
				Text:       text,
				Meta:       map[string]any{"raw": ch},
			}, tools.Call{
				Name: "facebook.reply_comment",
				Args: map[string]any{"comment_id": commentID},
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) whatsappWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	switch r.Method {
	case http.MethodGet:
		h.verifyHandshake(w, r, h.deps.Cfg.WhatsApp.VerifyToken, "whatsapp_verify")
	case http.MethodPost:
		h.whatsappEvent(w, r)
	default:
		writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *handler) whatsappEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, getRequestID(r), http.StatusBadRequest, "bad_request", "invalid json payload")
		return
	}
	if _, err := h.deps.Store.AppendAudit(ctx, store.AuditEntry{
		EventType: store.AuditEventWebhook,
		Message:   "whatsapp_event",
		Payload:   payload,
	}); err != nil {
		slog.Warn("audit write failed", "event", "whatsapp_event", "error", err)
	}

	for _, entry := range asSlice(payload["entry"]) {
		for _, raw := range asSlice(asMap(entry)["changes"]) {
			value := asMap(asMap(raw)["value"])
			for _, m := range asSlice(value["messages"]) {
				msg := asMap(m)
				from := stringField(msg, "from")
				mid := stringField(msg, "id")
				body := stringField(asMap(msg["text"]), "body")
				if body == "" {
					continue
				}

				h.ingestAndReply(ctx, &store.MessageEvent{
					Channel:    "whatsapp_message",
					ExternalID: mid,
					FromUser:   from,
					Text:       body,
					Meta:       map[string]any{"raw": msg},
				}, tools.Call{
					Name: "whatsapp.send_reply",
					Args: map[string]any{"to": from},
				})
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ingestAndReply persists one inbound message, drafts a brand-voice
// reply and sends it through the executor so provider failures surface
// as structured results instead of aborting ingestion.
func (h *handler) ingestAndReply(ctx context.Context, event *store.MessageEvent, reply tools.Call) {
	if err := h.deps.Store.AddMessageEvent(ctx, event); err != nil {
		slog.Error("webhook ingest failed", "channel", event.Channel, "error", err)
		return
	}

	drafted := h.deps.Gen.DraftReply(ctx, event.Channel, event.Text)
	reply.Args["text"] = drafted.Text

	out := h.deps.Executor.Execute(ctx, reply)
	if !out.OK() {
		slog.Warn("webhook auto-reply failed",
			"channel", event.Channel, "tool", reply.Name, "error", out.ErrorMessage())
		return
	}
	if err := h.deps.Store.MarkMessageProcessed(ctx, event.ID); err != nil {
		slog.Warn("webhook mark processed failed", "id", event.ID, "error", err)
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
