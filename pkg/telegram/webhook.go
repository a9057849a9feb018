package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"shrinkbot/pkg/logger"
)

// SecretTokenHeader carries the secret configured with setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxWebhookBody = 1 << 20

// WebhookHandler handles incoming Telegram webhook requests (framework-level)
type WebhookHandler struct {
	updateHandler func(Update) // must not block; usually Dispatcher.HandleUpdate
	secret        string
	log           *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
// When secret is set, requests without a matching secret token header are rejected.
func NewWebhookHandler(updateHandler func(Update), secret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		updateHandler: updateHandler,
		secret:        secret,
		log:           log.With("component", "telegram_webhook"),
	}
}

// ServeHTTP implements http.Handler interface
func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wh.log.Warnw("Invalid webhook request method", "method", r.Method)
		wh.sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if wh.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(wh.secret)) != 1 {
			wh.log.Warnw("Webhook request with bad secret token", "remote_addr", r.RemoteAddr)
			wh.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var update Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&update); err != nil {
		wh.log.Warnw("Failed to decode webhook update", "error", err)
		wh.sendErrorResponse(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if update.Message != nil {
		update.Message.ParseCommand()
	}

	wh.log.Debugw("Received webhook update",
		"update_id", update.UpdateID,
		"has_message", update.HasMessage(),
	)

	wh.updateHandler(update)

	// Always acknowledge, otherwise Telegram retries the same update
	wh.sendSuccessResponse(w)
}

func (wh *WebhookHandler) sendSuccessResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": true,
	})
}

func (wh *WebhookHandler) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":          false,
		"error":       message,
		"description": message,
	})
}
