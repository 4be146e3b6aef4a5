// Package server exposes the webhook endpoint the chat platform dispatcher
// posts direct-message events to.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/dialogue"
)

const maxBodySize = 1 << 20 // 1MB

// MessageHandler processes one inbound event and reports whether the turn was
// handled.
type MessageHandler interface {
	HandleMessage(ctx context.Context, event dialogue.Event) bool
}

// New builds the HTTP handler.
func New(handler MessageHandler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/process_message", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)
		defer req.Body.Close()

		var event dialogue.Event
		if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "invalid request body",
			})
			return
		}

		if event.SenderUserID == "" || event.ChatID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "senderUserID and chatID are required",
			})
			return
		}

		if ok := handler.HandleMessage(req.Context(), event); !ok {
			logger.Error("message processing failed",
				zap.String("sender_user_id", event.SenderUserID),
				zap.String("chat_id", event.ChatID),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "message processing failed",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "message processed successfully",
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
