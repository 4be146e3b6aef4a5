package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/dialogue"
)

type stubHandler struct {
	handled bool
	events  []dialogue.Event
}

func (s *stubHandler) HandleMessage(_ context.Context, event dialogue.Event) bool {
	s.events = append(s.events, event)
	return s.handled
}

func TestHealthz(t *testing.T) {
	srv := New(&stubHandler{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestProcessMessage(t *testing.T) {
	handler := &stubHandler{handled: true}
	srv := New(handler, zap.NewNop())

	body := `{"senderUserID": "u1", "chatID": "c1", "chatMessageID": "m1"}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_message", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	if len(handler.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(handler.events))
	}
	event := handler.events[0]
	if event.SenderUserID != "u1" || event.ChatID != "c1" || event.ChatMessageID != "m1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestProcessMessageRejectsInvalidBody(t *testing.T) {
	handler := &stubHandler{handled: true}
	srv := New(handler, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_message", strings.NewReader("not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(handler.events) != 0 {
		t.Fatalf("expected handler to not be called")
	}
}

func TestProcessMessageRequiresIdentifiers(t *testing.T) {
	handler := &stubHandler{handled: true}
	srv := New(handler, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_message", strings.NewReader(`{"chatMessageID": "m1"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProcessMessageReportsFailure(t *testing.T) {
	srv := New(&stubHandler{handled: false}, zap.NewNop())

	body := `{"senderUserID": "u1", "chatID": "c1"}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_message", strings.NewReader(body)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
