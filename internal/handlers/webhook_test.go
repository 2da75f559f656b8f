package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/flexway/flextea/internal/dialog"
	"github.com/flexway/flextea/internal/directory"
	"github.com/flexway/flextea/internal/router"
	"github.com/flexway/flextea/internal/store"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[int64][]string)}
}

func (s *recordingSender) Send(ctx context.Context, recipient int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[recipient] = append(s.sent[recipient], text)
	return nil
}

func (s *recordingSender) SendMarkdown(ctx context.Context, recipient int64, text string) error {
	return s.Send(ctx, recipient, text)
}

func newTestHandler(t *testing.T) (*Handler, *recordingSender) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := zerolog.Nop()
	sender := newRecordingSender()
	dir := directory.New(st, logger)
	rt := router.New(st, dir, sender, logger)
	dlg := dialog.New(dir, rt, sender, logger)
	return NewHandler(st, nil, dlg, "test-secret", logger), sender
}

func webhookRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook/{secret}", h.Webhook)
	return r
}

func postUpdate(t *testing.T, srv http.Handler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+secret, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func updateJSON(updateID, userID int64, text string) string {
	return fmt.Sprintf(`{"update_id":%d,"message":{"message_id":1,"from":{"id":%d,"first_name":"T"},"chat":{"id":%d,"type":"private"},"text":%q}}`,
		updateID, userID, userID, text)
}

func TestWebhookWrongSecret(t *testing.T) {
	h, sender := newTestHandler(t)
	srv := webhookRouter(h)

	rec := postUpdate(t, srv, "wrong-secret", updateJSON(1, 10, "StoreA"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("wrong secret: got status %d, want %d", rec.Code, http.StatusNotFound)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("wrong secret must not reach the dialog, sent: %v", sender.sent)
	}
}

func TestWebhookDispatchesToDialog(t *testing.T) {
	h, sender := newTestHandler(t)
	srv := webhookRouter(h)

	rec := postUpdate(t, srv, "test-secret", updateJSON(1, 10, "StoreA"))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	msgs := sender.sent[10]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message to user 10, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "StoreA") {
		t.Errorf("registration confirmation should name the group, got %q", msgs[0])
	}
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	h, sender := newTestHandler(t)
	srv := webhookRouter(h)

	for _, body := range []string{
		`{"update_id":5}`,
		`{"update_id":6,"message":{"message_id":2,"chat":{"id":1,"type":"private"},"text":"hi"}}`,
		`{"update_id":7,"message":{"message_id":3,"from":{"id":10},"chat":{"id":10,"type":"private"},"text":""}}`,
	} {
		rec := postUpdate(t, srv, "test-secret", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("non-message update %s: got status %d, want 200", body, rec.Code)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("non-message updates must not produce sends, got: %v", sender.sent)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := webhookRouter(h)

	rec := postUpdate(t, srv, "test-secret", `{"update_id":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON: got status %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookAlwaysAcksValidUpdates(t *testing.T) {
	h, sender := newTestHandler(t)
	srv := webhookRouter(h)

	// Drive a full conversation through the webhook and check each hop acks
	steps := []string{"StoreA", "/spill", "1", "1", "someone keeps stealing lunches"}
	for i, text := range steps {
		rec := postUpdate(t, srv, "test-secret", updateJSON(int64(i+1), 10, text))
		if rec.Code != http.StatusOK {
			t.Fatalf("step %q: got status %d, want 200", text, rec.Code)
		}
	}

	var posted bool
	for _, msg := range sender.sent[10] {
		if strings.Contains(msg, "posted anonymously") {
			posted = true
		}
	}
	if !posted {
		t.Errorf("expected posting confirmation, got: %v", sender.sent[10])
	}
}
