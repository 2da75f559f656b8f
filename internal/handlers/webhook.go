package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/flexway/flextea/internal/metrics"
	"github.com/flexway/flextea/internal/telegram"
)

// Webhook receives Telegram updates. The secret path segment is the only
// authentication; a mismatch returns 404 so the endpoint is
// indistinguishable from an unknown path.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		http.NotFound(w, r)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	metrics.UpdatesReceived.Inc()

	// Edited messages, channel posts and other update kinds carry no Message
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	logger := h.logger.With().
		Str("event_id", ulid.Make().String()).
		Int64("update_id", update.UpdateID).
		Logger()

	userID := update.Message.From.ID
	if err := h.dialog.Handle(r.Context(), userID, update.Message.Text); err != nil {
		// Telegram retries non-200 responses aggressively; log and accept
		logger.Error().Err(err).Msg("update handling failed")
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
