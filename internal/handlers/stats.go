package handlers

import (
	"net/http"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers     int64 `json:"total_users"`
	TotalGroups    int64 `json:"total_groups"`
	TotalMessages  int64 `json:"total_messages"`
	PendingReplies int64 `json:"pending_replies"`
}

// Stats returns platform statistics. Counts only, never message content;
// the endpoint must not leak anything an author posted anonymously.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.store.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalGroups, err := h.store.CountGroups(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count groups")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	pendingReplies, err := h.store.CountPendingReplies(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count pending replies")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:     totalUsers,
		TotalGroups:    totalGroups,
		TotalMessages:  totalMessages,
		PendingReplies: pendingReplies,
	})
}
