package models

import "time"

// ReplyStatus tracks a reply slot's lifecycle.
type ReplyStatus string

const (
	ReplyPending   ReplyStatus = "pending"
	ReplyDelivered ReplyStatus = "delivered"
)

// ReplySlot is a placeholder for an intended anonymous reply from a specific
// user to a specific message. Created pending by a reply-intent command and
// delivered exactly once, when that replier's next free text arrives.
type ReplySlot struct {
	MessageID string      `json:"message_id"`
	ReplierID int64       `json:"replier_id"`
	Status    ReplyStatus `json:"status"`
	Body      string      `json:"body,omitempty"` // set once delivered
	CreatedAt time.Time   `json:"created_at"`
}
