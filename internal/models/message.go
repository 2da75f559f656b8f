package models

import (
	"fmt"
	"time"
)

// Message represents an anonymous post. Immutable once created.
type Message struct {
	ID        string    `json:"id"`  // "MSG<n>", n monotonic, never reused
	Seq       int64     `json:"seq"` // the <n> of the ID, for ordering
	AuthorID  int64     `json:"author_id"`
	Category  Category  `json:"category"`
	Audience  Audience  `json:"audience"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageID formats the public message ID for a sequence number.
func MessageID(seq int64) string {
	return fmt.Sprintf("MSG%d", seq)
}
