package models

import "time"

// Stage identifies a registered user's position in the posting dialog.
// Unregistered users have no stored record at all, so "unregistered" never
// appears here; Idle is the resting stage.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageAwaitingCategory Stage = "awaiting_category"
	StageAwaitingAudience Stage = "awaiting_audience"
	StageComposing        Stage = "composing"
)

// User represents a registered user and their conversation state.
// Category is meaningful from StageAwaitingAudience on, Audience only while
// StageComposing; both are zero otherwise.
type User struct {
	ID        int64     `json:"id"` // Telegram chat/user ID
	Group     string    `json:"group"`
	Stage     Stage     `json:"stage"`
	Category  Category  `json:"category,omitempty"`
	Audience  Audience  `json:"audience,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResetToIdle clears any in-progress post and returns the user to the
// resting stage.
func (u *User) ResetToIdle() {
	u.Stage = StageIdle
	u.Category = 0
	u.Audience = 0
}

// Valid reports whether the user's fields are consistent with its stage.
func (u *User) Valid() bool {
	if u.Group == "" {
		return false
	}
	switch u.Stage {
	case StageIdle, StageAwaitingCategory:
		return u.Category == 0 && u.Audience == 0
	case StageAwaitingAudience:
		return u.Category != 0 && u.Audience == 0
	case StageComposing:
		return u.Category != 0 && u.Audience != 0
	}
	return false
}
