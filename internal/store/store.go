package store

import (
	"context"
	"errors"

	"github.com/flexway/flextea/internal/models"
)

var (
	// ErrUnknownMessage is returned when a message ID does not exist.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrNoPendingReply is returned by DeliverReply when the replier has no
	// pending reply slot anywhere.
	ErrNoPendingReply = errors.New("no pending reply")
)

// DataStore is the key-based storage the relay core runs on: user
// conversation state, group membership, the message registry and reply
// threads. MemoryStore, SQLiteStore and PostgresStore implement it.
//
// Message ID assignment and reply-slot operations are atomic within each
// implementation so concurrent posts never produce duplicate IDs and
// concurrent replies never lose slots.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Users and group membership
	GetUser(ctx context.Context, id int64) (*models.User, error) // nil when absent
	SaveUser(ctx context.Context, u *models.User) error          // upsert
	MembersOfGroup(ctx context.Context, group string) ([]int64, error)
	AllMembers(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountGroups(ctx context.Context) (int64, error)

	// Message registry
	CreateMessage(ctx context.Context, authorID int64, category models.Category, audience models.Audience, body string) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error) // nil when unknown
	CountMessages(ctx context.Context) (int64, error)

	// Reply threads
	AppendReplySlot(ctx context.Context, messageID string, replierID int64) error
	// DeliverReply finds the replier's first pending slot (thread creation
	// order, then slot order within a thread), marks it delivered with text
	// and returns the owning message ID.
	DeliverReply(ctx context.Context, replierID int64, text string) (string, error)
	CountPendingReplies(ctx context.Context) (int64, error)
}
