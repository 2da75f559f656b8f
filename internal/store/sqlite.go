package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flexway/flextea/internal/models"
)

// SQLiteStore persists relay state in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/flextea.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/flextea.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent posts.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		group_name TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'idle',
		category INTEGER NOT NULL DEFAULT 0,
		audience INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		author_id INTEGER NOT NULL,
		category INTEGER NOT NULL,
		audience INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS replies (
		slot INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL REFERENCES messages(id),
		replier_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		body TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_group ON users(group_name);
	CREATE INDEX IF NOT EXISTS idx_replies_pending ON replies(replier_id, status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by ID. Returns nil if not registered.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_name, stage, category, audience, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Group, &u.Stage, &u.Category, &u.Audience, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// SaveUser inserts or overwrites a user record.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *models.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, group_name, stage, category, audience, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_name = excluded.group_name,
			stage = excluded.stage,
			category = excluded.category,
			audience = excluded.audience
	`, u.ID, u.Group, u.Stage, u.Category, u.Audience, createdAt)
	return err
}

// MembersOfGroup returns the IDs of all users registered under group.
func (s *SQLiteStore) MembersOfGroup(ctx context.Context, group string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE group_name = ?`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// AllMembers returns the IDs of every registered user.
func (s *SQLiteStore) AllMembers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountGroups returns the number of distinct groups.
func (s *SQLiteStore) CountGroups(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT group_name) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage assigns the next sequential ID and records the message.
// AUTOINCREMENT guarantees the sequence is monotonic and never reused.
func (s *SQLiteStore) CreateMessage(ctx context.Context, authorID int64, category models.Category, audience models.Audience, body string) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, author_id, category, audience, body, created_at)
		VALUES ('', ?, ?, ?, ?, ?)
	`, authorID, category, audience, body, now)
	if err != nil {
		return nil, err
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	id := models.MessageID(seq)
	if _, err := tx.ExecContext(ctx, `UPDATE messages SET id = ? WHERE seq = ?`, id, seq); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Message{
		ID:        id,
		Seq:       seq,
		AuthorID:  authorID,
		Category:  category,
		Audience:  audience,
		Body:      body,
		CreatedAt: now,
	}, nil
}

// GetMessage retrieves a message by ID. Returns nil if unknown.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, author_id, category, audience, body, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&msg.Seq, &msg.ID, &msg.AuthorID, &msg.Category, &msg.Audience, &msg.Body, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// CountMessages returns the number of messages ever created.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages`).Scan(&count)
	return count, err
}

// AppendReplySlot appends a pending slot for replierID to the message's
// thread.
func (s *SQLiteStore) AppendReplySlot(ctx context.Context, messageID string, replierID int64) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE id = ?`, messageID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrUnknownMessage
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replies (message_id, replier_id, status)
		VALUES (?, ?, 'pending')
	`, messageID, replierID)
	return err
}

// DeliverReply marks the replier's first pending slot delivered and returns
// the owning message ID. Ordering follows message creation, then slot order.
func (s *SQLiteStore) DeliverReply(ctx context.Context, replierID int64, text string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var slot int64
	var messageID string
	err = tx.QueryRowContext(ctx, `
		SELECT r.slot, r.message_id
		FROM replies r
		JOIN messages m ON m.id = r.message_id
		WHERE r.replier_id = ? AND r.status = 'pending'
		ORDER BY m.seq ASC, r.slot ASC
		LIMIT 1
	`, replierID).Scan(&slot, &messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoPendingReply
		}
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE replies SET status = 'delivered', body = ? WHERE slot = ?
	`, text, slot); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return messageID, nil
}

// CountPendingReplies returns the number of undelivered reply slots.
func (s *SQLiteStore) CountPendingReplies(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE status = 'pending'`).Scan(&count)
	return count, err
}
