package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexway/flextea/internal/models"
)

// PostgresStore persists relay state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		group_name TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'idle',
		category INT NOT NULL DEFAULT 0,
		audience INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		id TEXT UNIQUE NOT NULL DEFAULT '',
		author_id BIGINT NOT NULL,
		category INT NOT NULL,
		audience INT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS replies (
		slot BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id),
		replier_id BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		body TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_group ON users(group_name);
	CREATE INDEX IF NOT EXISTS idx_replies_pending ON replies(replier_id, status);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUser retrieves a user by ID. Returns nil if not registered.
func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, group_name, stage, category, audience, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Group, &u.Stage, &u.Category, &u.Audience, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// SaveUser inserts or overwrites a user record.
func (s *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, group_name, stage, category, audience, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			group_name = EXCLUDED.group_name,
			stage = EXCLUDED.stage,
			category = EXCLUDED.category,
			audience = EXCLUDED.audience
	`, u.ID, u.Group, u.Stage, u.Category, u.Audience, createdAt)
	return err
}

// MembersOfGroup returns the IDs of all users registered under group.
func (s *PostgresStore) MembersOfGroup(ctx context.Context, group string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE group_name = $1`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// AllMembers returns the IDs of every registered user.
func (s *PostgresStore) AllMembers(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
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
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountGroups returns the number of distinct groups.
func (s *PostgresStore) CountGroups(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT group_name) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage assigns the next sequential ID and records the message.
func (s *PostgresStore) CreateMessage(ctx context.Context, authorID int64, category models.Category, audience models.Audience, body string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msg := &models.Message{
		AuthorID: authorID,
		Category: category,
		Audience: audience,
		Body:     body,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (author_id, category, audience, body)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at
	`, authorID, category, audience, body).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	msg.ID = models.MessageID(msg.Seq)
	if _, err := tx.Exec(ctx, `UPDATE messages SET id = $1 WHERE seq = $2`, msg.ID, msg.Seq); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID. Returns nil if unknown.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT seq, id, author_id, category, audience, body, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&msg.Seq, &msg.ID, &msg.AuthorID, &msg.Category, &msg.Audience, &msg.Body, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// CountMessages returns the number of messages ever created.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages`).Scan(&count)
	return count, err
}

// AppendReplySlot appends a pending slot for replierID to the message's
// thread.
func (s *PostgresStore) AppendReplySlot(ctx context.Context, messageID string, replierID int64) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO replies (message_id, replier_id, status)
		SELECT $1, $2, 'pending'
		WHERE EXISTS (SELECT 1 FROM messages WHERE id = $1)
	`, messageID, replierID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownMessage
	}
	return nil
}

// DeliverReply marks the replier's first pending slot delivered and returns
// the owning message ID. Ordering follows message creation, then slot order.
// FOR UPDATE SKIP LOCKED keeps concurrent deliveries from racing one slot.
func (s *PostgresStore) DeliverReply(ctx context.Context, replierID int64, text string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var slot int64
	var messageID string
	err = tx.QueryRow(ctx, `
		SELECT r.slot, r.message_id
		FROM replies r
		JOIN messages m ON m.id = r.message_id
		WHERE r.replier_id = $1 AND r.status = 'pending'
		ORDER BY m.seq ASC, r.slot ASC
		LIMIT 1
		FOR UPDATE OF r SKIP LOCKED
	`, replierID).Scan(&slot, &messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoPendingReply
		}
		return "", err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE replies SET status = 'delivered', body = $1 WHERE slot = $2
	`, text, slot); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return messageID, nil
}

// CountPendingReplies returns the number of undelivered reply slots.
func (s *PostgresStore) CountPendingReplies(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM replies WHERE status = 'pending'`).Scan(&count)
	return count, err
}
