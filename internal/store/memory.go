package store

import (
	"context"
	"sync"
	"time"

	"github.com/flexway/flextea/internal/models"
)

// MemoryStore keeps all state in process memory. It is the default store in
// development and the one the core's tests run against; state survives only
// for the process lifetime.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	messages map[string]*models.Message
	order    []string // message IDs in creation order
	threads  map[string][]*models.ReplySlot
	// pending indexes each replier's outstanding slots so delivery does not
	// scan every thread. Selection still honors thread creation order, not
	// reply-intent order.
	pending map[int64][]*pendingRef
	seq     int64
}

type pendingRef struct {
	messageID string
	msgSeq    int64
	idx       int // slot index within the thread
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*models.User),
		messages: make(map[string]*models.Message),
		threads:  make(map[string][]*models.ReplySlot),
		pending:  make(map[int64][]*pendingRef),
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// GetUser retrieves a user by ID. Returns nil if not registered.
func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// SaveUser inserts or overwrites a user record.
func (s *MemoryStore) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.users[cp.ID] = &cp
	return nil
}

// MembersOfGroup returns the IDs of all users registered under group.
func (s *MemoryStore) MembersOfGroup(ctx context.Context, group string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, u := range s.users {
		if u.Group == group {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AllMembers returns the IDs of every registered user.
func (s *MemoryStore) AllMembers(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

// CountUsers returns the number of registered users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// CountGroups returns the number of distinct groups.
func (s *MemoryStore) CountGroups(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string]struct{})
	for _, u := range s.users {
		groups[u.Group] = struct{}{}
	}
	return int64(len(groups)), nil
}

// CreateMessage assigns the next sequential ID, records the message and
// initializes its empty reply thread.
func (s *MemoryStore) CreateMessage(ctx context.Context, authorID int64, category models.Category, audience models.Audience, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg := &models.Message{
		ID:        models.MessageID(s.seq),
		Seq:       s.seq,
		AuthorID:  authorID,
		Category:  category,
		Audience:  audience,
		Body:      body,
		CreatedAt: time.Now(),
	}
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	s.threads[msg.ID] = nil

	cp := *msg
	return &cp, nil
}

// GetMessage retrieves a message by ID. Returns nil if unknown.
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

// CountMessages returns the number of messages ever created.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

// AppendReplySlot appends a pending slot for replierID to the message's
// thread.
func (s *MemoryStore) AppendReplySlot(ctx context.Context, messageID string, replierID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return ErrUnknownMessage
	}

	slot := &models.ReplySlot{
		MessageID: messageID,
		ReplierID: replierID,
		Status:    models.ReplyPending,
		CreatedAt: time.Now(),
	}
	s.threads[messageID] = append(s.threads[messageID], slot)
	s.pending[replierID] = append(s.pending[replierID], &pendingRef{
		messageID: messageID,
		msgSeq:    msg.Seq,
		idx:       len(s.threads[messageID]) - 1,
	})
	return nil
}

// DeliverReply marks the replier's first pending slot delivered. "First"
// follows thread creation order, then slot order within the thread, even
// when the replier issued the intents in a different order.
func (s *MemoryStore) DeliverReply(ctx context.Context, replierID int64, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := s.pending[replierID]
	if len(refs) == 0 {
		return "", ErrNoPendingReply
	}

	best := 0
	for i := 1; i < len(refs); i++ {
		if refs[i].msgSeq < refs[best].msgSeq ||
			(refs[i].msgSeq == refs[best].msgSeq && refs[i].idx < refs[best].idx) {
			best = i
		}
	}
	ref := refs[best]

	slot := s.threads[ref.messageID][ref.idx]
	slot.Status = models.ReplyDelivered
	slot.Body = text

	s.pending[replierID] = append(refs[:best], refs[best+1:]...)
	if len(s.pending[replierID]) == 0 {
		delete(s.pending, replierID)
	}
	return ref.messageID, nil
}

// CountPendingReplies returns the number of undelivered reply slots.
func (s *MemoryStore) CountPendingReplies(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, refs := range s.pending {
		n += int64(len(refs))
	}
	return n, nil
}
