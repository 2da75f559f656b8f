package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/flexway/flextea/internal/models"
)

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.GetUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("expected nil for unknown user")
	}

	if err := s.SaveUser(ctx, &models.User{ID: 1, Group: "StoreA", Stage: models.StageIdle}); err != nil {
		t.Fatal(err)
	}

	u, err = s.GetUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Group != "StoreA" || u.Stage != models.StageIdle {
		t.Fatalf("unexpected user: %+v", u)
	}

	// Mutating the returned copy must not leak into the store.
	u.Group = "changed"
	again, _ := s.GetUser(ctx, 1)
	if again.Group != "StoreA" {
		t.Fatal("store returned shared state")
	}
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i, group := range []string{"StoreA", "StoreA", "StoreB"} {
		if err := s.SaveUser(ctx, &models.User{ID: int64(i + 1), Group: group, Stage: models.StageIdle}); err != nil {
			t.Fatal(err)
		}
	}

	members, err := s.MembersOfGroup(ctx, "StoreA")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 StoreA members, got %d", len(members))
	}

	all, err := s.AllMembers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 members total, got %d", len(all))
	}

	groups, _ := s.CountGroups(ctx)
	if groups != 2 {
		t.Fatalf("expected 2 groups, got %d", groups)
	}
}

func TestMessageIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 1; i <= 3; i++ {
		msg, err := s.CreateMessage(ctx, int64(i), models.CategoryGossip, models.AudienceMyOffice, "body")
		if err != nil {
			t.Fatal(err)
		}
		want := fmt.Sprintf("MSG%d", i)
		if msg.ID != want {
			t.Fatalf("expected %s, got %s", want, msg.ID)
		}
	}

	count, _ := s.CountMessages(ctx)
	if count != 3 {
		t.Fatalf("expected 3 messages, got %d", count)
	}
}

func TestMessageIDsUniqueUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(author int64) {
			defer wg.Done()
			msg, err := s.CreateMessage(ctx, author, models.CategoryComplaint, models.AudienceAllFlexway, "x")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- msg.ID
		}(int64(i))
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate message ID %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct IDs, got %d", n, len(seen))
	}
}

func TestReplySlotLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.AppendReplySlot(ctx, "MSG1", 42); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}

	msg, err := s.CreateMessage(ctx, 1, models.CategorySuggestion, models.AudienceMyOffice, "hello")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.DeliverReply(ctx, 42, "text"); !errors.Is(err, ErrNoPendingReply) {
		t.Fatalf("expected ErrNoPendingReply, got %v", err)
	}

	if err := s.AppendReplySlot(ctx, msg.ID, 42); err != nil {
		t.Fatal(err)
	}

	pending, _ := s.CountPendingReplies(ctx)
	if pending != 1 {
		t.Fatalf("expected 1 pending slot, got %d", pending)
	}

	got, err := s.DeliverReply(ctx, 42, "my reply")
	if err != nil {
		t.Fatal(err)
	}
	if got != msg.ID {
		t.Fatalf("expected %s, got %s", msg.ID, got)
	}

	// Slot transitions exactly once.
	if _, err := s.DeliverReply(ctx, 42, "again"); !errors.Is(err, ErrNoPendingReply) {
		t.Fatalf("expected ErrNoPendingReply after delivery, got %v", err)
	}
}

func TestDeliverReplyThreadOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m1, _ := s.CreateMessage(ctx, 1, models.CategoryGossip, models.AudienceMyOffice, "first")
	m2, _ := s.CreateMessage(ctx, 2, models.CategoryGossip, models.AudienceMyOffice, "second")

	// Intent order is MSG2 then MSG1; delivery must still resolve to MSG1
	// first because matching follows thread creation order.
	if err := s.AppendReplySlot(ctx, m2.ID, 99); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendReplySlot(ctx, m1.ID, 99); err != nil {
		t.Fatal(err)
	}

	got, err := s.DeliverReply(ctx, 99, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got != m1.ID {
		t.Fatalf("expected %s first, got %s", m1.ID, got)
	}

	got, err = s.DeliverReply(ctx, 99, "b")
	if err != nil {
		t.Fatal(err)
	}
	if got != m2.ID {
		t.Fatalf("expected %s second, got %s", m2.ID, got)
	}
}

func TestDeliverReplyMatchesReplierOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m1, _ := s.CreateMessage(ctx, 1, models.CategoryGossip, models.AudienceMyOffice, "first")

	if err := s.AppendReplySlot(ctx, m1.ID, 7); err != nil {
		t.Fatal(err)
	}

	if _, err := s.DeliverReply(ctx, 8, "not mine"); !errors.Is(err, ErrNoPendingReply) {
		t.Fatalf("expected ErrNoPendingReply for other replier, got %v", err)
	}
}
