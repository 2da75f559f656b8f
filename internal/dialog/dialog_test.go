package dialog

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/flexway/flextea/internal/directory"
	"github.com/flexway/flextea/internal/models"
	"github.com/flexway/flextea/internal/router"
	"github.com/flexway/flextea/internal/store"
)

type capturingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newCapturingSender() *capturingSender {
	return &capturingSender{sent: make(map[int64][]string)}
}

func (c *capturingSender) Send(ctx context.Context, recipient int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[recipient] = append(c.sent[recipient], text)
	return nil
}

func (c *capturingSender) SendMarkdown(ctx context.Context, recipient int64, text string) error {
	return c.Send(ctx, recipient, text)
}

func (c *capturingSender) last(recipient int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.sent[recipient]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (c *capturingSender) all(recipient int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent[recipient]...)
}

func newService(t *testing.T) (*Service, *store.MemoryStore, *capturingSender) {
	t.Helper()
	s := store.NewMemoryStore()
	dir := directory.New(s, zerolog.Nop())
	sender := newCapturingSender()
	rt := router.New(s, dir, sender, zerolog.Nop())
	return New(dir, rt, sender, zerolog.Nop()), s, sender
}

func mustHandle(t *testing.T, svc *Service, userID int64, text string) {
	t.Helper()
	if err := svc.Handle(context.Background(), userID, text); err != nil {
		t.Fatalf("Handle(%d, %q): %v", userID, text, err)
	}
}

func TestFirstMessageRegisters(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")

	u, err := s.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Group != "StoreA" || u.Stage != models.StageIdle {
		t.Fatalf("unexpected user after registration: %+v", u)
	}
	if !strings.Contains(sender.last(1), "StoreA") {
		t.Fatalf("confirmation should echo the group: %q", sender.last(1))
	}
}

func TestCommandTextRegistersAsGroup(t *testing.T) {
	// Any first text registers, including accidental command text; only
	// /start is special-cased.
	svc, s, _ := newService(t)

	mustHandle(t, svc, 1, "/spilll")

	u, _ := s.GetUser(context.Background(), 1)
	if u == nil || u.Group != "/spilll" {
		t.Fatalf("expected command typo to become the group name, got %+v", u)
	}
}

func TestStartGreetsWithoutRegistering(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "/start")

	u, _ := s.GetUser(context.Background(), 1)
	if u != nil {
		t.Fatalf("/start must not register, got %+v", u)
	}
	if !strings.Contains(sender.last(1), "FlexTea") {
		t.Fatalf("expected greeting, got %q", sender.last(1))
	}
}

func TestFullPostingScenario(t *testing.T) {
	svc, s, sender := newService(t)

	// Group mates and a bystander in another group.
	mustHandle(t, svc, 2, "StoreA")
	mustHandle(t, svc, 3, "StoreB")

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 1, "/spill")
	if !strings.Contains(sender.last(1), "What would you like to post?") {
		t.Fatalf("expected category menu, got %q", sender.last(1))
	}

	mustHandle(t, svc, 1, "2") // Suggestion
	if !strings.Contains(sender.last(1), "Who should see this?") {
		t.Fatalf("expected audience menu, got %q", sender.last(1))
	}

	mustHandle(t, svc, 1, "1") // My Office
	if !strings.Contains(sender.last(1), "type your message") {
		t.Fatalf("expected compose prompt, got %q", sender.last(1))
	}

	mustHandle(t, svc, 1, "the coffee machine is broken")
	if sender.last(1) != postedText {
		t.Fatalf("expected post confirmation, got %q", sender.last(1))
	}

	// Fan-out reached the group mate, not the author, not the other group.
	got := sender.all(2)
	if len(got) == 0 || !strings.Contains(got[len(got)-1], "MSG1") {
		t.Fatalf("group mate should receive MSG1, got %v", got)
	}
	if !strings.Contains(got[len(got)-1], "Suggestion") {
		t.Fatalf("fan-out should carry the category, got %q", got[len(got)-1])
	}
	for _, text := range sender.all(3) {
		if strings.Contains(text, "MSG1") {
			t.Fatal("other group must not receive a group-scoped post")
		}
	}

	// Author reset to Idle with no pending selections.
	u, _ := s.GetUser(context.Background(), 1)
	if u.Stage != models.StageIdle || u.Category != 0 || u.Audience != 0 {
		t.Fatalf("expected idle reset after post, got %+v", u)
	}
}

func TestRejectedBodyKeepsComposing(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 1, "/spill")
	mustHandle(t, svc, 1, "3")
	mustHandle(t, svc, 1, "1")

	mustHandle(t, svc, 1, "my manager is lazy")
	if sender.last(1) != rephraseText {
		t.Fatalf("expected rephrase warning, got %q", sender.last(1))
	}

	u, _ := s.GetUser(context.Background(), 1)
	if u.Stage != models.StageComposing {
		t.Fatalf("rejection must keep the user composing, got %v", u.Stage)
	}

	// Retry with an acceptable body completes the post.
	mustHandle(t, svc, 1, "the rota keeps changing with no notice")
	if sender.last(1) != postedText {
		t.Fatalf("expected post confirmation on retry, got %q", sender.last(1))
	}
}

func TestReplyThreadingAnonymity(t *testing.T) {
	svc, _, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA") // author A
	mustHandle(t, svc, 2, "StoreA") // replier B
	mustHandle(t, svc, 3, "StoreA") // bystander

	mustHandle(t, svc, 1, "/spill")
	mustHandle(t, svc, 1, "1")
	mustHandle(t, svc, 1, "1")
	mustHandle(t, svc, 1, "who keeps moving the spare chairs")

	mustHandle(t, svc, 2, "/reply MSG1")
	if sender.last(2) != replyPromptText {
		t.Fatalf("expected reply prompt, got %q", sender.last(2))
	}

	mustHandle(t, svc, 2, "hello")
	if sender.last(2) != replySentText {
		t.Fatalf("expected reply confirmation, got %q", sender.last(2))
	}

	// Author (and only the author) receives the reply text.
	authorMsgs := sender.all(1)
	lastToAuthor := authorMsgs[len(authorMsgs)-1]
	if !strings.Contains(lastToAuthor, "hello") || !strings.Contains(lastToAuthor, "MSG1") {
		t.Fatalf("author should receive the anonymous reply, got %q", lastToAuthor)
	}
	for _, text := range sender.all(3) {
		if strings.Contains(text, "hello") {
			t.Fatal("bystander must not receive the reply")
		}
	}

	// The replier's confirmation names only the message, never the author.
	if strings.Contains(sender.last(2), "MSG1") {
		t.Fatalf("reply confirmation should not echo thread details, got %q", sender.last(2))
	}
}

func TestReplyIntentMidMenuAbandonsSpill(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 2, "StoreA")

	mustHandle(t, svc, 1, "/spill")
	mustHandle(t, svc, 1, "1")
	mustHandle(t, svc, 1, "1")
	mustHandle(t, svc, 1, "who finished the oat milk")

	// Mid-menu reply intent: the spill flow is abandoned so the prompted
	// free text actually delivers instead of hitting the menu fallback.
	mustHandle(t, svc, 2, "/spill")
	mustHandle(t, svc, 2, "/reply MSG1")
	if sender.last(2) != replyPromptText {
		t.Fatalf("expected reply prompt, got %q", sender.last(2))
	}
	u, _ := s.GetUser(context.Background(), 2)
	if u.Stage != models.StageIdle || u.Category != 0 || u.Audience != 0 {
		t.Fatalf("reply intent mid-menu must reset to idle, got %+v", u)
	}

	mustHandle(t, svc, 2, "not me")
	if sender.last(2) != replySentText {
		t.Fatalf("expected reply confirmation, got %q", sender.last(2))
	}
	authorMsgs := sender.all(1)
	lastToAuthor := authorMsgs[len(authorMsgs)-1]
	if !strings.Contains(lastToAuthor, "not me") {
		t.Fatalf("author should receive the reply, got %q", lastToAuthor)
	}

	// A failed intent mid-menu mutates nothing: the menu stage survives.
	mustHandle(t, svc, 2, "/spill")
	mustHandle(t, svc, 2, "/reply MSG99")
	if sender.last(2) != replyFormatErrorText {
		t.Fatalf("expected format error, got %q", sender.last(2))
	}
	u, _ = s.GetUser(context.Background(), 2)
	if u.Stage != models.StageAwaitingCategory {
		t.Fatalf("failed reply intent must not change the stage, got %v", u.Stage)
	}
}

func TestReplyFormatErrors(t *testing.T) {
	svc, _, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")

	mustHandle(t, svc, 1, "/reply")
	if sender.last(1) != replyFormatErrorText {
		t.Fatalf("expected format error for bare /reply, got %q", sender.last(1))
	}

	mustHandle(t, svc, 1, "/reply MSG99")
	if sender.last(1) != replyFormatErrorText {
		t.Fatalf("expected format error for unknown id, got %q", sender.last(1))
	}
}

func TestIdleFreeTextFallsBackToHelp(t *testing.T) {
	svc, _, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 1, "just thinking out loud")

	if sender.last(1) != helpText {
		t.Fatalf("expected help text, got %q", sender.last(1))
	}
}

func TestInvalidMenuInputReprompts(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 1, "/spill")
	mustHandle(t, svc, 1, "7")

	if !strings.Contains(sender.last(1), "What would you like to post?") {
		t.Fatalf("expected category re-prompt, got %q", sender.last(1))
	}
	u, _ := s.GetUser(context.Background(), 1)
	if u.Stage != models.StageAwaitingCategory {
		t.Fatalf("invalid selection must not transition, got %v", u.Stage)
	}
}

func TestMessageIDsIncreaseAcrossAuthors(t *testing.T) {
	svc, _, sender := newService(t)

	mustHandle(t, svc, 1, "StoreA")
	mustHandle(t, svc, 2, "StoreA")

	post := func(userID int64, body string) {
		mustHandle(t, svc, userID, "/spill")
		mustHandle(t, svc, userID, "1")
		mustHandle(t, svc, userID, "1")
		mustHandle(t, svc, userID, body)
	}

	post(1, "first post")
	post(2, "second post")
	post(1, "third post")

	// User 2 received MSG1 and MSG3 (not their own MSG2).
	var ids []string
	for _, text := range sender.all(2) {
		for _, id := range []string{"MSG1", "MSG2", "MSG3"} {
			if strings.Contains(text, "#"+id) {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) != 2 || ids[0] != "MSG1" || ids[1] != "MSG3" {
		t.Fatalf("expected MSG1 then MSG3 for user 2, got %v", ids)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	svc, s, sender := newService(t)

	mustHandle(t, svc, 1, "   ")

	if u, _ := s.GetUser(context.Background(), 1); u != nil {
		t.Fatal("whitespace-only text must not register")
	}
	if len(sender.all(1)) != 0 {
		t.Fatal("whitespace-only text must produce no outbound")
	}
}

func TestConcurrentEventsFromDifferentUsers(t *testing.T) {
	svc, s, _ := newService(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			mustHandle(t, svc, id, "StoreA")
		}(int64(i + 1))
	}
	wg.Wait()

	count, _ := s.CountUsers(context.Background())
	if count != n {
		t.Fatalf("expected %d users, got %d", n, count)
	}
}
