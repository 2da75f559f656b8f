// Package router owns the message registry and reply threads: it fans posted
// messages out to their resolved audience with identity stripped, and routes
// composed replies back to the original author.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/flexway/flextea/internal/directory"
	"github.com/flexway/flextea/internal/metrics"
	"github.com/flexway/flextea/internal/models"
	"github.com/flexway/flextea/internal/store"
)

// defaultFanoutLimit bounds concurrent delivery attempts during fan-out.
const defaultFanoutLimit = 8

// Sender delivers outbound text to a recipient. The Telegram client
// implements it; tests use a fake.
type Sender interface {
	Send(ctx context.Context, recipient int64, text string) error
	SendMarkdown(ctx context.Context, recipient int64, text string) error
}

// Router creates messages, resolves audiences and performs fan-out.
type Router struct {
	store  store.DataStore
	dir    *directory.Directory
	sender Sender
	logger zerolog.Logger
}

// New creates a Router.
func New(s store.DataStore, dir *directory.Directory, sender Sender, logger zerolog.Logger) *Router {
	return &Router{store: s, dir: dir, sender: sender, logger: logger}
}

// Post creates the message, assigns its sequential ID and fans it out to the
// resolved audience, excluding the author. Individual delivery failures are
// logged and ignored; they never fail the post.
func (r *Router) Post(ctx context.Context, authorID int64, category models.Category, audience models.Audience, body string) (*models.Message, error) {
	msg, err := r.store.CreateMessage(ctx, authorID, category, audience, body)
	if err != nil {
		return nil, err
	}

	recipients, err := r.resolveAudience(ctx, authorID, audience)
	if err != nil {
		// The message exists and the post succeeded; an audience lookup
		// failure just means nobody could be reached this time.
		r.logger.Error().Err(err).Str("message", msg.ID).Msg("audience resolution failed")
		return msg, nil
	}

	text := fanoutText(msg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFanoutLimit)
	for _, recipient := range recipients {
		if recipient == authorID {
			continue
		}
		recipient := recipient
		g.Go(func() error {
			if err := r.sender.SendMarkdown(gctx, recipient, text); err != nil {
				metrics.FanoutDeliveries.WithLabelValues("failed").Inc()
				r.logger.Warn().
					Err(err).
					Str("message", msg.ID).
					Int64("recipient", recipient).
					Msg("fan-out delivery failed")
				return nil // best-effort, never aborts the rest
			}
			metrics.FanoutDeliveries.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	metrics.MessagesPosted.WithLabelValues(category.String()).Inc()
	r.logger.Info().
		Str("message", msg.ID).
		Str("category", category.String()).
		Str("audience", audience.String()).
		Int("recipients", len(recipients)).
		Msg("message posted")
	return msg, nil
}

// BeginReply appends a pending reply slot for replierID to the message's
// thread. Returns false if the message ID is unknown.
func (r *Router) BeginReply(ctx context.Context, replierID int64, messageID string) (bool, error) {
	err := r.store.AppendReplySlot(ctx, messageID, replierID)
	if errors.Is(err, store.ErrUnknownMessage) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeliverReply resolves the replier's first pending slot, marks it delivered
// with text, and returns the owning message's ID and author so the caller
// can notify the author. found is false when no pending slot matches.
func (r *Router) DeliverReply(ctx context.Context, replierID int64, text string) (messageID string, authorID int64, found bool, err error) {
	messageID, err = r.store.DeliverReply(ctx, replierID, text)
	if errors.Is(err, store.ErrNoPendingReply) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}

	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return "", 0, false, err
	}
	if msg == nil {
		// A delivered slot always references an existing message.
		return "", 0, false, store.ErrUnknownMessage
	}

	metrics.RepliesDelivered.Inc()
	return messageID, msg.AuthorID, true, nil
}

// MessageExists reports whether the ID is in the registry.
func (r *Router) MessageExists(ctx context.Context, messageID string) (bool, error) {
	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	return msg != nil, nil
}

// resolveAudience maps the audience scope to recipient IDs. Office, store
// and team scopes all resolve to the author's own group; only All Flexway
// expands to every registered user.
func (r *Router) resolveAudience(ctx context.Context, authorID int64, audience models.Audience) ([]int64, error) {
	if audience.Everyone() {
		return r.dir.AllMembers(ctx)
	}
	group, err := r.dir.GroupOf(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return r.dir.MembersOfGroup(ctx, group)
}

// fanoutText formats the anonymous broadcast for one posted message.
func fanoutText(msg *models.Message) string {
	return fmt.Sprintf("🍵 *%s* #%s\n%s\n\n💬 Reply anonymously: /reply %s",
		msg.Category, msg.ID, msg.Body, msg.ID)
}
