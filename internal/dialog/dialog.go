// Package dialog is the top-level dispatcher for inbound user events. It
// drives the conversation state machine, runs the content filter, and asks
// the router to fan out posts and thread replies, producing outbound texts
// through the Sender.
package dialog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flexway/flextea/internal/conversation"
	"github.com/flexway/flextea/internal/directory"
	"github.com/flexway/flextea/internal/filter"
	"github.com/flexway/flextea/internal/metrics"
	"github.com/flexway/flextea/internal/models"
	"github.com/flexway/flextea/internal/router"
)

// Service orchestrates one inbound (user, text) event at a time per user.
type Service struct {
	dir    *directory.Directory
	router *router.Router
	sender router.Sender
	logger zerolog.Logger
	locks  *userLocks
}

// New creates the orchestrator.
func New(dir *directory.Directory, rt *router.Router, sender router.Sender, logger zerolog.Logger) *Service {
	return &Service{
		dir:    dir,
		router: rt,
		sender: sender,
		logger: logger,
		locks:  newUserLocks(),
	}
}

// Handle processes one inbound text event from a user. All outbound effects
// (the reply to the sender, fan-out, reply notifications) go through the
// Sender. Events from the same user serialize; different users proceed
// concurrently.
func (s *Service) Handle(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	// /start greets without registering, so "/start" never becomes a group
	// name. Every other first message registers, command-looking or not.
	if strings.EqualFold(text, "/start") {
		return s.sender.Send(ctx, userID, greetingText)
	}

	u, err := s.dir.Lookup(ctx, userID)
	if err != nil {
		return err
	}

	if u == nil {
		u, err = s.dir.Register(ctx, userID, text)
		if err != nil {
			return err
		}
		metrics.UsersRegistered.Inc()
		return s.sender.Send(ctx, userID, verifiedText(u.Group))
	}

	step := conversation.Advance(u, text)

	switch step.Kind {
	case conversation.StepStartSpill:
		if err := s.dir.Save(ctx, u); err != nil {
			return err
		}
		return s.sender.Send(ctx, userID, categoryMenuText())

	case conversation.StepCategoryChosen:
		if err := s.dir.Save(ctx, u); err != nil {
			return err
		}
		return s.sender.Send(ctx, userID, audienceMenuText())

	case conversation.StepAudienceChosen:
		if err := s.dir.Save(ctx, u); err != nil {
			return err
		}
		return s.sender.Send(ctx, userID, composePromptText)

	case conversation.StepComposeBody:
		return s.post(ctx, u, step.Body)

	case conversation.StepReplyIntent:
		return s.beginReply(ctx, u, step.ReplyTarget)

	case conversation.StepFreeText:
		return s.deliverReply(ctx, userID, step.Body)
	}

	return s.fallback(ctx, u)
}

// post filters the body and routes it. A rejected body keeps the user
// composing so they can retry.
func (s *Service) post(ctx context.Context, u *models.User, body string) error {
	if !filter.Allows(body) {
		metrics.ContentRejected.Inc()
		s.logger.Info().Int64("user", u.ID).Msg("message body rejected by filter")
		return s.sender.Send(ctx, u.ID, rephraseText)
	}

	msg, err := s.router.Post(ctx, u.ID, u.Category, u.Audience, body)
	if err != nil {
		return err
	}

	u.ResetToIdle()
	if err := s.dir.Save(ctx, u); err != nil {
		return err
	}

	s.logger.Debug().Int64("user", u.ID).Str("message", msg.ID).Msg("post completed")
	return s.sender.Send(ctx, u.ID, postedText)
}

// beginReply validates the reply-intent target and opens a pending slot.
// Malformed commands and unknown IDs both get the format-error text and
// mutate nothing. A valid intent issued mid-spill abandons the spill flow:
// the prompt that follows expects free text, and an unchanged menu stage
// would swallow it.
func (s *Service) beginReply(ctx context.Context, u *models.User, target string) error {
	if target == "" {
		return s.sender.Send(ctx, u.ID, replyFormatErrorText)
	}

	ok, err := s.router.BeginReply(ctx, u.ID, target)
	if err != nil {
		return err
	}
	if !ok {
		return s.sender.Send(ctx, u.ID, replyFormatErrorText)
	}

	if u.Stage != models.StageIdle {
		u.ResetToIdle()
		if err := s.dir.Save(ctx, u); err != nil {
			return err
		}
	}
	return s.sender.Send(ctx, u.ID, replyPromptText)
}

// deliverReply treats idle free text as a candidate anonymous reply. With no
// pending slot it falls back to the help text.
func (s *Service) deliverReply(ctx context.Context, userID int64, text string) error {
	messageID, authorID, found, err := s.router.DeliverReply(ctx, userID, text)
	if err != nil {
		return err
	}
	if !found {
		return s.sender.Send(ctx, userID, helpText)
	}

	// The slot is delivered either way; a failed notification is absorbed
	// like any other delivery failure.
	if err := s.sender.Send(ctx, authorID, replyNotificationText(messageID, text)); err != nil {
		s.logger.Warn().
			Err(err).
			Str("message", messageID).
			Msg("reply notification delivery failed")
	}
	return s.sender.Send(ctx, userID, replySentText)
}

// fallback re-prompts the menu matching the user's stage.
func (s *Service) fallback(ctx context.Context, u *models.User) error {
	switch u.Stage {
	case models.StageAwaitingCategory:
		return s.sender.Send(ctx, u.ID, pickNumberText(categoryMenuText()))
	case models.StageAwaitingAudience:
		return s.sender.Send(ctx, u.ID, pickNumberText(audienceMenuText()))
	}
	return s.sender.Send(ctx, u.ID, helpText)
}
