// Package conversation implements the per-user dialog state machine for
// anonymous posting. Advance interprets one inbound text against the user's
// current stage and reports the step the orchestrator should execute; it
// performs no I/O itself.
package conversation

import (
	"strconv"
	"strings"

	"github.com/flexway/flextea/internal/models"
)

// Kind identifies the step Advance resolved an input to.
type Kind int

const (
	// StepFallback means no transition applies; the orchestrator re-prompts
	// or sends the help text.
	StepFallback Kind = iota

	// StepStartSpill entered AwaitingCategory; show the category menu.
	StepStartSpill

	// StepCategoryChosen recorded the category; show the audience menu.
	StepCategoryChosen

	// StepAudienceChosen recorded the audience; prompt for the message body.
	StepAudienceChosen

	// StepComposeBody carries the message body, ready for filtering and
	// routing. The stage stays Composing until the orchestrator accepts the
	// body, so a rejected body can be retried.
	StepComposeBody

	// StepReplyIntent carries a parsed "/reply <id>" command. ReplyTarget is
	// empty when the command was malformed.
	StepReplyIntent

	// StepFreeText is ordinary idle text, a candidate anonymous reply.
	StepFreeText
)

// Step is the outcome of advancing the machine by one input.
type Step struct {
	Kind        Kind
	Body        string // StepComposeBody and StepFreeText
	ReplyTarget string // StepReplyIntent; "" when malformed
}

// Advance interprets text against the user's stage, mutating the user's
// pending selections where a transition applies. The caller persists the
// user afterwards and must hold the user's event lock.
//
// Commands are recognized in every stage except Composing, which consumes
// all input as the message body. Digit strings select a category only while
// AwaitingCategory and an audience only while AwaitingAudience; elsewhere
// they are ordinary text.
func Advance(u *models.User, text string) Step {
	if u.Stage != models.StageComposing {
		if strings.EqualFold(text, "/spill") {
			u.Stage = models.StageAwaitingCategory
			u.Category = 0
			u.Audience = 0
			return Step{Kind: StepStartSpill}
		}
		if strings.HasPrefix(text, "/reply") {
			parts := strings.Fields(text)
			if len(parts) == 2 {
				return Step{Kind: StepReplyIntent, ReplyTarget: parts[1]}
			}
			return Step{Kind: StepReplyIntent}
		}
	}

	switch u.Stage {
	case models.StageIdle:
		return Step{Kind: StepFreeText, Body: text}

	case models.StageAwaitingCategory:
		if c, ok := models.CategoryFromChoice(menuChoice(text)); ok {
			u.Category = c
			u.Stage = models.StageAwaitingAudience
			return Step{Kind: StepCategoryChosen}
		}
		return Step{Kind: StepFallback}

	case models.StageAwaitingAudience:
		if a, ok := models.AudienceFromChoice(menuChoice(text)); ok {
			u.Audience = a
			u.Stage = models.StageComposing
			return Step{Kind: StepAudienceChosen}
		}
		return Step{Kind: StepFallback}

	case models.StageComposing:
		return Step{Kind: StepComposeBody, Body: text}
	}

	return Step{Kind: StepFallback}
}

// menuChoice parses a digits-only selection, returning 0 for anything else.
func menuChoice(text string) int {
	if text == "" {
		return 0
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}
