package dialog

import (
	"fmt"
	"strings"

	"github.com/flexway/flextea/internal/models"
)

// User-facing texts. The bot speaks Telegram-flavored plain text; only the
// fan-out broadcast (owned by the router) uses Markdown.

const (
	greetingText = "👋 Hey there! Welcome to FlexTea 🍵 — your anonymous sharing bot.\n\n" +
		"🧭 First, reply with your Outlet/Team Name to verify."

	composePromptText = "💬 Now type your message to post anonymously:"

	rephraseText = "⚠️ Please rephrase your message politely."

	postedText = "✅ Your message was posted anonymously."

	replyPromptText = "✏️ Type your anonymous reply now:"

	replyFormatErrorText = "❌ Invalid format. Use /reply MSG1"

	replySentText = "✅ Reply sent anonymously."

	helpText = "🤔 Nothing pending here. Send /spill to post anonymously, " +
		"or /reply MSG1 to answer a post you received."
)

func verifiedText(group string) string {
	return fmt.Sprintf("✅ You're verified under group: %s", group)
}

func categoryMenuText() string {
	return "📢 What would you like to post?\n" + numbered(models.CategoryLabels())
}

func audienceMenuText() string {
	return "👥 Who should see this?\n" + numbered(models.AudienceLabels())
}

func pickNumberText(menu string) string {
	return "⚠️ Please pick a number from the menu.\n\n" + menu
}

func replyNotificationText(messageID, text string) string {
	return fmt.Sprintf("💌 Anonymous reply to #%s:\n%s", messageID, text)
}

func numbered(labels []string) string {
	var b strings.Builder
	for i, label := range labels {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, label)
	}
	return b.String()
}
