package llm

import (
	"regexp"
	"strings"
	"time"

	"github.com/wilofice/enel/internal/store"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// SanitizeText replaces raw URLs with a placeholder so links never leak into
// prompts or trigger the model into quoting them back.
func SanitizeText(text string) string {
	return urlPattern.ReplaceAllString(text, "[link]")
}

// BuildPrompt renders the drafting prompt: persona header, then each history
// turn as "[timestamp] role: text" where role is "You" for own messages and
// the contact's display name otherwise, terminated by the new inbound turn
// and an empty completion slot for the model to fill.
func BuildPrompt(persona string, turns []store.HistoryRow, newText string, newTS int64, contactName string) string {
	if contactName == "" {
		contactName = "Contact"
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(persona))
	b.WriteString("\n\n")
	for _, t := range turns {
		writeTurn(&b, t.Timestamp, t.FromMe, contactName, t.Text)
	}
	writeTurn(&b, newTS, false, contactName, newText)
	b.WriteString("You:")
	return b.String()
}

func writeTurn(b *strings.Builder, ts int64, fromMe bool, contactName, text string) {
	role := contactName
	if fromMe {
		role = "You"
	}
	b.WriteString("[")
	b.WriteString(time.Unix(ts, 0).UTC().Format(time.RFC3339))
	b.WriteString("] ")
	b.WriteString(role)
	b.WriteString(": ")
	b.WriteString(SanitizeText(text))
	b.WriteString("\n")
}

// BuildProfilePrompt renders the contact-profiling prompt over a rendered
// conversation transcript.
func BuildProfilePrompt(historyText, contactName string) string {
	if contactName == "" {
		contactName = "the contact"
	}
	var b strings.Builder
	b.WriteString("Analyze the following WhatsApp conversation between me and ")
	b.WriteString(contactName)
	b.WriteString(". Provide a concise profile of ")
	b.WriteString(contactName)
	b.WriteString(", including job, hobbies, family status, and any other relevant details. ")
	b.WriteString("Also describe our relationship based on the messages.")
	b.WriteString("\n\n")
	b.WriteString(historyText)
	b.WriteString("\n\nProfile:")
	return b.String()
}
