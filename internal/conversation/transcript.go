package conversation

import "strings"

// Turn is one message of a conversation history in chronological order.
type Turn struct {
	FromAgent bool
	Content   string
}

const (
	agentPrefix = "AI: "
	userPrefix  = "Cliente: "
)

// RenderTranscript formats the conversation for the classifier. Historical
// user turns whose text is already contained in the newest (debounce-joined)
// message are skipped so echoed fragments are not duplicated; the newest
// message itself is appended line by line as user turns.
func RenderTranscript(history []Turn, newest string) string {
	var lines []string

	for _, turn := range history {
		if turn.FromAgent {
			lines = append(lines, agentPrefix+turn.Content)
			continue
		}
		if newest != "" && strings.Contains(newest, turn.Content) {
			continue
		}
		lines = append(lines, userPrefix+turn.Content)
	}

	for _, line := range strings.Split(newest, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, userPrefix+line)
	}

	return strings.Join(lines, "\n")
}

const (
	noteHistoryHeader = "════ HISTÓRICO DA CONVERSA ════"
	noteSeparator     = "──────────────────────────────"
)

// RenderNote formats a CRM audit note: a headline followed by the full
// conversation history block.
func RenderNote(headline string, history []Turn) string {
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	b.WriteString(noteHistoryHeader)
	b.WriteString("\n")

	for i, turn := range history {
		if i > 0 {
			b.WriteString(noteSeparator)
			b.WriteString("\n")
		}
		if turn.FromAgent {
			b.WriteString("BOT: ")
		} else {
			b.WriteString("CLIENTE: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}

	return b.String()
}
