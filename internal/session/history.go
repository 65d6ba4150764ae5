package session

import (
	"fmt"
	"strings"
)

// FormatHistory renders a chat history as plain text for download.
func FormatHistory(title string, messages []Message) string {
	if title == "" {
		title = "docqa"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Chat History\n", title)
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n\n")
	for i, m := range messages {
		fmt.Fprintf(&sb, "Message %d:\n", i+1)
		if !m.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "Time: %s\n", m.Timestamp.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(&sb, "User: %s\n", m.Question)
		fmt.Fprintf(&sb, "Bot: %s\n", m.Answer)
		sb.WriteString(strings.Repeat("-", 30))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// HistoryText renders this session's history.
func (s *Session) HistoryText() string {
	_, source := s.Chunks()
	return FormatHistory(source, s.History())
}
