package assistant

import "strings"

const titleMaxRunes = 30

// DeriveTitle builds a session title from the first user message. Longer
// inputs are cut at 30 runes and suffixed with an ellipsis.
func DeriveTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) <= titleMaxRunes {
		return title
	}
	return string(runes[:titleMaxRunes]) + "..."
}
