package assistant

import "strings"

// CommandMarker is the sentinel reserved for backend-to-client directives
// embedded in the raw model output. Lines containing it are stripped before
// display; the unfiltered buffer is still handed to the command parser once
// the stream completes.
const CommandMarker = "COMMAND:"

// Clean derives the display-safe view of a raw response buffer: it drops
// every line containing the directive marker, rejoins the rest and trims
// surrounding whitespace. Clean is pure and idempotent so it can be
// re-applied to the growing buffer on every publish.
//
// A directive line whose terminating line break has not arrived yet is not
// recognized, so its prefix may transiently show up in the display; the
// first publish after the break arrives removes it.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, CommandMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
