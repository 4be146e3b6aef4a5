package dialogue

import (
	"regexp"
	"strings"
)

// TriggerPhrase starts a matchmaking run when received as a whole message.
const TriggerPhrase = "i want to get matched"

var markupTags = regexp.MustCompile(`<[^>]+>`)

// Sanitize strips markup tags and surrounding whitespace from inbound message
// text. All classification and storage operates on sanitized text; the
// platform wraps every message in rich-text markup.
func Sanitize(text string) string {
	return strings.TrimSpace(markupTags.ReplaceAllString(text, ""))
}

// isTrigger reports whether the sanitized message is the matchmaking trigger
// phrase. Matching is a case-insensitive exact comparison, not intent
// detection.
func isTrigger(sanitized string) bool {
	return strings.EqualFold(sanitized, TriggerPhrase)
}

// looksLikeEmail applies the same lenient check the assistant always used: any
// text containing an @ is accepted as an email.
func looksLikeEmail(sanitized string) bool {
	return strings.Contains(sanitized, "@")
}

// isAffirmative reports whether the sanitized message confirms the pending
// question. Anything else counts as a decline.
func isAffirmative(sanitized string) bool {
	return strings.EqualFold(sanitized, "yes")
}
