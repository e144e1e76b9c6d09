package text

import (
	"regexp"
	"strings"
)

// EmptyFallback is spoken when a reply consists only of markup.
const EmptyFallback = "I received a response, but it was empty after cleaning."

// markupRegex matches emphasis, heading, strikethrough and inline code markers.
var markupRegex = regexp.MustCompile("[*_`#~]")

// Sanitize strips markdown markers from a model reply so the synthesizer
// does not read them aloud. The result is never empty.
func Sanitize(text string) string {
	clean := strings.TrimSpace(markupRegex.ReplaceAllString(text, ""))
	if clean == "" {
		return EmptyFallback
	}
	return clean
}
