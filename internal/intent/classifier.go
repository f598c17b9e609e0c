// Package intent routes a raw user turn to one of the assistant's
// response modes. Classification is deterministic and does no I/O so
// the orchestrator can call it before touching any collaborator.
package intent

import "strings"

// Intent is the response mode selected for a user turn.
type Intent string

const (
	ImageGen  Intent = "image_gen"
	WebSearch Intent = "web_search"
	Text      Intent = "text"
)

// imageCues are phrasal markers that signal an image request anywhere in
// the message. The slash command is handled separately as a prefix.
var imageCues = []string{"image of", "draw ", "show me an image"}

// webCues signal recency or freshness needs that stored memory cannot
// satisfy. URL-ish tokens count because the user is pointing at the live web.
var webCues = []string{"latest", "current events", "today", "news", "http", "www"}

// Classify picks the response mode for a user message. Rules apply in
// priority order: image command first, then web-freshness cues, then plain
// text. Ties resolve to the earlier rule.
func Classify(message string) Intent {
	lower := strings.ToLower(message)

	if strings.HasPrefix(lower, "/image ") {
		return ImageGen
	}
	for _, cue := range imageCues {
		if strings.Contains(lower, cue) {
			return ImageGen
		}
	}

	for _, cue := range webCues {
		if strings.Contains(lower, cue) {
			return WebSearch
		}
	}

	return Text
}

// StripImageCommand removes the leading image-command marker so the
// remainder can be used verbatim as a generation prompt.
func StripImageCommand(message string) string {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"/image ", "image of ", "draw "} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}
