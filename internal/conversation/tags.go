package conversation

import "strings"

const maxTags = 8

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "because": {}, "been": {},
	"before": {}, "being": {}, "could": {}, "did": {}, "does": {},
	"doing": {}, "from": {}, "have": {}, "having": {}, "here": {},
	"into": {}, "just": {}, "like": {}, "more": {}, "once": {},
	"only": {}, "over": {}, "please": {}, "really": {}, "should": {},
	"some": {}, "something": {}, "than": {}, "that": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "very": {}, "want": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "will": {}, "with": {},
	"would": {}, "your": {},
}

// ExtractTags derives keyword tags from turn content: lowercase words of
// four or more letters, minus stopwords, deduplicated, capped.
func ExtractTags(content string) []string {
	var tags []string
	seen := make(map[string]struct{})

	for _, field := range strings.Fields(strings.ToLower(content)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return r < 'a' || r > 'z'
		})
		if len(word) < 4 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tags = append(tags, word)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
