// Package policy holds content-safety helpers applied before user text is
// persisted as long-term memory.
package policy

import "regexp"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Ordered: card redaction runs before phone so card numbers are not
// classified as phone numbers.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns in text destined for
// durable storage.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.replacement)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
