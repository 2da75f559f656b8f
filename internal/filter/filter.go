// Package filter screens message bodies before they reach routing.
package filter

import (
	"regexp"
	"strings"
)

// rudeWords are rejected on a plain substring match against the lowercased
// text, so "dog" also catches "dogma". Matches the historical behavior.
var rudeWords = []string{"sucks", "hate", "stupid", "idiot", "trash", "useless", "dog"}

// targetedInsult matches a role word followed anywhere later in the text by
// an insult word, both word-boundary delimited. Note "it" as a role word
// also matches the pronoun; that false positive is intentional, kept for
// compatibility.
var targetedInsult = regexp.MustCompile(`\b(hr|admin|finance|manager|it)\b.*\b(sucks|lazy|idiot|trash)\b`)

// Allows reports whether text is acceptable for posting. Pure and
// deterministic; must run before any message reaches routing.
func Allows(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range rudeWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return !targetedInsult.MatchString(lower)
}
