// Package segment splits free-form prose into punctuation-terminated sentences
// for sequential speech synthesis.
//
// The split is purely punctuation based: an ellipsis ("...") counts as one
// terminator, as do ".", "!" and "?". A final fragment that carries no terminator
// is dropped unless Options.KeepTrailing is set, so "One. Two" yields only "One.".
// Callers should treat an empty result as "nothing to synthesize".
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// terminatorPattern matches one terminal punctuation unit. The ellipsis alternative
// comes first so that "..." is consumed whole instead of as three full stops.
const terminatorPattern = `\.{3}|[.!?]`

var terminatorRegexp = regexp.MustCompile(terminatorPattern)

// Options tunes segmentation.
type Options struct {
	// KeepTrailing retains a final token that has no punctuation partner as an
	// unterminated last sentence instead of discarding it.
	KeepTrailing bool
}

// Segment splits text into trimmed sentences, each ending in its terminal
// punctuation. A trailing unterminated fragment is dropped.
func Segment(text string) []string {
	return SegmentWithOptions(text, Options{KeepTrailing: false})
}

// SegmentWithOptions splits text like Segment, honouring opts.
func SegmentWithOptions(text string, opts Options) []string {
	tokens := nonEmptyTokens(splitKeepingTerminators(text))

	sentences := make([]string, 0, len(tokens)/2+1)

	for i := 0; i+1 < len(tokens); i += 2 {
		sentences = append(sentences, tokens[i]+tokens[i+1])
	}

	if opts.KeepTrailing && len(tokens)%2 == 1 {
		sentences = append(sentences, tokens[len(tokens)-1])
	}

	return sentences
}

// splitKeepingTerminators splits text around every terminator, emitting the
// terminator itself as a separate token between the surrounding pieces.
func splitKeepingTerminators(text string) []string {
	matches := terminatorRegexp.FindAllStringIndex(text, -1)
	tokens := make([]string, 0, 2*len(matches)+1)

	last := 0
	for _, match := range matches {
		tokens = append(tokens, text[last:match[0]], text[match[0]:match[1]])
		last = match[1]
	}

	return append(tokens, text[last:])
}

func nonEmptyTokens(tokens []string) []string {
	kept := tokens[:0]

	for _, token := range tokens {
		trimmed := strings.TrimFunc(token, isSpace)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}

	return kept
}

// isSpace reports Unicode white space plus the ASCII information separators
// U+001C..U+001F, which plain-text sources use as record and unit breaks.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= '\x1c' && r <= '\x1f')
}
