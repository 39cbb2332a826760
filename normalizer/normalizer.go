package normalizer

import (
	"regexp"
	"strings"
	"unicode"
)

var nonAlpha = regexp.MustCompile(`[^A-Za-z ]`)

// separator reports the runes treated as word breaks: Unicode white space
// plus the ASCII file, group, record and unit separators.
func separator(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// Normalizer reduces raw document text to lowercase alphabetic words with
// stop words removed.
type Normalizer struct {
	stopWords map[string]struct{}
}

// New creates a normalizer for the given stop words. With no words given the
// English list is used.
func New(stopWords ...string) *Normalizer {
	if len(stopWords) == 0 {
		stopWords = English
	}

	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(w)] = struct{}{}
	}

	return &Normalizer{stopWords: set}
}

func (n *Normalizer) Normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		if separator(r) {
			return ' '
		}
		return r
	}, text)
	text = nonAlpha.ReplaceAllString(text, "")
	text = strings.ToLower(text)

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if n.IsStopWord(w) {
			continue
		}

		kept = append(kept, w)
	}

	return strings.Join(kept, " ")
}

func (n *Normalizer) IsStopWord(word string) bool {
	_, ok := n.stopWords[strings.ToLower(word)]
	return ok
}
