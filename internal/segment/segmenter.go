// Package segment splits anonymized clinical text into sentences. The rules
// are deliberately conservative so short clinical notes stay readable
// without over-segmentation.
package segment

import (
	"regexp"
	"strings"
)

// Common clinical abbreviations that end with a period but do not terminate
// a sentence.
var abbreviations = map[string]struct{}{
	"dr":   {},
	"mr":   {},
	"mrs":  {},
	"ms":   {},
	"pt":   {},
	"vs":   {},
	"e.g":  {},
	"i.e":  {},
	"est":  {},
	"prof": {},
	"no":   {},
}

var sentenceEndRe = regexp.MustCompile(`([.!?]+)(\s+|$)`)

// SplitSentences segments text on terminal punctuation, skipping known
// abbreviations and decimal points. Empty or whitespace-only input yields no
// sentences; fragments of two or more characters are kept.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(text, -1) {
		if splitsInsideToken(text, loc[2]) {
			continue
		}
		if s := strings.TrimSpace(text[start:loc[3]]); len(s) > 1 {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); len(s) > 1 {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitsInsideToken reports whether the punctuation at offset closes an
// abbreviation or sits inside a number, where no sentence break happens.
func splitsInsideToken(text string, punctStart int) bool {
	if punctStart > 0 && punctStart+1 < len(text) &&
		isDigit(text[punctStart-1]) && isDigit(text[punctStart+1]) {
		return true
	}

	wordStart := punctStart
	for wordStart > 0 && !isSpace(text[wordStart-1]) {
		wordStart--
	}
	word := strings.ToLower(strings.TrimRight(text[wordStart:punctStart], "."))
	_, ok := abbreviations[word]
	return ok
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
