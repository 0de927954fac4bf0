// Package phi implements PHI detection and anonymization for clinical
// report text.
package phi

import (
	"fmt"
	"regexp"
)

// detectorAlphabet matches every character class the built-in patterns can
// consume. A mask character drawn from it would make masked output
// re-trigger detection on the next pass.
var detectorAlphabet = regexp.MustCompile(`[0-9A-Za-z@._%+\-]`)

// SafeMaskChar reports whether r can replace PHI spans without the masked
// output matching any built-in pattern.
func SafeMaskChar(r rune) bool {
	return !detectorAlphabet.MatchString(string(r))
}

// Category identifies a class of protected health information.
type Category string

const (
	CategoryEmail      Category = "email"
	CategoryPhone      Category = "phone"
	CategoryIdentifier Category = "identifier"
	CategorySSN        Category = "ssn"
	CategoryDate       Category = "date"
	CategoryNameHint   Category = "name_hint"
	CategoryAddress    Category = "address"
)

// Matcher finds candidate PHI spans of a single category. Implementations
// must never emit tokens that a replacement produced by the Anonymizer could
// re-trigger: the mask and hash placeholder alphabets (the mask rune,
// lowercase letters, angle brackets, colon) stay outside every pattern.
type Matcher interface {
	Category() Category
	// FindAll returns [start,end) byte offsets of every raw match.
	FindAll(text string) [][]int
}

type regexMatcher struct {
	category Category
	re       *regexp.Regexp
}

func (m *regexMatcher) Category() Category { return m.category }

func (m *regexMatcher) FindAll(text string) [][]int {
	return m.re.FindAllStringIndex(text, -1)
}

// NewRegexMatcher wraps a compiled regular expression as a Matcher.
func NewRegexMatcher(category Category, re *regexp.Regexp) Matcher {
	return &regexMatcher{category: category, re: re}
}

// Library is an ordered registry of PHI matchers. Registration order is
// significant: it breaks ties between equal-length overlapping matches from
// different categories.
type Library struct {
	matchers []Matcher
}

// LibraryOptions tunes the built-in patterns.
type LibraryOptions struct {
	// MinIdentifierDigits is the shortest bare digit run treated as a
	// medical record number. Prefixed identifiers (MRN 12345) match from
	// five digits regardless.
	MinIdentifierDigits int
}

// NewLibrary builds the default pattern registry. The name and address
// categories are heuristic, best-effort cues; precision there is tuned for
// clinical notes, not general prose.
func NewLibrary(opts LibraryOptions) *Library {
	minDigits := opts.MinIdentifierDigits
	if minDigits < 1 {
		minDigits = 7
	}

	l := &Library{}
	l.Register(NewRegexMatcher(CategoryEmail,
		regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)))
	l.Register(NewRegexMatcher(CategoryPhone,
		regexp.MustCompile(`\b(?:\+?\d{1,3})?[-. (]*\d{2,4}[-. )]*\d{3,4}[-. ]*\d{3,4}\b`)))
	l.Register(NewRegexMatcher(CategoryIdentifier,
		regexp.MustCompile(fmt.Sprintf(`(?i)\b(?:MRN[:\s]*\d{5,12}|\d{%d,12})\b`, minDigits))))
	l.Register(NewRegexMatcher(CategorySSN,
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)))
	l.Register(NewRegexMatcher(CategoryDate,
		regexp.MustCompile(`(?i)\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},\s+\d{4})\b`)))
	l.Register(NewRegexMatcher(CategoryNameHint,
		regexp.MustCompile(`\b(?:Patient|Pt\.?|Mr\.|Ms\.|Mrs\.|Dr\.|MD|RN)\s+[A-Z][a-z]+(?:\s[A-Z][a-z]+)?\b`)))
	l.Register(NewRegexMatcher(CategoryAddress,
		regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Z][A-Za-z]+\s(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Ln|Lane)\b`)))
	return l
}

// Register appends a matcher. Later registrations lose equal-length ties to
// earlier ones.
func (l *Library) Register(m Matcher) {
	l.matchers = append(l.matchers, m)
}

// Matchers returns the registered matchers in registration order.
func (l *Library) Matchers() []Matcher {
	return l.matchers
}
