// Package risk scores clinical text with a weighted heuristic lexicon and
// fuses it with external classifier output into one explainable assessment.
package risk

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LexiconEntry assigns a severity weight to one clinical phrase.
type LexiconEntry struct {
	Phrase string  `yaml:"phrase"`
	Weight float64 `yaml:"weight"`
}

// Lexicon is the ordered severity table used by the heuristic scanner.
type Lexicon []LexiconEntry

type lexiconFile struct {
	Terms []LexiconEntry `yaml:"terms"`
}

// DefaultLexicon returns the built-in clinical severity table. Weights are a
// calibration starting point, not a clinical ground truth; deployments tune
// them through a lexicon file.
func DefaultLexicon() Lexicon {
	return Lexicon{
		{Phrase: "subarachnoid hemorrhage", Weight: 0.95},
		{Phrase: "intracranial hemorrhage", Weight: 0.95},
		{Phrase: "hemorrhage", Weight: 0.9},
		{Phrase: "pulmonary embolism", Weight: 0.9},
		{Phrase: "myocardial infarction", Weight: 0.9},
		{Phrase: "stemi", Weight: 0.9},
		{Phrase: "nstemi", Weight: 0.85},
		{Phrase: "embolism", Weight: 0.85},
		{Phrase: "malignant", Weight: 0.85},
		{Phrase: "malignancy", Weight: 0.85},
		{Phrase: "perforation", Weight: 0.8},
		{Phrase: "invasion", Weight: 0.75},
		{Phrase: "ischemia", Weight: 0.7},
		{Phrase: "ischemic", Weight: 0.7},
		{Phrase: "unstable", Weight: 0.6},
		{Phrase: "emergent", Weight: 0.6},
		{Phrase: "fracture", Weight: 0.55},
		{Phrase: "pneumonia", Weight: 0.5},
		{Phrase: "urgent", Weight: 0.5},
		{Phrase: "consolidation", Weight: 0.45},
		{Phrase: "effusion", Weight: 0.45},
		{Phrase: "cardiomegaly", Weight: 0.4},
		{Phrase: "acute", Weight: 0.3},
	}
}

// ParseLexicon decodes a YAML severity table.
func ParseLexicon(data []byte) (Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("risk: malformed lexicon: %w", err)
	}
	lex := Lexicon(f.Terms)
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return lex, nil
}

// LoadLexicon reads a YAML severity table from disk.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("risk: reading lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// Validate enforces non-empty distinct phrases with weights in (0,1].
func (l Lexicon) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("risk: lexicon has no terms")
	}
	seen := make(map[string]struct{}, len(l))
	for i, e := range l {
		phrase := strings.ToLower(strings.TrimSpace(e.Phrase))
		if phrase == "" {
			return fmt.Errorf("risk: lexicon term %d has an empty phrase", i)
		}
		if _, dup := seen[phrase]; dup {
			return fmt.Errorf("risk: duplicate lexicon phrase %q", phrase)
		}
		seen[phrase] = struct{}{}
		if e.Weight <= 0 || e.Weight > 1 {
			return fmt.Errorf("risk: phrase %q has weight %g outside (0,1]", e.Phrase, e.Weight)
		}
	}
	return nil
}
