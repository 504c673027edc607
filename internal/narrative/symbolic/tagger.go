// Package symbolic derives archetype, theme, metaphor, and contradiction
// tags from narrative text using fixed vocabularies.
//
// Analysis is a deterministic keyword heuristic with confidence scoring,
// not natural-language understanding. Tags are request-scoped: they are
// recomputed per call and never persisted as ground truth.
package symbolic

import (
	"fmt"
	"sort"
	"strings"
)

// Category identifies the kind of symbolic tag.
type Category string

const (
	// CategoryArchetype marks recurring character patterns.
	CategoryArchetype Category = "archetype"
	// CategoryTheme marks recurring story subjects.
	CategoryTheme Category = "theme"
	// CategoryMetaphor marks imagery running through the prose.
	CategoryMetaphor Category = "metaphor"
	// CategoryContradiction marks opposing poles present in one window.
	CategoryContradiction Category = "contradiction"
)

// Valid reports whether the category is recognized.
func (c Category) Valid() bool {
	switch c {
	case CategoryArchetype, CategoryTheme, CategoryMetaphor, CategoryContradiction:
		return true
	}
	return false
}

// Tag is one derived symbolic label with confidence and rationale.
type Tag struct {
	Category   Category `json:"category"`
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Scoring constants for the confidence heuristic.
const (
	baseConfidence = 0.5
	perMatchBoost  = 0.05
	memoryBoost    = 0.1
	maxConfidence  = 0.95
	// MaxTags caps how many tags flow into the narrator context.
	MaxTags = 5
)

// Tagger scans narrative text against a fixed vocabulary.
type Tagger struct {
	vocab Vocabulary
}

// NewTagger creates a tagger over the embedded default vocabulary.
func NewTagger() (*Tagger, error) {
	vocab, err := DefaultVocabulary()
	if err != nil {
		return nil, err
	}
	return NewTaggerWithVocabulary(vocab), nil
}

// NewTaggerWithVocabulary creates a tagger over a custom vocabulary.
func NewTaggerWithVocabulary(vocab Vocabulary) *Tagger {
	return &Tagger{vocab: vocab}
}

// Analyze derives tags from text. memoryTags are the tags of recently
// retrieved memories; a label already present there earns a consistency
// reward. The result holds at most MaxTags entries, highest confidence
// first, ties broken by vocabulary order.
func (t *Tagger) Analyze(text string, memoryTags []string) []Tag {
	normalized := strings.ToLower(text)
	remembered := toSet(memoryTags)

	var tags []Tag
	appendMatches := func(category Category, defs []Definition) {
		for _, def := range defs {
			count, matched := countMatches(normalized, def.Keywords)
			if count == 0 {
				continue
			}
			tags = append(tags, buildTag(category, def.Label, count, matched, remembered))
		}
	}
	appendMatches(CategoryArchetype, t.vocab.Archetypes)
	appendMatches(CategoryTheme, t.vocab.Themes)
	appendMatches(CategoryMetaphor, t.vocab.Metaphors)

	for _, pair := range t.vocab.Contradictions {
		posCount, posMatched := countMatches(normalized, pair.Positive)
		negCount, negMatched := countMatches(normalized, pair.Negative)
		// Both poles must be present; one pole alone is not a
		// half-confidence contradiction, it is no contradiction.
		if posCount == 0 || negCount == 0 {
			continue
		}
		matched := append(posMatched, negMatched...)
		tags = append(tags, buildTag(CategoryContradiction, pair.Label, posCount+negCount, matched, remembered))
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Confidence > tags[j].Confidence
	})
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	return tags
}

func buildTag(category Category, label string, count int, matched []string, remembered map[string]struct{}) Tag {
	confidence := baseConfidence + perMatchBoost*float64(count)
	rationale := fmt.Sprintf("matched %s", strings.Join(matched, ", "))
	if _, ok := remembered[strings.ToLower(label)]; ok {
		confidence += memoryBoost
		rationale += "; consistent with recent memories"
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return Tag{Category: category, Label: label, Confidence: confidence, Rationale: rationale}
}

// countMatches counts keyword occurrences in the normalized text and
// returns which keywords matched, in vocabulary order.
func countMatches(normalized string, keywords []string) (int, []string) {
	total := 0
	var matched []string
	for _, keyword := range keywords {
		count := strings.Count(normalized, keyword)
		if count == 0 {
			continue
		}
		total += count
		matched = append(matched, keyword)
	}
	return total, matched
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[strings.ToLower(strings.TrimSpace(value))] = struct{}{}
	}
	return set
}
