// Package extract pulls character-fact candidates out of free player
// text using fixed patterns. It performs no language understanding;
// anything the patterns miss is left for manual entry.
package extract

import (
	"regexp"
	"strings"

	"github.com/louisbranch/everloom/internal/narrative/creation"
)

// Candidate is one fact proposal extracted from text. Candidates still
// go through the normal commit path; extraction never writes directly
// to a ledger.
type Candidate struct {
	Key        string
	Value      creation.Value
	Confidence float64
	Source     creation.Source
}

const (
	patternConfidence = 0.8
	keywordConfidence = 0.6
)

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is ([A-Z][\w'-]*(?: [A-Z][\w'-]*)?)`),
	regexp.MustCompile(`(?i)\bcall me ([A-Z][\w'-]*)`),
	regexp.MustCompile(`(?i)\bi am called ([A-Z][\w'-]*)`),
}

var races = []string{
	"human", "elf", "dwarf", "halfling", "orc", "gnome", "tiefling", "dragonborn",
}

var classes = []string{
	"fighter", "wizard", "rogue", "cleric", "ranger", "bard", "paladin", "druid", "sorcerer", "monk", "warlock", "barbarian",
}

var backgrounds = []string{
	"soldier", "scholar", "noble", "outlander", "criminal", "acolyte", "merchant", "sailor", "hermit", "entertainer",
}

// Facts scans the text and returns at most one candidate per core key.
// The first pattern hit for a key wins; later mentions do not override
// it, mirroring the one-time-write rule of the drafting ledger.
func Facts(text string) []Candidate {
	var candidates []Candidate
	seen := make(map[string]struct{})

	add := func(key, value string, confidence float64) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, Candidate{
			Key:        key,
			Value:      creation.StringValue(value),
			Confidence: confidence,
			Source:     creation.SourcePattern,
		})
	}

	for _, pattern := range namePatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			add("name", strings.TrimSpace(match[1]), patternConfidence)
			break
		}
	}

	lowered := strings.ToLower(text)
	if race := firstKeyword(lowered, races); race != "" {
		add("race", titleCase(race), keywordConfidence)
	}
	if class := firstKeyword(lowered, classes); class != "" {
		add("class", titleCase(class), keywordConfidence)
	}
	if background := firstKeyword(lowered, backgrounds); background != "" {
		add("background", titleCase(background), keywordConfidence)
	}

	return candidates
}

// firstKeyword returns the keyword with the earliest whole-word match
// in the text, or "" when none match.
func firstKeyword(lowered string, keywords []string) string {
	best := ""
	bestIndex := -1
	for _, keyword := range keywords {
		index := wordIndex(lowered, keyword)
		if index < 0 {
			continue
		}
		if bestIndex < 0 || index < bestIndex {
			best = keyword
			bestIndex = index
		}
	}
	return best
}

// wordIndex finds keyword as a whole word, so "orc" does not match
// inside "force".
func wordIndex(text, keyword string) int {
	offset := 0
	for {
		index := strings.Index(text[offset:], keyword)
		if index < 0 {
			return -1
		}
		start := offset + index
		end := start + len(keyword)
		if boundary(text, start-1) && boundary(text, end) {
			return start
		}
		offset = start + 1
	}
}

func boundary(text string, index int) bool {
	if index < 0 || index >= len(text) {
		return true
	}
	char := text[index]
	return !(char >= 'a' && char <= 'z' || char >= '0' && char <= '9' || char == '\'')
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
