package symbolic

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var embeddedVocab []byte

// Definition is one vocabulary entry: a label with trigger keywords.
type Definition struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// PairDefinition is a contradiction entry requiring both poles to be
// present in the same text window.
type PairDefinition struct {
	Label    string   `yaml:"label"`
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// Vocabulary holds the fixed trigger vocabularies per category.
type Vocabulary struct {
	Archetypes     []Definition     `yaml:"archetypes"`
	Themes         []Definition     `yaml:"themes"`
	Metaphors      []Definition     `yaml:"metaphors"`
	Contradictions []PairDefinition `yaml:"contradictions"`
}

// DefaultVocabulary parses the embedded vocabulary pack.
func DefaultVocabulary() (Vocabulary, error) {
	return ParseVocabulary(embeddedVocab)
}

// ParseVocabulary parses a YAML vocabulary pack and validates it.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := vocab.validate(); err != nil {
		return Vocabulary{}, err
	}
	vocab.normalize()
	return vocab, nil
}

func (v Vocabulary) validate() error {
	for _, group := range [][]Definition{v.Archetypes, v.Themes, v.Metaphors} {
		for _, def := range group {
			if strings.TrimSpace(def.Label) == "" {
				return fmt.Errorf("vocabulary entry with empty label")
			}
			if len(def.Keywords) == 0 {
				return fmt.Errorf("vocabulary entry %q has no keywords", def.Label)
			}
		}
	}
	for _, pair := range v.Contradictions {
		if strings.TrimSpace(pair.Label) == "" {
			return fmt.Errorf("contradiction entry with empty label")
		}
		if len(pair.Positive) == 0 || len(pair.Negative) == 0 {
			return fmt.Errorf("contradiction %q needs keywords for both poles", pair.Label)
		}
	}
	return nil
}

func (v *Vocabulary) normalize() {
	for _, group := range []*[]Definition{&v.Archetypes, &v.Themes, &v.Metaphors} {
		for i := range *group {
			(*group)[i].Keywords = lowerAll((*group)[i].Keywords)
		}
	}
	for i := range v.Contradictions {
		v.Contradictions[i].Positive = lowerAll(v.Contradictions[i].Positive)
		v.Contradictions[i].Negative = lowerAll(v.Contradictions[i].Negative)
	}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		cleaned := strings.ToLower(strings.TrimSpace(value))
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
