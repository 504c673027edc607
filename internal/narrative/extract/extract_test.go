package extract

import (
	"testing"

	"github.com/louisbranch/everloom/internal/narrative/creation"
)

func byKey(candidates []Candidate) map[string]Candidate {
	m := make(map[string]Candidate, len(candidates))
	for _, candidate := range candidates {
		m[candidate.Key] = candidate
	}
	return m
}

func TestFactsExtractsCoreKeys(t *testing.T) {
	candidates := Facts("My name is Kara Thrace, a human fighter with a soldier past.")

	facts := byKey(candidates)
	wantValues := map[string]string{
		"name":       "Kara Thrace",
		"race":       "Human",
		"class":      "Fighter",
		"background": "Soldier",
	}
	for key, want := range wantValues {
		candidate, ok := facts[key]
		if !ok {
			t.Fatalf("no candidate for %q", key)
		}
		got, _ := candidate.Value.AsString()
		if got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
		if candidate.Source != creation.SourcePattern {
			t.Errorf("%s source = %s, want %s", key, candidate.Source, creation.SourcePattern)
		}
	}
}

func TestFactsNamePatternVariants(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"my name is Brin", "Brin"},
		{"You can call me Vex", "Vex"},
		{"i am called Orla", "Orla"},
	}
	for _, tt := range tests {
		facts := byKey(Facts(tt.text))
		candidate, ok := facts["name"]
		if !ok {
			t.Fatalf("Facts(%q): no name candidate", tt.text)
		}
		got, _ := candidate.Value.AsString()
		if got != tt.want {
			t.Errorf("Facts(%q) name = %q, want %q", tt.text, got, tt.want)
		}
		if candidate.Confidence != patternConfidence {
			t.Errorf("Facts(%q) confidence = %v, want %v", tt.text, candidate.Confidence, patternConfidence)
		}
	}
}

func TestFactsFirstMentionWins(t *testing.T) {
	facts := byKey(Facts("I was a wizard once, then a fighter."))

	got, _ := facts["class"].Value.AsString()
	if got != "Wizard" {
		t.Errorf("class = %q, want %q", got, "Wizard")
	}
}

func TestFactsWholeWordMatching(t *testing.T) {
	// "myself" must not yield race=Elf and "force" must not yield Orc.
	if facts := Facts("I keep to myself and use force sparingly."); len(facts) != 0 {
		t.Errorf("Facts() = %+v, want none", facts)
	}
}

func TestFactsNoMatches(t *testing.T) {
	if facts := Facts("The rain kept falling all night."); len(facts) != 0 {
		t.Errorf("Facts() = %+v, want none", facts)
	}
}
