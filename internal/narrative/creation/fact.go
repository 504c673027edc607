// Package creation governs the character creation lifecycle: a fact
// ledger with one-time-write semantics while drafting, an explicit
// review window for edits, and a permanent lock at finalization.
//
// The three-state lifecycle exists because a narrator that can silently
// overwrite confirmed character details, or ask the same question twice,
// erodes trust in the fiction. Mutability is asymmetric per state:
// commits only while Drafting, edits only while Reviewing, nothing after
// Finalized.
package creation

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/everloom/internal/errors"
)

// Source records the provenance of a fact.
type Source string

const (
	// SourceLLM marks facts extracted by the external narrator service.
	SourceLLM Source = "llm"
	// SourcePattern marks facts extracted by deterministic patterns.
	SourcePattern Source = "pattern"
	// SourceManual marks facts entered directly by the player.
	SourceManual Source = "manual"
)

// Valid reports whether the source is recognized.
func (s Source) Valid() bool {
	switch s {
	case SourceLLM, SourcePattern, SourceManual:
		return true
	}
	return false
}

// Fact is a single confirmed piece of character data with provenance.
type Fact struct {
	Key         string    `json:"key"`
	Value       Value     `json:"value"`
	Confidence  float64   `json:"confidence"`
	Source      Source    `json:"source"`
	CommittedAt time.Time `json:"committed_at"`
}

// CommitFactInput describes a fact candidate offered to the ledger.
type CommitFactInput struct {
	Key        string
	Value      Value
	Confidence float64
	Source     Source
}

// NormalizeCommitFactInput validates and canonicalizes a fact candidate.
func NormalizeCommitFactInput(input CommitFactInput) (CommitFactInput, error) {
	input.Key = strings.ToLower(strings.TrimSpace(input.Key))
	if input.Key == "" {
		return CommitFactInput{}, errors.New(errors.CodeFactEmptyKey, "fact key is required")
	}
	if !input.Value.Valid() {
		return CommitFactInput{}, errors.New(errors.CodeFactInvalidValue, fmt.Sprintf("fact %q has no usable value", input.Key))
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return CommitFactInput{}, errors.New(errors.CodeFactInvalidConfidence, fmt.Sprintf("fact %q confidence %v out of range", input.Key, input.Confidence))
	}
	if !input.Source.Valid() {
		return CommitFactInput{}, errors.WithMetadata(errors.CodeFactInvalidSource, fmt.Sprintf("fact %q has unknown source %q", input.Key, input.Source), map[string]string{"Source": string(input.Source)})
	}
	return input, nil
}
