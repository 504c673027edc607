// Package narrator is the boundary to the external free-text
// generation service. The engine hands it a structured context bundle
// and treats everything it returns as untrusted prose, except the
// explicit state deltas.
package narrator

import (
	"context"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/goals"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/symbolic"
	"github.com/louisbranch/everloom/internal/narrative/world"
)

// ContextBundle is the full prompt context assembled per turn.
type ContextBundle struct {
	SystemInstructions string          `json:"system_instructions"`
	RecentMemories     []memory.Entry  `json:"recent_memories,omitempty"`
	CharacterStats     []creation.Fact `json:"character_stats,omitempty"`
	SymbolicTags       []symbolic.Tag  `json:"symbolic_tags,omitempty"`
	Goals              []goals.Goal    `json:"goals,omitempty"`
	WorldState         *world.State    `json:"world_state,omitempty"`
	PlayerInput        string          `json:"player_input"`
}

// StateDelta is one explicit, machine-readable state change declared
// by the narrator alongside its prose (for example hp lost 3). Deltas
// are the only narrator output ever parsed as structured data.
type StateDelta struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Narration is the narrator's response for one turn. Degraded marks
// canned fallback text produced without the external service.
type Narration struct {
	Text     string       `json:"text"`
	Deltas   []StateDelta `json:"deltas,omitempty"`
	Degraded bool         `json:"degraded,omitempty"`
}

// Narrator produces the next piece of narration for a turn.
type Narrator interface {
	Narrate(ctx context.Context, bundle ContextBundle) (Narration, error)
}

// ErrUnavailable wraps any transport or service failure from a
// narrator implementation so callers can mask it uniformly.
func ErrUnavailable(cause error) error {
	return apperrors.Wrap(apperrors.CodeNarratorUnavailable, "narrator is unavailable", cause)
}

// Static returns fixed narration for every turn. Used by tests and
// the scenario runner.
type Static struct {
	Text   string
	Deltas []StateDelta
	Err    error
}

// Narrate returns the configured narration, or the configured error.
func (s Static) Narrate(_ context.Context, _ ContextBundle) (Narration, error) {
	if s.Err != nil {
		return Narration{}, s.Err
	}
	return Narration{Text: s.Text, Deltas: s.Deltas}, nil
}

// Fallback is the degraded narration returned when the external
// narrator fails and the caller chooses to mask the failure.
func Fallback() Narration {
	return Narration{
		Text:     "The story pauses for a moment, the world holding its breath. Take stock of where you stand and try again.",
		Degraded: true,
	}
}
