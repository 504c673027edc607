// Package memory organizes narrative memories into layers and ranks them
// for prompt-context retrieval.
//
// Entries are immutable once stored. Retrieval ranking is computed at
// query time from recency, emotional weight, and tag overlap, so repeated
// reads of the same state are idempotent.
package memory

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/louisbranch/everloom/internal/errors"
)

// Layer identifies a memory layer.
type Layer string

const (
	// LayerEpisodic holds concrete events that happened during play.
	LayerEpisodic Layer = "episodic"
	// LayerSemantic holds established facts about the world and cast.
	LayerSemantic Layer = "semantic"
	// LayerProcedural holds learned routines and how-to knowledge.
	LayerProcedural Layer = "procedural"
	// LayerEmotional holds affect-heavy moments and relationships.
	LayerEmotional Layer = "emotional"
)

// Valid reports whether the layer is one of the four known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerEpisodic, LayerSemantic, LayerProcedural, LayerEmotional:
		return true
	}
	return false
}

// Layers lists all valid layers in canonical order.
func Layers() []Layer {
	return []Layer{LayerEpisodic, LayerSemantic, LayerProcedural, LayerEmotional}
}

// Entry is a single stored memory. Immutable once created; only its
// ranking relative to other entries changes as turns pass.
type Entry struct {
	ID              string    `json:"id"`
	CampaignID      string    `json:"campaign_id"`
	Seq             uint64    `json:"seq"` // store-assigned, strictly increasing per campaign
	Layer           Layer     `json:"layer"`
	Content         string    `json:"content"`
	EmotionalWeight float64   `json:"emotional_weight"`
	Tags            []string  `json:"tags,omitempty"`
	CharacterRefs   []string  `json:"character_refs,omitempty"`
	Turn            int       `json:"turn"` // campaign turn when the memory was recorded
	CreatedAt       time.Time `json:"created_at"`
}

// CreateEntryInput describes the input for creating a memory entry.
type CreateEntryInput struct {
	CampaignID      string
	Layer           Layer
	Content         string
	EmotionalWeight float64
	Tags            []string
	CharacterRefs   []string
	Turn            int
}

// CreateEntry validates input and constructs an entry with a generated id.
// Seq is zero until the store assigns it on append.
func CreateEntry(input CreateEntryInput, now func() time.Time, idGenerator func(time.Time) (string, error)) (Entry, error) {
	if strings.TrimSpace(input.CampaignID) == "" {
		return Entry{}, errors.New(errors.CodeCampaignEmptyID, "campaign id is required")
	}
	if !input.Layer.Valid() {
		return Entry{}, errors.WithMetadata(errors.CodeMemoryInvalidLayer, fmt.Sprintf("invalid memory layer %q", input.Layer), map[string]string{"Layer": string(input.Layer)})
	}
	if strings.TrimSpace(input.Content) == "" {
		return Entry{}, errors.New(errors.CodeMemoryEmptyContent, "memory content is required")
	}
	if input.EmotionalWeight < 0 || input.EmotionalWeight > 1 {
		return Entry{}, errors.New(errors.CodeMemoryInvalidWeight, fmt.Sprintf("emotional weight %v out of range", input.EmotionalWeight))
	}
	if input.Turn < 0 {
		return Entry{}, errors.New(errors.CodeMemoryInvalidWeight, fmt.Sprintf("turn %d out of range", input.Turn))
	}

	stamp := now().UTC()
	entryID, err := idGenerator(stamp)
	if err != nil {
		return Entry{}, fmt.Errorf("generate memory id: %w", err)
	}

	return Entry{
		ID:              entryID,
		CampaignID:      input.CampaignID,
		Layer:           input.Layer,
		Content:         strings.TrimSpace(input.Content),
		EmotionalWeight: input.EmotionalWeight,
		Tags:            normalizeTags(input.Tags),
		CharacterRefs:   normalizeTags(input.CharacterRefs),
		Turn:            input.Turn,
		CreatedAt:       stamp,
	}, nil
}

// NewEntryID generates a ULID so ids sort by creation time.
func NewEntryID(stamp time.Time) (string, error) {
	value, err := ulid.New(ulid.Timestamp(stamp.UTC()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("new ulid: %w", err)
	}
	return value.String(), nil
}

// normalizeTags lowercases, trims, and deduplicates while keeping order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		result = append(result, cleaned)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
