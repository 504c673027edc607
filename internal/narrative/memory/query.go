package memory

import (
	"context"
	"sort"
	"strings"
)

// DefaultLimit is the retrieval limit used for prompt-context queries.
const DefaultLimit = 5

// Ranking weights. Recency dominates so fresh scenes stay in context,
// emotional weight keeps formative moments alive, and tag overlap pulls
// in memories relevant to the current analysis.
const (
	recencyWeight   = 0.5
	emotionalWeight = 0.3
	overlapWeight   = 0.2
)

// Query describes a retrieval request against a campaign's memories.
type Query struct {
	CharacterRef string   // optional: only entries referencing this character
	Layer        Layer    // optional: restrict to one layer
	Tags         []string // optional: tags to score overlap against
	Limit        int      // defaults to DefaultLimit when <= 0
}

// Store lists stored memories for a campaign in insertion order.
type Store interface {
	AppendMemory(ctx context.Context, entry Entry) (Entry, error)
	ListMemories(ctx context.Context, campaignID string) ([]Entry, error)
}

// System ranks layered memories stored in a Store.
type System struct {
	store Store
}

// NewSystem creates a layered memory system over the provided store.
func NewSystem(store Store) *System {
	return &System{store: store}
}

// Store persists a new entry and returns it with its assigned sequence.
func (s *System) Store(ctx context.Context, entry Entry) (Entry, error) {
	return s.store.AppendMemory(ctx, entry)
}

// Retrieve returns the highest-ranked entries for the query at the given
// turn. Retrieval is read-only; no decay is written back. Ties are broken
// by insertion order with earlier entries winning, which favors
// established canon over freshly-logged trivia.
func (s *System) Retrieve(ctx context.Context, campaignID string, query Query, currentTurn int) ([]Entry, error) {
	entries, err := s.store.ListMemories(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	queryTags := normalizeTags(query.Tags)

	matched := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if query.Layer != "" && entry.Layer != query.Layer {
			continue
		}
		if query.CharacterRef != "" && !refersTo(entry, query.CharacterRef) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si := Score(matched[i], queryTags, currentTurn)
		sj := Score(matched[j], queryTags, currentTurn)
		if si != sj {
			return si > sj
		}
		return matched[i].Seq < matched[j].Seq
	})

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Score computes the retrieval score of an entry for the given query tags
// at the given turn.
func Score(entry Entry, queryTags []string, currentTurn int) float64 {
	return recencyWeight*recencyScore(entry, currentTurn) +
		emotionalWeight*entry.EmotionalWeight +
		overlapWeight*tagOverlap(entry.Tags, queryTags)
}

// recencyScore decays hyperbolically with age in turns: 1 / (1 + age).
func recencyScore(entry Entry, currentTurn int) float64 {
	age := currentTurn - entry.Turn
	if age < 0 {
		age = 0
	}
	return 1 / (1 + float64(age))
}

// tagOverlap is the fraction of query tags present on the entry.
// An empty query contributes no overlap signal.
func tagOverlap(entryTags, queryTags []string) float64 {
	if len(queryTags) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(entryTags))
	for _, tag := range entryTags {
		present[tag] = struct{}{}
	}
	matches := 0
	for _, tag := range queryTags {
		if _, ok := present[tag]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTags))
}

func refersTo(entry Entry, characterRef string) bool {
	target := strings.ToLower(strings.TrimSpace(characterRef))
	for _, ref := range entry.CharacterRefs {
		if ref == target {
			return true
		}
	}
	return false
}
