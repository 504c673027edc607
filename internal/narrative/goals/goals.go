// Package goals infers candidate narrative goals from session history
// using deterministic keyword heuristics with confidence scoring.
package goals

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type identifies a goal category. The declaration order below is the
// fixed priority order used to break confidence ties.
type Type string

const (
	// TypeEscape is the drive to get out or get away.
	TypeEscape Type = "Escape"
	// TypeDiscover is the drive to uncover what is hidden.
	TypeDiscover Type = "Discover"
	// TypeChange is the drive to become someone else.
	TypeChange Type = "Change"
	// TypeProtect is the drive to keep someone or something safe.
	TypeProtect Type = "Protect"
	// TypeDestroy is the drive to end a person, place, or order.
	TypeDestroy Type = "Destroy"
	// TypeConnect is the drive to belong.
	TypeConnect Type = "Connect"
	// TypeSurvive is the drive to stay alive.
	TypeSurvive Type = "Survive"
	// TypeAchieve is the drive to win recognition or mastery.
	TypeAchieve Type = "Achieve"
)

// Types lists all goal types in priority order.
func Types() []Type {
	return []Type{TypeEscape, TypeDiscover, TypeChange, TypeProtect, TypeDestroy, TypeConnect, TypeSurvive, TypeAchieve}
}

// Valid reports whether the type is recognized.
func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Goal is one inferred candidate objective. Goals are surfaced, never
// persisted as authoritative state.
type Goal struct {
	Type          Type    `json:"type"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}

// Scoring constants for the confidence heuristic.
const (
	baseConfidence = 0.5
	perMatchBoost  = 0.05
	memoryBonus    = 0.1
	maxConfidence  = 0.95
	// TopK is the number of goals surfaced per inference call.
	TopK = 3
)

//go:embed keywords.yaml
var embeddedKeywords []byte

// Engine scores goal candidates against session history and memory.
//
// Evidence is never "spent": a keyword matching two goal types credits
// both. Spending evidence once would make scores depend on evaluation
// order, and the ranking must stay deterministic.
type Engine struct {
	keywords map[Type][]string
}

// NewEngine creates an engine over the embedded keyword sets.
func NewEngine() (*Engine, error) {
	return NewEngineWithKeywords(embeddedKeywords)
}

// NewEngineWithKeywords creates an engine from a YAML keyword pack.
// Every goal type must have at least one keyword.
func NewEngineWithKeywords(data []byte) (*Engine, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse goal keywords: %w", err)
	}

	keywords := make(map[Type][]string, len(Types()))
	for _, goalType := range Types() {
		list, ok := raw[strings.ToLower(string(goalType))]
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("goal type %s has no keywords", goalType)
		}
		lowered := make([]string, 0, len(list))
		for _, keyword := range list {
			cleaned := strings.ToLower(strings.TrimSpace(keyword))
			if cleaned != "" {
				lowered = append(lowered, cleaned)
			}
		}
		keywords[goalType] = lowered
	}
	return &Engine{keywords: keywords}, nil
}

// Infer returns the TopK candidate goals for the session history,
// ordered by confidence descending with ties broken by the fixed type
// priority order. memoryTags are the tags of recently retrieved
// emotional/semantic memories; a goal whose type label appears there
// earns an alignment bonus.
func (e *Engine) Infer(sessionHistory []string, memoryTags []string) []Goal {
	normalized := strings.ToLower(strings.Join(sessionHistory, "\n"))
	remembered := make(map[string]struct{}, len(memoryTags))
	for _, tag := range memoryTags {
		remembered[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	goals := make([]Goal, 0, len(Types()))
	for _, goalType := range Types() {
		count := 0
		var matched []string
		for _, keyword := range e.keywords[goalType] {
			hits := strings.Count(normalized, keyword)
			if hits == 0 {
				continue
			}
			count += hits
			matched = append(matched, keyword)
		}

		confidence := baseConfidence + perMatchBoost*float64(count)
		_, aligned := remembered[strings.ToLower(string(goalType))]
		if aligned {
			confidence += memoryBonus
		}
		if confidence > maxConfidence {
			confidence = maxConfidence
		}

		goals = append(goals, Goal{
			Type:          goalType,
			Confidence:    confidence,
			Justification: justify(goalType, matched, aligned),
		})
	}

	// Types() is already priority order, so a stable sort by confidence
	// leaves ties resolved by priority.
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Confidence > goals[j].Confidence
	})
	if len(goals) > TopK {
		goals = goals[:TopK]
	}
	return goals
}

func justify(goalType Type, matched []string, aligned bool) string {
	var sb strings.Builder
	if len(matched) == 0 {
		fmt.Fprintf(&sb, "%s is a baseline drive with no direct evidence this session", goalType)
	} else {
		fmt.Fprintf(&sb, "%s is suggested by %s", goalType, strings.Join(matched, ", "))
	}
	if aligned {
		sb.WriteString("; recent memories carry the same tag")
	}
	return sb.String()
}
