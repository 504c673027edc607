package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/goals"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/symbolic"
	"github.com/louisbranch/everloom/internal/narrative/world"
	"github.com/louisbranch/everloom/internal/narrator"
	"github.com/louisbranch/everloom/internal/storage"
)

// TurnResult is what one processed turn hands back to the caller.
type TurnResult struct {
	Narration narrator.Narration     `json:"narration"`
	Bundle    narrator.ContextBundle `json:"bundle"`
	Turn      int                    `json:"turn"`
}

// ProcessTurn runs one player action: analyze the input, retrieve
// ranked memories, assemble the context bundle, call the narrator,
// and commit the turn's memories and world changes in one atomic
// write.
//
// The turn is all-or-nothing. A narrator failure yields degraded
// canned narration with nothing persisted; a persistence failure
// discards the turn entirely.
func (c *Context) ProcessTurn(ctx context.Context, campaignID, playerText string) (TurnResult, error) {
	if campaignID == "" {
		return TurnResult{}, apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}
	if strings.TrimSpace(playerText) == "" {
		return TurnResult{}, apperrors.New(apperrors.CodeCampaignEmptyInput, "player text is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := c.tracer().Start(ctx, "engine.ProcessTurn",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	character, err := c.store.GetCharacter(ctx, campaignID)
	if err != nil {
		return TurnResult{}, err
	}
	worldState, err := c.store.GetWorld(ctx, campaignID)
	if err != nil {
		return TurnResult{}, err
	}
	turn, err := c.currentTurn(ctx, campaignID)
	if err != nil {
		return TurnResult{}, err
	}

	recent, err := c.memories.Retrieve(ctx, campaignID, memory.Query{}, turn)
	if err != nil {
		return TurnResult{}, err
	}
	recentTags := collectTags(recent)

	tags := c.tagger.Analyze(playerText, recentTags)
	inferred := c.goalEngine.Infer([]string{playerText}, recentTags)

	bundle := narrator.ContextBundle{
		SystemInstructions: c.instructions,
		RecentMemories:     recent,
		CharacterStats:     character.Facts,
		SymbolicTags:       tags,
		Goals:              inferred,
		WorldState:         worldState,
		PlayerInput:        playerText,
	}

	narrateCtx, narrateSpan := c.tracer().Start(ctx, "narrator.Narrate")
	narration, err := c.narrator.Narrate(narrateCtx, bundle)
	narrateSpan.End()
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled or timed out: surface it, commit nothing.
			return TurnResult{}, narrator.ErrUnavailable(ctx.Err())
		}
		c.logger.Warn("narrator failed, masking with degraded narration",
			"campaign_id", campaignID, "turn", turn, "err", err)
		return TurnResult{Narration: narrator.Fallback(), Bundle: bundle, Turn: turn}, nil
	}

	write, err := c.turnWrite(campaignID, playerText, narration, tags, inferred, worldState.Clone(), turn)
	if err != nil {
		return TurnResult{}, err
	}
	if _, err := c.store.ApplyTurn(ctx, write); err != nil {
		return TurnResult{}, err
	}

	c.logger.Info("turn processed", "campaign_id", campaignID, "turn", turn,
		"memories", len(write.Memories), "deltas", len(narration.Deltas))
	return TurnResult{Narration: narration, Bundle: bundle, Turn: turn}, nil
}

// turnWrite builds the atomic write for a successful turn: an
// episodic record of the exchange, a semantic record when the top
// inferred goal has real evidence, and the world patch implied by the
// narrator's explicit deltas.
func (c *Context) turnWrite(campaignID, playerText string, narration narrator.Narration,
	tags []symbolic.Tag, inferred []goals.Goal, worldState *world.State, turn int) (storage.TurnWrite, error) {

	labels := make([]string, 0, len(tags))
	weight := 0.0
	for _, tag := range tags {
		labels = append(labels, strings.ToLower(tag.Label))
		if tag.Confidence > weight {
			weight = tag.Confidence
		}
	}

	episode, err := memory.CreateEntry(memory.CreateEntryInput{
		CampaignID:      campaignID,
		Layer:           memory.LayerEpisodic,
		Content:         playerText + "\n\n" + narration.Text,
		EmotionalWeight: weight,
		Tags:            labels,
		Turn:            turn,
	}, c.now, memory.NewEntryID)
	if err != nil {
		return storage.TurnWrite{}, err
	}
	entries := []memory.Entry{episode}

	if goal := strongestGoal(inferred); goal != "" {
		semantic, err := memory.CreateEntry(memory.CreateEntryInput{
			CampaignID:      campaignID,
			Layer:           memory.LayerSemantic,
			Content:         "Current drive: " + goal,
			EmotionalWeight: 0.3,
			Tags:            []string{strings.ToLower(goal)},
			Turn:            turn,
		}, c.now, memory.NewEntryID)
		if err != nil {
			return storage.TurnWrite{}, err
		}
		entries = append(entries, semantic)
	}

	changed, err := applyDeltas(worldState, narration.Deltas, c.now())
	if err != nil {
		return storage.TurnWrite{}, err
	}

	write := storage.TurnWrite{CampaignID: campaignID, Memories: entries}
	if changed {
		write.World = worldState
	}
	return write, nil
}

// applyDeltas maps the narrator's explicit deltas onto world patches.
// Unknown kinds are dropped: narrator output is untrusted and only
// the kinds listed here ever mutate state.
func applyDeltas(state *world.State, deltas []narrator.StateDelta, stamp time.Time) (bool, error) {
	changed := false
	for _, delta := range deltas {
		var patch world.Patch
		switch delta.Kind {
		case "location":
			patch.CurrentLocation = delta.Value
		case "item_gained":
			patch.AddItem = delta.Value
		case "item_lost":
			patch.RemoveItem = delta.Value
		case "npc_flag":
			patch.NPCFlag = &world.FlagUpdate{Name: delta.Target, Value: delta.Value}
		case "story_flag":
			value, err := strconv.ParseBool(delta.Value)
			if err != nil {
				continue
			}
			patch.StoryFlag = &world.StoryFlagUpdate{Name: delta.Target, Value: value}
		default:
			continue
		}
		if patch.Empty() {
			continue
		}
		if err := state.Apply(patch, stamp); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// strongestGoal returns the top goal's type when it has real
// evidence, not just the baseline score.
func strongestGoal(inferred []goals.Goal) string {
	if len(inferred) == 0 {
		return ""
	}
	top := inferred[0]
	if top.Confidence <= 0.5 {
		return ""
	}
	return string(top.Type)
}

func collectTags(entries []memory.Entry) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, entry := range entries {
		for _, tag := range entry.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

func marshalSnapshot(snapshot storage.Snapshot) ([]byte, error) {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "encode campaign snapshot", err)
	}
	return blob, nil
}

func unmarshalSnapshot(blob []byte) (storage.Snapshot, error) {
	var snapshot storage.Snapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		return storage.Snapshot{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "decode campaign snapshot", err)
	}
	return snapshot, nil
}
