package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/everloom/internal/engine"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrator"
)

const toolTimeout = 30 * time.Second

// CreationBeginInput represents the tool input for starting creation.
type CreationBeginInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CreationBeginResult represents the tool output for starting creation.
type CreationBeginResult struct {
	CharacterID  string   `json:"character_id" jsonschema:"new character identifier"`
	State        string   `json:"state" jsonschema:"creation state"`
	RequiredKeys []string `json:"required_keys" jsonschema:"fact keys needed before review"`
}

// CreationBeginTool defines the MCP tool schema for starting character creation.
func CreationBeginTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "creation_begin",
		Description: "Starts character creation for a campaign",
	}
}

// CreationBeginHandler executes a creation start request.
func CreationBeginHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[CreationBeginInput, CreationBeginResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreationBeginInput) (*mcp.CallToolResult, CreationBeginResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		character, err := engineCtx.BeginCharacterCreation(runCtx, input.CampaignID)
		if err != nil {
			return nil, CreationBeginResult{}, fmt.Errorf("creation begin failed: %w", err)
		}
		return nil, CreationBeginResult{
			CharacterID:  character.ID,
			State:        string(character.State),
			RequiredKeys: character.RequiredKeys,
		}, nil
	}
}

// CreationInputInput represents the tool input for a creation utterance.
type CreationInputInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Text       string `json:"text" jsonschema:"player's free-text character description"`
}

// FactPayload is one committed fact in tool output.
type FactPayload struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// CreationInputResult represents the tool output for a creation utterance.
type CreationInputResult struct {
	FactsCommitted []FactPayload `json:"facts_committed"`
	State          string        `json:"state" jsonschema:"creation state after the input"`
	MissingKeys    []string      `json:"missing_keys,omitempty" jsonschema:"required keys still unset"`
}

// CreationInputTool defines the MCP tool schema for submitting creation text.
func CreationInputTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "creation_input",
		Description: "Submits free text during character creation; extracted facts are committed once each",
	}
}

// CreationInputHandler executes a creation input request.
func CreationInputHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[CreationInputInput, CreationInputResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreationInputInput) (*mcp.CallToolResult, CreationInputResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		result, err := engineCtx.SubmitCreationInput(runCtx, input.CampaignID, input.Text)
		if err != nil {
			return nil, CreationInputResult{}, fmt.Errorf("creation input failed: %w", err)
		}

		facts := make([]FactPayload, 0, len(result.FactsCommitted))
		for _, fact := range result.FactsCommitted {
			facts = append(facts, FactPayload{
				Key:        fact.Key,
				Value:      fact.Value.String(),
				Confidence: fact.Confidence,
				Source:     string(fact.Source),
			})
		}
		return nil, CreationInputResult{
			FactsCommitted: facts,
			State:          string(result.State),
			MissingKeys:    result.MissingKeys,
		}, nil
	}
}

// CreationEditInput represents the tool input for a review edit.
type CreationEditInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Key        string `json:"key" jsonschema:"fact key to change"`
	Value      string `json:"value" jsonschema:"replacement value"`
}

// CreationEditResult represents the tool output for a review edit.
type CreationEditResult struct {
	Applied bool `json:"applied"`
}

// CreationEditTool defines the MCP tool schema for editing a fact in review.
func CreationEditTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "creation_edit",
		Description: "Revises a committed fact while the character is in review",
	}
}

// CreationEditHandler executes a review edit request.
func CreationEditHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[CreationEditInput, CreationEditResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreationEditInput) (*mcp.CallToolResult, CreationEditResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		applied, err := engineCtx.SubmitEdit(runCtx, input.CampaignID, input.Key, creation.StringValue(input.Value))
		if err != nil {
			return nil, CreationEditResult{}, fmt.Errorf("creation edit failed: %w", err)
		}
		return nil, CreationEditResult{Applied: applied}, nil
	}
}

// CreationUndoInput represents the tool input for undoing a draft commit.
type CreationUndoInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CreationUndoResult represents the tool output for undoing a draft commit.
type CreationUndoResult struct {
	RemovedKey string `json:"removed_key"`
}

// CreationUndoTool defines the MCP tool schema for undoing the last commit.
func CreationUndoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "creation_undo",
		Description: "Removes the most recently committed fact while drafting",
	}
}

// CreationUndoHandler executes an undo request.
func CreationUndoHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[CreationUndoInput, CreationUndoResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreationUndoInput) (*mcp.CallToolResult, CreationUndoResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		key, err := engineCtx.UndoLastCommit(runCtx, input.CampaignID)
		if err != nil {
			return nil, CreationUndoResult{}, fmt.Errorf("creation undo failed: %w", err)
		}
		return nil, CreationUndoResult{RemovedKey: key}, nil
	}
}

// CreationFinalizeInput represents the tool input for finalizing a character.
type CreationFinalizeInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CreationFinalizeResult represents the tool output for finalizing a character.
type CreationFinalizeResult struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

// CreationFinalizeTool defines the MCP tool schema for finalizing a character.
func CreationFinalizeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "creation_finalize",
		Description: "Locks the character permanently after review",
	}
}

// CreationFinalizeHandler executes a finalize request.
func CreationFinalizeHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[CreationFinalizeInput, CreationFinalizeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreationFinalizeInput) (*mcp.CallToolResult, CreationFinalizeResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		character, err := engineCtx.FinalizeCharacter(runCtx, input.CampaignID)
		if err != nil {
			return nil, CreationFinalizeResult{}, fmt.Errorf("creation finalize failed: %w", err)
		}
		return nil, CreationFinalizeResult{Success: true, State: string(character.State)}, nil
	}
}

// TurnInput represents the tool input for one player turn.
type TurnInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Text       string `json:"text" jsonschema:"the player's action for this turn"`
}

// TurnResult represents the tool output for one player turn.
type TurnResult struct {
	Narration string                `json:"narration"`
	Degraded  bool                  `json:"degraded,omitempty" jsonschema:"true when the narrator failed and canned text was used"`
	Deltas    []narrator.StateDelta `json:"deltas,omitempty"`
	Turn      int                   `json:"turn"`
}

// TurnTool defines the MCP tool schema for processing a turn.
func TurnTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_process",
		Description: "Processes one player action and returns the narration",
	}
}

// TurnHandler executes a turn request.
func TurnHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[TurnInput, TurnResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TurnInput) (*mcp.CallToolResult, TurnResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		result, err := engineCtx.ProcessTurn(runCtx, input.CampaignID, input.Text)
		if err != nil {
			return nil, TurnResult{}, fmt.Errorf("turn failed: %w", err)
		}
		return nil, TurnResult{
			Narration: result.Narration.Text,
			Degraded:  result.Narration.Degraded,
			Deltas:    result.Narration.Deltas,
			Turn:      result.Turn,
		}, nil
	}
}

// MemoryQueryInput represents the tool input for a ranked memory query.
type MemoryQueryInput struct {
	CampaignID   string   `json:"campaign_id" jsonschema:"campaign identifier"`
	Layer        string   `json:"layer,omitempty" jsonschema:"optional layer filter (episodic, semantic, procedural, emotional)"`
	Tags         []string `json:"tags,omitempty" jsonschema:"tags to score overlap against"`
	CharacterRef string   `json:"character_ref,omitempty" jsonschema:"only memories referencing this character"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum results, default 5"`
}

// MemoryPayload is one ranked memory in tool output.
type MemoryPayload struct {
	ID              string   `json:"id"`
	Layer           string   `json:"layer"`
	Content         string   `json:"content"`
	EmotionalWeight float64  `json:"emotional_weight"`
	Tags            []string `json:"tags,omitempty"`
	Turn            int      `json:"turn"`
}

// MemoryQueryResult represents the tool output for a memory query.
type MemoryQueryResult struct {
	Memories []MemoryPayload `json:"memories"`
}

// MemoryQueryTool defines the MCP tool schema for querying memories.
func MemoryQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "memory_query",
		Description: "Retrieves ranked memories for a campaign",
	}
}

// MemoryQueryHandler executes a memory query.
func MemoryQueryHandler(engineCtx *engine.Context) mcp.ToolHandlerFor[MemoryQueryInput, MemoryQueryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MemoryQueryInput) (*mcp.CallToolResult, MemoryQueryResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		entries, err := engineCtx.RetrieveMemories(runCtx, input.CampaignID, memory.Query{
			CharacterRef: input.CharacterRef,
			Layer:        memory.Layer(input.Layer),
			Tags:         input.Tags,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, MemoryQueryResult{}, fmt.Errorf("memory query failed: %w", err)
		}

		payload := make([]MemoryPayload, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, MemoryPayload{
				ID:              entry.ID,
				Layer:           string(entry.Layer),
				Content:         entry.Content,
				EmotionalWeight: entry.EmotionalWeight,
				Tags:            entry.Tags,
				Turn:            entry.Turn,
			})
		}
		return nil, MemoryQueryResult{Memories: payload}, nil
	}
}

// WorldStateResource defines the readable world-state MCP resource.
func WorldStateResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "world_state",
		Title:       "World state",
		Description: "Readable world record for a campaign",
		MIMEType:    "application/json",
		URI:         "world://state",
	}
}

// WorldStateResourceHandler returns the world record as JSON. The
// campaign is addressed as world://state/<campaign_id>.
func WorldStateResourceHandler(engineCtx *engine.Context) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := WorldStateResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		campaignID := campaignIDFromURI(uri)
		if campaignID == "" {
			return nil, fmt.Errorf("world state uri %q is missing a campaign id", uri)
		}

		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		state, err := engineCtx.WorldState(runCtx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("world state read failed: %w", err)
		}
		encoded, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("encode world state: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(encoded),
			}},
		}, nil
	}
}

// campaignIDFromURI extracts the trailing path segment of a
// world://state/<campaign_id> URI.
func campaignIDFromURI(uri string) string {
	const prefix = "world://state/"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return ""
	}
	return uri[len(prefix):]
}
