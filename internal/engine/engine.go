// Package engine is the façade over the narrative subsystems. A
// Context holds everything one process needs to run campaigns; there
// is no ambient global state.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/extract"
	"github.com/louisbranch/everloom/internal/narrative/goals"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/symbolic"
	"github.com/louisbranch/everloom/internal/narrative/world"
	"github.com/louisbranch/everloom/internal/narrator"
	"github.com/louisbranch/everloom/internal/platform/id"
	"github.com/louisbranch/everloom/internal/storage"
)

const defaultInstructions = "You are the narrator of a solo adventure. Continue the story from the provided context. Stay consistent with the memories and world state."

// Options configures a Context. Store and Narrator are required.
type Options struct {
	Store    storage.Store
	Narrator narrator.Narrator
	Logger   *log.Logger

	// RequiredKeys are the fact keys a character needs before review.
	// Defaults to creation.CoreKeys. Every entry must be a core key or
	// appear in KnownKeys; anything else fails construction.
	RequiredKeys []string
	KnownKeys    []string

	// SystemInstructions override the default narrator framing.
	SystemInstructions string

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() (string, error)
}

// Context runs campaigns against one store and one narrator. Each
// campaign's mutations are serialized by a per-campaign lock; reads
// and other campaigns proceed concurrently.
type Context struct {
	store        storage.Store
	narrator     narrator.Narrator
	memories     *memory.System
	tagger       *symbolic.Tagger
	goalEngine   *goals.Engine
	logger       *log.Logger
	requiredKeys []string
	knownKeys    []string
	instructions string
	now          func() time.Time
	newID        func() (string, error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New validates options and builds a Context. A required key outside
// the known set is a configuration error and fails here, before any
// campaign can reach the broken state at commit time.
func New(opts Options) (*Context, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Narrator == nil {
		return nil, fmt.Errorf("narrator is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = id.NewID
	}
	if len(opts.RequiredKeys) == 0 {
		opts.RequiredKeys = creation.CoreKeys
	}
	if opts.SystemInstructions == "" {
		opts.SystemInstructions = defaultInstructions
	}

	// Probe machine construction once so misconfigured keys surface at
	// startup.
	if _, err := creation.NewMachine(creation.NewMachineInput{
		CharacterID:  "probe",
		CampaignID:   "probe",
		RequiredKeys: opts.RequiredKeys,
		KnownKeys:    opts.KnownKeys,
		CreatedAt:    opts.Now(),
	}); err != nil {
		return nil, err
	}

	tagger, err := symbolic.NewTagger()
	if err != nil {
		return nil, fmt.Errorf("build tagger: %w", err)
	}
	goalEngine, err := goals.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("build goal engine: %w", err)
	}

	return &Context{
		store:        opts.Store,
		narrator:     opts.Narrator,
		memories:     memory.NewSystem(opts.Store),
		tagger:       tagger,
		goalEngine:   goalEngine,
		logger:       opts.Logger,
		requiredKeys: opts.RequiredKeys,
		knownKeys:    opts.KnownKeys,
		instructions: opts.SystemInstructions,
		now:          opts.Now,
		newID:        opts.NewID,
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// campaignLock serializes mutations per campaign. One player action
// is processed to completion before the next is accepted.
func (c *Context) campaignLock(campaignID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[campaignID] = lock
	}
	return lock
}

func (c *Context) tracer() trace.Tracer {
	return otel.Tracer("everloom/engine")
}

// BeginCharacterCreation starts a Drafting character for the campaign
// and initializes its world record. A campaign holds exactly one
// character.
func (c *Context) BeginCharacterCreation(ctx context.Context, campaignID string) (creation.Character, error) {
	if campaignID == "" {
		return creation.Character{}, apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := c.tracer().Start(ctx, "engine.BeginCharacterCreation",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if _, err := c.store.GetCharacter(ctx, campaignID); err == nil {
		return creation.Character{}, apperrors.WithMetadata(apperrors.CodeCampaignCharacterExists,
			"campaign already has a character", map[string]string{"CampaignID": campaignID})
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return creation.Character{}, err
	}

	characterID, err := c.newID()
	if err != nil {
		return creation.Character{}, fmt.Errorf("new character id: %w", err)
	}
	machine, err := creation.NewMachine(creation.NewMachineInput{
		CharacterID:  characterID,
		CampaignID:   campaignID,
		RequiredKeys: c.requiredKeys,
		KnownKeys:    c.knownKeys,
		CreatedAt:    c.now(),
	})
	if err != nil {
		return creation.Character{}, err
	}

	snapshot := machine.Snapshot()
	if err := c.store.PutCharacter(ctx, snapshot); err != nil {
		return creation.Character{}, err
	}

	if _, err := c.store.GetWorld(ctx, campaignID); apperrors.IsCode(err, apperrors.CodeNotFound) {
		state, err := world.NewState(campaignID)
		if err != nil {
			return creation.Character{}, err
		}
		if err := c.store.PutWorld(ctx, state); err != nil {
			return creation.Character{}, err
		}
	} else if err != nil {
		return creation.Character{}, err
	}

	c.logger.Info("character creation started", "campaign_id", campaignID, "character_id", characterID)
	return snapshot, nil
}

// CreationResult reports the outcome of one creation input.
type CreationResult struct {
	FactsCommitted []creation.Fact `json:"facts_committed"`
	State          creation.State  `json:"state"`
	MissingKeys    []string        `json:"missing_keys,omitempty"`
}

// SubmitCreationInput extracts fact candidates from the player's text,
// commits the new ones, and transitions to Reviewing when all required
// keys are present. Repeated keys are ignored, not overwritten.
func (c *Context) SubmitCreationInput(ctx context.Context, campaignID, text string) (CreationResult, error) {
	if campaignID == "" {
		return CreationResult{}, apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}
	if strings.TrimSpace(text) == "" {
		return CreationResult{}, apperrors.New(apperrors.CodeCampaignEmptyInput, "input text is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := c.tracer().Start(ctx, "engine.SubmitCreationInput",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	machine, err := c.loadMachine(ctx, campaignID)
	if err != nil {
		return CreationResult{}, err
	}

	var committed []creation.Fact
	for _, candidate := range extract.Facts(text) {
		applied, err := machine.CommitFact(creation.CommitFactInput{
			Key:        candidate.Key,
			Value:      candidate.Value,
			Confidence: candidate.Confidence,
			Source:     candidate.Source,
		}, c.now)
		if err != nil {
			return CreationResult{}, err
		}
		if applied {
			fact, _ := machine.Fact(candidate.Key)
			committed = append(committed, fact)
		}
	}
	machine.CheckCompletion()

	if err := c.store.PutCharacter(ctx, machine.Snapshot()); err != nil {
		return CreationResult{}, err
	}

	c.logger.Info("creation input processed", "campaign_id", campaignID,
		"facts_committed", len(committed), "state", machine.State())
	return CreationResult{
		FactsCommitted: committed,
		State:          machine.State(),
		MissingKeys:    machine.MissingKeys(),
	}, nil
}

// SubmitEdit revises one committed fact. Only legal in Reviewing.
func (c *Context) SubmitEdit(ctx context.Context, campaignID, key string, value creation.Value) (bool, error) {
	if campaignID == "" {
		return false, apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := c.tracer().Start(ctx, "engine.SubmitEdit",
		trace.WithAttributes(attribute.String("campaign.id", campaignID), attribute.String("fact.key", key)))
	defer span.End()

	machine, err := c.loadMachine(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if err := machine.ApplyEdit(key, value, c.now); err != nil {
		return false, err
	}
	if err := c.store.PutCharacter(ctx, machine.Snapshot()); err != nil {
		return false, err
	}
	return true, nil
}

// UndoLastCommit removes the most recent drafted fact.
func (c *Context) UndoLastCommit(ctx context.Context, campaignID string) (string, error) {
	if campaignID == "" {
		return "", apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	machine, err := c.loadMachine(ctx, campaignID)
	if err != nil {
		return "", err
	}
	key, err := machine.UndoLastCommit()
	if err != nil {
		return "", err
	}
	if err := c.store.PutCharacter(ctx, machine.Snapshot()); err != nil {
		return "", err
	}
	return key, nil
}

// FinalizeCharacter locks the character permanently.
func (c *Context) FinalizeCharacter(ctx context.Context, campaignID string) (creation.Character, error) {
	if campaignID == "" {
		return creation.Character{}, apperrors.New(apperrors.CodeCampaignEmptyID, "campaign id is required")
	}

	lock := c.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := c.tracer().Start(ctx, "engine.FinalizeCharacter",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	machine, err := c.loadMachine(ctx, campaignID)
	if err != nil {
		return creation.Character{}, err
	}
	if err := machine.Finalize(c.now); err != nil {
		return creation.Character{}, err
	}
	snapshot := machine.Snapshot()
	if err := c.store.PutCharacter(ctx, snapshot); err != nil {
		return creation.Character{}, err
	}
	c.logger.Info("character finalized", "campaign_id", campaignID, "character_id", snapshot.ID)
	return snapshot, nil
}

// Character returns the campaign's character snapshot.
func (c *Context) Character(ctx context.Context, campaignID string) (creation.Character, error) {
	return c.store.GetCharacter(ctx, campaignID)
}

// WorldState returns a copy of the campaign's world record.
func (c *Context) WorldState(ctx context.Context, campaignID string) (*world.State, error) {
	return c.store.GetWorld(ctx, campaignID)
}

// RetrieveMemories runs a ranked memory query for the campaign.
func (c *Context) RetrieveMemories(ctx context.Context, campaignID string, query memory.Query) ([]memory.Entry, error) {
	currentTurn, err := c.currentTurn(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return c.memories.Retrieve(ctx, campaignID, query, currentTurn)
}

// Export serializes the campaign's full state into an opaque blob.
func (c *Context) Export(ctx context.Context, campaignID string) ([]byte, error) {
	snapshot, err := c.store.ExportCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return marshalSnapshot(snapshot)
}

// Import restores a campaign from a blob produced by Export. A
// non-empty campaignID retargets the snapshot, so a campaign can be
// restored under a new id.
func (c *Context) Import(ctx context.Context, campaignID string, blob []byte) error {
	snapshot, err := unmarshalSnapshot(blob)
	if err != nil {
		return err
	}
	if campaignID != "" {
		retargetSnapshot(&snapshot, campaignID)
	}

	lock := c.campaignLock(snapshot.CampaignID)
	lock.Lock()
	defer lock.Unlock()

	return c.store.ImportCampaign(ctx, snapshot)
}

// retargetSnapshot rewrites the campaign id on the snapshot and every
// nested record. The stores key character, memory, and world rows by
// the record's own campaign id, so a stale nested id would land the
// data under the exported campaign instead of the requested one.
func retargetSnapshot(snapshot *storage.Snapshot, campaignID string) {
	snapshot.CampaignID = campaignID
	if snapshot.Character != nil {
		snapshot.Character.CampaignID = campaignID
	}
	for i := range snapshot.Memories {
		snapshot.Memories[i].CampaignID = campaignID
	}
	if snapshot.World != nil {
		snapshot.World.CampaignID = campaignID
	}
}

func (c *Context) loadMachine(ctx context.Context, campaignID string) (*creation.Machine, error) {
	character, err := c.store.GetCharacter(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return creation.Restore(character)
}

// currentTurn is one past the highest turn recorded in memory.
func (c *Context) currentTurn(ctx context.Context, campaignID string) (int, error) {
	entries, err := c.store.ListMemories(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, entry := range entries {
		if entry.Turn > highest {
			highest = entry.Turn
		}
	}
	return highest + 1, nil
}
