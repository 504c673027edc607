package storage

import (
	"context"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/world"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to tell a legitimate "no such entity" state apart
// from transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// MemoryStore persists memory entries per campaign. AppendMemory
// assigns the entry's Seq; ListMemories returns entries in Seq order.
type MemoryStore interface {
	AppendMemory(ctx context.Context, entry memory.Entry) (memory.Entry, error)
	ListMemories(ctx context.Context, campaignID string) ([]memory.Entry, error)
}

// CharacterStore persists the one character of a solo campaign.
type CharacterStore interface {
	PutCharacter(ctx context.Context, character creation.Character) error
	GetCharacter(ctx context.Context, campaignID string) (creation.Character, error)
}

// WorldStore persists the campaign world record.
type WorldStore interface {
	PutWorld(ctx context.Context, state *world.State) error
	GetWorld(ctx context.Context, campaignID string) (*world.State, error)
}

// TurnWrite is the combined output of one processed turn. ApplyTurn
// commits all of it or none of it; a half-applied turn would corrupt
// the orderings the retrieval heuristics depend on.
type TurnWrite struct {
	CampaignID string
	Memories   []memory.Entry
	World      *world.State
}

// TurnWriter commits a turn's writes atomically.
type TurnWriter interface {
	ApplyTurn(ctx context.Context, write TurnWrite) ([]memory.Entry, error)
}

// Snapshot is the full persistable state of one campaign, used by the
// export/import boundary. Memory Seq values are preserved so a
// restored campaign ranks identically to the original.
type Snapshot struct {
	CampaignID string              `json:"campaign_id"`
	Character  *creation.Character `json:"character,omitempty"`
	Memories   []memory.Entry      `json:"memories,omitempty"`
	World      *world.State        `json:"world,omitempty"`
}

// Archiver moves whole campaigns across the persistence boundary.
type Archiver interface {
	ExportCampaign(ctx context.Context, campaignID string) (Snapshot, error)
	ImportCampaign(ctx context.Context, snapshot Snapshot) error
}

// Store is the full persistence surface the engine is wired with.
type Store interface {
	MemoryStore
	CharacterStore
	WorldStore
	TurnWriter
	Archiver
	Close() error
}
