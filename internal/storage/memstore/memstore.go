// Package memstore provides an in-memory storage.Store used by tests
// and the scenario runner. Safe for concurrent use.
package memstore

import (
	"context"
	"sync"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/world"
	"github.com/louisbranch/everloom/internal/storage"
)

type campaignState struct {
	memories  []memory.Entry
	character *creation.Character
	world     *world.State
}

// Store keeps all campaign state in process memory.
type Store struct {
	mu        sync.RWMutex
	campaigns map[string]*campaignState
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{campaigns: make(map[string]*campaignState)}
}

func (s *Store) campaign(id string) *campaignState {
	state, ok := s.campaigns[id]
	if !ok {
		state = &campaignState{}
		s.campaigns[id] = state
	}
	return state
}

// AppendMemory assigns the next Seq and stores a copy of the entry.
func (s *Store) AppendMemory(_ context.Context, entry memory.Entry) (memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry), nil
}

func (s *Store) appendLocked(entry memory.Entry) memory.Entry {
	state := s.campaign(entry.CampaignID)
	entry.Seq = uint64(len(state.memories)) + 1
	state.memories = append(state.memories, entry)
	return entry
}

// ListMemories returns the campaign's entries in Seq order.
func (s *Store) ListMemories(_ context.Context, campaignID string) ([]memory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.campaigns[campaignID]
	if !ok {
		return nil, nil
	}
	return append([]memory.Entry(nil), state.memories...), nil
}

// PutCharacter stores the character snapshot.
func (s *Store) PutCharacter(_ context.Context, character creation.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := character
	s.campaign(character.CampaignID).character = &copied
	return nil
}

// GetCharacter loads the character snapshot.
func (s *Store) GetCharacter(_ context.Context, campaignID string) (creation.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.campaigns[campaignID]
	if !ok || state.character == nil {
		return creation.Character{}, storage.ErrNotFound
	}
	return *state.character, nil
}

// PutWorld stores a deep copy of the world record.
func (s *Store) PutWorld(_ context.Context, state *world.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaign(state.CampaignID).world = state.Clone()
	return nil
}

// GetWorld returns a deep copy of the world record.
func (s *Store) GetWorld(_ context.Context, campaignID string) (*world.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.campaigns[campaignID]
	if !ok || state.world == nil {
		return nil, storage.ErrNotFound
	}
	return state.world.Clone(), nil
}

// ApplyTurn commits the turn's writes under one lock acquisition, so
// a reader never observes a half-applied turn.
func (s *Store) ApplyTurn(_ context.Context, write storage.TurnWrite) ([]memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]memory.Entry, 0, len(write.Memories))
	for _, entry := range write.Memories {
		stored = append(stored, s.appendLocked(entry))
	}
	if write.World != nil {
		s.campaign(write.World.CampaignID).world = write.World.Clone()
	}
	return stored, nil
}

// ExportCampaign snapshots the campaign's full state.
func (s *Store) ExportCampaign(_ context.Context, campaignID string) (storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := storage.Snapshot{CampaignID: campaignID}
	state, ok := s.campaigns[campaignID]
	if !ok {
		return snapshot, nil
	}
	snapshot.Memories = append([]memory.Entry(nil), state.memories...)
	if state.character != nil {
		copied := *state.character
		snapshot.Character = &copied
	}
	if state.world != nil {
		snapshot.World = state.world.Clone()
	}
	return snapshot, nil
}

// ImportCampaign replaces the campaign's state with the snapshot.
func (s *Store) ImportCampaign(_ context.Context, snapshot storage.Snapshot) error {
	if snapshot.CampaignID == "" {
		return apperrors.New(apperrors.CodeCampaignEmptyID, "snapshot campaign id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := &campaignState{
		memories: append([]memory.Entry(nil), snapshot.Memories...),
	}
	if snapshot.Character != nil {
		copied := *snapshot.Character
		state.character = &copied
	}
	if snapshot.World != nil {
		state.world = snapshot.World.Clone()
	}
	s.campaigns[snapshot.CampaignID] = state
	return nil
}

// Close is a no-op; it satisfies storage.Store.
func (s *Store) Close() error {
	return nil
}
