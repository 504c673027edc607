// Package world holds the mutable per-campaign world record: location,
// inventory, relationship and story flags, and an append-only change
// log. All mutation goes through Apply; callers never edit the struct
// directly.
package world

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/louisbranch/everloom/internal/errors"
)

// FlagUpdate sets one named flag to a value.
type FlagUpdate struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StoryFlagUpdate sets one boolean story flag.
type StoryFlagUpdate struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Patch describes one world mutation. Zero-valued fields are ignored;
// at least one field must be set.
type Patch struct {
	CurrentLocation string           `json:"current_location,omitempty"`
	AddItem         string           `json:"add_item,omitempty"`
	RemoveItem      string           `json:"remove_item,omitempty"`
	NPCFlag         *FlagUpdate      `json:"npc_flag,omitempty"`
	StoryFlag       *StoryFlagUpdate `json:"story_flag,omitempty"`
}

// Empty reports whether the patch mutates nothing.
func (p Patch) Empty() bool {
	return p.CurrentLocation == "" && p.AddItem == "" && p.RemoveItem == "" && p.NPCFlag == nil && p.StoryFlag == nil
}

// ChangeRecord is one entry of the audit trail. The change log is the
// only history kept; there is no replay mechanism.
type ChangeRecord struct {
	Patch     Patch     `json:"patch"`
	AppliedAt time.Time `json:"applied_at"`
}

// State is the world record for one campaign. JSON encoding goes
// through stateJSON below.
type State struct {
	CampaignID      string
	CurrentLocation string
	LocationHistory []string
	Items           map[string]struct{}
	NPCFlags        map[string]string
	StoryFlags      map[string]bool
	ChangeLog       []ChangeRecord
}

// NewState creates an empty world record for a campaign.
func NewState(campaignID string) (*State, error) {
	if campaignID == "" {
		return nil, errors.New(errors.CodeWorldEmptyCampaignID, "campaign id is required")
	}
	return &State{
		CampaignID: campaignID,
		Items:      make(map[string]struct{}),
		NPCFlags:   make(map[string]string),
		StoryFlags: make(map[string]bool),
	}, nil
}

// Apply mutates the state per the patch and appends one ChangeRecord.
// An empty patch is rejected before any mutation.
func (s *State) Apply(patch Patch, now time.Time) error {
	if patch.Empty() {
		return errors.New(errors.CodeWorldEmptyPatch, "patch mutates nothing")
	}

	if patch.CurrentLocation != "" && patch.CurrentLocation != s.CurrentLocation {
		if s.CurrentLocation != "" {
			s.LocationHistory = append(s.LocationHistory, s.CurrentLocation)
		}
		s.CurrentLocation = patch.CurrentLocation
	}
	if patch.AddItem != "" {
		s.Items[patch.AddItem] = struct{}{}
	}
	if patch.RemoveItem != "" {
		// Removing an absent item is a no-op, not an error.
		delete(s.Items, patch.RemoveItem)
	}
	if patch.NPCFlag != nil {
		s.NPCFlags[patch.NPCFlag.Name] = patch.NPCFlag.Value
	}
	if patch.StoryFlag != nil {
		s.StoryFlags[patch.StoryFlag.Name] = patch.StoryFlag.Value
	}

	s.ChangeLog = append(s.ChangeLog, ChangeRecord{Patch: patch, AppliedAt: now})
	return nil
}

// HasItem reports whether the inventory contains the item.
func (s *State) HasItem(item string) bool {
	_, ok := s.Items[item]
	return ok
}

// ItemList returns the inventory sorted for stable presentation.
func (s *State) ItemList() []string {
	items := make([]string, 0, len(s.Items))
	for item := range s.Items {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

type stateJSON struct {
	CampaignID      string            `json:"campaign_id"`
	CurrentLocation string            `json:"current_location"`
	LocationHistory []string          `json:"location_history,omitempty"`
	Items           []string          `json:"items,omitempty"`
	NPCFlags        map[string]string `json:"npc_flags,omitempty"`
	StoryFlags      map[string]bool   `json:"story_flags,omitempty"`
	ChangeLog       []ChangeRecord    `json:"change_log,omitempty"`
}

// MarshalJSON encodes the inventory set as a sorted list so encoded
// snapshots are byte-stable.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		CampaignID:      s.CampaignID,
		CurrentLocation: s.CurrentLocation,
		LocationHistory: s.LocationHistory,
		Items:           s.ItemList(),
		NPCFlags:        s.NPCFlags,
		StoryFlags:      s.StoryFlags,
		ChangeLog:       s.ChangeLog,
	})
}

// UnmarshalJSON restores a snapshot produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.CampaignID = raw.CampaignID
	s.CurrentLocation = raw.CurrentLocation
	s.LocationHistory = raw.LocationHistory
	s.Items = make(map[string]struct{}, len(raw.Items))
	for _, item := range raw.Items {
		s.Items[item] = struct{}{}
	}
	s.NPCFlags = raw.NPCFlags
	if s.NPCFlags == nil {
		s.NPCFlags = make(map[string]string)
	}
	s.StoryFlags = raw.StoryFlags
	if s.StoryFlags == nil {
		s.StoryFlags = make(map[string]bool)
	}
	s.ChangeLog = raw.ChangeLog
	return nil
}

// Clone returns a deep copy, used to hand callers a snapshot that
// cannot alias live engine state.
func (s *State) Clone() *State {
	clone := &State{
		CampaignID:      s.CampaignID,
		CurrentLocation: s.CurrentLocation,
		LocationHistory: append([]string(nil), s.LocationHistory...),
		Items:           make(map[string]struct{}, len(s.Items)),
		NPCFlags:        make(map[string]string, len(s.NPCFlags)),
		StoryFlags:      make(map[string]bool, len(s.StoryFlags)),
		ChangeLog:       append([]ChangeRecord(nil), s.ChangeLog...),
	}
	for item := range s.Items {
		clone.Items[item] = struct{}{}
	}
	for name, value := range s.NPCFlags {
		clone.NPCFlags[name] = value
	}
	for name, value := range s.StoryFlags {
		clone.StoryFlags[name] = value
	}
	return clone
}
