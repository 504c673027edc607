package creation

import (
	"fmt"
	"time"
)

// Character is the persistable snapshot of a creation session. It is
// produced by Machine.Snapshot and consumed by Restore; nothing else
// mutates it.
type Character struct {
	ID           string       `json:"id"`
	CampaignID   string       `json:"campaign_id"`
	State        State        `json:"state"`
	Facts        []Fact       `json:"facts"`
	RequiredKeys []string     `json:"required_keys"`
	Edits        []EditRecord `json:"edits,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	FinalizedAt  *time.Time   `json:"finalized_at,omitempty"`
}

// Snapshot captures the machine's full state for persistence.
func (m *Machine) Snapshot() Character {
	var finalizedAt *time.Time
	if m.finalizedAt != nil {
		at := *m.finalizedAt
		finalizedAt = &at
	}
	return Character{
		ID:           m.characterID,
		CampaignID:   m.campaignID,
		State:        m.state,
		Facts:        m.ledger.Facts(),
		RequiredKeys: m.RequiredKeys(),
		Edits:        m.Edits(),
		CreatedAt:    m.createdAt,
		FinalizedAt:  finalizedAt,
	}
}

// Restore rebuilds a machine from a persisted snapshot.
func Restore(character Character) (*Machine, error) {
	if !character.State.Valid() {
		return nil, fmt.Errorf("restore character %s: invalid state %q", character.ID, character.State)
	}

	ledger := NewLedger()
	for _, fact := range character.Facts {
		if !ledger.Commit(CommitFactInput{
			Key:        fact.Key,
			Value:      fact.Value,
			Confidence: fact.Confidence,
			Source:     fact.Source,
		}, fact.CommittedAt) {
			return nil, fmt.Errorf("restore character %s: duplicate fact key %q", character.ID, fact.Key)
		}
	}

	required := character.RequiredKeys
	if len(required) == 0 {
		required = CoreKeys
	}

	machine := &Machine{
		characterID: character.ID,
		campaignID:  character.CampaignID,
		state:       character.State,
		ledger:      ledger,
		required:    append([]string(nil), required...),
		edits:       append([]EditRecord(nil), character.Edits...),
		createdAt:   character.CreatedAt,
	}
	if character.FinalizedAt != nil {
		at := *character.FinalizedAt
		machine.finalizedAt = &at
	}
	return machine, nil
}
