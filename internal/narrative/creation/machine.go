package creation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/everloom/internal/errors"
)

// State is the lifecycle state of a character under creation.
type State string

const (
	// StateDrafting accepts one-time fact commits and undo.
	StateDrafting State = "drafting"
	// StateReviewing accepts last-write-wins edits and finalization.
	StateReviewing State = "reviewing"
	// StateFinalized is terminal; all mutation is rejected.
	StateFinalized State = "finalized"
)

// Valid reports whether the state is one of the three lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateDrafting, StateReviewing, StateFinalized:
		return true
	}
	return false
}

// CoreKeys are the universal required fact keys every character needs.
var CoreKeys = []string{"name", "race", "class", "background"}

// EditRecord is one audited Reviewing-state edit.
type EditRecord struct {
	Key      string    `json:"key"`
	Previous Value     `json:"previous"`
	Applied  Value     `json:"applied"`
	At       time.Time `json:"at"`
}

// Machine owns a character's creation lifecycle. No other component
// mutates the underlying fact ledger.
type Machine struct {
	characterID string
	campaignID  string
	state       State
	ledger      *Ledger
	required    []string
	edits       []EditRecord
	createdAt   time.Time
	finalizedAt *time.Time
}

// NewMachineInput describes the input for starting a creation session.
type NewMachineInput struct {
	CharacterID string
	CampaignID  string
	// RequiredKeys extends CoreKeys with campaign-specific required facts.
	// Every entry must appear in KnownKeys.
	RequiredKeys []string
	// KnownKeys is the full set of fact keys the campaign defines beyond
	// CoreKeys. A required key outside this set is a configuration error.
	KnownKeys []string
	CreatedAt time.Time
}

// NewMachine starts a Drafting creation session. A required key that is
// neither a core key nor a known campaign key fails with UnknownFactKey;
// this is a configuration error callers should treat as fatal.
func NewMachine(input NewMachineInput) (*Machine, error) {
	known := make(map[string]struct{}, len(CoreKeys)+len(input.KnownKeys))
	for _, key := range CoreKeys {
		known[key] = struct{}{}
	}
	for _, key := range input.KnownKeys {
		known[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
	}

	required := make([]string, 0, len(CoreKeys)+len(input.RequiredKeys))
	required = append(required, CoreKeys...)
	for _, key := range input.RequiredKeys {
		cleaned := strings.ToLower(strings.TrimSpace(key))
		if cleaned == "" {
			continue
		}
		if _, ok := known[cleaned]; !ok {
			return nil, errors.WithMetadata(errors.CodeUnknownFactKey,
				fmt.Sprintf("required fact key %q is not defined", cleaned),
				map[string]string{"Key": cleaned})
		}
		if !contains(required, cleaned) {
			required = append(required, cleaned)
		}
	}

	return &Machine{
		characterID: input.CharacterID,
		campaignID:  input.CampaignID,
		state:       StateDrafting,
		ledger:      NewLedger(),
		required:    required,
		createdAt:   input.CreatedAt,
	}, nil
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// CharacterID returns the owned character's id.
func (m *Machine) CharacterID() string {
	return m.characterID
}

// CampaignID returns the owning campaign's id.
func (m *Machine) CampaignID() string {
	return m.campaignID
}

// RequiredKeys returns the required fact keys in check order.
func (m *Machine) RequiredKeys() []string {
	out := make([]string, len(m.required))
	copy(out, m.required)
	return out
}

// MissingKeys returns the required keys not yet committed, sorted.
func (m *Machine) MissingKeys() []string {
	var missing []string
	for _, key := range m.required {
		if !m.ledger.Has(key) {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// CommitFact records a fact while Drafting. If the key is already set
// the call is a no-op and the existing value wins; the return reports
// whether the commit was applied. Outside Drafting the call fails with
// InvalidStateTransition and the ledger is untouched.
func (m *Machine) CommitFact(input CommitFactInput, now func() time.Time) (bool, error) {
	if m.state != StateDrafting {
		return false, m.transitionError("commit_fact")
	}
	normalized, err := NormalizeCommitFactInput(input)
	if err != nil {
		return false, err
	}
	return m.ledger.Commit(normalized, now().UTC()), nil
}

// UndoLastCommit removes the most recently committed fact, enabling
// correction before the one-time-write semantics lock it in. Only
// available while Drafting.
func (m *Machine) UndoLastCommit() (string, error) {
	if m.state != StateDrafting {
		return "", m.transitionError("undo_last_commit")
	}
	key, ok := m.ledger.RemoveLast()
	if !ok {
		return "", errors.New(errors.CodeNoCommittedFacts, "no facts to undo")
	}
	return key, nil
}

// CheckCompletion transitions Drafting to Reviewing once every required
// key is populated. It returns whether the transition happened on this
// call; calling it in any other state is a harmless no-op.
func (m *Machine) CheckCompletion() bool {
	if m.state != StateDrafting {
		return false
	}
	if len(m.MissingKeys()) > 0 {
		return false
	}
	m.state = StateReviewing
	return true
}

// ApplyEdit overwrites a fact while Reviewing, last write wins. The
// change is appended to the audit log. Outside Reviewing the call fails
// with InvalidStateTransition and the ledger is untouched.
func (m *Machine) ApplyEdit(key string, value Value, now func() time.Time) error {
	if m.state != StateReviewing {
		return m.transitionError("apply_edit")
	}
	cleaned := strings.ToLower(strings.TrimSpace(key))
	if cleaned == "" {
		return errors.New(errors.CodeFactEmptyKey, "fact key is required")
	}
	if !value.Valid() {
		return errors.New(errors.CodeFactInvalidValue, fmt.Sprintf("edit for %q has no usable value", cleaned))
	}

	var previous Value
	if existing, ok := m.ledger.Get(cleaned); ok {
		previous = existing.Value
	}
	at := now().UTC()
	m.ledger.Override(cleaned, value, at)
	m.edits = append(m.edits, EditRecord{Key: cleaned, Previous: previous, Applied: value, At: at})
	return nil
}

// Finalize locks the character permanently. Only allowed from Reviewing;
// there is no un-finalize.
func (m *Machine) Finalize(now func() time.Time) error {
	if m.state != StateReviewing {
		return m.transitionError("finalize")
	}
	at := now().UTC()
	m.state = StateFinalized
	m.finalizedAt = &at
	return nil
}

// Fact returns the committed fact for a key.
func (m *Machine) Fact(key string) (Fact, bool) {
	return m.ledger.Get(strings.ToLower(strings.TrimSpace(key)))
}

// Facts returns all committed facts in commit order.
func (m *Machine) Facts() []Fact {
	return m.ledger.Facts()
}

// Edits returns the Reviewing-state audit log in order.
func (m *Machine) Edits() []EditRecord {
	out := make([]EditRecord, len(m.edits))
	copy(out, m.edits)
	return out
}

// FinalizedAt returns when the character was finalized, if it was.
func (m *Machine) FinalizedAt() *time.Time {
	if m.finalizedAt == nil {
		return nil
	}
	at := *m.finalizedAt
	return &at
}

func (m *Machine) transitionError(operation string) error {
	return errors.WithMetadata(errors.CodeInvalidStateTransition,
		fmt.Sprintf("%s is not allowed in state %s", operation, m.state),
		map[string]string{"State": string(m.state), "Operation": operation})
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
