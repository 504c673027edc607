package creation

import (
	"testing"
	"time"

	"github.com/louisbranch/everloom/internal/errors"
)

func testNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newDraftingMachine(t *testing.T) *Machine {
	t.Helper()
	machine, err := NewMachine(NewMachineInput{
		CharacterID: "char-1",
		CampaignID:  "camp-1",
		CreatedAt:   testNow(),
	})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	return machine
}

func commitCoreFacts(t *testing.T, machine *Machine) {
	t.Helper()
	for key, value := range map[string]string{
		"name":       "Mara",
		"race":       "Human",
		"class":      "Fighter",
		"background": "Dockworker",
	} {
		applied, err := machine.CommitFact(CommitFactInput{
			Key:        key,
			Value:      StringValue(value),
			Confidence: 0.9,
			Source:     SourcePattern,
		}, testNow)
		if err != nil {
			t.Fatalf("commit %s: %v", key, err)
		}
		if !applied {
			t.Fatalf("commit %s was rejected", key)
		}
	}
}

func TestCommitFactFirstWriteWins(t *testing.T) {
	machine := newDraftingMachine(t)

	applied, err := machine.CommitFact(CommitFactInput{
		Key: "race", Value: StringValue("Human"), Confidence: 0.9, Source: SourcePattern,
	}, testNow)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if !applied {
		t.Fatal("expected first commit to apply")
	}

	applied, err = machine.CommitFact(CommitFactInput{
		Key: "race", Value: StringValue("Elf"), Confidence: 0.9, Source: SourceLLM,
	}, testNow)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if applied {
		t.Fatal("expected second commit to be a no-op")
	}

	fact, ok := machine.Fact("race")
	if !ok {
		t.Fatal("expected race fact")
	}
	if got, _ := fact.Value.AsString(); got != "Human" {
		t.Fatalf("race = %q, want Human", got)
	}
}

func TestCommitFactValidation(t *testing.T) {
	machine := newDraftingMachine(t)
	tests := []struct {
		name  string
		input CommitFactInput
		code  errors.Code
	}{
		{
			name:  "empty key",
			input: CommitFactInput{Key: "  ", Value: StringValue("x"), Source: SourceManual},
			code:  errors.CodeFactEmptyKey,
		},
		{
			name:  "invalid value",
			input: CommitFactInput{Key: "name", Source: SourceManual},
			code:  errors.CodeFactInvalidValue,
		},
		{
			name:  "confidence out of range",
			input: CommitFactInput{Key: "name", Value: StringValue("x"), Confidence: 1.5, Source: SourceManual},
			code:  errors.CodeFactInvalidConfidence,
		},
		{
			name:  "unknown source",
			input: CommitFactInput{Key: "name", Value: StringValue("x"), Source: Source("oracle")},
			code:  errors.CodeFactInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := machine.CommitFact(tt.input, testNow)
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCheckCompletionTransitionsToReviewing(t *testing.T) {
	machine := newDraftingMachine(t)

	if machine.CheckCompletion() {
		t.Fatal("expected no transition before facts are committed")
	}
	commitCoreFacts(t, machine)

	if !machine.CheckCompletion() {
		t.Fatal("expected transition once required facts are present")
	}
	if machine.State() != StateReviewing {
		t.Fatalf("state = %s, want %s", machine.State(), StateReviewing)
	}
	if machine.CheckCompletion() {
		t.Fatal("expected second call to be a no-op")
	}
}

func TestCheckCompletionRespectsDomainKeys(t *testing.T) {
	machine, err := NewMachine(NewMachineInput{
		CharacterID:  "char-1",
		CampaignID:   "camp-1",
		RequiredKeys: []string{"homeland"},
		KnownKeys:    []string{"homeland", "patron"},
		CreatedAt:    testNow(),
	})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	commitCoreFacts(t, machine)

	if machine.CheckCompletion() {
		t.Fatal("expected no transition while homeland is missing")
	}
	if _, err := machine.CommitFact(CommitFactInput{
		Key: "homeland", Value: StringValue("The Reach"), Confidence: 1, Source: SourceManual,
	}, testNow); err != nil {
		t.Fatalf("commit homeland: %v", err)
	}
	if !machine.CheckCompletion() {
		t.Fatal("expected transition with all domain keys committed")
	}
}

func TestNewMachineRejectsUnknownRequiredKey(t *testing.T) {
	_, err := NewMachine(NewMachineInput{
		CharacterID:  "char-1",
		CampaignID:   "camp-1",
		RequiredKeys: []string{"alignment"},
		CreatedAt:    testNow(),
	})
	if !errors.IsCode(err, errors.CodeUnknownFactKey) {
		t.Fatalf("expected UnknownFactKey, got %v", err)
	}
}

func TestApplyEditOverwritesInReviewing(t *testing.T) {
	machine := newDraftingMachine(t)
	commitCoreFacts(t, machine)
	machine.CheckCompletion()

	if err := machine.ApplyEdit("class", StringValue("Wizard"), testNow); err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	fact, _ := machine.Fact("class")
	if got, _ := fact.Value.AsString(); got != "Wizard" {
		t.Fatalf("class = %q, want Wizard", got)
	}

	edits := machine.Edits()
	if len(edits) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(edits))
	}
	if prev, _ := edits[0].Previous.AsString(); prev != "Fighter" {
		t.Fatalf("audit previous = %q, want Fighter", prev)
	}
}

func TestApplyEditRejectedOutsideReviewing(t *testing.T) {
	machine := newDraftingMachine(t)

	err := machine.ApplyEdit("class", StringValue("Wizard"), testNow)
	if !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("expected InvalidStateTransition, got %v", err)
	}
	if _, ok := machine.Fact("class"); ok {
		t.Fatal("ledger must be untouched by a rejected edit")
	}
}

func TestFinalizeLocksPermanently(t *testing.T) {
	machine := newDraftingMachine(t)
	commitCoreFacts(t, machine)
	machine.CheckCompletion()

	if err := machine.Finalize(testNow); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if machine.State() != StateFinalized {
		t.Fatalf("state = %s, want %s", machine.State(), StateFinalized)
	}
	if machine.FinalizedAt() == nil {
		t.Fatal("expected finalized timestamp")
	}

	err := machine.ApplyEdit("class", StringValue("Rogue"), testNow)
	if !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("edit after finalize: expected InvalidStateTransition, got %v", err)
	}
	fact, _ := machine.Fact("class")
	if got, _ := fact.Value.AsString(); got != "Fighter" {
		t.Fatalf("class = %q, ledger must be unchanged", got)
	}

	if _, err := machine.CommitFact(CommitFactInput{
		Key: "race", Value: StringValue("Elf"), Confidence: 1, Source: SourceManual,
	}, testNow); !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("commit after finalize: expected InvalidStateTransition, got %v", err)
	}
	if _, err := machine.UndoLastCommit(); !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("undo after finalize: expected InvalidStateTransition, got %v", err)
	}
}

func TestFinalizeRequiresReviewing(t *testing.T) {
	machine := newDraftingMachine(t)
	err := machine.Finalize(testNow)
	if !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("expected InvalidStateTransition, got %v", err)
	}
}

func TestUndoLastCommit(t *testing.T) {
	machine := newDraftingMachine(t)

	if _, err := machine.UndoLastCommit(); !errors.IsCode(err, errors.CodeNoCommittedFacts) {
		t.Fatalf("undo on empty ledger: expected NoCommittedFacts, got %v", err)
	}

	if _, err := machine.CommitFact(CommitFactInput{
		Key: "name", Value: StringValue("Mara"), Confidence: 1, Source: SourceManual,
	}, testNow); err != nil {
		t.Fatalf("commit name: %v", err)
	}
	if _, err := machine.CommitFact(CommitFactInput{
		Key: "race", Value: StringValue("Human"), Confidence: 1, Source: SourceManual,
	}, testNow); err != nil {
		t.Fatalf("commit race: %v", err)
	}

	key, err := machine.UndoLastCommit()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if key != "race" {
		t.Fatalf("undone key = %q, want race", key)
	}
	if _, ok := machine.Fact("race"); ok {
		t.Fatal("race should be removed")
	}

	// The slot reopens for a fresh commit.
	applied, err := machine.CommitFact(CommitFactInput{
		Key: "race", Value: StringValue("Elf"), Confidence: 1, Source: SourceManual,
	}, testNow)
	if err != nil || !applied {
		t.Fatalf("recommit race: applied=%v err=%v", applied, err)
	}
}

func TestUndoUnavailableInReviewing(t *testing.T) {
	machine := newDraftingMachine(t)
	commitCoreFacts(t, machine)
	machine.CheckCompletion()

	if _, err := machine.UndoLastCommit(); !errors.IsCode(err, errors.CodeInvalidStateTransition) {
		t.Fatalf("expected InvalidStateTransition, got %v", err)
	}
}

func TestMissingKeysSorted(t *testing.T) {
	machine := newDraftingMachine(t)
	if _, err := machine.CommitFact(CommitFactInput{
		Key: "name", Value: StringValue("Mara"), Confidence: 1, Source: SourceManual,
	}, testNow); err != nil {
		t.Fatalf("commit: %v", err)
	}

	missing := machine.MissingKeys()
	want := []string{"background", "class", "race"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("missing = %v, want %v", missing, want)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	machine := newDraftingMachine(t)
	commitCoreFacts(t, machine)
	machine.CheckCompletion()
	if err := machine.ApplyEdit("class", StringValue("Wizard"), testNow); err != nil {
		t.Fatalf("apply edit: %v", err)
	}

	restored, err := Restore(machine.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.State() != StateReviewing {
		t.Fatalf("state = %s, want %s", restored.State(), StateReviewing)
	}
	fact, _ := restored.Fact("class")
	if got, _ := fact.Value.AsString(); got != "Wizard" {
		t.Fatalf("class = %q, want Wizard", got)
	}
	if len(restored.Edits()) != 1 {
		t.Fatalf("expected audit log to survive restore")
	}

	// A restored Reviewing machine can still finalize.
	if err := restored.Finalize(testNow); err != nil {
		t.Fatalf("finalize restored: %v", err)
	}
}

func TestRestoreRejectsInvalidState(t *testing.T) {
	_, err := Restore(Character{ID: "char-1", State: State("limbo")})
	if err == nil {
		t.Fatal("expected error for invalid state")
	}
}
