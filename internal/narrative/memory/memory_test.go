package memory

import (
	"testing"
	"time"

	"github.com/louisbranch/everloom/internal/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testClock() func() time.Time {
	return fixedNow
}

func TestCreateEntrySuccess(t *testing.T) {
	input := CreateEntryInput{
		CampaignID:      "camp-1",
		Layer:           LayerEpisodic,
		Content:         "  The ferry sank at the third bell.  ",
		EmotionalWeight: 0.7,
		Tags:            []string{"Loss", "loss", " River ", ""},
		CharacterRefs:   []string{"Mara"},
		Turn:            3,
	}

	entry, err := CreateEntry(input, testClock(), NewEntryID)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected generated id")
	}
	if entry.Content != "The ferry sank at the third bell." {
		t.Fatalf("content = %q", entry.Content)
	}
	if len(entry.Tags) != 2 || entry.Tags[0] != "loss" || entry.Tags[1] != "river" {
		t.Fatalf("tags = %v", entry.Tags)
	}
	if len(entry.CharacterRefs) != 1 || entry.CharacterRefs[0] != "mara" {
		t.Fatalf("character refs = %v", entry.CharacterRefs)
	}
	if !entry.CreatedAt.Equal(fixedNow()) {
		t.Fatalf("created at = %v", entry.CreatedAt)
	}
	if entry.Seq != 0 {
		t.Fatalf("seq should be unset before append, got %d", entry.Seq)
	}
}

func TestCreateEntryValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input CreateEntryInput
		code  errors.Code
	}{
		{
			name:  "missing campaign",
			input: CreateEntryInput{Layer: LayerEpisodic, Content: "x"},
			code:  errors.CodeCampaignEmptyID,
		},
		{
			name:  "invalid layer",
			input: CreateEntryInput{CampaignID: "c", Layer: Layer("dreams"), Content: "x"},
			code:  errors.CodeMemoryInvalidLayer,
		},
		{
			name:  "empty content",
			input: CreateEntryInput{CampaignID: "c", Layer: LayerSemantic, Content: "   "},
			code:  errors.CodeMemoryEmptyContent,
		},
		{
			name:  "weight too high",
			input: CreateEntryInput{CampaignID: "c", Layer: LayerSemantic, Content: "x", EmotionalWeight: 1.2},
			code:  errors.CodeMemoryInvalidWeight,
		},
		{
			name:  "negative weight",
			input: CreateEntryInput{CampaignID: "c", Layer: LayerSemantic, Content: "x", EmotionalWeight: -0.1},
			code:  errors.CodeMemoryInvalidWeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateEntry(tt.input, testClock(), NewEntryID)
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestLayerValid(t *testing.T) {
	for _, layer := range Layers() {
		if !layer.Valid() {
			t.Fatalf("expected %q to be valid", layer)
		}
	}
	if Layer("mythic").Valid() {
		t.Fatal("expected unknown layer to be invalid")
	}
}

func TestNewEntryIDSortsByTime(t *testing.T) {
	earlier, err := NewEntryID(fixedNow())
	if err != nil {
		t.Fatalf("new entry id: %v", err)
	}
	later, err := NewEntryID(fixedNow().Add(time.Minute))
	if err != nil {
		t.Fatalf("new entry id: %v", err)
	}
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
}
