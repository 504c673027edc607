package engine

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"

	appengine "github.com/louisbranch/everloom/internal/engine"
	"github.com/louisbranch/everloom/internal/errors/i18n"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrator"
	"github.com/louisbranch/everloom/internal/storage/memstore"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "everloom.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.CampaignID != "default" {
		t.Fatalf("expected default campaign, got %q", cfg.CampaignID)
	}
	if cfg.NarratorURL != "" {
		t.Fatalf("expected empty narrator url, got %q", cfg.NarratorURL)
	}
	if cfg.Locale != "en-US" {
		t.Fatalf("expected default locale, got %q", cfg.Locale)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "/tmp/play.db", "-campaign", "c1", "-narrator-url", "https://llm.example/responses"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/play.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
	if cfg.CampaignID != "c1" {
		t.Fatalf("expected campaign override, got %q", cfg.CampaignID)
	}
	if cfg.NarratorURL != "https://llm.example/responses" {
		t.Fatalf("expected narrator url override, got %q", cfg.NarratorURL)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("EVERLOOM_DB_PATH", "/var/lib/everloom.db")
	t.Setenv("EVERLOOM_LOCALE", "pt-BR")

	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/var/lib/everloom.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.Locale != "pt-BR" {
		t.Fatalf("expected env locale, got %q", cfg.Locale)
	}
}

func TestPlayLoopCreationThroughFirstTurn(t *testing.T) {
	store := memstore.New()
	engineCtx, err := appengine.New(appengine.Options{
		Store:    store,
		Narrator: narrator.Static{Text: "The cavern swallows your torchlight."},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	input := strings.Join([]string{
		"My name is Brin, a human fighter with a soldier past.",
		"/edit class Wizard",
		"/finalize",
		"I step into the cavern.",
		"/quit",
	}, "\n")
	var out bytes.Buffer

	if err := playLoop(context.Background(), engineCtx, "camp-1", i18n.GetCatalog("en-US"), strings.NewReader(input), &out); err != nil {
		t.Fatalf("play loop: %v", err)
	}

	transcript := out.String()
	for _, want := range []string{
		"A new story begins.",
		"Your character is complete.",
		"class is now Wizard.",
		"Your character is locked in.",
		"The cavern swallows your torchlight.",
	} {
		if !strings.Contains(transcript, want) {
			t.Fatalf("transcript missing %q:\n%s", want, transcript)
		}
	}

	character, err := engineCtx.Character(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("character: %v", err)
	}
	if character.State != creation.StateFinalized {
		t.Fatalf("state = %s, want %s", character.State, creation.StateFinalized)
	}
}

func TestPlayLoopEditAfterFinalizeIsRejected(t *testing.T) {
	store := memstore.New()
	engineCtx, err := appengine.New(appengine.Options{
		Store:    store,
		Narrator: narrator.Static{Text: "The road continues."},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	input := strings.Join([]string{
		"My name is Brin, a human fighter with a soldier past.",
		"/finalize",
		"/edit race Elf",
		"/quit",
	}, "\n")
	var out bytes.Buffer

	if err := playLoop(context.Background(), engineCtx, "camp-2", i18n.GetCatalog("en-US"), strings.NewReader(input), &out); err != nil {
		t.Fatalf("play loop: %v", err)
	}

	transcript := out.String()
	if strings.Contains(transcript, "race is now Elf.") {
		t.Fatalf("edit after finalize should not apply:\n%s", transcript)
	}
}
