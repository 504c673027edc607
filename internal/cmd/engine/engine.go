// Package engine parses engine command flags and runs the interactive
// play loop.
package engine

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	appengine "github.com/louisbranch/everloom/internal/engine"
	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/errors/i18n"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrator"
	entrypoint "github.com/louisbranch/everloom/internal/platform/cmd"
	"github.com/louisbranch/everloom/internal/storage/sqlite"
)

// Config holds engine command configuration.
type Config struct {
	DBPath          string `env:"EVERLOOM_DB_PATH" envDefault:"everloom.db"`
	CampaignID      string `env:"EVERLOOM_CAMPAIGN" envDefault:"default"`
	NarratorURL     string `env:"EVERLOOM_NARRATOR_URL"`
	NarratorModel   string `env:"EVERLOOM_NARRATOR_MODEL" envDefault:"gpt-4o-mini"`
	NarratorAPIKey  string `env:"EVERLOOM_NARRATOR_API_KEY"`
	NarratorTimeout int    `env:"EVERLOOM_NARRATOR_TIMEOUT_SECONDS" envDefault:"60"`
	Locale          string `env:"EVERLOOM_LOCALE" envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the campaign database")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "Campaign identifier to play")
	fs.StringVar(&cfg.NarratorURL, "narrator-url", cfg.NarratorURL, "Narrator responses endpoint (empty for offline canned narration)")
	fs.StringVar(&cfg.NarratorModel, "narrator-model", cfg.NarratorModel, "Narrator model name")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the interactive play loop on stdin/stdout.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdin, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	logger := log.New(os.Stderr)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	engineCtx, err := appengine.New(appengine.Options{
		Store:    store,
		Narrator: buildNarrator(cfg),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return playLoop(ctx, engineCtx, cfg.CampaignID, i18n.GetCatalog(cfg.Locale), in, out)
}

// buildNarrator picks the HTTP narrator when an endpoint is
// configured, otherwise a canned offline narrator.
func buildNarrator(cfg Config) narrator.Narrator {
	if strings.TrimSpace(cfg.NarratorURL) == "" {
		return narrator.Static{Text: "The world waits quietly for your next move."}
	}
	httpNarrator, err := narrator.NewHTTP(narrator.HTTPConfig{
		ResponsesURL: cfg.NarratorURL,
		Model:        cfg.NarratorModel,
		APIKey:       cfg.NarratorAPIKey,
		HTTPClient:   &http.Client{Timeout: time.Duration(cfg.NarratorTimeout) * time.Second},
	})
	if err != nil {
		return narrator.Static{Text: "The world waits quietly for your next move."}
	}
	return httpNarrator
}

// playLoop reads one player line at a time. Before the character is
// finalized, lines feed creation; afterwards each line is a turn.
func playLoop(ctx context.Context, engineCtx *appengine.Context, campaignID string, catalog *i18n.Catalog, in io.Reader, out io.Writer) error {
	character, err := engineCtx.Character(ctx, campaignID)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return err
		}
		if character, err = engineCtx.BeginCharacterCreation(ctx, campaignID); err != nil {
			return err
		}
		fmt.Fprintln(out, "A new story begins. Describe your character.")
	} else {
		fmt.Fprintf(out, "Welcome back. Your character is %s.\n", character.State)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		character, err := engineCtx.Character(ctx, campaignID)
		if err != nil {
			return err
		}
		switch character.State {
		case creation.StateDrafting:
			result, err := engineCtx.SubmitCreationInput(ctx, campaignID, line)
			if err != nil {
				fmt.Fprintln(out, playerMessage(catalog, err))
				continue
			}
			if len(result.MissingKeys) > 0 {
				fmt.Fprintf(out, "Noted. Still needed: %s.\n", strings.Join(result.MissingKeys, ", "))
			} else {
				fmt.Fprintln(out, "Your character is complete. Review it, edit with /edit key value, or /finalize.")
			}
		case creation.StateReviewing:
			if handled, err := handleReviewCommand(ctx, engineCtx, campaignID, line, out); err != nil {
				fmt.Fprintln(out, playerMessage(catalog, err))
			} else if !handled {
				fmt.Fprintln(out, "In review: use /edit key value or /finalize.")
			}
		default:
			result, err := engineCtx.ProcessTurn(ctx, campaignID, line)
			if err != nil {
				fmt.Fprintln(out, playerMessage(catalog, err))
				continue
			}
			fmt.Fprintln(out, result.Narration.Text)
		}
	}
}

func handleReviewCommand(ctx context.Context, engineCtx *appengine.Context, campaignID, line string, out io.Writer) (bool, error) {
	switch {
	case strings.HasPrefix(line, "/edit "):
		parts := strings.SplitN(strings.TrimPrefix(line, "/edit "), " ", 2)
		if len(parts) != 2 {
			return true, fmt.Errorf("usage: /edit key value")
		}
		if _, err := engineCtx.SubmitEdit(ctx, campaignID, parts[0], creation.StringValue(parts[1])); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s is now %s.\n", parts[0], parts[1])
		return true, nil
	case line == "/finalize":
		if _, err := engineCtx.FinalizeCharacter(ctx, campaignID); err != nil {
			return true, err
		}
		fmt.Fprintln(out, "Your character is locked in. The story begins.")
		return true, nil
	default:
		return false, nil
	}
}

// playerMessage renders an error as player-facing text, falling back
// to the raw error for non-domain failures.
func playerMessage(catalog *i18n.Catalog, err error) string {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return err.Error()
	}
	return catalog.Format(string(code), apperrors.GetMetadata(err))
}
