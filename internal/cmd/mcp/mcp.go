// Package mcp parses MCP command flags and runs the MCP server over
// stdio.
package mcp

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	appengine "github.com/louisbranch/everloom/internal/engine"
	mcpserver "github.com/louisbranch/everloom/internal/mcp"
	"github.com/louisbranch/everloom/internal/narrator"
	entrypoint "github.com/louisbranch/everloom/internal/platform/cmd"
	"github.com/louisbranch/everloom/internal/storage/sqlite"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath          string `env:"EVERLOOM_DB_PATH" envDefault:"everloom.db"`
	NarratorURL     string `env:"EVERLOOM_NARRATOR_URL"`
	NarratorModel   string `env:"EVERLOOM_NARRATOR_MODEL" envDefault:"gpt-4o-mini"`
	NarratorAPIKey  string `env:"EVERLOOM_NARRATOR_API_KEY"`
	NarratorTimeout int    `env:"EVERLOOM_NARRATOR_TIMEOUT_SECONDS" envDefault:"60"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the campaign database")
	fs.StringVar(&cfg.NarratorURL, "narrator-url", cfg.NarratorURL, "Narrator responses endpoint (empty for offline canned narration)")
	fs.StringVar(&cfg.NarratorModel, "narrator-model", cfg.NarratorModel, "Narrator model name")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the MCP surface over stdio until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
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

		return mcpserver.New(engineCtx).Run(ctx)
	})
}

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
