// Package scenario parses scenario command flags and runs Lua
// scenario files against an in-memory engine.
package scenario

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	entrypoint "github.com/louisbranch/everloom/internal/platform/cmd"
	runner "github.com/louisbranch/everloom/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Files []string
}

// ParseConfig parses flags; positional arguments are Lua scenario
// files.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	files := fs.Args()
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no scenario files given")
	}
	return Config{Files: files}, nil
}

// Run executes each scenario file in order, stopping at the first
// failure.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		logger := log.New(os.Stderr)
		for _, file := range cfg.Files {
			scenarioRunner, err := runner.NewRunner(logger)
			if err != nil {
				return err
			}
			if err := scenarioRunner.RunFile(ctx, file); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			logger.Info("scenario passed", "file", file)
		}
		return nil
	})
}
