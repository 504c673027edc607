package scenario

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/louisbranch/everloom/internal/engine"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrator"
	"github.com/louisbranch/everloom/internal/storage/memstore"
)

// Runner replays scenario steps against an engine.
type Runner struct {
	engine     *engine.Context
	logger     *log.Logger
	campaignID string
}

// NewRunner builds a runner over an in-memory engine with a static
// narrator, so scenario runs are deterministic and leave no files.
func NewRunner(logger *log.Logger) (*Runner, error) {
	engineCtx, err := engine.New(engine.Options{
		Store: memstore.New(),
		Narrator: narrator.Static{
			Text: "The scene unfolds as described.",
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build scenario engine: %w", err)
	}
	return &Runner{engine: engineCtx, logger: logger}, nil
}

// NewRunnerWithEngine builds a runner over a caller-provided engine.
func NewRunnerWithEngine(engineCtx *engine.Context, logger *log.Logger) *Runner {
	return &Runner{engine: engineCtx, logger: logger}
}

// RunFile loads and runs the scenario script at path.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	scenario, err := LoadFromFile(path)
	if err != nil {
		return err
	}
	return r.Run(ctx, scenario)
}

// Run executes each step in order, stopping at the first failure.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) error {
	if r.logger != nil {
		r.logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	}
	for i, step := range scenario.Steps {
		if err := r.runStep(ctx, step); err != nil {
			return fmt.Errorf("scenario %s step %d (%s): %w", scenario.Name, i+1, step.Kind, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	switch step.Kind {
	case "campaign":
		id := stringArg(step, "id")
		if id == "" {
			return fmt.Errorf("campaign step needs an id")
		}
		r.campaignID = id
		_, err := r.engine.BeginCharacterCreation(ctx, id)
		return err
	case "creation_input":
		_, err := r.engine.SubmitCreationInput(ctx, r.campaignID, stringArg(step, "text"))
		return err
	case "edit":
		_, err := r.engine.SubmitEdit(ctx, r.campaignID, stringArg(step, "key"), creation.StringValue(stringArg(step, "value")))
		return err
	case "undo":
		_, err := r.engine.UndoLastCommit(ctx, r.campaignID)
		return err
	case "finalize":
		_, err := r.engine.FinalizeCharacter(ctx, r.campaignID)
		return err
	case "turn":
		_, err := r.engine.ProcessTurn(ctx, r.campaignID, stringArg(step, "text"))
		return err
	case "expect_state":
		character, err := r.engine.Character(ctx, r.campaignID)
		if err != nil {
			return err
		}
		if want := stringArg(step, "state"); string(character.State) != want {
			return fmt.Errorf("state = %s, want %s", character.State, want)
		}
		return nil
	case "expect_fact":
		character, err := r.engine.Character(ctx, r.campaignID)
		if err != nil {
			return err
		}
		key := stringArg(step, "key")
		want := stringArg(step, "value")
		for _, fact := range character.Facts {
			if fact.Key != key {
				continue
			}
			if got := fact.Value.String(); got != want {
				return fmt.Errorf("fact %s = %s, want %s", key, got, want)
			}
			return nil
		}
		return fmt.Errorf("fact %s is not committed", key)
	case "expect_location":
		state, err := r.engine.WorldState(ctx, r.campaignID)
		if err != nil {
			return err
		}
		if want := stringArg(step, "location"); state.CurrentLocation != want {
			return fmt.Errorf("location = %s, want %s", state.CurrentLocation, want)
		}
		return nil
	case "expect_item":
		state, err := r.engine.WorldState(ctx, r.campaignID)
		if err != nil {
			return err
		}
		if item := stringArg(step, "item"); !state.HasItem(item) {
			return fmt.Errorf("inventory is missing %s", item)
		}
		return nil
	case "expect_flag":
		state, err := r.engine.WorldState(ctx, r.campaignID)
		if err != nil {
			return err
		}
		name := stringArg(step, "name")
		want, _ := step.Args["value"].(bool)
		if got := state.StoryFlags[name]; got != want {
			return fmt.Errorf("flag %s = %v, want %v", name, got, want)
		}
		return nil
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func stringArg(step Step, key string) string {
	value, _ := step.Args[key].(string)
	return value
}
