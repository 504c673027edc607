// Package scenario loads and runs Lua-defined story scripts against an
// engine. Scripts build a Scenario value through a small DSL and the
// runner replays its steps, checking assertions along the way.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is an ordered list of steps produced by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or assertion.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadFromFile evaluates a Lua script that returns a Scenario.
func LoadFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	registerScenarioConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "campaign", Function: scenarioCampaign},
	{Name: "creation_input", Function: scenarioCreationInput},
	{Name: "edit", Function: scenarioEdit},
	{Name: "undo", Function: scenarioUndo},
	{Name: "finalize", Function: scenarioFinalize},
	{Name: "turn", Function: scenarioTurn},
	{Name: "expect_state", Function: scenarioExpectState},
	{Name: "expect_fact", Function: scenarioExpectFact},
	{Name: "expect_location", Function: scenarioExpectLocation},
	{Name: "expect_item", Function: scenarioExpectItem},
	{Name: "expect_flag", Function: scenarioExpectFlag},
}

func scenarioCampaign(state *lua.State) int {
	scenario := checkScenario(state)
	id := lua.CheckString(state, 2)
	appendStep(scenario, "campaign", map[string]any{"id": id})
	return 0
}

func scenarioCreationInput(state *lua.State) int {
	scenario := checkScenario(state)
	text := lua.CheckString(state, 2)
	appendStep(scenario, "creation_input", map[string]any{"text": text})
	return 0
}

func scenarioEdit(state *lua.State) int {
	scenario := checkScenario(state)
	key := lua.CheckString(state, 2)
	value := lua.CheckString(state, 3)
	appendStep(scenario, "edit", map[string]any{"key": key, "value": value})
	return 0
}

func scenarioUndo(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "undo", nil)
	return 0
}

func scenarioFinalize(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "finalize", nil)
	return 0
}

func scenarioTurn(state *lua.State) int {
	scenario := checkScenario(state)
	text := lua.CheckString(state, 2)
	appendStep(scenario, "turn", map[string]any{"text": text})
	return 0
}

func scenarioExpectState(state *lua.State) int {
	scenario := checkScenario(state)
	want := lua.CheckString(state, 2)
	appendStep(scenario, "expect_state", map[string]any{"state": want})
	return 0
}

func scenarioExpectFact(state *lua.State) int {
	scenario := checkScenario(state)
	key := lua.CheckString(state, 2)
	value := lua.CheckString(state, 3)
	appendStep(scenario, "expect_fact", map[string]any{"key": key, "value": value})
	return 0
}

func scenarioExpectLocation(state *lua.State) int {
	scenario := checkScenario(state)
	location := lua.CheckString(state, 2)
	appendStep(scenario, "expect_location", map[string]any{"location": location})
	return 0
}

func scenarioExpectItem(state *lua.State) int {
	scenario := checkScenario(state)
	item := lua.CheckString(state, 2)
	appendStep(scenario, "expect_item", map[string]any{"item": item})
	return 0
}

func scenarioExpectFlag(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	value := state.ToBoolean(3)
	appendStep(scenario, "expect_flag", map[string]any{"name": name, "value": value})
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, args map[string]any) {
	if args == nil {
		args = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: args})
}
