package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScenarioFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.lua")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadFromFileBuildsSteps(t *testing.T) {
	path := writeScenarioFixture(t, `local scene = Scenario.new("first steps")
scene:campaign("camp-a")
scene:creation_input("My name is Brin, a human fighter with a soldier past.")
scene:expect_state("reviewing")
scene:edit("class", "Wizard")
scene:finalize()
scene:turn("I walk into the village")
return scene
`)

	scenario, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() err = %v", err)
	}
	if scenario.Name != "first steps" {
		t.Errorf("Name = %q, want %q", scenario.Name, "first steps")
	}
	if len(scenario.Steps) != 6 {
		t.Fatalf("len(Steps) = %d, want 6", len(scenario.Steps))
	}
	if scenario.Steps[0].Kind != "campaign" || scenario.Steps[0].Args["id"] != "camp-a" {
		t.Errorf("Steps[0] = %+v, want campaign camp-a", scenario.Steps[0])
	}
	if scenario.Steps[3].Kind != "edit" || scenario.Steps[3].Args["value"] != "Wizard" {
		t.Errorf("Steps[3] = %+v, want edit to Wizard", scenario.Steps[3])
	}
}

func TestLoadFromFileDefaultsNameFromPath(t *testing.T) {
	path := writeScenarioFixture(t, `return Scenario.new()`)

	scenario, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() err = %v", err)
	}
	if scenario.Name != "scenario" {
		t.Errorf("Name = %q, want %q", scenario.Name, "scenario")
	}
}

func TestLoadFromFileRejectsNonScenarioReturn(t *testing.T) {
	path := writeScenarioFixture(t, `return 42`)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("LoadFromFile() err = nil, want error")
	}
}
