package scenario

import (
	"flag"
	"testing"
)

func TestParseConfigFiles(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"a.lua", "b.lua"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if len(cfg.Files) != 2 || cfg.Files[0] != "a.lua" || cfg.Files[1] != "b.lua" {
		t.Fatalf("expected scenario files in order, got %v", cfg.Files)
	}
}

func TestParseConfigRequiresFiles(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error without scenario files")
	}
}
