package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitialize_DebugModeCreatesCategoryFiles(t *testing.T) {
	workspace := t.TempDir()
	err := Initialize(workspace, Settings{
		DebugMode: true,
		Level:     "debug",
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Sync()

	Orchestrator("workflow start: %s", "m.py")
	Sandbox("wrote %s", "m.py")
	Sync()

	for _, name := range []string{"boot.log", "orchestrator.log", "sandbox.log"} {
		path := filepath.Join(workspace, "logs", name)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("expected log file %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("log file %s is empty", name)
		}
	}
}

func TestInitialize_DisabledModeIsSilent(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Logging calls must be harmless no-ops.
	Oracle("this goes nowhere")
	RateLimit("neither does this")

	if _, err := os.Stat(filepath.Join(workspace, "logs")); !os.IsNotExist(err) {
		t.Error("logs directory created despite debug mode off")
	}
}

func TestCategoryFiltering(t *testing.T) {
	workspace := t.TempDir()
	err := Initialize(workspace, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"oracle": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Sync()

	if IsCategoryEnabled(CategoryOracle) {
		t.Error("disabled category reported enabled")
	}
	if !IsCategoryEnabled(CategoryJudge) {
		t.Error("unlisted category should default to enabled")
	}

	Oracle("suppressed")
	Sync()
	if _, err := os.Stat(filepath.Join(workspace, "logs", "oracle.log")); !os.IsNotExist(err) {
		t.Error("disabled category produced a log file")
	}
}
