package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/musselmanjoey/DingerStats/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func tempDBFlag(t *testing.T) []string {
	t.Helper()
	return []string{"--db", filepath.Join(t.TempDir(), "test.sqlite3")}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	want := map[string]bool{"fetch": false, "detect": false, "template": false, "status": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestFetchCommandRequiresArgument(t *testing.T) {
	if _, err := runCommand(t, "fetch"); err == nil {
		t.Error("fetch without a URL should fail")
	}
}

func TestDetectCommandRequiresTemplates(t *testing.T) {
	_, err := runCommand(t, "detect", "game.m4a")
	if err == nil {
		t.Fatal("detect without template sources should fail")
	}
	if !strings.Contains(err.Error(), "template") {
		t.Errorf("error should point at the missing templates: %v", err)
	}
}

func TestTemplateBuildRequiresEstimates(t *testing.T) {
	_, err := runCommand(t, "template", "build", "--source", "game.m4a")
	if err == nil {
		t.Fatal("template build without --at should fail")
	}
	if !strings.Contains(err.Error(), "--at") {
		t.Errorf("error should point at the missing estimates: %v", err)
	}
}

func TestStatusOverviewOnEmptyDatabase(t *testing.T) {
	args := append(tempDBFlag(t), "status")
	out, err := runCommand(t, args...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "0 registered") {
		t.Errorf("empty database overview should report zero videos, got:\n%s", out)
	}
}

func TestStatusUnknownVideoFails(t *testing.T) {
	args := append(tempDBFlag(t), "status", "aaaaaaaaaa1")
	if _, err := runCommand(t, args...); err == nil {
		t.Error("status for an unregistered video should fail")
	}
}
