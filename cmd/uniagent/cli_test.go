package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, want := range []string{"onboard", "chat", "history", "export", "models", "status", "gateway", "version"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestHistoryHelpListsSubcommands(t *testing.T) {
	out, err := execute(t, "history", "--help")
	if err != nil {
		t.Fatalf("history help failed: %v", err)
	}
	for _, want := range []string{"show", "search", "stats", "clear"} {
		if !strings.Contains(out, want) {
			t.Errorf("history help missing %q", want)
		}
	}
}

func TestUnknownCommandFails(t *testing.T) {
	if _, err := execute(t, "no-such-command"); err == nil {
		t.Error("expected an error for an unknown subcommand")
	}
}

func TestNoArgsRequiresSubcommand(t *testing.T) {
	if _, err := execute(t); err == nil {
		t.Error("expected an error when no subcommand is given")
	}
}

func TestFormatVersion(t *testing.T) {
	origVersion, origCommit := version, gitCommit
	defer func() { version, gitCommit = origVersion, origCommit }()

	version, gitCommit = "1.2.3", ""
	if got := formatVersion(); got != "1.2.3" {
		t.Errorf("formatVersion() = %q", got)
	}

	gitCommit = "abc1234"
	if got := formatVersion(); got != "1.2.3 (git: abc1234)" {
		t.Errorf("formatVersion() = %q", got)
	}
}
