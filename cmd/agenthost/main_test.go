package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigIn(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, defaultConfigFile)
	if err := os.WriteFile(configPath, []byte("server:\n  listen: localhost:8787\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	found := findConfigIn(tmpDir)
	if found != configPath {
		t.Errorf("Expected config in tmpDir, got %q", found)
	}
}

func TestFindConfigInNotFound(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	found := findConfigIn(tmpDir)
	if found != defaultConfigFile {
		t.Errorf("Expected %q default, got %q", defaultConfigFile, found)
	}
}

func TestResolveConfigPathFlag(t *testing.T) {
	old := cfgFile
	defer func() { cfgFile = old }()

	cfgFile = "/tmp/custom.yaml"
	if got := resolveConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("Expected flag value, got %q", got)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "status", "version"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
}
