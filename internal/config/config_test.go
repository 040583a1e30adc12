package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if cfg.Data.Path != "cramdeck.db" {
		t.Errorf("Expected default data path, got %s", cfg.Data.Path)
	}
	if cfg.Quiz.Size != 50 {
		t.Errorf("Expected default quiz size 50, got %d", cfg.Quiz.Size)
	}
	if cfg.Progress.Mastery != "auto" || cfg.Progress.Format != "keyed" || cfg.Progress.Strict {
		t.Errorf("Unexpected progress defaults: %+v", cfg.Progress)
	}
	if cfg.Schedule.Retention != 0.9 {
		t.Errorf("Expected retention 0.9, got %v", cfg.Schedule.Retention)
	}
	if cfg.Content.Source != "" || cfg.Content.Repos != "repos" {
		t.Errorf("Unexpected content defaults: %+v", cfg.Content)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected http/log defaults: %+v %+v", cfg.HTTP, cfg.Log)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cramdeck.yaml")
	yaml := `
data:
  path: from-file.db
quiz:
  size: 20
progress:
  format: positional
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("CRAMDECK_QUIZ_SIZE", "30")
	t.Setenv("CRAMDECK_PROGRESS_STRICT", "true")

	cfg, err := Load([]string{"--config", path, "--log.level", "warn"})
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	testCases := []struct {
		name     string
		got      any
		expected any
	}{
		{"file overrides default", cfg.Data.Path, "from-file.db"},
		{"file value kept", cfg.Progress.Format, "positional"},
		{"env overrides file", cfg.Quiz.Size, 30},
		{"env sets bool", cfg.Progress.Strict, true},
		{"flag overrides file", cfg.Log.Level, "warn"},
		{"default fills the rest", cfg.HTTP.Addr, ":8080"},
	}
	for _, tc := range testCases {
		if tc.got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, tc.got)
		}
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"quiz size too small", []string{"--quiz.size", "0"}, "Size"},
		{"unknown mastery rule", []string{"--progress.mastery", "always"}, "Mastery"},
		{"unknown format", []string{"--progress.format", "xml"}, "Format"},
		{"retention out of range", []string{"--schedule.retention", "1.5"}, "Retention"},
		{"bad log level", []string{"--log.level", "loud"}, "Level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args)
			if err == nil {
				t.Fatal("Expected a validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected error to mention %s, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestLoadUnknownFlag(t *testing.T) {
	if _, err := Load([]string{"--no-such-flag"}); err == nil {
		t.Error("Expected an error for an unknown flag")
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("CRAMDECK_HTTP_ADDR"); got != "http.addr" {
		t.Errorf("Expected http.addr, got %s", got)
	}
}
