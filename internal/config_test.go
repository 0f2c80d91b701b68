package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestNotesConfig_RegenOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Notes.Delimiter = "<br>"
	cfg.Notes.Markers.Override = []string{"manual"}

	opts := cfg.Notes.RegenOptions()
	if opts.Parser.Delimiter != "<br>" {
		t.Errorf("delimiter = %q", opts.Parser.Delimiter)
	}
	if len(opts.Parser.OverrideMarkers) != 1 || opts.Parser.OverrideMarkers[0] != "manual" {
		t.Errorf("override markers = %v", opts.Parser.OverrideMarkers)
	}
	if len(opts.Parser.NotIncludedMarkers) != 2 {
		t.Errorf("not included markers = %v", opts.Parser.NotIncludedMarkers)
	}
	if opts.Parser.BaseURL != "https://www.wanikani.com" {
		t.Errorf("base url = %q", opts.Parser.BaseURL)
	}
	if opts.ReadingSeparator != "・" {
		t.Errorf("reading separator = %q", opts.ReadingSeparator)
	}
}

func TestNotesConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *NotesConfig)
	}{
		{"empty delimiter", func(c *NotesConfig) { c.Delimiter = "" }},
		{"bad base url", func(c *NotesConfig) { c.BaseURL = "not a url" }},
		{"empty marker", func(c *NotesConfig) { c.Markers.Override = []string{""} }},
		{"empty meaning separator", func(c *NotesConfig) { c.MeaningSeparator = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg.Notes)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
