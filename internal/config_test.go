package internal

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Organizer.TransferMode() != "move" {
		t.Errorf("mode = %q, want move", cfg.Organizer.TransferMode())
	}
}

func TestOrganizerConfig_NormalizesExtensions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Organizer.Extensions = []string{".JPG", "jpg", " Nef ", "heic"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	got := strings.Join(cfg.Organizer.Extensions, ",")
	if got != "jpg,nef,heic" {
		t.Errorf("extensions = %q, want jpg,nef,heic", got)
	}
}

func TestOrganizerConfig_InvalidMode(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Organizer.Mode = "teleport"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown mode should fail validation")
	}
}

func TestOrganizerConfig_EmptyModeDefaultsMove(t *testing.T) {
	cfg := OrganizerConfig{ArchiveRoot: "a", MaxDuplicateSuffix: 9}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "move" {
		t.Errorf("mode = %q, want move", cfg.Mode)
	}
}

func TestOrganizerConfig_ArchiveRootRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Organizer.ArchiveRoot = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "organizer") {
		t.Fatalf("missing archive root should fail, got %v", err)
	}
}

func TestDrivesConfig_Bounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Drives.MaxWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers should fail")
	}
	cfg = NewDefaultConfig()
	cfg.Drives.ScanTimeout = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second scan timeout should fail")
	}
}

func TestAppConfig_LogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("log format = %q", cfg.App.LogFormat)
	}
	cfg.App.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}
}

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
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "s3cret"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}
