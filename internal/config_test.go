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

func TestVaultConfig_EmptyBackendDefaultsLocal(t *testing.T) {
	cfg := VaultConfig{Path: "./vault"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to local: %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("backend = %q, want %q", cfg.Backend, BackendLocal)
	}
}

func TestVaultConfig_LocalRequiresPath(t *testing.T) {
	cfg := VaultConfig{Backend: BackendLocal}
	if err := cfg.Validate(); err == nil {
		t.Fatal("local backend without path should fail")
	}
}

func TestVaultConfig_RemoteRequiresSection(t *testing.T) {
	cfg := VaultConfig{Backend: BackendRemote}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("remote backend without remote section should fail")
	}
	if !strings.Contains(err.Error(), "remote section is missing") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVaultConfig_RemoteRequiresBaseURL(t *testing.T) {
	cfg := VaultConfig{Backend: BackendRemote, Remote: &RemoteConfig{}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote backend without base_url should fail")
	}
}

func TestVaultConfig_RemoteValid(t *testing.T) {
	cfg := VaultConfig{
		Backend: BackendRemote,
		Remote:  &RemoteConfig{BaseURL: "https://vaults.example.com"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid remote config should pass: %v", err)
	}
}

func TestVaultConfig_InvalidBackend(t *testing.T) {
	cfg := VaultConfig{Backend: "carrier-pigeon", Path: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid backend should fail validation")
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

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
