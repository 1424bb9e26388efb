package internal

import (
	"strings"
	"testing"
)

func TestAuthConfigDisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfigEmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfigTokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfigTokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfigInvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestVaultConfigCascadeLimitBounds(t *testing.T) {
	cfg := VaultConfig{Path: "./vault", CascadeLimit: 200}
	if err := cfg.Validate(); err == nil {
		t.Fatal("cascade limit above bound should fail")
	}
	cfg.CascadeLimit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero cascade limit should pass: %v", err)
	}
}

func TestPipelineConfigRuleValidation(t *testing.T) {
	cfg := PipelineConfig{Rules: []RuleConfig{
		{Keywords: []string{"archive"}, Kind: "bulk_tag", Tools: []string{"add_tag"}},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid rule should pass: %v", err)
	}

	cfg.Rules = append(cfg.Rules, RuleConfig{Keywords: []string{"x"}, Kind: "broken"})
	err := cfg.Validate()
	if err == nil {
		t.Fatal("rule without tools should fail")
	}
	if !strings.Contains(err.Error(), "pipeline rule 1") {
		t.Errorf("error does not name the rule: %v", err)
	}
}

func TestFullConfigValidatesSections(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch http error")
	}
}
