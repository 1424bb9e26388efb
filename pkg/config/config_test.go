package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type validated struct {
	Port int `yaml:"port"`
}

func (v *validated) Validate() error {
	if v.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_APP_NAME", "othala")
	p := writeFile(t, "name: ${TEST_APP_NAME}\nport: 9000\n")

	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "othala" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRunsValidation(t *testing.T) {
	p := writeFile(t, "port: 0\n")

	var cfg validated
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadIfPresentKeepsDefaults(t *testing.T) {
	cfg := validated{Port: 8080}
	if err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
}

func TestLoadIfPresentValidatesDefaults(t *testing.T) {
	var cfg validated
	if err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected validation error on zero defaults")
	}
}
