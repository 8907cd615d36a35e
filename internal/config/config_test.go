package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 3306 {
		t.Errorf("Default().Port = %d, want 3306", cfg.Port)
	}
	if cfg.Format != "text" {
		t.Errorf("Default().Format = %q, want %q", cfg.Format, "text")
	}
	if cfg.RecoveryMethod != RecoveryAuto {
		t.Errorf("Default().RecoveryMethod = %q, want %q", cfg.RecoveryMethod, RecoveryAuto)
	}
	if cfg.AccountHostPattern != "%" {
		t.Errorf("Default().AccountHostPattern = %q, want %q", cfg.AccountHostPattern, "%")
	}
}

func TestLoad_NoFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	v := viper.New()
	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 3306 || cfg.Format != "text" {
		t.Errorf("Load() with no config file = %+v, want defaults", cfg)
	}
}

func TestLoad_ReadsExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
host: db1.example.com
port: 3307
user: admin
format: json
lockTimeout: 30s
recoveryMethod: CLONE
accountHostPattern: "10.0.%"
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := viper.New()
	cfg, err := Load(v, cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Host", cfg.Host, "db1.example.com"},
		{"Port", cfg.Port, 3307},
		{"User", cfg.User, "admin"},
		{"Format", cfg.Format, "json"},
		{"LockTimeout", cfg.LockTimeout, 30 * time.Second},
		{"RecoveryMethod", cfg.RecoveryMethod, RecoveryPolicy("CLONE")},
		{"AccountHostPattern", cfg.AccountHostPattern, "10.0.%"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Load() %s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("host: file-host\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("MYSQLADMIN_HOST", "env-host")
	defer os.Unsetenv("MYSQLADMIN_HOST")

	v := viper.New()
	cfg, err := Load(v, cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "env-host" {
		t.Errorf("Load() Host = %q, want env var to win over file (%q)", cfg.Host, "env-host")
	}
}

func TestLoad_ExplicitMissingFileErrors(t *testing.T) {
	v := viper.New()
	_, err := Load(v, filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("Load() with an explicit, nonexistent config file should error")
	}
}
