package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestConfigInitCmd_NewConfig(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	input := "127.0.0.1\n3306\nadmin\ntext\nAUTO\n"
	tmpInput, err := os.CreateTemp(tmpDir, "input")
	if err != nil {
		t.Fatalf("failed to create temp input file: %v", err)
	}
	defer tmpInput.Close()
	tmpInput.WriteString(input)
	tmpInput.Seek(0, 0)

	output := &bytes.Buffer{}
	configInitCmd.SetIn(tmpInput)
	configInitCmd.SetOut(output)
	configInitCmd.SetErr(output)

	if err := configInitCmd.RunE(configInitCmd, []string{}); err != nil {
		t.Fatalf("config init should succeed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".mysqlsh-admin", "config.yaml")
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config file should be created at %s: %v", configPath, err)
	}

	contentStr := string(content)
	for _, want := range []string{"host: 127.0.0.1", "port: 3306", "user: admin", "format: text", "recoveryMethod: AUTO"} {
		if !strings.Contains(contentStr, want) {
			t.Errorf("config should contain %q, content:\n%s", want, contentStr)
		}
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("failed to stat config file: %v", err)
	}
	if perm := fileInfo.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}
}

func TestConfigInitCmd_AlreadyExists_Abort(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	configDir := filepath.Join(tmpDir, ".mysqlsh-admin")
	os.MkdirAll(configDir, 0700)
	configPath := filepath.Join(configDir, "config.yaml")
	os.WriteFile(configPath, []byte("existing: config"), 0600)

	tmpInput, _ := os.CreateTemp(tmpDir, "input")
	defer tmpInput.Close()
	tmpInput.WriteString("n\n")
	tmpInput.Seek(0, 0)

	output := &bytes.Buffer{}
	configInitCmd.SetIn(tmpInput)
	configInitCmd.SetOut(output)
	configInitCmd.SetErr(output)

	if err := configInitCmd.RunE(configInitCmd, []string{}); err != nil {
		t.Fatalf("config init should handle abort gracefully: %v", err)
	}

	content, _ := os.ReadFile(configPath)
	if string(content) != "existing: config" {
		t.Error("config should not be overwritten when user aborts")
	}
	if !strings.Contains(output.String(), "Aborted") {
		t.Errorf("output should indicate abort, got: %s", output.String())
	}
}

func TestConfigShowCmd_NoConfig(t *testing.T) {
	viper.Reset()
	cfgFile = ""

	output := &bytes.Buffer{}
	configShowCmd.SetOut(output)
	configShowCmd.SetErr(output)

	if err := configShowCmd.RunE(configShowCmd, []string{}); err != nil {
		t.Fatalf("config show should handle missing config: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, "No config file found") {
		t.Errorf("should indicate no config found, got: %s", result)
	}
	if !strings.Contains(result, "config init") {
		t.Errorf("should suggest running 'config init', got: %s", result)
	}
}

func TestConfigShowCmd_WithConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	if err := os.WriteFile(configPath, []byte("host: testhost\nport: 3307\n"), 0600); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	viper.Reset()
	viper.SetConfigFile(configPath)
	viper.ReadInConfig()

	output := &bytes.Buffer{}
	configShowCmd.SetOut(output)
	configShowCmd.SetErr(output)

	if err := configShowCmd.RunE(configShowCmd, []string{}); err != nil {
		t.Fatalf("config show should succeed: %v", err)
	}

	result := output.String()
	if !strings.Contains(result, configPath) {
		t.Errorf("should show config file path, got: %s", result)
	}
	if !strings.Contains(result, "testhost") {
		t.Errorf("should show config content, got: %s", result)
	}
}

func TestConfigCmd_Structure(t *testing.T) {
	if configCmd.Use != "config" {
		t.Errorf("configCmd.Use = %q, want %q", configCmd.Use, "config")
	}
	var foundInit, foundShow bool
	for _, cmd := range configCmd.Commands() {
		switch cmd.Use {
		case "init":
			foundInit = true
		case "show":
			foundShow = true
		}
	}
	if !foundInit || !foundShow {
		t.Error("configCmd should have 'init' and 'show' subcommands")
	}
}
