package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/innodbcluster/admin-engine/internal/config"
)

func defaultTestConfig() config.Config {
	return config.Config{Port: 3306}
}

func TestResolveConfigDefaultsWhenNoFile(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	viper.Reset()
	cfgFile = ""

	cfg, err := resolveConfig()
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if cfg.Port != 3306 {
		t.Errorf("resolveConfig() Port = %d, want default 3306", cfg.Port)
	}
}

func TestResolveConfigReadsFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "host: filehost\nport: 3307\nformat: json\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	viper.Reset()
	cfgFile = configPath
	rootCmd.PersistentFlags().Set("host", "")
	defer func() { cfgFile = "" }()

	cfg, err := resolveConfig()
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if cfg.Host != "filehost" || cfg.Port != 3307 || cfg.Format != "json" {
		t.Errorf("resolveConfig() = %+v, want host=filehost port=3307 format=json", cfg)
	}
}

func TestRootCommandStructure(t *testing.T) {
	if rootCmd.Use != "mysqlsh-admin" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "mysqlsh-admin")
	}
}

func TestSplitEndpointDefaultsPort(t *testing.T) {
	host, port, err := splitEndpoint(defaultTestConfig(), "db1.example.com")
	if err != nil {
		t.Fatalf("splitEndpoint() error: %v", err)
	}
	if host != "db1.example.com" || port != 3306 {
		t.Errorf("splitEndpoint() = (%q, %d), want (db1.example.com, 3306)", host, port)
	}
}

func TestSplitEndpointParsesPort(t *testing.T) {
	host, port, err := splitEndpoint(defaultTestConfig(), "db1.example.com:3307")
	if err != nil {
		t.Fatalf("splitEndpoint() error: %v", err)
	}
	if host != "db1.example.com" || port != 3307 {
		t.Errorf("splitEndpoint() = (%q, %d), want (db1.example.com, 3307)", host, port)
	}
}

func TestSplitEndpointRejectsBadPort(t *testing.T) {
	if _, _, err := splitEndpoint(defaultTestConfig(), "db1.example.com:notaport"); err == nil {
		t.Error("splitEndpoint() should reject a non-numeric port")
	}
}

func TestSplitListTrimsAndDropsEmpty(t *testing.T) {
	got := splitList(" host1:3306 , host2:3306,, host3:3306 ")
	want := []string{"host1:3306", "host2:3306", "host3:3306"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitListEmpty(t *testing.T) {
	if got := splitList("   "); got != nil {
		t.Errorf("splitList(whitespace) = %v, want nil", got)
	}
}
