package cmd

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestReplicasetCmd_Structure(t *testing.T) {
	if replicasetCmd.Use != "replicaset" {
		t.Errorf("replicasetCmd.Use = %q, want %q", replicasetCmd.Use, "replicaset")
	}

	want := []string{
		"add-instance", "rejoin-instance", "remove-instance",
		"set-primary-instance", "force-primary-instance", "status", "dissolve",
	}
	got := map[string]bool{}
	for _, c := range replicasetCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("replicasetCmd missing subcommand %q", name)
		}
	}
}

func TestRsConnect_RequiresReachable(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	viper.Reset()
	cfgFile = ""

	if err := rsStatusCmd.Flags().Set("reachable", ""); err != nil {
		t.Fatalf("failed to reset --reachable: %v", err)
	}

	_, _, err := rsConnect(rsStatusCmd)
	if err == nil {
		t.Fatal("rsConnect() with no --reachable endpoints should error")
	}
}
