package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommitSHA, origBuildDate := Version, CommitSHA, BuildDate
	Version, CommitSHA, BuildDate = "1.2.3", "abc123", "2024-01-15"
	defer func() { Version, CommitSHA, BuildDate = origVersion, origCommitSHA, origBuildDate }()

	output := &bytes.Buffer{}
	versionCmd.SetOut(output)
	versionCmd.SetErr(output)
	versionCmd.Run(versionCmd, []string{})

	result := output.String()
	for _, want := range []string{"1.2.3", "abc123", "2024-01-15", "InnoDB Cluster", "InnoDB ReplicaSet", "ClusterSet"} {
		if !strings.Contains(result, want) {
			t.Errorf("version output missing %q, got: %s", want, result)
		}
	}
}

func TestVersionCommand_DevBuild(t *testing.T) {
	origVersion := Version
	Version = "dev"
	defer func() { Version = origVersion }()

	output := &bytes.Buffer{}
	versionCmd.SetOut(output)
	versionCmd.Run(versionCmd, []string{})

	if !strings.Contains(output.String(), "dev") {
		t.Errorf("dev build should show 'dev' version, got: %s", output.String())
	}
}

func TestVersionCommand_Structure(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	var found bool
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "version" {
			found = true
		}
	}
	if !found {
		t.Error("version command should be registered with root command")
	}
}
