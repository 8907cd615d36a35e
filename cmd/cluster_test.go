package cmd

import (
	"testing"

	"github.com/innodbcluster/admin-engine/internal/metadata"
)

func TestClusterCmd_Structure(t *testing.T) {
	if clusterCmd.Use != "cluster" {
		t.Errorf("clusterCmd.Use = %q, want %q", clusterCmd.Use, "cluster")
	}

	want := []string{
		"add-instance", "add-replica-instance", "rejoin-instance",
		"remove-instance", "rescan", "status", "describe", "dissolve",
		"set-primary-instance", "switch-to-single-primary-mode",
		"switch-to-multi-primary-mode", "force-quorum-using-partition-of",
		"fence-writes", "unfence-writes", "fence-all-traffic",
		"set-option", "set-instance-option", "options",
		"setup-admin-account", "setup-router-account",
		"reset-recovery-accounts-password",
	}
	got := map[string]bool{}
	for _, c := range clusterCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("clusterCmd missing subcommand %q", name)
		}
	}
}

func TestParseReplicationSources(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantPolicy metadata.ReplicationSourcesPolicy
		wantCustom []metadata.WeightedSource
		wantErr    bool
	}{
		{name: "empty defaults to primary", raw: "", wantPolicy: metadata.SourcesPrimary},
		{name: "primary", raw: "primary", wantPolicy: metadata.SourcesPrimary},
		{name: "PRIMARY uppercase", raw: "PRIMARY", wantPolicy: metadata.SourcesPrimary},
		{name: "secondary", raw: "secondary", wantPolicy: metadata.SourcesSecondary},
		{
			name:       "custom with weights",
			raw:        "host1:50,host2:30",
			wantPolicy: metadata.SourcesCustom,
			wantCustom: []metadata.WeightedSource{
				{Endpoint: "host1", Weight: 50},
				{Endpoint: "host2", Weight: 30},
			},
		},
		{
			name:       "custom without weight defaults to 50",
			raw:        "host1",
			wantPolicy: metadata.SourcesCustom,
			wantCustom: []metadata.WeightedSource{{Endpoint: "host1", Weight: 50}},
		},
		{name: "bad weight", raw: "host1:notanumber", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, custom, err := parseReplicationSources(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseReplicationSources(%q) expected error, got nil", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReplicationSources(%q) unexpected error: %v", tt.raw, err)
			}
			if policy != tt.wantPolicy {
				t.Errorf("parseReplicationSources(%q) policy = %v, want %v", tt.raw, policy, tt.wantPolicy)
			}
			if len(custom) != len(tt.wantCustom) {
				t.Fatalf("parseReplicationSources(%q) custom = %+v, want %+v", tt.raw, custom, tt.wantCustom)
			}
			for i := range custom {
				if custom[i] != tt.wantCustom[i] {
					t.Errorf("parseReplicationSources(%q) custom[%d] = %+v, want %+v", tt.raw, i, custom[i], tt.wantCustom[i])
				}
			}
		})
	}
}
