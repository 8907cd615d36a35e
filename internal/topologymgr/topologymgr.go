// Package topologymgr implements the Topology manager component of §4.1:
// precondition validators over a topology view, gating each command on the
// current availability state and producing the authoritative
// pre-execution checklist. Two variants share one contract (spec.md §9
// "Polymorphism"): GRTopologyManager for InnoDB Cluster, and
// StarAsyncTopologyManager for ReplicaSet. They are selected by cluster
// type at the command boundary and never mixed within a single command.
package topologymgr

import (
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// QuorumRequirement is a command's required quorum state (spec.md §4.1).
type QuorumRequirement int

const (
	QuorumNone QuorumRequirement = iota
	QuorumNormal
	QuorumAllOnline
)

// Gates declares one command's precondition gates (spec.md §4.1
// "Precondition gates (composable)").
type Gates struct {
	RequiredQuorum    QuorumRequirement
	PrimaryRequired   bool
	AllowedOnFence    bool
	AllowedAvailability []metadata.ClusterAvailability // empty means "consult the transition table"
}

// Manager is the shared contract both topology flavors implement (spec.md §9).
type Manager interface {
	ValidateAdd(v *topologyview.View) error
	ValidateRejoin(v *topologyview.View) error
	ValidateRemove(v *topologyview.View, force bool) error
	ValidateSwitchPrimary(v *topologyview.View) error
	ValidateForcePrimary(v *topologyview.View) error
}

// evaluate applies the fixed gate order of spec.md §4.1: target-kind is
// assumed already checked by the caller (it picked this Manager); here we
// evaluate quorum -> primary availability -> fence filter, in order,
// returning the first failing gate's error.
func evaluate(v *topologyview.View, g Gates, fenced bool) error {
	avail := v.Availability()

	if g.RequiredQuorum == QuorumNormal || g.RequiredQuorum == QuorumAllOnline {
		if avail == metadata.NoQuorum {
			return errs.New(errs.GroupHasNoQuorum, "cluster %s has no quorum", v.Cluster.ClusterName)
		}
	}
	if g.RequiredQuorum == QuorumAllOnline {
		for _, m := range v.Members {
			if m.State != topologyview.MemberOnline {
				return errs.New(errs.GroupMemberNotOnline, "member %s is not ONLINE (all-online required)", m.Endpoint)
			}
		}
	}

	if g.PrimaryRequired && v.Primary == nil {
		return errs.New(errs.GroupHasNoPrimary, "cluster %s has no reachable PRIMARY", v.Cluster.ClusterName)
	}

	if fenced && !g.AllowedOnFence {
		return errs.New(errs.UnsupportedAsyncConfiguration, "operation not allowed while cluster %s is fenced", v.Cluster.ClusterName)
	}

	return nil
}

// transitionAllowed implements the GR availability-state transition table
// of spec.md §4.1 for one named operation.
func transitionAllowed(avail metadata.ClusterAvailability, op string) (bool, string) {
	type cell struct {
		allowed bool
		note    string
	}
	table := map[metadata.ClusterAvailability]map[string]cell{
		metadata.Online: {
			"add": {true, ""}, "rejoin": {true, ""}, "remove": {true, ""},
			"set_primary": {true, ""}, "fence": {true, ""}, "unfence": {true, ""},
			"failover": {false, "failover is not a valid operation on an ONLINE cluster"},
			"rescan":   {true, ""},
		},
		metadata.OnlineNoPrimary: {
			"add": {false, ""}, "rejoin": {false, ""}, "remove": {false, ""},
			"set_primary": {true, ""}, "fence": {false, ""}, "unfence": {false, ""},
			"failover": {false, ""}, "rescan": {false, ""},
		},
		metadata.NoQuorum: {
			"add": {false, ""}, "rejoin": {false, ""}, "remove": {false, ""},
			"set_primary": {false, ""}, "fence": {false, ""}, "unfence": {false, ""},
			"failover": {true, ""}, "rescan": {false, ""},
		},
		metadata.Offline: {
			"add": {true, "reboot only"}, "rejoin": {true, "reboot only"}, "remove": {false, ""},
			"set_primary": {false, ""}, "fence": {false, ""}, "unfence": {false, ""},
			"failover": {false, ""}, "rescan": {false, ""},
		},
		metadata.ClusterUnreachable: {
			"add": {false, ""}, "rejoin": {false, ""}, "remove": {true, "force only"},
			"set_primary": {false, ""}, "fence": {false, ""}, "unfence": {false, ""},
			"failover": {false, ""}, "rescan": {false, ""},
		},
	}

	row, ok := table[avail]
	if !ok {
		return false, fmt.Sprintf("unrecognized availability state %s", avail)
	}
	c, ok := row[op]
	if !ok {
		return false, fmt.Sprintf("operation %s is not defined for availability state %s", op, avail)
	}
	return c.allowed, c.note
}
