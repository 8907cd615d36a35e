package topologymgr

import (
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// GRTopologyManager validates commands against a Group Replication cluster
// (spec.md §4.1 transition table).
type GRTopologyManager struct {
	// Fenced reports whether fenceWrites/fenceAllTraffic is currently
	// active on the cluster (spec.md §4.1 "allowed-on-fence flag").
	Fenced bool
}

var _ Manager = (*GRTopologyManager)(nil)

func (g *GRTopologyManager) ValidateAdd(v *topologyview.View) error {
	avail := v.Availability()
	allowed, note := transitionAllowed(avail, "add")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "addInstance not allowed while cluster is %s", avail)
	}
	if note == "reboot only" {
		return errs.New(errs.GroupHasNoPrimary, "cluster is OFFLINE: addInstance requires rebootClusterFromCompleteOutage first")
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal, PrimaryRequired: true}, g.Fenced)
}

func (g *GRTopologyManager) ValidateRejoin(v *topologyview.View) error {
	avail := v.Availability()
	allowed, note := transitionAllowed(avail, "rejoin")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "rejoinInstance not allowed while cluster is %s", avail)
	}
	if note == "reboot only" {
		return errs.New(errs.GroupHasNoPrimary, "cluster is OFFLINE: rejoinInstance requires rebootClusterFromCompleteOutage first")
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal, PrimaryRequired: true}, g.Fenced)
}

func (g *GRTopologyManager) ValidateRemove(v *topologyview.View, force bool) error {
	avail := v.Availability()
	allowed, note := transitionAllowed(avail, "remove")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "removeInstance not allowed while cluster is %s", avail)
	}
	if note == "force only" && !force {
		return errs.New(errs.GroupMemberNotOnline, "target is unreachable: removeInstance requires force")
	}
	if note == "force only" {
		// Metadata-only path: the quorum gate still applies to the
		// cluster as a whole; the primary gate and the per-member
		// reachability gate are relaxed by force (spec.md §4.3
		// remove_instance).
		return evaluate(v, Gates{RequiredQuorum: QuorumNormal}, g.Fenced)
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal, PrimaryRequired: true}, g.Fenced)
}

func (g *GRTopologyManager) ValidateSwitchPrimary(v *topologyview.View) error {
	if v.Cluster.TopologyMode != metadata.SinglePrimary {
		return errs.New(errs.UnsupportedClusterType, "setPrimaryInstance requires SINGLE_PRIMARY topology mode")
	}
	avail := v.Availability()
	allowed, _ := transitionAllowed(avail, "set_primary")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "setPrimaryInstance not allowed while cluster is %s", avail)
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumAllOnline, PrimaryRequired: avail != metadata.OnlineNoPrimary}, g.Fenced)
}

func (g *GRTopologyManager) ValidateForcePrimary(v *topologyview.View) error {
	avail := v.Availability()
	allowed, _ := transitionAllowed(avail, "failover")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "forceQuorumUsingPartitionOf not allowed while cluster is %s", avail)
	}
	return nil
}

// ValidateFence checks fenceWrites/fenceAllTraffic preconditions.
func (g *GRTopologyManager) ValidateFence(v *topologyview.View) error {
	avail := v.Availability()
	allowed, _ := transitionAllowed(avail, "fence")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "fenceWrites not allowed while cluster is %s", avail)
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal, PrimaryRequired: true}, g.Fenced)
}

// ValidateUnfence checks unfenceWrites preconditions.
func (g *GRTopologyManager) ValidateUnfence(v *topologyview.View) error {
	avail := v.Availability()
	allowed, _ := transitionAllowed(avail, "unfence")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "unfenceWrites not allowed while cluster is %s", avail)
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal, PrimaryRequired: true}, false)
}

// ValidateRescan checks rescan preconditions.
func (g *GRTopologyManager) ValidateRescan(v *topologyview.View) error {
	avail := v.Availability()
	allowed, _ := transitionAllowed(avail, "rescan")
	if !allowed {
		return errs.New(errs.UnsupportedClusterType, "rescan not allowed while cluster is %s", avail)
	}
	return evaluate(v, Gates{RequiredQuorum: QuorumNormal}, g.Fenced)
}
