package topologymgr

import (
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// StarAsyncTopologyManager validates commands against a ReplicaSet: a star
// async topology with one PRIMARY and zero or more SECONDARY nodes
// (spec.md §3.1, §9). Grounded on original_source's
// replicaset/topology_configuration_command.cc precondition skeleton.
type StarAsyncTopologyManager struct{}

var _ Manager = (*StarAsyncTopologyManager)(nil)

func (s *StarAsyncTopologyManager) ValidateAdd(v *topologyview.View) error {
	if v.Primary == nil {
		return errs.New(errs.PrimaryUnavailable, "replicaset %s has no reachable PRIMARY", v.Cluster.ClusterName)
	}
	return nil
}

func (s *StarAsyncTopologyManager) ValidateRejoin(v *topologyview.View) error {
	if v.Primary == nil {
		return errs.New(errs.PrimaryUnavailable, "replicaset %s has no reachable PRIMARY", v.Cluster.ClusterName)
	}
	return nil
}

func (s *StarAsyncTopologyManager) ValidateRemove(v *topologyview.View, force bool) error {
	if v.Primary == nil && !force {
		return errs.New(errs.PrimaryUnavailable, "replicaset %s has no reachable PRIMARY; use force", v.Cluster.ClusterName)
	}
	if len(v.Members) <= 1 {
		return errs.New(errs.InvalidArg, "cannot remove the last member of a replicaset; use dissolve")
	}
	return nil
}

func (s *StarAsyncTopologyManager) ValidateSwitchPrimary(v *topologyview.View) error {
	if v.Primary == nil {
		return errs.New(errs.PrimaryUnavailable, "replicaset %s has no reachable PRIMARY", v.Cluster.ClusterName)
	}
	return nil
}

// ValidateForcePrimary implements forcePrimaryInstance: unlike GR failover,
// this is allowed precisely when the current primary is unavailable
// (spec.md §4.3 "ClusterSet failover").
func (s *StarAsyncTopologyManager) ValidateForcePrimary(v *topologyview.View) error {
	if v.Primary != nil {
		return errs.New(errs.InvalidArg, "forcePrimaryInstance requires the current PRIMARY to be unavailable")
	}
	if len(v.OnlineMembers()) == 0 {
		return errs.New(errs.GroupHasNoQuorum, "no reachable SECONDARY members to promote")
	}
	return nil
}
