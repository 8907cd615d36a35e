package topologymgr

import (
	"testing"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

func onlineView() *topologyview.View {
	v := &topologyview.View{
		Cluster: &metadata.Cluster{ClusterName: "mycluster", TopologyMode: metadata.SinglePrimary},
		Members: []topologyview.Member{
			{ServerUUID: "u1", State: topologyview.MemberOnline, Role: topologyview.RolePrimary},
			{ServerUUID: "u2", State: topologyview.MemberOnline, Role: topologyview.RoleSecondary},
		},
	}
	v.Primary = &v.Members[0]
	return v
}

func noQuorumView() *topologyview.View {
	return &topologyview.View{
		Cluster: &metadata.Cluster{ClusterName: "mycluster", TopologyMode: metadata.SinglePrimary},
		Members: []topologyview.Member{
			{ServerUUID: "u1", State: topologyview.MemberUnreachable},
			{ServerUUID: "u2", State: topologyview.MemberOnline, Role: topologyview.RolePrimary},
			{ServerUUID: "u3", State: topologyview.MemberUnreachable},
		},
	}
}

func TestGRValidateAddOnline(t *testing.T) {
	mgr := &GRTopologyManager{}
	if err := mgr.ValidateAdd(onlineView()); err != nil {
		t.Errorf("ValidateAdd() on ONLINE cluster = %v, want nil", err)
	}
}

func TestGRValidateAddNoQuorum(t *testing.T) {
	mgr := &GRTopologyManager{}
	err := mgr.ValidateAdd(noQuorumView())
	if !errs.As(err, errs.UnsupportedClusterType) {
		t.Errorf("ValidateAdd() on NO_QUORUM cluster = %v, want UnsupportedClusterType", err)
	}
}

func TestGRValidateRemoveUnreachableRequiresForce(t *testing.T) {
	mgr := &GRTopologyManager{}
	v := &topologyview.View{
		Cluster: &metadata.Cluster{ClusterName: "c", TopologyMode: metadata.SinglePrimary},
		Members: []topologyview.Member{{ServerUUID: "u1", State: topologyview.MemberUnreachable}},
	}
	if err := mgr.ValidateRemove(v, false); !errs.As(err, errs.GroupMemberNotOnline) {
		t.Errorf("ValidateRemove() without force = %v, want GroupMemberNotOnline", err)
	}
}

func TestGRValidateFailoverOnlyOnNoQuorum(t *testing.T) {
	mgr := &GRTopologyManager{}
	if err := mgr.ValidateForcePrimary(onlineView()); err == nil {
		t.Errorf("ValidateForcePrimary() on ONLINE cluster should fail")
	}
	if err := mgr.ValidateForcePrimary(noQuorumView()); err != nil {
		t.Errorf("ValidateForcePrimary() on NO_QUORUM cluster = %v, want nil", err)
	}
}

func TestStarAsyncValidateRemoveLastMember(t *testing.T) {
	mgr := &StarAsyncTopologyManager{}
	v := &topologyview.View{
		Members: []topologyview.Member{{ServerUUID: "u1", State: topologyview.MemberOnline, Role: topologyview.RolePrimary}},
	}
	v.Primary = &v.Members[0]
	if err := mgr.ValidateRemove(v, false); !errs.As(err, errs.InvalidArg) {
		t.Errorf("ValidateRemove() on last member = %v, want InvalidArg", err)
	}
}

func TestStarAsyncValidateForcePrimaryRequiresNoPrimary(t *testing.T) {
	mgr := &StarAsyncTopologyManager{}
	err := mgr.ValidateForcePrimary(onlineView())
	if !errs.As(err, errs.InvalidArg) {
		t.Errorf("ValidateForcePrimary() with primary up = %v, want InvalidArg", err)
	}
}
