// Package topologyview builds the Topology view component of §2 and §3.4:
// an immutable, in-memory snapshot combining Metadata rows with live GR
// membership and async-channel status, valid only for the lifetime of the
// command that built it.
//
// Query shaping against performance_schema follows the teacher's
// internal/topology/detector.go pattern of reading sysvars/status views
// through the Instance (here) rather than *sql.DB directly, generalized
// from single-node topology detection to a multi-member GR membership read.
package topologyview

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

// MemberState mirrors performance_schema.replication_group_members.MEMBER_STATE.
type MemberState string

const (
	MemberOnline      MemberState = "ONLINE"
	MemberRecovering  MemberState = "RECOVERING"
	MemberOffline     MemberState = "OFFLINE"
	MemberError       MemberState = "ERROR"
	MemberUnreachable MemberState = "UNREACHABLE"
)

// MemberRole mirrors performance_schema.replication_group_members.MEMBER_ROLE.
type MemberRole string

const (
	RolePrimary   MemberRole = "PRIMARY"
	RoleSecondary MemberRole = "SECONDARY"
)

// Member is one GR membership row merged with its Metadata instance row,
// when one exists (spec.md §3.2 invariant 2 "updated members").
type Member struct {
	ServerUUID   string
	Endpoint     string // MEMBER_HOST:MEMBER_PORT
	State        MemberState
	Role         MemberRole
	Metadata     *metadata.Instance // nil if this is a live member with no Metadata row
	Reachable    bool
	ChannelState string // replication_connection_status / replication_applier_status summary, set by BuildAsync for ReplicaSet secondaries
}

// View is an immutable snapshot for one command's lifetime.
type View struct {
	Cluster   *metadata.Cluster
	Members   []Member
	Primary   *Member // nil when ONLINE_NO_PRIMARY or worse
	GroupName string
}

// Availability computes the Cluster.availability enumeration (spec.md §3.1).
func (v *View) Availability() metadata.ClusterAvailability {
	if len(v.Members) == 0 {
		return metadata.ClusterUnreachable
	}

	online, unreachable := 0, 0
	for _, m := range v.Members {
		switch m.State {
		case MemberOnline, MemberRecovering:
			online++
		case MemberUnreachable:
			unreachable++
		}
	}

	if online == 0 {
		if unreachable == len(v.Members) {
			return metadata.ClusterUnreachable
		}
		return metadata.Offline
	}

	if !v.hasQuorum() {
		return metadata.NoQuorum
	}

	if v.Cluster.TopologyMode == metadata.SinglePrimary && v.Primary == nil {
		return metadata.OnlineNoPrimary
	}

	if unreachable > 0 {
		return metadata.SomeUnreachable
	}
	return metadata.Online
}

// hasQuorum applies the standard "more than half of the configured GR
// members are ONLINE or RECOVERING" rule.
func (v *View) hasQuorum() bool {
	total := len(v.Members)
	healthy := 0
	for _, m := range v.Members {
		if m.State == MemberOnline || m.State == MemberRecovering {
			healthy++
		}
	}
	return healthy*2 > total
}

// OnlineMembers returns every ONLINE member, used by donor selection and
// group-seeds computation.
func (v *View) OnlineMembers() []Member {
	var out []Member
	for _, m := range v.Members {
		if m.State == MemberOnline {
			out = append(out, m)
		}
	}
	return out
}

// Build queries live GR membership on a reachable instance and merges it
// with the Metadata's instance rows for the given cluster.
func Build(ctx context.Context, store *metadata.Store, cluster *metadata.Cluster, reachable *instance.Instance) (*View, error) {
	mdInstances, err := store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("listing metadata instances: %w", err)
	}
	byUUID := make(map[string]*metadata.Instance, len(mdInstances))
	for _, mi := range mdInstances {
		byUUID[mi.ServerUUID] = mi
	}

	rows, err := reachable.Query(ctx, `SELECT MEMBER_ID, MEMBER_HOST, MEMBER_PORT, MEMBER_STATE, MEMBER_ROLE
		FROM performance_schema.replication_group_members`)
	if err != nil {
		return nil, fmt.Errorf("querying replication_group_members: %w", err)
	}
	defer rows.Close()

	v := &View{Cluster: cluster, GroupName: cluster.GroupName}
	for rows.Next() {
		var uuid, host, state, role string
		var port int
		if err := rows.Scan(&uuid, &host, &port, &state, &role); err != nil {
			return nil, fmt.Errorf("scanning replication_group_members row: %w", err)
		}
		m := Member{
			ServerUUID: uuid,
			Endpoint:   fmt.Sprintf("%s:%d", host, port),
			State:      MemberState(state),
			Role:       MemberRole(role),
			Reachable:  state != string(MemberUnreachable),
			Metadata:   byUUID[uuid],
		}
		v.Members = append(v.Members, m)
		if m.Role == RolePrimary && m.State == MemberOnline {
			last := &v.Members[len(v.Members)-1]
			v.Primary = last
		}
	}
	return v, rows.Err()
}

// OtherGRAddresses returns the GR local addresses of every member other
// than excludeUUID, used to recompute group_replication_group_seeds
// (spec.md §4.2 step 11, §8 property 2).
func (v *View) OtherGRAddresses(excludeUUID string) []string {
	var addrs []string
	for _, m := range v.Members {
		if m.ServerUUID == excludeUUID || m.Metadata == nil {
			continue
		}
		addrs = append(addrs, m.Metadata.GREndpoint)
	}
	return addrs
}
