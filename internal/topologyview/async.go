package topologyview

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// ReplicaSetChannelName is the fixed channel name a ReplicaSet secondary
// replicates from its PRIMARY on (spec.md §3.1 ReplicaSet; distinct from
// channel.ChannelName, which is reserved for the managed Read-Replica/
// ClusterSet channel).
const ReplicaSetChannelName = "star_async_replication"

// BuildAsync builds a View for a ReplicaSet (spec.md §3.1 "star with one
// PRIMARY and zero or more SECONDARY nodes"). Unlike Build, there is no
// single performance_schema table a reachable member can be asked for
// group-wide membership: a ReplicaSet has no Group Replication, so every
// member is probed individually through whatever connections the caller
// could open (mirroring the teacher's internal/topology/detector.go
// per-node probing, generalized from one node to the whole fleet).
//
// The PRIMARY is identified by super_read_only=OFF (spec.md §3.1 invariant
// 3's SINGLE_PRIMARY rule, applied the same way to a ReplicaSet's single
// writable node). A member absent from reachable is reported UNREACHABLE;
// members present in reachable have their replica IO/SQL thread health
// read from performance_schema to classify ONLINE vs ERROR (or UNREACHABLE
// when the channel's connection status cannot be read).
func BuildAsync(ctx context.Context, store *metadata.Store, cluster *metadata.Cluster, reachable map[string]*instance.Instance) (*View, error) {
	mdInstances, err := store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("listing metadata instances: %w", err)
	}

	v := &View{Cluster: cluster}
	for _, mi := range mdInstances {
		conn, ok := reachable[mi.Endpoint]
		m := Member{
			ServerUUID: mi.ServerUUID,
			Endpoint:   mi.Endpoint,
			Metadata:   mi,
			Reachable:  ok,
		}
		if !ok {
			m.State = MemberUnreachable
			v.Members = append(v.Members, m)
			continue
		}

		isPrimary, err := isWritablePrimary(ctx, conn)
		if err != nil {
			m.State = MemberError
			v.Members = append(v.Members, m)
			continue
		}
		if isPrimary {
			m.Role = RolePrimary
			m.State = MemberOnline
			v.Members = append(v.Members, m)
			last := &v.Members[len(v.Members)-1]
			v.Primary = last
			continue
		}

		m.Role = RoleSecondary
		m.ChannelState, m.State = asyncChannelState(ctx, conn)
		v.Members = append(v.Members, m)
	}
	return v, nil
}

func isWritablePrimary(ctx context.Context, conn *instance.Instance) (bool, error) {
	val, err := conn.GetGlobalVariable(ctx, "super_read_only")
	if err != nil {
		return false, err
	}
	return val == "0" || val == "OFF", nil
}

// asyncChannelState reads the replica's IO/SQL applier health off the
// ReplicaSet channel (ReplicaSetChannelName), classifying it the way
// performance_schema.replication_connection_status/replication_applier_status
// report thread health, rather than parsing SHOW REPLICA STATUS columns.
func asyncChannelState(ctx context.Context, conn *instance.Instance) (channelState string, state MemberState) {
	var serviceState string
	row := conn.QueryRow(ctx, fmt.Sprintf(
		`SELECT SERVICE_STATE FROM performance_schema.replication_connection_status WHERE CHANNEL_NAME = %s`,
		sqlutil.QuoteString(ReplicaSetChannelName)))
	if err := row.Scan(&serviceState); err != nil {
		return "", MemberUnreachable
	}
	if serviceState != "ON" {
		return serviceState, MemberError
	}

	var applierState string
	row = conn.QueryRow(ctx, fmt.Sprintf(
		`SELECT SERVICE_STATE FROM performance_schema.replication_applier_status WHERE CHANNEL_NAME = %s`,
		sqlutil.QuoteString(ReplicaSetChannelName)))
	if err := row.Scan(&applierState); err != nil || applierState != "ON" {
		return serviceState + "/" + applierState, MemberError
	}
	return serviceState + "/" + applierState, MemberOnline
}
