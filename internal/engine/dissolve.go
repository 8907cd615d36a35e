package engine

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// DissolveOptions parameterizes dissolve (spec.md §6.1). Reachable carries a
// live connection for every member the caller can still reach by endpoint;
// members absent from the map are treated as unreachable and, with Force,
// only dropped from the Metadata (spec.md "User data will be maintained
// intact in all instances", grounded on original_source's dissolve.cc
// unreachable-member handling).
type DissolveOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Reachable   map[string]*instance.Instance
	Force       bool
}

// DissolveResult reports which members were torn down cleanly and which
// were only removed from the Metadata because they could not be reached.
type DissolveResult struct {
	Stopped []string
	Skipped []string
}

// Dissolve implements dissolve (spec.md §6.1) for a Cluster: stop Group
// Replication on every reachable member, drop its recovery/channel
// account, then delete the whole cluster from the Metadata. Unlike
// removeInstance there is no per-command topology-manager gate; the last
// member standing can always be dissolved, and a partially-unreachable
// group only needs Force.
func (e *Engine) Dissolve(ctx context.Context, opts DissolveOptions) (*DissolveResult, error) {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return nil, err
	}
	return e.dissolveCluster(ctx, cluster, view, opts)
}

// DissolveReplicaSet implements dissolve (spec.md §6.1, §207) for a
// ReplicaSet: resolution differs from Dissolve only in how the cluster and
// its topology view are loaded (loadReplicaSetView's per-member probing in
// place of loadView's single group_replication_group_name read); the
// teardown loop itself is shared via dissolveCluster, which already
// branches its replication-stop step through stopMemberReplication.
func (e *Engine) DissolveReplicaSet(ctx context.Context, opts DissolveOptions) (*DissolveResult, error) {
	cluster, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return nil, err
	}
	return e.dissolveCluster(ctx, cluster, view, opts)
}

// dissolveCluster is the shared teardown loop behind Dissolve and
// DissolveReplicaSet.
func (e *Engine) dissolveCluster(ctx context.Context, cluster *metadata.Cluster, view *topologyview.View, opts DissolveOptions) (*DissolveResult, error) {
	lockConn := opts.Primary
	if lockConn == nil && view.Primary != nil {
		lockConn = opts.Reachable[view.Primary.Endpoint]
	}
	if lockConn == nil {
		return nil, errs.New(errs.PrimaryUnavailable, "no connection open to the cluster's primary")
	}
	sess, err := e.acquireClusterLock(ctx, lockConn, opts.ClusterName, true)
	if err != nil {
		return nil, err
	}
	defer sess.Release(ctx)

	result := &DissolveResult{}

	for _, m := range view.Members {
		target, ok := opts.Reachable[m.Endpoint]
		if !ok || !m.Reachable {
			if !opts.Force {
				return result, errs.New(errs.GroupMemberNotOnline,
					"instance %s is not reachable; use force to dissolve anyway", m.Endpoint)
			}
			result.Skipped = append(result.Skipped, m.Endpoint)
			continue
		}

		stopErr := stopMemberReplication(ctx, cluster, target)
		if stopErr != nil && !opts.Force {
			return result, stopErr
		}

		if m.Metadata != nil {
			user := accountNameFor(m.Metadata)
			if user != "" {
				if _, err := accounts.Drop(ctx, target, user, "%"); err != nil && !opts.Force {
					return result, fmt.Errorf("dropping account for %s: %w", m.Endpoint, err)
				}
			}
		}
		result.Stopped = append(result.Stopped, m.Endpoint)
	}

	if err := e.deleteClusterMetadata(ctx, cluster); err != nil {
		return result, err
	}
	return result, nil
}

// stopMemberReplication stops whichever replication flavor a member
// actually runs: GR for a Cluster, the ReplicaSet async channel for a
// ReplicaSet (spec.md §3.1 distinguishes the two by TopologyMode).
func stopMemberReplication(ctx context.Context, cluster *metadata.Cluster, target *instance.Instance) error {
	if cluster.TopologyMode == "" {
		return stopReplicaSetReplication(ctx, target)
	}
	if _, err := target.Exec(ctx, "STOP GROUP_REPLICATION"); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "stopping group replication on %s", target.Endpoint())
	}
	return nil
}

// accountNameFor picks the recovery or read-replica account name a member
// was registered under, matching the naming scheme accounts.go generates.
func accountNameFor(mi *metadata.Instance) string {
	if mi.Role == metadata.RoleReadReplica {
		if len(mi.ServerUUID) >= 8 {
			return accounts.ReadReplicaAccountName(mi.ServerUUID[:8])
		}
		return ""
	}
	return accounts.RecoveryAccountName(mi.ServerID)
}

// deleteClusterMetadata removes every instance row for the cluster, then
// the cluster row itself, within one transaction.
func (e *Engine) deleteClusterMetadata(ctx context.Context, cluster *metadata.Cluster) error {
	instances, err := e.Store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return err
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, mi := range instances {
		if err := tx.DeleteInstance(mi); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	q := fmt.Sprintf("DELETE FROM %s.clusters WHERE cluster_id = %d", metadata.SchemaName, cluster.ClusterID)
	if _, err := e.Store.Primary().Exec(ctx, q); err != nil {
		return fmt.Errorf("deleting cluster metadata: %w", err)
	}
	return nil
}
