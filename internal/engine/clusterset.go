package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/channel"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// CreateClusterSetOptions parameterizes createClusterSet (spec.md §6.1).
type CreateClusterSetOptions struct {
	ClusterName string
	Primary     *instance.Instance
	DomainName  string
}

// CreateClusterSet promotes a standalone Cluster into the PRIMARY of a
// brand-new ClusterSet (spec.md §3.1 ClusterSet, §4.3). No REPLICA exists
// yet; createClusterSet only establishes the domain and registers the
// founding cluster's role.
func (e *Engine) CreateClusterSet(ctx context.Context, opts CreateClusterSetOptions) (*metadata.ClusterSet, error) {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return nil, err
	}
	if cluster.ClusterSetID != 0 {
		return nil, errs.New(errs.InvalidArg, "cluster %s already belongs to a clusterset", cluster.ClusterName)
	}
	if view.Availability() != metadata.Online {
		return nil, errs.New(errs.GroupHasNoQuorum, "cluster must be ONLINE to create a clusterset")
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return nil, err
	}
	defer sess.Release(ctx)

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	clusterSetID, err := tx.CreateClusterSet(opts.DomainName)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.SetClusterSetID(cluster.ClusterID, clusterSetID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.InsertClusterSetMember(metadata.ClusterSetMember{
		ClusterSetID: clusterSetID, ClusterID: cluster.ClusterID, Role: metadata.ClusterSetPrimary,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return e.Store.GetClusterSet(ctx, clusterSetID)
}

// GetClusterSet implements getClusterSet (spec.md §6.1): a read-only report
// of every cluster's role and the current view id generation.
func (e *Engine) GetClusterSet(ctx context.Context, clusterSetID int64) (*metadata.ClusterSet, []*metadata.ClusterSetMember, error) {
	cs, err := e.Store.GetClusterSet(ctx, clusterSetID)
	if err != nil {
		return nil, nil, err
	}
	members, err := e.Store.ListClusterSetMembers(ctx, clusterSetID)
	if err != nil {
		return nil, nil, err
	}
	return cs, members, nil
}

// AddReplicaClusterOptions parameterizes joining an existing Cluster to a
// ClusterSet as a REPLICA, wiring its primary member to follow the
// ClusterSet's global primary over a managed channel (spec.md §3.2
// invariant 8).
type AddReplicaClusterOptions struct {
	ClusterSetID   int64
	GlobalPrimary  *instance.Instance // primary member of the ClusterSet's PRIMARY cluster
	ReplicaCluster *metadata.Cluster
	ReplicaPrimary *instance.Instance // primary member of the joining cluster
}

// AddReplicaCluster registers a cluster as a REPLICA and starts its
// ClusterSet channel following the global primary (spec.md §3.1
// ClusterSet, §4.7 managed channel, grounded on original_source's
// cluster_set/create_replica_cluster.cc membership + channel setup split).
func (e *Engine) AddReplicaCluster(ctx context.Context, opts AddReplicaClusterOptions) error {
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.SetClusterSetID(opts.ReplicaCluster.ClusterID, opts.ClusterSetID); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.InsertClusterSetMember(metadata.ClusterSetMember{
		ClusterSetID: opts.ClusterSetID, ClusterID: opts.ReplicaCluster.ClusterID, Role: metadata.ClusterSetReplica,
	}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	user := accounts.ClusterSetAccountName(shortUUIDSuffix(opts.ReplicaPrimary.ServerUUID()))
	password := uuid.NewString()
	creds := accounts.Credentials{User: user, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, opts.GlobalPrimary, creds, e.Cfg.AccountHostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "creating clusterset channel account")
	}

	plan := channel.Plan{EffectiveSource: opts.GlobalPrimary.Endpoint(), Sources: []metadata.WeightedSource{
		{Endpoint: opts.GlobalPrimary.Endpoint(), Weight: 100},
	}}
	chOpts := channel.Options{Policy: metadata.SourcesPrimary, ConnectRetry: 3, RetryCount: 10}
	if err := channel.Configure(ctx, opts.ReplicaPrimary, plan, channel.Credentials{User: user, Password: password}, chOpts); err != nil {
		return err
	}
	return e.applyReplicaSuperReadOnly(ctx, opts.ReplicaPrimary)
}

func (e *Engine) applyReplicaSuperReadOnly(ctx context.Context, on *instance.Instance) error {
	if _, err := on.Exec(ctx, "SET GLOBAL super_read_only = 1"); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "enabling super_read_only on replica cluster primary %s", on.Endpoint())
	}
	return nil
}

// ClusterSetCandidate is one REPLICA cluster considered for promotion
// during failover.
type ClusterSetCandidate struct {
	Cluster      *metadata.Cluster
	Primary      *instance.Instance
	GTIDExecuted string
}

// ForcePrimaryClusterOptions parameterizes ClusterSet failover (spec.md
// §4.3 "ClusterSet failover").
type ForcePrimaryClusterOptions struct {
	ClusterSetID int64
	OldPrimaryID int64 // the unreachable former PRIMARY cluster's cluster_id
	Candidates   []ClusterSetCandidate
}

// ForcePrimaryCluster implements ClusterSet failover: validate the previous
// primary is unavailable (left to the caller, which could not reach it to
// call this in the first place), pick the candidate whose GTID_EXECUTED is
// a superset of every other candidate's (filter_primary_candidates),
// promote it, bump the view id, and invalidate the old primary's row
// (spec.md §4.3).
func (e *Engine) ForcePrimaryCluster(ctx context.Context, opts ForcePrimaryClusterOptions) (*metadata.Cluster, error) {
	if len(opts.Candidates) == 0 {
		return nil, errs.New(errs.GroupHasNoPrimary, "no reachable replica cluster to promote")
	}

	winner, err := filterPrimaryCandidates(ctx, opts.Candidates)
	if err != nil {
		return nil, err
	}

	sess, err := e.acquireClusterLock(ctx, winner.Primary, winner.Cluster.ClusterName, true)
	if err != nil {
		return nil, err
	}
	defer sess.Release(ctx)

	if _, err := winner.Primary.Exec(ctx, "SET GLOBAL super_read_only = 0"); err != nil {
		return nil, errs.Wrap(errs.TargetQueryError, err, "disabling super_read_only on promoted primary %s", winner.Primary.Endpoint())
	}
	if _, err := winner.Primary.Exec(ctx, "STOP REPLICA FOR CHANNEL "+sqlutil.QuoteString(channel.ChannelName)); err != nil {
		return nil, errs.Wrap(errs.ReplicationError, err, "stopping clusterset channel on promoted primary")
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.BumpClusterSetView(opts.ClusterSetID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.UpdateClusterSetMemberRole(opts.ClusterSetID, winner.Cluster.ClusterID,
		metadata.ClusterSetPrimary, false, metadata.ClusterSetReplica, false); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.UpdateClusterSetMemberRole(opts.ClusterSetID, opts.OldPrimaryID,
		metadata.ClusterSetInvalidated, true, metadata.ClusterSetPrimary, false); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return winner.Cluster, nil
}

// filterPrimaryCandidates picks the candidate whose GTID_EXECUTED contains
// every other candidate's, per spec.md §4.3 "pick the one whose
// GTID_EXECUTED is a superset of all others".
func filterPrimaryCandidates(ctx context.Context, candidates []ClusterSetCandidate) (ClusterSetCandidate, error) {
	for _, c := range candidates {
		isSuperset := true
		for _, other := range candidates {
			if other.Cluster.ClusterID == c.Cluster.ClusterID {
				continue
			}
			var missing string
			if err := c.Primary.QueryRow(ctx, sqlutil.GTIDSubtract(other.GTIDExecuted, c.GTIDExecuted)).Scan(&missing); err != nil {
				return ClusterSetCandidate{}, errs.Wrap(errs.TargetQueryError, err, "comparing GTID sets between %s and %s", other.Cluster.ClusterName, c.Cluster.ClusterName)
			}
			if missing != "" {
				isSuperset = false
				break
			}
		}
		if isSuperset {
			return c, nil
		}
	}
	return ClusterSetCandidate{}, errs.New(errs.DataErrantTransactions,
		"no replica cluster's GTID set is a superset of all others; manual resolution required")
}
