// Package engine implements the command executors of §6.1: the ordered,
// multi-step protocols (addInstance, removeInstance, rejoinInstance,
// rescan, ...) that compose the Instance, Metadata, accounts, topologyview,
// topologymgr, locks, recovery, channel, applier, and undo packages into
// the operations a caller (the CLI in cmd/) actually invokes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/config"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologymgr"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// Engine bundles the engine-wide config with the Metadata store opened
// against the current global primary. One Engine serves one command
// invocation; it holds no state across commands (spec.md §5 "Instance
// handles are not shared across commands").
type Engine struct {
	Cfg   config.Config
	Store *metadata.Store
}

// New builds an Engine around a Metadata store already opened against the
// cluster's current global primary.
func New(cfg config.Config, store *metadata.Store) *Engine {
	return &Engine{Cfg: cfg, Store: store}
}

// managerFor selects the topology manager variant for a cluster, per
// spec.md §9's "selected by cluster type at the command boundary" note. A
// non-empty TopologyMode means GR (InnoDB Cluster); an empty TopologyMode
// (ReplicaSets don't use GR primary-election modes) means star-async
// (ReplicaSet). ClusterSetID is not consulted.
func managerFor(cluster *metadata.Cluster, fenced bool) topologymgr.Manager {
	if cluster.TopologyMode == "" {
		return &topologymgr.StarAsyncTopologyManager{}
	}
	return &topologymgr.GRTopologyManager{Fenced: fenced}
}

// loadView loads the current Cluster row and builds a fresh topologyview.View
// by querying live GR/async state on a reachable instance. Every command
// does this first, so its precondition gates see current reality rather
// than a stale snapshot (spec.md §3.4).
func (e *Engine) loadView(ctx context.Context, clusterName string, reachable *instance.Instance) (*metadata.Cluster, *topologyview.View, error) {
	groupName, err := reachable.GetGlobalVariable(ctx, "group_replication_group_name")
	if err != nil {
		return nil, nil, fmt.Errorf("reading group_replication_group_name: %w", err)
	}
	cluster, err := e.Store.GetClusterByGroupName(ctx, groupName)
	if err != nil {
		if err == metadata.ErrNotFound {
			return nil, nil, errs.Wrap(errs.MetadataMissing, err, "no cluster %q registered in the metadata", clusterName)
		}
		return nil, nil, err
	}
	view, err := topologyview.Build(ctx, e.Store, cluster, reachable)
	if err != nil {
		return nil, nil, fmt.Errorf("building topology view: %w", err)
	}
	return cluster, view, nil
}

// acquireClusterLock takes the named lock(s) a write-type command needs on
// the current primary (spec.md §5).
func (e *Engine) acquireClusterLock(ctx context.Context, primary *instance.Instance, clusterName string, exclusive bool, extra ...locks.Scope) (*locks.Session, error) {
	scope := locks.ClusterShared(clusterName)
	if exclusive {
		scope = locks.ClusterExclusive(clusterName)
	}
	scopes := append([]locks.Scope{scope}, extra...)
	return locks.Acquire(ctx, primary, e.Cfg.LockTimeout, scopes...)
}

// waitForMemberState polls performance_schema.replication_group_members
// until target reaches one of the wanted states or the deadline passes
// (spec.md §5 "Ordering guarantees": observe effect before the next step).
func waitForMemberState(ctx context.Context, reachable *instance.Instance, targetUUID string, deadline time.Duration, wanted ...topologyview.MemberState) (topologyview.MemberState, error) {
	wantSet := make(map[topologyview.MemberState]bool, len(wanted))
	for _, w := range wanted {
		wantSet[w] = true
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var state string
		row := reachable.QueryRow(ctx, fmt.Sprintf(
			`SELECT MEMBER_STATE FROM performance_schema.replication_group_members WHERE MEMBER_ID = %s`,
			sqlutil.QuoteString(targetUUID)))
		if err := row.Scan(&state); err == nil {
			ms := topologyview.MemberState(state)
			if wantSet[ms] {
				return ms, nil
			}
			if ms == topologyview.MemberError {
				return ms, errs.New(errs.DistributedRecoveryFailed, "member %s entered ERROR state while joining", targetUUID)
			}
		}
		select {
		case <-ctx.Done():
			return "", errs.New(errs.GTIDSyncTimeout, "timed out waiting for member %s to reach %v", targetUUID, wanted)
		case <-ticker.C:
		}
	}
}

// AccountCredentials is what a command decides and hands to accounts.Create*.
type AccountCredentials = accounts.Credentials
