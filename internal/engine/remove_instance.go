package engine

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// RemoveInstanceOptions parameterizes removeInstance (spec.md §4.3).
type RemoveInstanceOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Target      *instance.Instance // nil when the target is unreachable and Force is set
	Endpoint    string              // used to locate the Metadata row when Target is nil
	Force       bool
}

// RemoveInstance implements removeInstance (spec.md §4.3).
func (e *Engine) RemoveInstance(ctx context.Context, opts RemoveInstanceOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateRemove(view, opts.Force); err != nil {
		return err
	}

	endpoint := opts.Endpoint
	if opts.Target != nil {
		endpoint = opts.Target.Endpoint()
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true,
		locks.InstanceExclusive(opts.ClusterName, endpoint))
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	var target *metadata.Instance
	for _, m := range view.Members {
		if m.Endpoint == endpoint && m.Metadata != nil {
			target = m.Metadata
			break
		}
	}
	if target == nil {
		return errs.New(errs.MetadataMissing, "instance %s is not registered in the metadata", endpoint)
	}

	if opts.Target != nil {
		reachable, online := memberReachableOnline(view, target.ServerUUID)
		if reachable && online {
			if err := e.syncAndStopGR(ctx, opts.Target, opts.Primary); err != nil && !opts.Force {
				return err
			}
		}
		if err := dropAccount(ctx, opts.Primary, target); err != nil && !opts.Force {
			return err
		}
	} else if !opts.Force {
		return errs.New(errs.GroupMemberNotOnline, "target %s is unreachable; use force", endpoint)
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.DeleteInstance(target); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	seedCfg := applier.NewConfig(nil)
	remaining := view.OtherGRAddresses(target.ServerUUID)
	if opts.Primary.Endpoint() != endpoint {
		seedCfg.Add(opts.Primary, "group_replication_group_seeds", sqlutil.QuoteString(joinAddresses(remaining)))
	}
	if _, err := applier.Apply(ctx, seedCfg, true); err != nil {
		return fmt.Errorf("updating group seeds after remove: %w", err)
	}

	remainingCount := len(view.Members) - 1
	if cluster.TopologyMode == metadata.MultiPrimary && remainingCount < 7 && len(view.Members) >= 7 {
		aiCfg := applier.NewConfig(nil)
		aiCfg.Add(opts.Primary, "auto_increment_increment", "1")
		aiCfg.Add(opts.Primary, "auto_increment_offset", "1")
		if _, err := applier.Apply(ctx, aiCfg, true); err != nil {
			return fmt.Errorf("updating auto_increment after remove: %w", err)
		}
	}

	return nil
}

func memberReachableOnline(view *topologyview.View, uuid string) (reachable, online bool) {
	for _, m := range view.Members {
		if m.ServerUUID == uuid {
			return m.Reachable, m.State == topologyview.MemberOnline || m.State == topologyview.MemberRecovering
		}
	}
	return false, false
}

// syncAndStopGR waits for the target to catch up with the primary's
// executed GTID set, then stops group replication on it (spec.md §4.3
// "sync transactions from primary with a timeout").
func (e *Engine) syncAndStopGR(ctx context.Context, target, primary *instance.Instance) error {
	var primaryGTID string
	if err := primary.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&primaryGTID); err != nil {
		return fmt.Errorf("reading primary gtid_executed: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.Cfg.GTIDSyncTimeout)
	defer cancel()
	var dummy int
	if err := target.QueryRow(waitCtx, fmt.Sprintf("SELECT WAIT_FOR_EXECUTED_GTID_SET(%s, %d)",
		sqlutil.QuoteString(primaryGTID), int(e.Cfg.GTIDSyncTimeout.Seconds()))).Scan(&dummy); err != nil {
		return errs.Wrap(errs.GTIDSyncTimeout, err, "timed out waiting for %s to catch up before removal", target.Endpoint())
	}

	if _, err := target.Exec(ctx, "STOP GROUP_REPLICATION"); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "stopping group replication on %s", target.Endpoint())
	}
	return nil
}

func dropAccount(ctx context.Context, primary *instance.Instance, target *metadata.Instance) error {
	user := accounts.RecoveryAccountName(target.ServerID)
	if _, err := accounts.Drop(ctx, primary, user, "%"); err != nil {
		return fmt.Errorf("dropping recovery account for %s: %w", target.Endpoint, err)
	}
	return nil
}
