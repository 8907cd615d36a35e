package engine

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// SetPrimaryInstanceOptions parameterizes setPrimaryInstance (spec.md §4.3).
type SetPrimaryInstanceOptions struct {
	ClusterName   string
	Primary       *instance.Instance // current reachable connection, used to issue the election UDF
	NewPrimaryUUID string
}

// SetPrimaryInstance invokes GR's primary-election UDF naming the chosen
// member, then waits until that member reports MEMBER_STATE ONLINE
// (spec.md §4.3, SINGLE_PRIMARY only, all-online). Its MEMBER_ROLE is not
// read, so the change to PRIMARY is not confirmed here.
func (e *Engine) SetPrimaryInstance(ctx context.Context, opts SetPrimaryInstanceOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateSwitchPrimary(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	var found bool
	for _, m := range view.Members {
		if m.ServerUUID == opts.NewPrimaryUUID {
			found = true
			break
		}
	}
	if !found {
		return errs.New(errs.InvalidArg, "%s is not a member of the cluster", opts.NewPrimaryUUID)
	}

	q := fmt.Sprintf("SELECT group_replication_set_as_primary(%s)", sqlutil.QuoteString(opts.NewPrimaryUUID))
	if _, err := opts.Primary.Exec(ctx, q); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "electing %s as primary", opts.NewPrimaryUUID)
	}

	if _, err := waitForMemberState(ctx, opts.Primary, opts.NewPrimaryUUID, e.Cfg.GRStateTimeout, topologyview.MemberOnline); err != nil {
		return err
	}
	return nil
}

// SwitchToSinglePrimaryModeOptions parameterizes switchToSinglePrimaryMode.
type SwitchToSinglePrimaryModeOptions struct {
	ClusterName    string
	Primary        *instance.Instance
	NewPrimaryUUID string // empty lets GR pick
}

// SwitchToSinglePrimaryMode implements switchToSinglePrimaryMode
// (spec.md §6.1, §6.3 group_replication_switch_to_single_primary_mode).
func (e *Engine) SwitchToSinglePrimaryMode(ctx context.Context, opts SwitchToSinglePrimaryModeOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}
	if cluster.TopologyMode == "" {
		return errs.New(errs.UnsupportedClusterType, "switchToSinglePrimaryMode requires a Group Replication cluster")
	}
	if err := evaluateOnlineRequirement(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	q := "SELECT group_replication_switch_to_single_primary_mode()"
	if opts.NewPrimaryUUID != "" {
		q = fmt.Sprintf("SELECT group_replication_switch_to_single_primary_mode(%s)", sqlutil.QuoteString(opts.NewPrimaryUUID))
	}
	if _, err := opts.Primary.Exec(ctx, q); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "switching to single-primary mode")
	}
	if err := e.setClusterTopologyMode(ctx, cluster, "SINGLE_PRIMARY"); err != nil {
		return err
	}
	return nil
}

// SwitchToMultiPrimaryModeOptions parameterizes switchToMultiPrimaryMode.
type SwitchToMultiPrimaryModeOptions struct {
	ClusterName string
	Primary     *instance.Instance
}

// SwitchToMultiPrimaryMode implements switchToMultiPrimaryMode
// (spec.md §6.1, §6.3 group_replication_switch_to_multi_primary_mode).
func (e *Engine) SwitchToMultiPrimaryMode(ctx context.Context, opts SwitchToMultiPrimaryModeOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}
	if err := evaluateOnlineRequirement(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	if _, err := opts.Primary.Exec(ctx, "SELECT group_replication_switch_to_multi_primary_mode()"); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "switching to multi-primary mode")
	}
	if err := e.setClusterTopologyMode(ctx, cluster, "MULTI_PRIMARY"); err != nil {
		return err
	}
	return nil
}

func evaluateOnlineRequirement(v *topologyview.View) error {
	if v.Availability() != "ONLINE" {
		return errs.New(errs.GroupHasNoQuorum, "cluster must be ONLINE to change primary-election mode")
	}
	return nil
}

// ForceQuorumUsingPartitionOfOptions parameterizes forceQuorumUsingPartitionOf.
type ForceQuorumUsingPartitionOfOptions struct {
	ClusterName string
	Reachable   *instance.Instance // a reachable member in the surviving partition
}

// ForceQuorumUsingPartitionOf implements spec.md §4.3: compute the
// quorum-forcing member list from ONLINE ∪ RECOVERING GR addresses, set
// group_replication_force_members on opts.Reachable, then clear it. GR is
// stopped only on opts.Reachable, and only if it is not ONLINE; other
// non-ONLINE members are not touched.
func (e *Engine) ForceQuorumUsingPartitionOf(ctx context.Context, opts ForceQuorumUsingPartitionOfOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateForcePrimary(view); err != nil {
		return err
	}

	var addrs []string
	for _, m := range view.Members {
		if m.State == topologyview.MemberOnline || m.State == topologyview.MemberRecovering {
			if m.Metadata != nil {
				addrs = append(addrs, m.Metadata.GREndpoint)
			}
		}
	}
	if len(addrs) == 0 {
		return errs.New(errs.GroupHasNoQuorum, "no ONLINE or RECOVERING members to force quorum from")
	}

	cfg := applier.NewConfig(nil)
	cfg.Add(opts.Reachable, "group_replication_force_members", sqlutil.QuoteString(joinAddresses(addrs)))
	if _, err := applier.Apply(ctx, cfg, false); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "forcing quorum")
	}

	clearCfg := applier.NewConfig(nil)
	clearCfg.Add(opts.Reachable, "group_replication_force_members", "''")
	if _, err := applier.Apply(ctx, clearCfg, true); err != nil {
		return fmt.Errorf("clearing group_replication_force_members: %w", err)
	}

	if opts.Reachable.Endpoint() != "" {
		for _, m := range view.Members {
			if m.State != topologyview.MemberOnline && m.Endpoint == opts.Reachable.Endpoint() {
				opts.Reachable.Exec(ctx, "STOP GROUP_REPLICATION")
			}
		}
	}
	return nil
}
