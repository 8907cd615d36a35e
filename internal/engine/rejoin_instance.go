package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/channel"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// RejoinInstanceOptions parameterizes rejoinInstance (spec.md §4.3).
type RejoinInstanceOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Target      *instance.Instance
}

// RejoinInstance implements rejoinInstance: HA members are reconfigured and
// restarted; Read-Replicas have their managed channel restarted against the
// effective source list (spec.md §4.3).
func (e *Engine) RejoinInstance(ctx context.Context, opts RejoinInstanceOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateRejoin(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, false,
		locks.InstanceExclusive(opts.ClusterName, opts.Target.Endpoint()))
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	var mdInst *metadata.Instance
	for _, m := range view.Members {
		if m.ServerUUID == opts.Target.ServerUUID() && m.Metadata != nil {
			mdInst = m.Metadata
			break
		}
	}
	if mdInst == nil {
		return errs.New(errs.MetadataMissing, "instance %s is not registered in the metadata", opts.Target.Endpoint())
	}

	if mdInst.Role == metadata.RoleReadReplica {
		return e.rejoinReadReplica(ctx, cluster, view, mdInst, opts.Target, opts.Primary)
	}
	return e.rejoinHA(ctx, cluster, view, mdInst, opts.Target, opts.Primary)
}

func (e *Engine) rejoinHA(ctx context.Context, cluster *metadata.Cluster, view *topologyview.View, mdInst *metadata.Instance, target, primary *instance.Instance) error {
	recoveryUser := accounts.RecoveryAccountName(target.ServerID())
	password := uuid.NewString()
	creds := accounts.Credentials{User: recoveryUser, Auth: accounts.Password, Password: password}
	requireOnTarget := cluster.CommStack == metadata.CommStackMySQL
	if err := accounts.CreateRecoveryAccount(ctx, primary, creds, e.Cfg.AccountHostPattern, requireOnTarget, target); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "recreating recovery account for %s", target.Endpoint())
	}

	cfg := applier.NewConfig(nil)
	seeds := view.OtherGRAddresses(target.ServerUUID())
	cfg.Add(target, "group_replication_group_seeds", sqlutil.QuoteString(joinAddresses(seeds)))
	cfg.Add(target, "group_replication_recovery_user", sqlutil.QuoteString(recoveryUser))
	cfg.Add(target, "group_replication_recovery_password", sqlutil.QuoteString(password))
	if _, err := applier.Apply(ctx, cfg, false); err != nil {
		return errs.Wrap(errs.DistributedRecoveryFailed, err, "reconfiguring GR sysvars on %s", target.Endpoint())
	}

	if _, err := target.Exec(ctx, "START GROUP_REPLICATION"); err != nil {
		return errs.Wrap(errs.DistributedRecoveryFailed, err, "restarting group replication on %s", target.Endpoint())
	}
	if _, err := waitForMemberState(ctx, primary, target.ServerUUID(), e.Cfg.GRStateTimeout, topologyview.MemberOnline); err != nil {
		return err
	}
	return nil
}

func (e *Engine) rejoinReadReplica(ctx context.Context, cluster *metadata.Cluster, view *topologyview.View, mdInst *metadata.Instance, target, primary *instance.Instance) error {
	user := accounts.ReadReplicaAccountName(shortUUIDSuffix(target.ServerUUID()))
	password := uuid.NewString()
	creds := accounts.Credentials{User: user, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, primary, creds, e.Cfg.AccountHostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "recreating channel account for %s", target.Endpoint())
	}

	var onlineSecondaries []string
	primaryEndpoint := ""
	if view.Primary != nil {
		primaryEndpoint = view.Primary.Endpoint
	}
	for _, m := range view.OnlineMembers() {
		if view.Primary != nil && m.ServerUUID == view.Primary.ServerUUID {
			continue
		}
		onlineSecondaries = append(onlineSecondaries, m.Endpoint)
	}

	opts := channel.Options{
		Policy:        mdInst.ReplicationSourcesPolicy,
		CustomSources: mdInst.ReadReplicaSources,
		ConnectRetry:  3,
		RetryCount:    10,
		Rejoin:        true,
	}
	plan, err := channel.BuildPlan(opts, primaryEndpoint, onlineSecondaries)
	if err != nil {
		return err
	}
	return channel.Configure(ctx, target, plan, channel.Credentials{User: user, Password: password}, opts)
}

func shortUUIDSuffix(serverUUID string) string {
	if len(serverUUID) >= 8 {
		return serverUUID[:8]
	}
	return serverUUID
}
