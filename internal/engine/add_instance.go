package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/recovery"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
	"github.com/innodbcluster/admin-engine/internal/undo"
)

// AddInstanceOptions parameterizes addInstance (spec.md §4.2, §6.1).
type AddInstanceOptions struct {
	ClusterName    string
	Target         *instance.Instance
	Primary        *instance.Instance // the instance to reach the current primary on
	RecoveryMethod recovery.Method
	Donor          *instance.Instance // explicit override; defaults to Primary
	Label          string
	MemberWeight   int
}

// AddInstance runs the join protocol of spec.md §4.2. Steps 5 (SSL/auth
// mode inheritance), 7 (clone plugin installation) and 13 (ClusterSet async
// channel on the target) are not performed, and the Metadata transaction is
// committed once the target is ONLINE, before the seed and auto_increment
// updates.
func (e *Engine) AddInstance(ctx context.Context, opts AddInstanceOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateAdd(view); err != nil {
		return err
	}

	// Step 1: connect & lock. opts.Target is assumed already connected by
	// the caller (CLI layer); here we take the exclusive cluster lock plus
	// an exclusive per-instance lock (spec.md §4.2 step 1, §5).
	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true,
		locks.InstanceExclusive(opts.ClusterName, opts.Target.Endpoint()))
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	tracker := undo.New()
	succeeded := false
	defer func() {
		if !succeeded && tracker.Len() > 0 {
			tracker.Execute(ctx)
		}
	}()

	// Step 2: preconditions.
	if err := e.checkAddPreconditions(ctx, view, opts.Target); err != nil {
		return err
	}

	// Step 3: decide recovery method.
	donor := opts.Donor
	if donor == nil {
		donor = opts.Primary
	}
	snap, err := recovery.FetchSnapshot(ctx, donor, opts.Target)
	if err != nil {
		return err
	}
	state, err := recovery.ClassifyState(ctx, opts.Target, snap)
	if err != nil {
		return err
	}
	gtidComplete := e.clusterAssumesGTIDComplete(ctx, cluster)
	method, err := recovery.Decide(opts.RecoveryMethod, state, gtidComplete, true)
	if err != nil {
		return err
	}

	if method == recovery.Clone && recovery.NeedsForceClone(snap.TargetExecuted) {
		stmt := recovery.ResetStatement(opts.Target.Version())
		if _, err := opts.Target.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clearing target GTID set before clone: %w", err)
		}
	}

	// Step 4: resolve GR local address.
	reportHost, err := opts.Target.GetGlobalVariable(ctx, "report_host")
	if err != nil || reportHost == "" {
		return errs.New(errs.InvalidArg, "target has no report_host configured")
	}
	grPort := opts.Target.Config().Port + 10000
	grLocalAddress := fmt.Sprintf("%s:%d", reportHost, grPort)

	// Step 6: create replication account; record undo to drop it.
	recoveryUser := accounts.RecoveryAccountName(opts.Target.ServerID())
	password := uuid.NewString()
	creds := accounts.Credentials{User: recoveryUser, Auth: accounts.Password, Password: password}
	host := e.Cfg.AccountHostPattern
	requireOnTarget := cluster.CommStack == metadata.CommStackMySQL
	if err := accounts.CreateRecoveryAccount(ctx, opts.Primary, creds, host, requireOnTarget, opts.Target); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "creating recovery account for %s", opts.Target.Endpoint())
	}
	tracker.Add(func(ctx context.Context) error {
		_, err := accounts.Drop(ctx, opts.Primary, recoveryUser, host)
		return err
	})

	// Step 8: configure GR sysvars on target. No member is marked offline,
	// so applier.Apply uses PERSIST where the target's version supports it
	// and GLOBAL otherwise.
	cfg := applier.NewConfig(nil)
	seeds := view.OtherGRAddresses(opts.Target.ServerUUID())
	cfg.Add(opts.Target, "group_replication_group_name", sqlutil.QuoteString(cluster.GroupName))
	cfg.Add(opts.Target, "group_replication_local_address", sqlutil.QuoteString(grLocalAddress))
	cfg.Add(opts.Target, "group_replication_group_seeds", sqlutil.QuoteString(joinAddresses(seeds)))
	cfg.Add(opts.Target, "group_replication_recovery_user", sqlutil.QuoteString(recoveryUser))
	cfg.Add(opts.Target, "group_replication_recovery_password", sqlutil.QuoteString(password))
	cfg.Add(opts.Target, "group_replication_exit_state_action", sqlutil.QuoteString("READ_ONLY"))
	if opts.MemberWeight > 0 {
		cfg.Add(opts.Target, "group_replication_member_weight", fmt.Sprintf("%d", opts.MemberWeight))
	}
	cfg.Add(opts.Target, "group_replication_autorejoin_tries", "3")
	if opts.Target.Version().SupportsCommunicationStackOption() {
		cfg.Add(opts.Target, "group_replication_communication_stack", sqlutil.QuoteString(string(cluster.CommStack)))
	}
	if _, err := applier.Apply(ctx, cfg, false); err != nil {
		return errs.Wrap(errs.DistributedRecoveryFailed, err, "configuring GR sysvars on %s", opts.Target.Endpoint())
	}

	// Step 9: insert Metadata row for the new instance.
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	mdInst := &metadata.Instance{
		ClusterID:  cluster.ClusterID,
		ServerUUID: opts.Target.ServerUUID(),
		ServerID:   opts.Target.ServerID(),
		Endpoint:   opts.Target.Endpoint(),
		GREndpoint: grLocalAddress,
		Label:      opts.Label,
		Role:       metadata.RoleHA,
	}
	if mdInst.Label == "" {
		mdInst.Label = opts.Target.Endpoint()
	}
	if err := tx.InsertInstance(mdInst); err != nil {
		tx.Rollback()
		return err
	}
	tracker.AddSQLUndo(&tx.Undo, opts.Primary.DB())

	// Step 10: start GR on target and wait for it to come ONLINE.
	if _, err := opts.Target.Exec(ctx, "START GROUP_REPLICATION"); err != nil {
		tx.Rollback()
		return errs.Wrap(errs.DistributedRecoveryFailed, err, "starting group replication on %s", opts.Target.Endpoint())
	}
	if _, err := waitForMemberState(ctx, opts.Primary, opts.Target.ServerUUID(), e.Cfg.GRStateTimeout, topologyview.MemberOnline); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	tracker.Cancel() // Metadata change is now committed; undo no longer needs to replay it on a later failure in this command.

	// Step 11: update group seeds on all other live members (best effort).
	seedCfg := applier.NewConfig(nil)
	newSeeds := joinAddresses(append(append([]string{}, seeds...), grLocalAddress))
	for _, m := range view.OnlineMembers() {
		if m.Metadata == nil || m.ServerUUID == opts.Target.ServerUUID() {
			continue
		}
		// Caller is expected to supply connected Instance handles per
		// member via a registry; this engine operates on whichever
		// Instance it was handed (opts.Primary) for the seeds it can
		// reach directly, and best-effort skips the rest.
		if m.Endpoint == opts.Primary.Endpoint() {
			seedCfg.Add(opts.Primary, "group_replication_group_seeds", sqlutil.QuoteString(newSeeds))
		}
	}
	if _, err := applier.Apply(ctx, seedCfg, true); err != nil {
		return fmt.Errorf("updating group seeds: %w", err)
	}

	// Step 12: update auto_increment if now MULTI_PRIMARY or >= 7 members.
	if cluster.TopologyMode == metadata.MultiPrimary || len(view.Members)+1 >= 7 {
		aiCfg := applier.NewConfig(nil)
		aiCfg.Add(opts.Target, "auto_increment_increment", "7")
		aiCfg.Add(opts.Target, "auto_increment_offset", fmt.Sprintf("%d", (opts.Target.ServerID()%7)+1))
		if _, err := applier.Apply(ctx, aiCfg, true); err != nil {
			return fmt.Errorf("updating auto_increment on %s: %w", opts.Target.Endpoint(), err)
		}
	}

	succeeded = true
	return nil
}

// checkAddPreconditions implements spec.md §4.2 step 2: version floor, not
// already a member, server_id/server_uuid uniqueness in the Metadata.
func (e *Engine) checkAddPreconditions(ctx context.Context, view *topologyview.View, target *instance.Instance) error {
	if !target.Version().AtLeast(8, 0, 0) {
		return errs.New(errs.InvalidArg, "target %s is below the minimum supported server version", target.Endpoint())
	}
	for _, m := range view.Members {
		if m.ServerUUID == target.ServerUUID() {
			return errs.New(errs.InvalidArg, "target %s is already a member of the cluster", target.Endpoint())
		}
		if m.Metadata != nil && m.Metadata.ServerID == target.ServerID() {
			return errs.New(errs.InvalidServerID, "server_id %d collides with existing member %s", target.ServerID(), m.Endpoint)
		}
	}
	return nil
}

func (e *Engine) clusterAssumesGTIDComplete(ctx context.Context, cluster *metadata.Cluster) bool {
	raw, ok, err := e.Store.ClusterAttribute(ctx, cluster.ClusterID, metadata.AttrAssumeGTIDComplete)
	if err != nil || !ok {
		return false
	}
	return string(raw) == "true"
}

func joinAddresses(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}
