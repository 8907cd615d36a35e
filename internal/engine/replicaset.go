package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
	"github.com/innodbcluster/admin-engine/internal/topologymgr"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
	"github.com/innodbcluster/admin-engine/internal/undo"
)

// loadReplicaSetView resolves a ReplicaSet's Metadata row by name and
// builds its live async topology view by probing every reachable member
// directly (spec.md §3.1 ReplicaSet, §207). Unlike loadView's single
// group_replication_group_name read, a ReplicaSet has no GR membership
// table to ask, so the caller supplies every connection it could open
// (topologyview.BuildAsync).
func (e *Engine) loadReplicaSetView(ctx context.Context, clusterName string, reachable map[string]*instance.Instance) (*metadata.Cluster, *topologyview.View, error) {
	cluster, err := e.Store.GetClusterByName(ctx, clusterName)
	if err != nil {
		if err == metadata.ErrNotFound {
			return nil, nil, errs.Wrap(errs.MetadataMissing, err, "no replicaset %q registered in the metadata", clusterName)
		}
		return nil, nil, err
	}
	if cluster.TopologyMode != "" {
		return nil, nil, errs.New(errs.UnsupportedClusterType, "%q is a Group Replication cluster, not a replicaset", clusterName)
	}
	view, err := topologyview.BuildAsync(ctx, e.Store, cluster, reachable)
	if err != nil {
		return nil, nil, fmt.Errorf("building replicaset topology view: %w", err)
	}
	return cluster, view, nil
}

// AddInstanceToReplicaSetOptions parameterizes the ReplicaSet flavor of
// addInstance (spec.md §207).
type AddInstanceToReplicaSetOptions struct {
	ClusterName string
	Target      *instance.Instance
	Reachable   map[string]*instance.Instance // endpoint -> connection for every other known member
	Label       string
}

// AddInstanceToReplicaSet wires a new SECONDARY into a ReplicaSet over
// plain async replication: no Group Replication sysvars, no distributed
// recovery, just a recovery account plus CHANGE REPLICATION SOURCE TO
// against the current PRIMARY (spec.md §3.1 ReplicaSet).
func (e *Engine) AddInstanceToReplicaSet(ctx context.Context, opts AddInstanceToReplicaSetOptions) error {
	cluster, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return err
	}

	mgr := &topologymgr.StarAsyncTopologyManager{}
	if err := mgr.ValidateAdd(view); err != nil {
		return err
	}
	primary, ok := opts.Reachable[view.Primary.Endpoint]
	if !ok {
		return errs.New(errs.PrimaryUnavailable, "no connection open to primary %s", view.Primary.Endpoint)
	}

	if err := e.checkAddPreconditions(ctx, view, opts.Target); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, primary, opts.ClusterName, true,
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

	recoveryUser := accounts.RecoveryAccountName(opts.Target.ServerID())
	password := uuid.NewString()
	creds := accounts.Credentials{User: recoveryUser, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, primary, creds, e.Cfg.AccountHostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "creating replication account for %s", opts.Target.Endpoint())
	}
	tracker.Add(func(ctx context.Context) error {
		_, err := accounts.Drop(ctx, primary, recoveryUser, e.Cfg.AccountHostPattern)
		return err
	})

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	mdInst := &metadata.Instance{
		ClusterID:  cluster.ClusterID,
		ServerUUID: opts.Target.ServerUUID(),
		ServerID:   opts.Target.ServerID(),
		Endpoint:   opts.Target.Endpoint(),
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
	tracker.AddSQLUndo(&tx.Undo, primary.DB())

	if err := startReplicaSetReplication(ctx, opts.Target, primary.Endpoint(), creds); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := waitForReplicaSetMemberHealthy(ctx, opts.Target, e.Cfg.GRStateTimeout); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	tracker.Cancel()
	succeeded = true
	return nil
}

// RejoinInstanceInReplicaSetOptions parameterizes the ReplicaSet flavor of
// rejoinInstance (spec.md §207).
type RejoinInstanceInReplicaSetOptions struct {
	ClusterName string
	Target      *instance.Instance
	Reachable   map[string]*instance.Instance
}

// RejoinInstanceInReplicaSet restarts replication on a SECONDARY that
// fell off the ReplicaSet. Its recovery account on the primary is created
// if missing and given a freshly generated password, which the restarted
// channel then uses (spec.md §3.1 ReplicaSet, mirroring RejoinInstance's
// rejoinHA path for GR members).
func (e *Engine) RejoinInstanceInReplicaSet(ctx context.Context, opts RejoinInstanceInReplicaSetOptions) error {
	_, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return err
	}

	mgr := &topologymgr.StarAsyncTopologyManager{}
	if err := mgr.ValidateRejoin(view); err != nil {
		return err
	}
	primary, ok := opts.Reachable[view.Primary.Endpoint]
	if !ok {
		return errs.New(errs.PrimaryUnavailable, "no connection open to primary %s", view.Primary.Endpoint)
	}

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

	sess, err := e.acquireClusterLock(ctx, primary, opts.ClusterName, false,
		locks.InstanceExclusive(opts.ClusterName, opts.Target.Endpoint()))
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	recoveryUser := accounts.RecoveryAccountName(mdInst.ServerID)
	password := uuid.NewString()
	creds := accounts.Credentials{User: recoveryUser, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, primary, creds, e.Cfg.AccountHostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "recreating replication account for %s", opts.Target.Endpoint())
	}
	// CREATE USER IF NOT EXISTS keeps an existing account's old password;
	// set the new one so the channel configured below can authenticate.
	alter := fmt.Sprintf("ALTER USER %s IDENTIFIED BY %s", sqlutil.AccountAtHost(recoveryUser, e.Cfg.AccountHostPattern), sqlutil.QuoteString(password))
	if _, err := primary.Exec(ctx, alter); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "setting replication account password for %s", opts.Target.Endpoint())
	}
	if err := startReplicaSetReplication(ctx, opts.Target, primary.Endpoint(), creds); err != nil {
		return err
	}
	_, err = waitForReplicaSetMemberHealthy(ctx, opts.Target, e.Cfg.GRStateTimeout)
	return err
}

// RemoveInstanceFromReplicaSetOptions parameterizes the ReplicaSet flavor
// of removeInstance (spec.md §207).
type RemoveInstanceFromReplicaSetOptions struct {
	ClusterName string
	Reachable   map[string]*instance.Instance
	Target      *instance.Instance // nil when the target is unreachable and Force is set
	Endpoint    string              // used to locate the Metadata row when Target is nil
	Force       bool
}

// RemoveInstanceFromReplicaSet drops a SECONDARY from the ReplicaSet.
// Removing the current PRIMARY is rejected outright: callers must promote
// a new primary first via setPrimaryInstance or forcePrimaryInstance
// (spec.md §3.1 ReplicaSet).
func (e *Engine) RemoveInstanceFromReplicaSet(ctx context.Context, opts RemoveInstanceFromReplicaSetOptions) error {
	_, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return err
	}

	mgr := &topologymgr.StarAsyncTopologyManager{}
	if err := mgr.ValidateRemove(view, opts.Force); err != nil {
		return err
	}

	endpoint := opts.Endpoint
	if opts.Target != nil {
		endpoint = opts.Target.Endpoint()
	}
	if view.Primary != nil && view.Primary.Endpoint == endpoint {
		return errs.New(errs.InvalidArg, "cannot remove the current primary; promote a new one first")
	}
	var primary *instance.Instance
	if view.Primary != nil {
		primary = opts.Reachable[view.Primary.Endpoint]
	}
	if primary == nil {
		return errs.New(errs.PrimaryUnavailable, "no connection open to the replicaset's primary")
	}

	sess, err := e.acquireClusterLock(ctx, primary, opts.ClusterName, true,
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
		if err := stopReplicaSetReplication(ctx, opts.Target); err != nil && !opts.Force {
			return err
		}
		if _, err := accounts.Drop(ctx, primary, accounts.RecoveryAccountName(target.ServerID), "%"); err != nil && !opts.Force {
			return fmt.Errorf("dropping account for %s: %w", endpoint, err)
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
	return tx.Commit()
}

// SetPrimaryInstanceReplicaSetOptions parameterizes the ReplicaSet flavor
// of setPrimaryInstance (spec.md §207; named distinctly from primary.go's
// SetPrimaryInstance, which drives GR's election UDF and does not apply
// here).
type SetPrimaryInstanceReplicaSetOptions struct {
	ClusterName        string
	Reachable          map[string]*instance.Instance
	NewPrimaryEndpoint string
}

// SetPrimaryInstanceReplicaSet promotes an ONLINE SECONDARY to PRIMARY: the
// old primary is synced and demoted to super_read_only, the new primary is
// caught up and promoted, and every other reachable member is repointed at
// it. Replication accounts need no extra propagation since CREATE
// USER/GRANT on the old primary already replicated to every SECONDARY,
// including the one now taking over (spec.md §3.1 ReplicaSet).
func (e *Engine) SetPrimaryInstanceReplicaSet(ctx context.Context, opts SetPrimaryInstanceReplicaSetOptions) error {
	_, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return err
	}

	mgr := &topologymgr.StarAsyncTopologyManager{}
	if err := mgr.ValidateSwitchPrimary(view); err != nil {
		return err
	}

	oldPrimary := opts.Reachable[view.Primary.Endpoint]
	newPrimary, ok := opts.Reachable[opts.NewPrimaryEndpoint]
	if !ok {
		return errs.New(errs.InvalidArg, "no connection open to %s", opts.NewPrimaryEndpoint)
	}
	var newMember *topologyview.Member
	for i := range view.Members {
		if view.Members[i].Endpoint == opts.NewPrimaryEndpoint {
			newMember = &view.Members[i]
		}
	}
	if newMember == nil || newMember.State != topologyview.MemberOnline {
		return errs.New(errs.GroupMemberNotOnline, "%s is not an ONLINE secondary", opts.NewPrimaryEndpoint)
	}

	sess, err := e.acquireClusterLock(ctx, oldPrimary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	if err := syncReplicaSetMember(ctx, oldPrimary, newPrimary, e.Cfg.GTIDSyncTimeout); err != nil {
		return err
	}

	if err := stopReplicaSetReplication(ctx, newPrimary); err != nil {
		return err
	}
	if _, err := newPrimary.Exec(ctx, "SET GLOBAL super_read_only = 0"); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "disabling super_read_only on %s", opts.NewPrimaryEndpoint)
	}
	if _, err := oldPrimary.Exec(ctx, "SET GLOBAL super_read_only = 1"); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "enabling super_read_only on demoted primary %s", view.Primary.Endpoint)
	}

	for _, m := range view.Members {
		if m.Endpoint == opts.NewPrimaryEndpoint || m.Endpoint == view.Primary.Endpoint {
			continue
		}
		conn, ok := opts.Reachable[m.Endpoint]
		if !ok {
			continue // best effort: unreachable secondaries repoint on their next rejoinInstance
		}
		if err := repointReplicaSetSecondary(ctx, conn, newPrimary.Endpoint()); err != nil {
			return err
		}
	}

	return demoteReplicaSetPrimary(ctx, oldPrimary, newPrimary, e.Cfg.AccountHostPattern)
}

// ForcePrimaryInstanceReplicaSetOptions parameterizes the ReplicaSet
// flavor of forcePrimaryInstance (spec.md §207).
type ForcePrimaryInstanceReplicaSetOptions struct {
	ClusterName        string
	Reachable          map[string]*instance.Instance // the unreachable old primary is simply absent from this map
	NewPrimaryEndpoint string                          // optional; empty lets the engine pick the most caught-up candidate
}

// ForcePrimaryInstanceReplicaSet promotes a SECONDARY when the current
// PRIMARY cannot be reached at all (spec.md §4.3 "ClusterSet failover",
// applied to a single ReplicaSet): unlike setPrimaryInstance there is no
// old primary to sync against or demote.
func (e *Engine) ForcePrimaryInstanceReplicaSet(ctx context.Context, opts ForcePrimaryInstanceReplicaSetOptions) (string, error) {
	_, view, err := e.loadReplicaSetView(ctx, opts.ClusterName, opts.Reachable)
	if err != nil {
		return "", err
	}

	mgr := &topologymgr.StarAsyncTopologyManager{}
	if err := mgr.ValidateForcePrimary(view); err != nil {
		return "", err
	}

	winnerEndpoint, err := pickReplicaSetPrimaryCandidate(ctx, view, opts.Reachable, opts.NewPrimaryEndpoint)
	if err != nil {
		return "", err
	}
	winner := opts.Reachable[winnerEndpoint]

	sess, err := e.acquireClusterLock(ctx, winner, opts.ClusterName, true)
	if err != nil {
		return "", err
	}
	defer sess.Release(ctx)

	if err := stopReplicaSetReplication(ctx, winner); err != nil {
		return "", err
	}
	if _, err := winner.Exec(ctx, "SET GLOBAL super_read_only = 0"); err != nil {
		return "", errs.Wrap(errs.TargetQueryError, err, "disabling super_read_only on %s", winnerEndpoint)
	}

	for _, m := range view.Members {
		if m.Endpoint == winnerEndpoint {
			continue
		}
		conn, ok := opts.Reachable[m.Endpoint]
		if !ok {
			continue // best effort: unreachable members repoint on their next rejoinInstance
		}
		if err := repointReplicaSetSecondary(ctx, conn, winner.Endpoint()); err != nil {
			return "", err
		}
	}
	return winnerEndpoint, nil
}

// pickReplicaSetPrimaryCandidate resolves the promotion target: the
// caller's hint if given and reachable/online, otherwise the reachable
// ONLINE secondary whose GTID_EXECUTED is not missing from any other
// candidate's (the most caught-up one).
func pickReplicaSetPrimaryCandidate(ctx context.Context, view *topologyview.View, reachable map[string]*instance.Instance, hint string) (string, error) {
	type candidate struct {
		endpoint string
		gtid     string
	}
	var candidates []candidate
	for _, m := range view.Members {
		if m.State != topologyview.MemberOnline || m.Role != topologyview.RoleSecondary {
			continue
		}
		conn, ok := reachable[m.Endpoint]
		if !ok {
			continue
		}
		var gtid string
		if err := conn.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&gtid); err != nil {
			continue
		}
		candidates = append(candidates, candidate{endpoint: m.Endpoint, gtid: gtid})
	}
	if len(candidates) == 0 {
		return "", errs.New(errs.GroupHasNoQuorum, "no reachable ONLINE secondary to promote")
	}

	if hint != "" {
		for _, c := range candidates {
			if c.endpoint == hint {
				return hint, nil
			}
		}
		return "", errs.New(errs.InvalidArg, "%s is not a reachable ONLINE secondary", hint)
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		var missingFromWinner string
		conn := reachable[winner.endpoint]
		if err := conn.QueryRow(ctx, sqlutil.GTIDSubtract(c.gtid, winner.gtid)).Scan(&missingFromWinner); err == nil && missingFromWinner != "" {
			winner = c
		}
	}
	return winner.endpoint, nil
}

func startReplicaSetReplication(ctx context.Context, target *instance.Instance, sourceEndpoint string, creds accounts.Credentials) error {
	host, port, err := splitHostPort(sourceEndpoint)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		"CHANGE REPLICATION SOURCE TO SOURCE_HOST=%s, SOURCE_PORT=%d, SOURCE_USER=%s, SOURCE_PASSWORD=%s, "+
			"GET_SOURCE_PUBLIC_KEY=1 FOR CHANNEL %s",
		sqlutil.QuoteString(host), port, sqlutil.QuoteString(creds.User), sqlutil.QuoteString(creds.Password),
		sqlutil.QuoteString(topologyview.ReplicaSetChannelName))
	if _, err := target.Exec(ctx, stmt); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "configuring replication source on %s", target.Endpoint())
	}
	return startReplicaSetChannel(ctx, target)
}

// repointReplicaSetSecondary changes only SOURCE_HOST/SOURCE_PORT,
// retaining the channel's already-configured credentials.
func repointReplicaSetSecondary(ctx context.Context, target *instance.Instance, newSourceEndpoint string) error {
	host, port, err := splitHostPort(newSourceEndpoint)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("CHANGE REPLICATION SOURCE TO SOURCE_HOST=%s, SOURCE_PORT=%d FOR CHANNEL %s",
		sqlutil.QuoteString(host), port, sqlutil.QuoteString(topologyview.ReplicaSetChannelName))
	if _, err := target.Exec(ctx, stmt); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "repointing %s to new source %s", target.Endpoint(), newSourceEndpoint)
	}
	return startReplicaSetChannel(ctx, target)
}

// demoteReplicaSetPrimary gives the just-demoted former primary a fresh
// recovery account on the new primary and starts it replicating, since it
// never had a channel configured while it was itself the source.
func demoteReplicaSetPrimary(ctx context.Context, oldPrimary, newPrimary *instance.Instance, hostPattern string) error {
	recoveryUser := accounts.RecoveryAccountName(oldPrimary.ServerID())
	password := uuid.NewString()
	creds := accounts.Credentials{User: recoveryUser, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, newPrimary, creds, hostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "creating replication account for demoted primary %s", oldPrimary.Endpoint())
	}
	return startReplicaSetReplication(ctx, oldPrimary, newPrimary.Endpoint(), creds)
}

func startReplicaSetChannel(ctx context.Context, target *instance.Instance) error {
	stmt := fmt.Sprintf("START REPLICA FOR CHANNEL %s", sqlutil.QuoteString(topologyview.ReplicaSetChannelName))
	if _, err := target.Exec(ctx, stmt); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "starting replication on %s", target.Endpoint())
	}
	return nil
}

func stopReplicaSetReplication(ctx context.Context, target *instance.Instance) error {
	if _, err := target.Exec(ctx, fmt.Sprintf("STOP REPLICA FOR CHANNEL %s", sqlutil.QuoteString(topologyview.ReplicaSetChannelName))); err != nil {
		return errs.Wrap(errs.ReplicationError, err, "stopping replication on %s", target.Endpoint())
	}
	return nil
}

// syncReplicaSetMember waits for target to catch up with source's
// executed GTID set (spec.md §4.3 "sync transactions from primary with a
// timeout", the same rule removeInstance's syncAndStopGR applies for GR).
func syncReplicaSetMember(ctx context.Context, source, target *instance.Instance, timeout time.Duration) error {
	var sourceGTID string
	if err := source.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&sourceGTID); err != nil {
		return fmt.Errorf("reading source gtid_executed: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var dummy int
	if err := target.QueryRow(waitCtx, fmt.Sprintf("SELECT WAIT_FOR_EXECUTED_GTID_SET(%s, %d)",
		sqlutil.QuoteString(sourceGTID), int(timeout.Seconds()))).Scan(&dummy); err != nil {
		return errs.Wrap(errs.GTIDSyncTimeout, err, "timed out waiting for %s to catch up with %s", target.Endpoint(), source.Endpoint())
	}
	return nil
}

func splitHostPort(endpoint string) (string, int, error) {
	idx := strings.Index(endpoint, ":")
	if idx <= 0 {
		return "", 0, errs.New(errs.InvalidArg, "malformed endpoint %q", endpoint)
	}
	port, err := strconv.Atoi(endpoint[idx+1:])
	if err != nil {
		return "", 0, errs.New(errs.InvalidArg, "malformed endpoint %q", endpoint)
	}
	return endpoint[:idx], port, nil
}

// waitForReplicaSetMemberHealthy polls the managed channel's IO/SQL
// applier threads until both report ON or the deadline passes (spec.md §5
// "observe effect before the next step", applied to async channel health
// in place of GR's MEMBER_STATE poll).
func waitForReplicaSetMemberHealthy(ctx context.Context, target *instance.Instance, timeout time.Duration) (topologyview.MemberState, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var ioState, applierState string
		ioRow := target.QueryRow(ctx, fmt.Sprintf(
			`SELECT SERVICE_STATE FROM performance_schema.replication_connection_status WHERE CHANNEL_NAME = %s`,
			sqlutil.QuoteString(topologyview.ReplicaSetChannelName)))
		ioErr := ioRow.Scan(&ioState)
		applierRow := target.QueryRow(ctx, fmt.Sprintf(
			`SELECT SERVICE_STATE FROM performance_schema.replication_applier_status WHERE CHANNEL_NAME = %s`,
			sqlutil.QuoteString(topologyview.ReplicaSetChannelName)))
		applierErr := applierRow.Scan(&applierState)

		if ioErr == nil && applierErr == nil && ioState == "ON" && applierState == "ON" {
			return topologyview.MemberOnline, nil
		}
		select {
		case <-ctx.Done():
			return "", errs.New(errs.GTIDSyncTimeout, "timed out waiting for %s to come ONLINE", target.Endpoint())
		case <-ticker.C:
		}
	}
}

// StatusReplicaSet implements status() for a ReplicaSet (spec.md §6.1,
// §207): Describe() is already Metadata-only and topology-agnostic and is
// reused unchanged for describe().
func (e *Engine) StatusReplicaSet(ctx context.Context, clusterName string, reachable map[string]*instance.Instance) (*StatusReport, error) {
	cluster, view, err := e.loadReplicaSetView(ctx, clusterName, reachable)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		ClusterName:  cluster.ClusterName,
		TopologyMode: cluster.TopologyMode,
		Availability: view.Availability(),
	}
	if view.Primary != nil {
		report.Primary = view.Primary.Endpoint
	}
	for _, m := range view.Members {
		ms := MemberStatus{Endpoint: m.Endpoint, UUID: m.ServerUUID, Role: m.Role, State: m.State}
		if m.Metadata != nil {
			ms.Label = m.Metadata.Label
			ms.Hidden = m.Metadata.Hidden
		}
		report.Members = append(report.Members, ms)
	}
	return report, nil
}
