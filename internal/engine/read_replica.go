package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/channel"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
	"github.com/innodbcluster/admin-engine/internal/undo"
)

// AddReplicaInstanceOptions parameterizes addReplicaInstance (spec.md §4.7).
type AddReplicaInstanceOptions struct {
	ClusterName   string
	Primary       *instance.Instance
	Target        *instance.Instance
	Label         string
	Policy        metadata.ReplicationSourcesPolicy
	CustomSources []metadata.WeightedSource
}

// AddReplicaInstance wires together recovery, channel, and accounts to add
// a new Read-Replica following the Cluster via a managed async channel
// (spec.md §4.7, §3.2 invariant 7: a Read-Replica never appears as a GR
// member, and a CUSTOM source list may only reference existing non-replica
// instances of the same Cluster).
func (e *Engine) AddReplicaInstance(ctx context.Context, opts AddReplicaInstanceOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	for _, m := range view.Members {
		if m.ServerUUID == opts.Target.ServerUUID() {
			return errs.New(errs.InvalidArg, "%s is already a Group Replication member of this cluster", opts.Target.Endpoint())
		}
	}
	if opts.Policy == metadata.SourcesCustom {
		candidates := candidatesFromSources(view, opts.CustomSources)
		if err := channel.ValidateSources(opts.Target.Endpoint(), opts.Target.Version(), candidates); err != nil {
			return err
		}
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
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

	user := accounts.ReadReplicaAccountName(shortUUIDSuffix(opts.Target.ServerUUID()))
	password := uuid.NewString()
	creds := accounts.Credentials{User: user, Auth: accounts.Password, Password: password}
	if err := accounts.CreateRecoveryAccount(ctx, opts.Primary, creds, e.Cfg.AccountHostPattern, false, nil); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "creating channel account for %s", opts.Target.Endpoint())
	}
	tracker.Add(func(ctx context.Context) error {
		_, err := accounts.Drop(ctx, opts.Primary, user, e.Cfg.AccountHostPattern)
		return err
	})

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

	chOpts := channel.Options{
		Policy:        opts.Policy,
		CustomSources: opts.CustomSources,
		ConnectRetry:  3,
		RetryCount:    10,
	}
	plan, err := channel.BuildPlan(chOpts, primaryEndpoint, onlineSecondaries)
	if err != nil {
		return err
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	inst := &metadata.Instance{
		ClusterID:                cluster.ClusterID,
		ServerUUID:               opts.Target.ServerUUID(),
		ServerID:                 opts.Target.ServerID(),
		Endpoint:                 opts.Target.Endpoint(),
		Label:                    opts.Label,
		Role:                     metadata.RoleReadReplica,
		RecoveryAccountUser:      user,
		RecoveryAccountHost:      e.Cfg.AccountHostPattern,
		ReplicationSourcesPolicy: opts.Policy,
		ReadReplicaSources:       opts.CustomSources,
	}
	if err := tx.InsertInstance(inst); err != nil {
		tx.Rollback()
		return err
	}
	tracker.AddSQLUndo(&tx.Undo, opts.Primary.DB())
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := channel.Configure(ctx, opts.Target, plan, channel.Credentials{User: user, Password: password}, chOpts); err != nil {
		return err
	}

	tracker.Cancel()
	succeeded = true
	return nil
}

// candidatesFromSources resolves a CUSTOM source list against the live view
// so channel.ValidateSources can check reachability and role (spec.md §4.7
// "On validate_replication_sources"). Version is left zero, so
// ValidateSources does not compare versions for these candidates.
func candidatesFromSources(view *topologyview.View, sources []metadata.WeightedSource) []channel.Candidate {
	byEndpoint := make(map[string]topologyview.Member, len(view.Members))
	for _, m := range view.Members {
		byEndpoint[m.Endpoint] = m
	}

	candidates := make([]channel.Candidate, 0, len(sources))
	for _, src := range sources {
		m, ok := byEndpoint[src.Endpoint]
		if !ok {
			candidates = append(candidates, channel.Candidate{Endpoint: src.Endpoint, Online: false})
			continue
		}
		candidates = append(candidates, channel.Candidate{
			Endpoint:      m.Endpoint,
			Online:        m.State == topologyview.MemberOnline,
			IsPrimary:     view.Primary != nil && m.ServerUUID == view.Primary.ServerUUID,
			IsReadReplica: m.Metadata != nil && m.Metadata.Role == metadata.RoleReadReplica,
		})
	}
	return candidates
}
