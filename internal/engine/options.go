package engine

import (
	"context"
	"encoding/json"

	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// optionSysvar maps the validated cluster/instance option key set (spec.md
// §6.1 setOption/setInstanceOption) onto the GR sysvar each one drives.
var optionSysvar = map[string]string{
	"exitStateAction":      "group_replication_exit_state_action",
	"memberWeight":         "group_replication_member_weight",
	"autoRejoinTries":      "group_replication_autorejoin_tries",
	"consistency":          "group_replication_consistency",
	"expelTimeout":         "group_replication_member_expel_timeout",
	"transactionSizeLimit": "group_replication_transaction_size_limit",
}

// clusterOnlyAttributes are options stored only in the Metadata, with no
// direct GR sysvar (they gate engine decisions rather than configure GR).
var clusterOnlyAttributes = map[string]string{
	"disableClone":           metadata.AttrDisableClone,
	"replicationAllowedHost": metadata.AttrReplicationAllowedHost,
}

// SetOptionOptions parameterizes setOption (spec.md §6.1, cluster-wide).
type SetOptionOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Targets     map[string]*instance.Instance // endpoint -> connection, every reachable member
	Name        string
	Value       string
}

// SetOption implements setOption: apply a validated option across every
// reachable member and persist it as a cluster attribute (spec.md §6.1,
// grounded on original_source's cluster/set_option.cc + cluster_set_option.cc).
func (e *Engine) SetOption(ctx context.Context, opts SetOptionOptions) error {
	cluster, _, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	if attrKey, ok := clusterOnlyAttributes[opts.Name]; ok {
		return e.setClusterAttribute(ctx, cluster, attrKey, opts.Value)
	}

	sysvar, ok := optionSysvar[opts.Name]
	if !ok {
		return errs.New(errs.InvalidArg, "unknown cluster option %q", opts.Name)
	}

	cfg := applier.NewConfig(nil)
	for _, target := range opts.Targets {
		cfg.Add(target, sysvar, sqlutil.QuoteString(opts.Value))
	}
	if _, err := applier.Apply(ctx, cfg, false); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "applying %s across the cluster", opts.Name)
	}
	return e.setClusterAttribute(ctx, cluster, "option_"+opts.Name, opts.Value)
}

// SetInstanceOptionOptions parameterizes setInstanceOption (spec.md §6.1,
// per-instance).
type SetInstanceOptionOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Target      *instance.Instance
	Name        string
	Value       string
}

// SetInstanceOption implements setInstanceOption: apply a validated option
// to one member and persist it as a per-instance attribute.
func (e *Engine) SetInstanceOption(ctx context.Context, opts SetInstanceOptionOptions) error {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
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

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, false,
		locks.InstanceExclusive(opts.ClusterName, opts.Target.Endpoint()))
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	sysvar, ok := optionSysvar[opts.Name]
	if !ok {
		return errs.New(errs.InvalidArg, "unknown instance option %q", opts.Name)
	}

	cfg := applier.NewConfig(nil)
	cfg.Add(opts.Target, sysvar, sqlutil.QuoteString(opts.Value))
	if _, err := applier.Apply(ctx, cfg, false); err != nil {
		return errs.Wrap(errs.TargetQueryError, err, "applying %s on %s", opts.Name, opts.Target.Endpoint())
	}

	raw, priorExisted, _ := e.Store.InstanceAttribute(ctx, cluster.ClusterID, mdInst.ServerUUID, "option_"+opts.Name)
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	newValue, _ := json.Marshal(opts.Value)
	if err := tx.SetInstanceAttribute(cluster.ClusterID, mdInst.ServerUUID, "option_"+opts.Name, newValue, raw, priorExisted); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ClusterOptions reports, for each member passed to Options, the live value
// of every option that maps to a GR sysvar (spec.md §6.1 "options").
// Cluster-level options stored as cluster attributes are not included.
type ClusterOptions struct {
	ClusterName string
	PerInstance map[string]map[string]string // endpoint -> option -> value
}

// Options implements the "options" read (spec.md §6.1): live sysvar values
// per reachable member, keyed by the same option names setOption accepts.
func (e *Engine) Options(ctx context.Context, clusterName string, targets map[string]*instance.Instance) (*ClusterOptions, error) {
	out := &ClusterOptions{ClusterName: clusterName, PerInstance: map[string]map[string]string{}}
	for endpoint, target := range targets {
		values := map[string]string{}
		for name, sysvar := range optionSysvar {
			v, err := target.GetGlobalVariable(ctx, sysvar)
			if err != nil {
				continue
			}
			values[name] = v
		}
		out.PerInstance[endpoint] = values
	}
	return out, nil
}

func (e *Engine) setClusterAttribute(ctx context.Context, cluster *metadata.Cluster, key, value string) error {
	raw, priorExisted, _ := e.Store.ClusterAttribute(ctx, cluster.ClusterID, key)
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	newValue, _ := json.Marshal(value)
	if err := tx.SetClusterAttribute(cluster.ClusterID, key, newValue, raw, priorExisted); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
