package engine

import (
	"context"

	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/topologymgr"
)

// FenceOptions parameterizes fenceWrites/unfenceWrites/fenceAllTraffic
// (spec.md §6.1).
type FenceOptions struct {
	ClusterName string
	Primary     *instance.Instance
}

// FenceWrites sets super_read_only on opts.Primary, blocking writes there
// while leaving reads available (spec.md §6.5). Other members are not
// changed.
func (e *Engine) FenceWrites(ctx context.Context, opts FenceOptions) error {
	_, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}
	mgr := &topologymgr.GRTopologyManager{Fenced: false}
	if err := mgr.ValidateFence(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	cfg := applier.NewConfig(nil)
	cfg.Add(opts.Primary, "super_read_only", "1")
	_, err = applier.Apply(ctx, cfg, true)
	return err
}

// UnfenceWrites clears super_read_only, restoring write availability.
func (e *Engine) UnfenceWrites(ctx context.Context, opts FenceOptions) error {
	_, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}
	mgr := &topologymgr.GRTopologyManager{Fenced: true}
	if err := mgr.ValidateUnfence(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	cfg := applier.NewConfig(nil)
	cfg.Add(opts.Primary, "super_read_only", "0")
	_, err = applier.Apply(ctx, cfg, true)
	return err
}

// FenceAllTraffic sets offline_mode in addition to super_read_only,
// blocking all client traffic including reads (spec.md §6.5).
func (e *Engine) FenceAllTraffic(ctx context.Context, opts FenceOptions) error {
	_, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}
	mgr := &topologymgr.GRTopologyManager{Fenced: false}
	if err := mgr.ValidateFence(view); err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	cfg := applier.NewConfig(nil)
	cfg.Add(opts.Primary, "super_read_only", "1")
	cfg.Add(opts.Primary, "offline_mode", "1")
	_, err = applier.Apply(ctx, cfg, true)
	return err
}
