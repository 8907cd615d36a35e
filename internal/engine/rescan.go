package engine

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/applier"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/locks"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// RescanOptions parameterizes rescan (spec.md §4.10).
type RescanOptions struct {
	ClusterName   string
	Primary       *instance.Instance
	AutoAdd       bool
	AutoRemove    bool
	AddList       []string // endpoints to add even without AutoAdd
	RemoveList    []string // endpoints to remove even without AutoRemove
	UpdateViewChangeUUID bool
}

// RescanResult reports the reconciliation decisions rescan made (spec.md
// §4.10 step 1's three sets, plus the repair actions taken).
type RescanResult struct {
	NewlyDiscovered []string
	Unavailable     []string
	Updated         []string
	Added           []string
	Removed         []string
}

// Rescan implements the Metadata reconciliation of spec.md §4.10.
func (e *Engine) Rescan(ctx context.Context, opts RescanOptions) (*RescanResult, error) {
	cluster, view, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return nil, err
	}

	mgr := managerFor(cluster, false)
	if err := mgr.ValidateRescan(view); err != nil {
		return nil, err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return nil, err
	}
	defer sess.Release(ctx)

	result := &RescanResult{}

	// Step 1: diff live GR membership against the Metadata by UUID/endpoint.
	byUUID := make(map[string]bool)
	for _, m := range view.Members {
		byUUID[m.ServerUUID] = true
		if m.Metadata == nil {
			result.NewlyDiscovered = append(result.NewlyDiscovered, m.Endpoint)
		} else if m.Metadata.Endpoint != m.Endpoint {
			result.Updated = append(result.Updated, m.Endpoint)
		}
	}
	mdInstances, err := e.Store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, mi := range mdInstances {
		if !byUUID[mi.ServerUUID] {
			result.Unavailable = append(result.Unavailable, mi.Endpoint)
		}
	}

	// Step 2: apply add/remove decisions per option flags.
	shouldAdd := func(endpoint string) bool {
		if opts.AutoAdd {
			return true
		}
		for _, ep := range opts.AddList {
			if ep == endpoint {
				return true
			}
		}
		return false
	}
	shouldRemove := func(endpoint string) bool {
		if opts.AutoRemove {
			return true
		}
		for _, ep := range opts.RemoveList {
			if ep == endpoint {
				return true
			}
		}
		return false
	}

	for _, ep := range result.NewlyDiscovered {
		if !shouldAdd(ep) {
			continue
		}
		for _, m := range view.Members {
			if m.Endpoint != ep {
				continue
			}
			tx, err := e.Store.Begin(ctx)
			if err != nil {
				return result, err
			}
			inst := &metadata.Instance{
				ClusterID:  cluster.ClusterID,
				ServerUUID: m.ServerUUID,
				Endpoint:   m.Endpoint,
				Role:       metadata.RoleHA,
				Label:      m.Endpoint,
			}
			if err := tx.InsertInstance(inst); err != nil {
				tx.Rollback()
				return result, err
			}
			if err := tx.Commit(); err != nil {
				return result, err
			}
			result.Added = append(result.Added, ep)
		}
	}
	for _, ep := range result.Unavailable {
		if !shouldRemove(ep) {
			continue
		}
		var target *metadata.Instance
		for _, mi := range mdInstances {
			if mi.Endpoint == ep {
				target = mi
				break
			}
		}
		if target == nil {
			continue
		}
		tx, err := e.Store.Begin(ctx)
		if err != nil {
			return result, err
		}
		if err := tx.DeleteInstance(target); err != nil {
			tx.Rollback()
			return result, err
		}
		if err := tx.Commit(); err != nil {
			return result, err
		}
		result.Removed = append(result.Removed, ep)
	}

	// Step 3: detect topology-mode mismatch vs live GR primary-election state.
	liveMode, err := e.detectTopologyMode(ctx, opts.Primary)
	if err == nil && liveMode != cluster.TopologyMode {
		if err := e.setClusterTopologyMode(ctx, cluster, liveMode); err != nil {
			return result, err
		}
	}

	// Step 4: ensure view_change_uuid is set and persisted on 8.0.27+ members.
	if opts.UpdateViewChangeUUID && cluster.ViewChangeUUID != "" {
		cfg := applier.NewConfig(nil)
		for _, m := range view.OnlineMembers() {
			if m.Endpoint != opts.Primary.Endpoint() {
				continue // only members we hold a live handle to can be configured here
			}
			if !opts.Primary.Version().SupportsViewChangeUUID() {
				continue
			}
			cfg.Add(opts.Primary, "group_replication_view_change_uuid", sqlutil.QuoteString(cluster.ViewChangeUUID))
		}
		if _, err := applier.Apply(ctx, cfg, true); err != nil {
			return result, fmt.Errorf("aligning view_change_uuid: %w", err)
		}
	}

	// Step 5: ensure transaction_size_limit matches the Metadata value.
	if raw, ok, _ := e.Store.ClusterAttribute(ctx, cluster.ClusterID, metadata.AttrTransactionSizeLimit); ok {
		cfg := applier.NewConfig(nil)
		cfg.Add(opts.Primary, "group_replication_transaction_size_limit", string(raw))
		if _, err := applier.Apply(ctx, cfg, true); err != nil {
			return result, fmt.Errorf("aligning transaction_size_limit: %w", err)
		}
	}

	// Step 6: ensure recovery account names match and drop unused accounts.
	for _, mi := range mdInstances {
		expected := accounts.RecoveryAccountName(mi.ServerID)
		if mi.RecoveryAccountUser != "" && mi.RecoveryAccountUser != expected {
			accounts.Drop(ctx, opts.Primary, mi.RecoveryAccountUser, "%")
		}
	}

	return result, nil
}

// detectTopologyMode reads GR's live primary-election mode sysvar.
func (e *Engine) detectTopologyMode(ctx context.Context, on *instance.Instance) (metadata.TopologyMode, error) {
	mode, err := on.GetGlobalVariable(ctx, "group_replication_single_primary_mode")
	if err != nil {
		return "", err
	}
	if mode == "1" || mode == "ON" {
		return metadata.SinglePrimary, nil
	}
	return metadata.MultiPrimary, nil
}

func (e *Engine) setClusterTopologyMode(ctx context.Context, cluster *metadata.Cluster, mode metadata.TopologyMode) error {
	q := fmt.Sprintf("UPDATE %s.clusters SET topology_type = %s WHERE cluster_id = %d",
		metadata.SchemaName, sqlutil.QuoteString(string(mode)), cluster.ClusterID)
	if _, err := e.Store.Primary().Exec(ctx, q); err != nil {
		return fmt.Errorf("updating cluster topology_type: %w", err)
	}
	cluster.TopologyMode = mode
	return nil
}
