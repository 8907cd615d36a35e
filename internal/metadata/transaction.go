package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// UndoLog is a structured inverse-DML log: each recorded statement carries
// its own inverse, so the transaction's pre-state can be regenerated by
// executing the inverses in reverse order (spec.md §4.5, §4.9
// "Sql_undo_list"). It is deliberately independent of *sql.Tx so it can be
// replayed later, on a possibly different connection, during undo.
type UndoLog struct {
	inverses []string
}

// Add records the inverse of a statement just executed.
func (u *UndoLog) Add(inverseSQL string) {
	u.inverses = append(u.inverses, inverseSQL)
}

// Empty reports whether any inverse statements were recorded.
func (u *UndoLog) Empty() bool { return len(u.inverses) == 0 }

// Execute runs every recorded inverse, most-recent-first, inside a single
// local transaction on the given connection. Individual statement failures
// are collected but do not stop the remaining inverses from running,
// mirroring the undo tracker's "swallow individual failures" policy
// (spec.md §4.9) one level down, at the SQL-statement granularity.
func (u *UndoLog) Execute(ctx context.Context, db *sql.DB) error {
	if u.Empty() {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting metadata undo transaction: %w", err)
	}

	var firstErr error
	for idx := len(u.inverses) - 1; idx >= 0; idx-- {
		if _, err := tx.ExecContext(ctx, u.inverses[idx]); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("replaying undo statement %d: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metadata undo transaction: %w", err)
	}
	return firstErr
}

// Transaction wraps a *sql.Tx against the Metadata schema together with the
// UndoLog accumulated during the transaction's lifetime (spec.md §4.5).
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	Undo   UndoLog
}

// Begin starts a Metadata transaction.
func (s *Store) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := s.primary.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting metadata transaction: %w", err)
	}
	return &Transaction{tx: tx, ctx: ctx}, nil
}

// Commit commits the Metadata transaction. The accumulated UndoLog remains
// valid after commit — callers (the undo tracker) keep it in case a later
// step in the same command fails and the whole command must undo.
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing metadata transaction: %w", err)
	}
	return nil
}

// Rollback aborts the Metadata transaction outright (used when a failure is
// detected before commit, with no need to regenerate already-committed
// state via UndoLog).
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// InsertInstance inserts a new instances row and records its deletion as
// the undo inverse (spec.md §4.2 step 9).
func (t *Transaction) InsertInstance(inst *Instance) error {
	q := fmt.Sprintf(
		`INSERT INTO %s.instances (cluster_id, mysql_server_uuid, endpoint, xendpoint, grendpoint, label, instance_type, attributes)
		 VALUES (%d, %s, %s, %s, %s, %s, %s, JSON_OBJECT('server_id', %d))`,
		SchemaName, inst.ClusterID, sqlutil.QuoteString(inst.ServerUUID), sqlutil.QuoteString(inst.Endpoint),
		sqlutil.QuoteString(inst.XEndpoint), sqlutil.QuoteString(inst.GREndpoint), sqlutil.QuoteString(inst.Label),
		sqlutil.QuoteString(string(inst.Role)), inst.ServerID)
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("inserting instance %s: %w", inst.Endpoint, err)
	}
	t.Undo.Add(fmt.Sprintf(
		`DELETE FROM %s.instances WHERE cluster_id = %d AND mysql_server_uuid = %s`,
		SchemaName, inst.ClusterID, sqlutil.QuoteString(inst.ServerUUID)))
	return nil
}

// DeleteInstance removes an instances row, recording the insert needed to
// restore it as the undo inverse (spec.md §4.3 remove_instance).
func (t *Transaction) DeleteInstance(inst *Instance) error {
	q := fmt.Sprintf(`DELETE FROM %s.instances WHERE cluster_id = %d AND mysql_server_uuid = %s`,
		SchemaName, inst.ClusterID, sqlutil.QuoteString(inst.ServerUUID))
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("deleting instance %s: %w", inst.Endpoint, err)
	}
	restore := fmt.Sprintf(
		`INSERT INTO %s.instances (cluster_id, mysql_server_uuid, endpoint, xendpoint, grendpoint, label, instance_type, attributes)
		 VALUES (%d, %s, %s, %s, %s, %s, %s, JSON_OBJECT('server_id', %d))`,
		SchemaName, inst.ClusterID, sqlutil.QuoteString(inst.ServerUUID), sqlutil.QuoteString(inst.Endpoint),
		sqlutil.QuoteString(inst.XEndpoint), sqlutil.QuoteString(inst.GREndpoint), sqlutil.QuoteString(inst.Label),
		sqlutil.QuoteString(string(inst.Role)), inst.ServerID)
	t.Undo.Add(restore)
	return nil
}

// SetClusterAttribute upserts a single attribute key, recording the prior
// value (or its removal, if it was unset) as the undo inverse.
func (t *Transaction) SetClusterAttribute(clusterID int64, key string, value json.RawMessage, priorValue json.RawMessage, priorExisted bool) error {
	q := fmt.Sprintf(`UPDATE %s.clusters SET attributes = JSON_SET(attributes, '$.%s', CAST(%s AS JSON)) WHERE cluster_id = %d`,
		SchemaName, key, sqlutil.QuoteString(string(value)), clusterID)
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("setting cluster attribute %s: %w", key, err)
	}

	if priorExisted {
		inv := fmt.Sprintf(`UPDATE %s.clusters SET attributes = JSON_SET(attributes, '$.%s', CAST(%s AS JSON)) WHERE cluster_id = %d`,
			SchemaName, key, sqlutil.QuoteString(string(priorValue)), clusterID)
		t.Undo.Add(inv)
	} else {
		inv := fmt.Sprintf(`UPDATE %s.clusters SET attributes = JSON_REMOVE(attributes, '$.%s') WHERE cluster_id = %d`,
			SchemaName, key, clusterID)
		t.Undo.Add(inv)
	}
	return nil
}

// SetInstanceAttribute upserts a single per-instance attribute key,
// recording the prior value (or its removal) as the undo inverse (spec.md
// §6.1 setInstanceOption).
func (t *Transaction) SetInstanceAttribute(clusterID int64, serverUUID, key string, value json.RawMessage, priorValue json.RawMessage, priorExisted bool) error {
	q := fmt.Sprintf(`UPDATE %s.instances SET attributes = JSON_SET(attributes, '$.%s', CAST(%s AS JSON)) WHERE cluster_id = %d AND mysql_server_uuid = %s`,
		SchemaName, key, sqlutil.QuoteString(string(value)), clusterID, sqlutil.QuoteString(serverUUID))
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("setting instance attribute %s: %w", key, err)
	}

	if priorExisted {
		inv := fmt.Sprintf(`UPDATE %s.instances SET attributes = JSON_SET(attributes, '$.%s', CAST(%s AS JSON)) WHERE cluster_id = %d AND mysql_server_uuid = %s`,
			SchemaName, key, sqlutil.QuoteString(string(priorValue)), clusterID, sqlutil.QuoteString(serverUUID))
		t.Undo.Add(inv)
	} else {
		inv := fmt.Sprintf(`UPDATE %s.instances SET attributes = JSON_REMOVE(attributes, '$.%s') WHERE cluster_id = %d AND mysql_server_uuid = %s`,
			SchemaName, key, clusterID, sqlutil.QuoteString(serverUUID))
		t.Undo.Add(inv)
	}
	return nil
}

// CreateClusterSet inserts a new clustersets row and its initial
// async_cluster_views generation (view_id 1), returning the new ID (spec.md
// §6.1 createClusterSet).
func (t *Transaction) CreateClusterSet(domainName string) (clusterSetID int64, err error) {
	res, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		`INSERT INTO %s.clustersets (domain_name) VALUES (%s)`, SchemaName, sqlutil.QuoteString(domainName)))
	if err != nil {
		return 0, fmt.Errorf("creating clusterset: %w", err)
	}
	clusterSetID, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new clusterset id: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		`INSERT INTO %s.async_cluster_views (clusterset_id, view_id, topology_type) VALUES (%d, 1, 'CS')`,
		SchemaName, clusterSetID)); err != nil {
		return 0, fmt.Errorf("creating initial clusterset view: %w", err)
	}
	return clusterSetID, nil
}

// SetClusterSetID records which ClusterSet a cluster belongs to (spec.md
// §3.1 Cluster.clusterSetId).
func (t *Transaction) SetClusterSetID(clusterID, clusterSetID int64) error {
	if _, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		`UPDATE %s.clusters SET clusterset_id = %d WHERE cluster_id = %d`, SchemaName, clusterSetID, clusterID)); err != nil {
		return fmt.Errorf("setting clusterset_id: %w", err)
	}
	t.Undo.Add(fmt.Sprintf(`UPDATE %s.clusters SET clusterset_id = NULL WHERE cluster_id = %d`, SchemaName, clusterID))
	return nil
}

// InsertClusterSetMember records a cluster's role within a ClusterSet.
func (t *Transaction) InsertClusterSetMember(m ClusterSetMember) error {
	q := fmt.Sprintf(`INSERT INTO %s.cluster_set_members (clusterset_id, cluster_id, member_role, invalidated) VALUES (%d, %d, %s, %t)`,
		SchemaName, m.ClusterSetID, m.ClusterID, sqlutil.QuoteString(string(m.Role)), m.Invalidated)
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("inserting cluster_set_members row: %w", err)
	}
	t.Undo.Add(fmt.Sprintf(`DELETE FROM %s.cluster_set_members WHERE clusterset_id = %d AND cluster_id = %d`,
		SchemaName, m.ClusterSetID, m.ClusterID))
	return nil
}

// UpdateClusterSetMemberRole transitions a cluster's role (e.g. PRIMARY ->
// INVALIDATED during failover, spec.md §4.3).
func (t *Transaction) UpdateClusterSetMemberRole(clusterSetID, clusterID int64, newRole ClusterSetMemberRole, invalidated bool, priorRole ClusterSetMemberRole, priorInvalidated bool) error {
	q := fmt.Sprintf(`UPDATE %s.cluster_set_members SET member_role = %s, invalidated = %t WHERE clusterset_id = %d AND cluster_id = %d`,
		SchemaName, sqlutil.QuoteString(string(newRole)), invalidated, clusterSetID, clusterID)
	if _, err := t.tx.ExecContext(t.ctx, q); err != nil {
		return fmt.Errorf("updating cluster_set_members role: %w", err)
	}
	inv := fmt.Sprintf(`UPDATE %s.cluster_set_members SET member_role = %s, invalidated = %t WHERE clusterset_id = %d AND cluster_id = %d`,
		SchemaName, sqlutil.QuoteString(string(priorRole)), priorInvalidated, clusterSetID, clusterID)
	t.Undo.Add(inv)
	return nil
}

// BumpClusterSetView increments the ClusterSet's view id generation
// (spec.md §3.1, §4.3 ClusterSet failover step "increment view id generation").
func (t *Transaction) BumpClusterSetView(clusterSetID int64) (newView int64, err error) {
	if _, err = t.tx.ExecContext(t.ctx, fmt.Sprintf(
		`INSERT INTO %s.async_cluster_views (clusterset_id, view_id, topology_type)
		 SELECT clusterset_id, view_id + 1, 'CS' FROM %s.async_cluster_views
		 WHERE clusterset_id = %d ORDER BY view_id DESC LIMIT 1`, SchemaName, SchemaName, clusterSetID)); err != nil {
		return 0, fmt.Errorf("bumping clusterset view: %w", err)
	}
	if err = t.tx.QueryRowContext(t.ctx, fmt.Sprintf(
		`SELECT view_id FROM %s.async_cluster_views WHERE clusterset_id = %d ORDER BY view_id DESC LIMIT 1`,
		SchemaName, clusterSetID)).Scan(&newView); err != nil {
		return 0, fmt.Errorf("reading bumped clusterset view: %w", err)
	}
	// No inverse recorded: view-id generations are monotonic by design
	// (spec.md §3.1) and are never rolled back by undo, only superseded by
	// a subsequent failover.
	return newView, nil
}
