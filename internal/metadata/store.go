package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// SchemaName is the Metadata schema (version 2.x, spec.md §6.4).
const SchemaName = "mysql_innodb_cluster_metadata"

// ErrNotFound is returned by lookups when a row is absent from the
// Metadata, spec.md §4.5 "returning 'missing from metadata' when absent".
var ErrNotFound = fmt.Errorf("missing from metadata")

// Store is read/write access to the persistent topology schema on the
// instance it was opened against, which must be the current global
// primary (spec.md §3.4).
type Store struct {
	primary *instance.Instance
}

// Open wraps an Instance handle already connected to the global primary.
func Open(primary *instance.Instance) *Store {
	return &Store{primary: primary}
}

// Primary returns the Instance handle the store reads and writes through.
func (s *Store) Primary() *instance.Instance { return s.primary }

// State reports schema-compatibility per spec.md §4.5.
func (s *Store) State(ctx context.Context) (CompatibilityState, error) {
	var exists int
	q := fmt.Sprintf("SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = %s", sqlutil.QuoteString(SchemaName))
	if err := s.primary.QueryRow(ctx, q).Scan(&exists); err != nil {
		return "", fmt.Errorf("checking metadata schema: %w", err)
	}
	if exists == 0 {
		return StateNonexisting, nil
	}

	var major, minor, patch int
	verQ := fmt.Sprintf("SELECT major, minor, patch FROM %s.schema_version", SchemaName)
	if err := s.primary.QueryRow(ctx, verQ).Scan(&major, &minor, &patch); err != nil {
		return StateFailedSetup, nil
	}

	const wantMajor, wantMinor = 2, 1
	switch {
	case major > wantMajor:
		return StateMajorHigher, nil
	case major < wantMajor:
		return StateMajorLower, nil
	case minor > wantMinor:
		return StateMinorHigher, nil
	case minor < wantMinor:
		return StateMinorLower, nil
	case patch > 0:
		return StatePatchHigher, nil
	default:
		return StateEqual, nil
	}
}

// GetClusterByGroupName looks up the Cluster row whose group_name matches
// the live GR group name observed on a reachable member (invariant 1).
func (s *Store) GetClusterByGroupName(ctx context.Context, groupName string) (*Cluster, error) {
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT cluster_id, cluster_name, description, group_name, topology_type,
		        IFNULL(attributes->>'$.group_replication_view_change_uuid', ''),
		        IFNULL(attributes->>'$.communication_stack', 'XCOM'),
		        IFNULL(clusterset_id, 0)
		 FROM %s.clusters WHERE group_name = %s`, SchemaName, sqlutil.QuoteString(groupName)))
	return scanCluster(row)
}

// GetClusterByName looks up a Cluster row by name. ReplicaSets have no
// group_name to key off of (no Group Replication), so their commands
// resolve the Metadata row by name instead of by live group identity.
func (s *Store) GetClusterByName(ctx context.Context, clusterName string) (*Cluster, error) {
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT cluster_id, cluster_name, description, group_name, topology_type,
		        IFNULL(attributes->>'$.group_replication_view_change_uuid', ''),
		        IFNULL(attributes->>'$.communication_stack', 'XCOM'),
		        IFNULL(clusterset_id, 0)
		 FROM %s.clusters WHERE cluster_name = %s`, SchemaName, sqlutil.QuoteString(clusterName)))
	return scanCluster(row)
}

// GetClusterByID looks up a Cluster row by primary key.
func (s *Store) GetClusterByID(ctx context.Context, id int64) (*Cluster, error) {
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT cluster_id, cluster_name, description, group_name, topology_type,
		        IFNULL(attributes->>'$.group_replication_view_change_uuid', ''),
		        IFNULL(attributes->>'$.communication_stack', 'XCOM'),
		        IFNULL(clusterset_id, 0)
		 FROM %s.clusters WHERE cluster_id = %d`, SchemaName, id))
	return scanCluster(row)
}

func scanCluster(row *sql.Row) (*Cluster, error) {
	c := &Cluster{}
	var topo string
	if err := row.Scan(&c.ClusterID, &c.ClusterName, &c.Description, &c.GroupName, &topo,
		&c.ViewChangeUUID, &c.CommStack, &c.ClusterSetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading cluster: %w", err)
	}
	c.TopologyMode = TopologyMode(topo)
	return c, nil
}

// GetClusterSet looks up a ClusterSet row by primary key (spec.md §4.5,
// §6.4 async_cluster_views "current view id").
func (s *Store) GetClusterSet(ctx context.Context, clusterSetID int64) (*ClusterSet, error) {
	cs := &ClusterSet{ClusterSetID: clusterSetID}
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT view_id FROM %s.async_cluster_views WHERE clusterset_id = %d ORDER BY view_id DESC LIMIT 1`,
		SchemaName, clusterSetID))
	if err := row.Scan(&cs.ViewID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading clusterset view: %w", err)
	}
	row = s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT cluster_id FROM %s.cluster_set_members WHERE clusterset_id = %d AND member_role = %s AND invalidated = 0`,
		SchemaName, clusterSetID, sqlutil.QuoteString(string(ClusterSetPrimary))))
	if err := row.Scan(&cs.PrimaryClusterID); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("reading clusterset primary: %w", err)
	}
	return cs, nil
}

// ListClusterSetMembers returns every cluster's role within a ClusterSet
// (spec.md §6.4 cluster_set_members).
func (s *Store) ListClusterSetMembers(ctx context.Context, clusterSetID int64) ([]*ClusterSetMember, error) {
	rows, err := s.primary.Query(ctx, fmt.Sprintf(
		`SELECT clusterset_id, cluster_id, member_role, invalidated FROM %s.cluster_set_members WHERE clusterset_id = %d`,
		SchemaName, clusterSetID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ClusterSetMember
	for rows.Next() {
		m := &ClusterSetMember{}
		var role string
		if err := rows.Scan(&m.ClusterSetID, &m.ClusterID, &role, &m.Invalidated); err != nil {
			return nil, fmt.Errorf("scanning cluster_set_members row: %w", err)
		}
		m.Role = ClusterSetMemberRole(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetInstanceByUUID looks up by server_uuid (spec.md §4.5).
func (s *Store) GetInstanceByUUID(ctx context.Context, clusterID int64, uuid string) (*Instance, error) {
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT instance_id, cluster_id, mysql_server_uuid, endpoint, xendpoint, grendpoint, label, instance_type,
		        IFNULL(attributes->>'$.server_id', '0')
		 FROM %s.instances WHERE cluster_id = %d AND mysql_server_uuid = %s`,
		SchemaName, clusterID, sqlutil.QuoteString(uuid)))
	return scanInstance(row)
}

// GetInstanceByEndpoint looks up by host:port endpoint (spec.md §4.5).
func (s *Store) GetInstanceByEndpoint(ctx context.Context, clusterID int64, endpoint string) (*Instance, error) {
	row := s.primary.QueryRow(ctx, fmt.Sprintf(
		`SELECT instance_id, cluster_id, mysql_server_uuid, endpoint, xendpoint, grendpoint, label, instance_type,
		        IFNULL(attributes->>'$.server_id', '0')
		 FROM %s.instances WHERE cluster_id = %d AND endpoint = %s`,
		SchemaName, clusterID, sqlutil.QuoteString(endpoint)))
	return scanInstance(row)
}

// GetInstanceByAddress looks up by either uuid or endpoint (spec.md §4.5
// "lookup by uuid, by endpoint, and by address (either)").
func (s *Store) GetInstanceByAddress(ctx context.Context, clusterID int64, address string) (*Instance, error) {
	if inst, err := s.GetInstanceByUUID(ctx, clusterID, address); err == nil {
		return inst, nil
	}
	return s.GetInstanceByEndpoint(ctx, clusterID, address)
}

func scanInstance(row *sql.Row) (*Instance, error) {
	i := &Instance{}
	var itype, sidStr string
	if err := row.Scan(&i.InstanceID, &i.ClusterID, &i.ServerUUID, &i.Endpoint, &i.XEndpoint,
		&i.GREndpoint, &i.Label, &itype, &sidStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading instance: %w", err)
	}
	i.Role = InstanceRole(itype)
	fmt.Sscanf(sidStr, "%d", &i.ServerID)
	return i, nil
}

// ListInstances returns every instance row of a cluster, ordered by
// instance_id, the way topologyview builds its snapshot.
func (s *Store) ListInstances(ctx context.Context, clusterID int64) ([]*Instance, error) {
	rows, err := s.primary.Query(ctx, fmt.Sprintf(
		`SELECT instance_id, cluster_id, mysql_server_uuid, endpoint, xendpoint, grendpoint, label, instance_type,
		        IFNULL(attributes->>'$.server_id', '0')
		 FROM %s.instances WHERE cluster_id = %d ORDER BY instance_id`, SchemaName, clusterID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Instance
	for rows.Next() {
		i := &Instance{}
		var itype, sidStr string
		if err := rows.Scan(&i.InstanceID, &i.ClusterID, &i.ServerUUID, &i.Endpoint, &i.XEndpoint,
			&i.GREndpoint, &i.Label, &itype, &sidStr); err != nil {
			return nil, fmt.Errorf("scanning instance row: %w", err)
		}
		i.Role = InstanceRole(itype)
		fmt.Sscanf(sidStr, "%d", &i.ServerID)
		result = append(result, i)
	}
	return result, rows.Err()
}

// ClusterAttribute reads a single cluster attribute key (spec.md §4.5).
func (s *Store) ClusterAttribute(ctx context.Context, clusterID int64, key string) (json.RawMessage, bool, error) {
	var raw sql.NullString
	q := fmt.Sprintf(`SELECT attributes->>'$.%s' FROM %s.clusters WHERE cluster_id = %d`, key, SchemaName, clusterID)
	if err := s.primary.QueryRow(ctx, q).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("reading attribute %s: %w", key, err)
	}
	if !raw.Valid {
		return nil, false, nil
	}
	return json.RawMessage(raw.String), true, nil
}

// InstanceAttribute reads a single per-instance attribute key (spec.md
// §4.5, §6.1 setInstanceOption).
func (s *Store) InstanceAttribute(ctx context.Context, clusterID int64, serverUUID, key string) (json.RawMessage, bool, error) {
	var raw sql.NullString
	q := fmt.Sprintf(`SELECT attributes->>'$.%s' FROM %s.instances WHERE cluster_id = %d AND mysql_server_uuid = %s`,
		key, SchemaName, clusterID, sqlutil.QuoteString(serverUUID))
	if err := s.primary.QueryRow(ctx, q).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("reading instance attribute %s: %w", key, err)
	}
	if !raw.Valid {
		return nil, false, nil
	}
	return json.RawMessage(raw.String), true, nil
}
