package topologyview

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

func newTestingInstance(t *testing.T, host string, port int, uuid string, serverID uint32) (*instance.Instance, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: host, Port: port}, uuid, serverID,
		instance.ServerVersion{Major: 8, Minor: 0, Patch: 35})
	return inst, mock
}

func TestBuildAsyncDetectsPrimaryAndSecondary(t *testing.T) {
	primaryConn, primaryMock := newTestingInstance(t, "host1", 3306, "u1", 101)
	secondaryConn, secondaryMock := newTestingInstance(t, "host2", 3306, "u2", 102)

	store := metadata.Open(primaryConn)
	primaryMock.ExpectQuery("SELECT instance_id").WillReturnRows(
		sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
			AddRow(1, 10, "u1", "host1:3306", "host1:33060", "", "host1", "HA", "101").
			AddRow(2, 10, "u2", "host2:3306", "host2:33060", "", "host2", "HA", "102"))

	primaryMock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "OFF"))

	secondaryMock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "ON"))
	secondaryMock.ExpectQuery("SELECT SERVICE_STATE FROM performance_schema.replication_connection_status").
		WillReturnRows(sqlmock.NewRows([]string{"SERVICE_STATE"}).AddRow("ON"))
	secondaryMock.ExpectQuery("SELECT SERVICE_STATE FROM performance_schema.replication_applier_status").
		WillReturnRows(sqlmock.NewRows([]string{"SERVICE_STATE"}).AddRow("ON"))

	reachable := map[string]*instance.Instance{
		"host1:3306": primaryConn,
		"host2:3306": secondaryConn,
	}
	cluster := &metadata.Cluster{ClusterID: 10}
	v, err := BuildAsync(context.Background(), store, cluster, reachable)
	if err != nil {
		t.Fatalf("BuildAsync() error: %v", err)
	}
	if len(v.Members) != 2 {
		t.Fatalf("BuildAsync() returned %d members, want 2", len(v.Members))
	}
	if v.Primary == nil || v.Primary.Endpoint != "host1:3306" {
		t.Fatalf("BuildAsync() did not detect host1:3306 as primary")
	}
	for _, m := range v.Members {
		if m.Endpoint == "host2:3306" {
			if m.Role != RoleSecondary || m.State != MemberOnline {
				t.Errorf("secondary member = %+v, want RoleSecondary/MemberOnline", m)
			}
		}
	}
}

func TestBuildAsyncMarksUnreachable(t *testing.T) {
	primaryConn, primaryMock := newTestingInstance(t, "host1", 3306, "u1", 101)
	store := metadata.Open(primaryConn)

	primaryMock.ExpectQuery("SELECT instance_id").WillReturnRows(
		sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
			AddRow(1, 10, "u1", "host1:3306", "host1:33060", "", "host1", "HA", "101").
			AddRow(2, 10, "u2", "host2:3306", "host2:33060", "", "host2", "HA", "102"))
	primaryMock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "OFF"))

	reachable := map[string]*instance.Instance{"host1:3306": primaryConn}
	cluster := &metadata.Cluster{ClusterID: 10}
	v, err := BuildAsync(context.Background(), store, cluster, reachable)
	if err != nil {
		t.Fatalf("BuildAsync() error: %v", err)
	}
	var found bool
	for _, m := range v.Members {
		if m.Endpoint == "host2:3306" {
			found = true
			if m.State != MemberUnreachable || m.Reachable {
				t.Errorf("unreachable member = %+v, want MemberUnreachable/Reachable=false", m)
			}
		}
	}
	if !found {
		t.Fatalf("BuildAsync() lost the unreachable member row")
	}
}

func TestBuildAsyncSecondaryErrorChannel(t *testing.T) {
	primaryConn, primaryMock := newTestingInstance(t, "host1", 3306, "u1", 101)
	secondaryConn, secondaryMock := newTestingInstance(t, "host2", 3306, "u2", 102)
	store := metadata.Open(primaryConn)

	primaryMock.ExpectQuery("SELECT instance_id").WillReturnRows(
		sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
			AddRow(1, 10, "u1", "host1:3306", "host1:33060", "", "host1", "HA", "101").
			AddRow(2, 10, "u2", "host2:3306", "host2:33060", "", "host2", "HA", "102"))
	primaryMock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "OFF"))

	secondaryMock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "ON"))
	secondaryMock.ExpectQuery("SELECT SERVICE_STATE FROM performance_schema.replication_connection_status").
		WillReturnRows(sqlmock.NewRows([]string{"SERVICE_STATE"}).AddRow("CONNECTING"))

	reachable := map[string]*instance.Instance{
		"host1:3306": primaryConn,
		"host2:3306": secondaryConn,
	}
	cluster := &metadata.Cluster{ClusterID: 10}
	v, err := BuildAsync(context.Background(), store, cluster, reachable)
	if err != nil {
		t.Fatalf("BuildAsync() error: %v", err)
	}
	for _, m := range v.Members {
		if m.Endpoint == "host2:3306" && m.State != MemberError {
			t.Errorf("secondary with CONNECTING io thread = %v, want MemberError", m.State)
		}
	}
}
