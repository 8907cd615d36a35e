package engine

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/config"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

func newReplicaSetInstance(t *testing.T, host string, port int, uuid string, serverID uint32) (*instance.Instance, sqlmock.Sqlmock) {
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

func TestLoadReplicaSetViewRejectsGRCluster(t *testing.T) {
	primary, mock := newReplicaSetInstance(t, "host1", 3306, "u1", 101)
	store := metadata.Open(primary)
	e := &Engine{Cfg: config.Config{}, Store: store}

	mock.ExpectQuery("SELECT cluster_id").WillReturnRows(
		sqlmock.NewRows([]string{"cluster_id", "cluster_name", "description", "group_name", "topology_type",
			"view_change_uuid", "comm_stack", "clusterset_id"}).
			AddRow(10, "myset", "", "somegroup", "SINGLE_PRIMARY", "", "XCOM", 0))

	_, _, err := e.loadReplicaSetView(context.Background(), "myset", map[string]*instance.Instance{"host1:3306": primary})
	if !errs.As(err, errs.UnsupportedClusterType) {
		t.Fatalf("loadReplicaSetView() error = %v, want UnsupportedClusterType", err)
	}
}

func TestLoadReplicaSetViewNotFound(t *testing.T) {
	primary, mock := newReplicaSetInstance(t, "host1", 3306, "u1", 101)
	store := metadata.Open(primary)
	e := &Engine{Cfg: config.Config{}, Store: store}

	mock.ExpectQuery("SELECT cluster_id").WillReturnError(sql.ErrNoRows)

	_, _, err := e.loadReplicaSetView(context.Background(), "myset", map[string]*instance.Instance{"host1:3306": primary})
	if !errs.As(err, errs.MetadataMissing) {
		t.Fatalf("loadReplicaSetView() error = %v, want MetadataMissing", err)
	}
}

func TestRemoveInstanceFromReplicaSetRejectsPrimary(t *testing.T) {
	primary, mock := newReplicaSetInstance(t, "host1", 3306, "u1", 101)
	store := metadata.Open(primary)
	e := &Engine{Cfg: config.Config{}, Store: store}

	mock.ExpectQuery("SELECT cluster_id").WillReturnRows(
		sqlmock.NewRows([]string{"cluster_id", "cluster_name", "description", "group_name", "topology_type",
			"view_change_uuid", "comm_stack", "clusterset_id"}).
			AddRow(10, "myset", "", "", "", "", "XCOM", 0))
	mock.ExpectQuery("SELECT instance_id").WillReturnRows(
		sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
			AddRow(1, 10, "u1", "host1:3306", "host1:33060", "", "host1", "HA", "101").
			AddRow(2, 10, "u2", "host2:3306", "host2:33060", "", "host2", "HA", "102"))
	mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("super_read_only", "OFF"))

	reachable := map[string]*instance.Instance{"host1:3306": primary}
	err := e.RemoveInstanceFromReplicaSet(context.Background(), RemoveInstanceFromReplicaSetOptions{
		ClusterName: "myset",
		Reachable:   reachable,
		Endpoint:    "host1:3306",
	})
	if !errs.As(err, errs.InvalidArg) {
		t.Fatalf("RemoveInstanceFromReplicaSet() error = %v, want InvalidArg", err)
	}
}

func TestPickReplicaSetPrimaryCandidateHonorsHint(t *testing.T) {
	secA, mockA := newReplicaSetInstance(t, "host2", 3306, "u2", 102)
	_ = mockA

	view := &topologyview.View{
		Members: []topologyview.Member{
			{Endpoint: "host2:3306", ServerUUID: "u2", Role: topologyview.RoleSecondary, State: topologyview.MemberOnline},
			{Endpoint: "host3:3306", ServerUUID: "u3", Role: topologyview.RoleSecondary, State: topologyview.MemberOnline},
		},
	}
	mockA.ExpectQuery("SELECT @@global.gtid_executed").WillReturnRows(
		sqlmock.NewRows([]string{"gtid_executed"}).AddRow("uuid:1-5"))

	secB, mockB := newReplicaSetInstance(t, "host3", 3306, "u3", 103)
	mockB.ExpectQuery("SELECT @@global.gtid_executed").WillReturnRows(
		sqlmock.NewRows([]string{"gtid_executed"}).AddRow("uuid:1-10"))

	reachable := map[string]*instance.Instance{"host2:3306": secA, "host3:3306": secB}

	winner, err := pickReplicaSetPrimaryCandidate(context.Background(), view, reachable, "host2:3306")
	if err != nil {
		t.Fatalf("pickReplicaSetPrimaryCandidate() error: %v", err)
	}
	if winner != "host2:3306" {
		t.Errorf("pickReplicaSetPrimaryCandidate() = %q, want explicit hint host2:3306", winner)
	}
}

func TestPickReplicaSetPrimaryCandidateRejectsUnknownHint(t *testing.T) {
	view := &topologyview.View{
		Members: []topologyview.Member{
			{Endpoint: "host2:3306", ServerUUID: "u2", Role: topologyview.RoleSecondary, State: topologyview.MemberOnline},
		},
	}
	sec, mock := newReplicaSetInstance(t, "host2", 3306, "u2", 102)
	mock.ExpectQuery("SELECT @@global.gtid_executed").WillReturnRows(
		sqlmock.NewRows([]string{"gtid_executed"}).AddRow("uuid:1-5"))
	reachable := map[string]*instance.Instance{"host2:3306": sec}

	_, err := pickReplicaSetPrimaryCandidate(context.Background(), view, reachable, "host9:3306")
	if !errs.As(err, errs.InvalidArg) {
		t.Fatalf("pickReplicaSetPrimaryCandidate() error = %v, want InvalidArg", err)
	}
}

func TestPickReplicaSetPrimaryCandidateNoneOnline(t *testing.T) {
	view := &topologyview.View{
		Members: []topologyview.Member{
			{Endpoint: "host2:3306", ServerUUID: "u2", Role: topologyview.RoleSecondary, State: topologyview.MemberError},
		},
	}
	_, err := pickReplicaSetPrimaryCandidate(context.Background(), view, map[string]*instance.Instance{}, "")
	if !errs.As(err, errs.GroupHasNoQuorum) {
		t.Fatalf("pickReplicaSetPrimaryCandidate() error = %v, want GroupHasNoQuorum", err)
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("db1.example.com:3306")
	if err != nil {
		t.Fatalf("splitHostPort() error: %v", err)
	}
	if host != "db1.example.com" || port != 3306 {
		t.Errorf("splitHostPort() = (%q, %d), want (db1.example.com, 3306)", host, port)
	}
}

func TestSplitHostPortRejectsMalformed(t *testing.T) {
	if _, _, err := splitHostPort("not-a-valid-endpoint"); !errs.As(err, errs.InvalidArg) {
		t.Fatalf("splitHostPort() error = %v, want InvalidArg", err)
	}
}
