package metadata

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/instance"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "primary", Port: 3306}, "uuid-primary", 1,
		instance.ServerVersion{Major: 8, Minor: 0, Patch: 35})
	return Open(inst), mock
}

func TestStateNonexisting(t *testing.T) {
	store, mock := newTestStore(t)
	rows := sqlmock.NewRows([]string{"count"}).AddRow(0)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	state, err := store.State(context.Background())
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state != StateNonexisting {
		t.Errorf("State() = %v, want %v", state, StateNonexisting)
	}
}

func TestStateEqual(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT major, minor, patch").WillReturnRows(
		sqlmock.NewRows([]string{"major", "minor", "patch"}).AddRow(2, 1, 0))

	state, err := store.State(context.Background())
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state != StateEqual {
		t.Errorf("State() = %v, want %v", state, StateEqual)
	}
}

func TestGetInstanceByUUIDNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT instance_id").WillReturnRows(sqlmock.NewRows(
		[]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}))

	_, err := store.GetInstanceByUUID(context.Background(), 1, "missing-uuid")
	if err != ErrNotFound {
		t.Fatalf("GetInstanceByUUID() error = %v, want ErrNotFound", err)
	}
}

func TestListInstances(t *testing.T) {
	store, mock := newTestStore(t)
	rows := sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
		AddRow(1, 10, "uuid-1", "host1:3306", "host1:33060", "host1:33061", "host1", "HA", "101").
		AddRow(2, 10, "uuid-2", "host2:3306", "host2:33060", "host2:33061", "host2", "HA", "102")
	mock.ExpectQuery("SELECT instance_id").WillReturnRows(rows)

	got, err := store.ListInstances(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListInstances() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListInstances() returned %d rows, want 2", len(got))
	}
	if got[0].ServerID != 101 || got[1].ServerID != 102 {
		t.Errorf("ListInstances() server ids = %d,%d, want 101,102", got[0].ServerID, got[1].ServerID)
	}
}

func TestTransactionInsertThenUndo(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mysql_innodb_cluster_metadata.instances").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	inst := &Instance{ClusterID: 10, ServerUUID: "uuid-3", Endpoint: "host3:3306", Role: RoleHA, ServerID: 103}
	if err := tx.InsertInstance(inst); err != nil {
		t.Fatalf("InsertInstance() error: %v", err)
	}
	if tx.Undo.Empty() {
		t.Fatalf("expected an undo entry after InsertInstance")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM mysql_innodb_cluster_metadata.instances").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	if err := tx.Undo.Execute(context.Background(), store.Primary().DB()); err != nil {
		t.Fatalf("Undo.Execute() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
