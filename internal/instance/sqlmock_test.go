package instance

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newTestInstance(t *testing.T) (*Instance, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	inst := NewForTesting(db, ConnectionConfig{Host: "host1", Port: 3306}, "uuid-1", 1, ServerVersion{Major: 8, Minor: 0, Patch: 35})
	return inst, mock
}

func TestGetGlobalVariable(t *testing.T) {
	inst, mock := newTestInstance(t)
	rows := sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("server_id", "101")
	mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(rows)

	got, err := inst.GetGlobalVariable(context.Background(), "server_id")
	if err != nil {
		t.Fatalf("GetGlobalVariable() error: %v", err)
	}
	if got != "101" {
		t.Errorf("GetGlobalVariable() = %q, want 101", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSetVariablePersistOnly(t *testing.T) {
	inst, mock := newTestInstance(t)
	mock.ExpectExec("SET PERSIST_ONLY group_replication_group_name = 'abc'").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := inst.SetVariable(context.Background(), ScopePersistOnly, "group_replication_group_name", "'abc'"); err != nil {
		t.Fatalf("SetVariable() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcquireLockDenied(t *testing.T) {
	inst, mock := newTestInstance(t)
	rows := sqlmock.NewRows([]string{"lock"}).AddRow(0)
	mock.ExpectQuery("SELECT service_get_write_locks").WillReturnRows(rows)

	err := inst.AcquireLock(context.Background(), "AdminAPI_cluster", "mycluster", true, 0)
	if err == nil {
		t.Fatalf("AcquireLock() expected error when lock not granted")
	}
}

func TestAcquireLockGranted(t *testing.T) {
	inst, mock := newTestInstance(t)
	rows := sqlmock.NewRows([]string{"lock"}).AddRow(1)
	mock.ExpectQuery("SELECT service_get_read_locks").WillReturnRows(rows)

	if err := inst.AcquireLock(context.Background(), "AdminAPI_cluster", "host1:3306", false, 0); err != nil {
		t.Fatalf("AcquireLock() unexpected error: %v", err)
	}
}
