package undo

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/metadata"
)

func TestExecuteRunsInReverseOrder(t *testing.T) {
	var order []int
	tr := New()
	tr.Add(func(ctx context.Context) error { order = append(order, 1); return nil })
	tr.Add(func(ctx context.Context) error { order = append(order, 2); return nil })
	tr.Add(func(ctx context.Context) error { order = append(order, 3); return nil })

	if failures := tr.Execute(context.Background()); failures != 0 {
		t.Fatalf("Execute() failures = %d, want 0", failures)
	}
	want := []int{3, 2, 1}
	for i, v := range want {
		if order[i] != v {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestExecuteSwallowsFailuresAndContinues(t *testing.T) {
	ran := map[int]bool{}
	tr := New()
	tr.Add(func(ctx context.Context) error { ran[1] = true; return nil })
	tr.Add(func(ctx context.Context) error { ran[2] = true; return errors.New("boom") })
	tr.Add(func(ctx context.Context) error { ran[3] = true; return nil })

	failures := tr.Execute(context.Background())
	if failures != 1 {
		t.Errorf("Execute() failures = %d, want 1", failures)
	}
	if !ran[1] || !ran[2] || !ran[3] {
		t.Errorf("ran = %v, want all three units to run despite failure", ran)
	}
}

func TestCancelSkipsMostRecentUnit(t *testing.T) {
	ran := false
	tr := New()
	tr.Add(func(ctx context.Context) error { ran = true; return nil })
	tr.Cancel()

	if failures := tr.Execute(context.Background()); failures != 0 {
		t.Errorf("Execute() failures = %d, want 0", failures)
	}
	if ran {
		t.Errorf("canceled unit ran, want skipped")
	}
}

func TestAddBackRunsBeforeEarlierUnits(t *testing.T) {
	var order []string
	tr := New()
	tr.Add(func(ctx context.Context) error { order = append(order, "first-pushed"); return nil })
	tr.AddBack(func(ctx context.Context) error { order = append(order, "back"); return nil })

	tr.Execute(context.Background())
	if len(order) != 2 || order[0] != "back" {
		t.Errorf("order = %v, want [back, first-pushed]", order)
	}
}

func TestAddSQLUndoReplaysInverses(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	var ulog metadata.UndoLog
	ulog.Add("DELETE FROM mysql_innodb_cluster_metadata.instances WHERE mysql_server_uuid = 'u1'")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM mysql_innodb_cluster_metadata.instances").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tr := New()
	tr.AddSQLUndo(&ulog, db)

	if failures := tr.Execute(context.Background()); failures != 0 {
		t.Fatalf("Execute() failures = %d, want 0", failures)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
