package locks

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/instance"
)

func TestAcquireSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "primary", Port: 3306}, "u1", 1, instance.ServerVersion{Major: 8})

	mock.ExpectQuery("SELECT service_get_write_locks").WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(1))
	mock.ExpectQuery("SELECT service_release_locks").WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(1))

	sess, err := Acquire(context.Background(), inst, 5*time.Second, ClusterExclusive("mycluster"))
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if err := sess.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
}

func TestAcquireFailureReleasesPartial(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "primary", Port: 3306}, "u1", 1, instance.ServerVersion{Major: 8})

	mock.ExpectQuery("SELECT service_get_write_locks").WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(1))
	mock.ExpectQuery("SELECT service_get_write_locks").WillReturnError(context.DeadlineExceeded)
	mock.ExpectQuery("SELECT service_release_locks").WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(1))

	_, err = Acquire(context.Background(), inst, 5*time.Second,
		ClusterExclusive("mycluster"), InstanceExclusive("mycluster", "host2:3306"))
	if err == nil {
		t.Fatalf("Acquire() expected error on second lock")
	}
}
