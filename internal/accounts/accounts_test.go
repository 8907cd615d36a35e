package accounts

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/instance"
)

func newTestInstance(t *testing.T) (*instance.Instance, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "primary", Port: 3306}, "uuid-1", 101,
		instance.ServerVersion{Major: 8, Minor: 0, Patch: 35})
	return inst, mock
}

func TestRecoveryAccountName(t *testing.T) {
	if got := RecoveryAccountName(101); got != "mysql_innodb_cluster_101" {
		t.Errorf("RecoveryAccountName(101) = %q, want mysql_innodb_cluster_101", got)
	}
}

func TestCreateRecoveryAccountPasswordAuth(t *testing.T) {
	primary, mock := newTestInstance(t)
	mock.ExpectExec("CREATE USER IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("GRANT REPLICATION SLAVE, REPLICATION CONNECTION_ADMIN").WillReturnResult(sqlmock.NewResult(0, 1))

	creds := Credentials{User: "mysql_innodb_cluster_101", Auth: Password, Password: "secret"}
	if err := CreateRecoveryAccount(context.Background(), primary, creds, "%", false, nil); err != nil {
		t.Fatalf("CreateRecoveryAccount() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateAccountUnsupportedAuth(t *testing.T) {
	primary, _ := newTestInstance(t)
	creds := Credentials{User: "u", Auth: "BOGUS"}
	err := createAccount(context.Background(), primary, creds, "%")
	if err == nil {
		t.Fatalf("createAccount() expected error for unsupported auth type")
	}
}

func TestCheckCertPrerequisitesMissing(t *testing.T) {
	inst, mock := newTestInstance(t)
	mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("ssl_cert", ""))

	if err := CheckCertPrerequisites(context.Background(), inst); err == nil {
		t.Fatalf("CheckCertPrerequisites() expected error when ssl_cert unset")
	}
}
