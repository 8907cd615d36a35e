package recovery

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
)

func newTestInstance(t *testing.T) (*instance.Instance, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "target", Port: 3306}, "u-target", 2, instance.ServerVersion{Major: 8})
	return inst, mock
}

func TestClassifyStateIdentical(t *testing.T) {
	inst, mock := newTestInstance(t)
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow(""))
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow(""))

	snap := GTIDSnapshot{DonorExecuted: "uuid:1-5", TargetExecuted: "uuid:1-5"}
	state, err := ClassifyState(context.Background(), inst, snap)
	if err != nil {
		t.Fatalf("ClassifyState() error: %v", err)
	}
	if state != Identical {
		t.Errorf("ClassifyState() = %s, want IDENTICAL", state)
	}
}

func TestClassifyStateRecoverable(t *testing.T) {
	inst, mock := newTestInstance(t)
	// errant = empty
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow(""))
	// missing = non-empty
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("uuid:6-8"))
	// overlap between missing and purged = empty
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow(""))

	snap := GTIDSnapshot{DonorExecuted: "uuid:1-8", DonorPurged: "uuid:1-2", TargetExecuted: "uuid:1-5"}
	state, err := ClassifyState(context.Background(), inst, snap)
	if err != nil {
		t.Fatalf("ClassifyState() error: %v", err)
	}
	if state != Recoverable {
		t.Errorf("ClassifyState() = %s, want RECOVERABLE", state)
	}
}

func TestClassifyStateIrrecoverable(t *testing.T) {
	inst, mock := newTestInstance(t)
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow(""))
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("uuid:1-3"))
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("uuid:1-2"))

	snap := GTIDSnapshot{DonorExecuted: "uuid:1-8", DonorPurged: "uuid:1-3", TargetExecuted: "uuid:4-8"}
	state, err := ClassifyState(context.Background(), inst, snap)
	if err != nil {
		t.Fatalf("ClassifyState() error: %v", err)
	}
	if state != Irrecoverable {
		t.Errorf("ClassifyState() = %s, want IRRECOVERABLE", state)
	}
}

func TestClassifyStateDiverged(t *testing.T) {
	inst, mock := newTestInstance(t)
	mock.ExpectQuery("SELECT GTID_SUBTRACT").WillReturnRows(sqlmock.NewRows([]string{"g"}).AddRow("uuid:9-9"))

	snap := GTIDSnapshot{DonorExecuted: "uuid:1-8", TargetExecuted: "uuid:1-9"}
	state, err := ClassifyState(context.Background(), inst, snap)
	if err != nil {
		t.Fatalf("ClassifyState() error: %v", err)
	}
	if state != Diverged {
		t.Errorf("ClassifyState() = %s, want DIVERGED", state)
	}
}

func TestDecideAuto(t *testing.T) {
	cases := []struct {
		name            string
		state           GTIDState
		gtidSetComplete bool
		cloneAvailable  bool
		want            Method
		wantErr         bool
	}{
		{"identical prefers incremental", Identical, true, true, Incremental, false},
		{"recoverable without complete set falls back to clone", Recoverable, false, true, Clone, false},
		{"recoverable without complete set or clone uses incremental anyway", Recoverable, false, false, Incremental, false},
		{"irrecoverable requires clone", Irrecoverable, false, true, Clone, false},
		{"irrecoverable without clone fails", Irrecoverable, false, false, "", true},
		{"diverged always fails", Diverged, true, true, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decide(Auto, tc.state, tc.gtidSetComplete, tc.cloneAvailable)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Decide() expected error, got method %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Decide() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecideRequestedIncrementalRejectsDiverged(t *testing.T) {
	_, err := Decide(Incremental, Diverged, true, true)
	if !errs.As(err, errs.DataErrantTransactions) {
		t.Errorf("Decide() = %v, want DataErrantTransactions", err)
	}
}

func TestDecideRequestedCloneRequiresDonor(t *testing.T) {
	_, err := Decide(Clone, Identical, true, false)
	if !errs.As(err, errs.InvalidArg) {
		t.Errorf("Decide() = %v, want InvalidArg", err)
	}
}

func TestValidateDonorRequiresOnline(t *testing.T) {
	inst, _ := newTestInstance(t)
	err := ValidateDonor(DonorOption{Instance: inst, Online: false}, false)
	if !errs.As(err, errs.GroupMemberNotOnline) {
		t.Errorf("ValidateDonor() = %v, want GroupMemberNotOnline", err)
	}
}

func TestValidateDonorCloneRequiresCloneSupportAndIPv4(t *testing.T) {
	inst, _ := newTestInstance(t)
	err := ValidateDonor(DonorOption{Instance: inst, Online: true, InCluster: true, SupportsClone: false}, true)
	if !errs.As(err, errs.InvalidArg) {
		t.Errorf("ValidateDonor() = %v, want InvalidArg for missing clone plugin", err)
	}

	err = ValidateDonor(DonorOption{Instance: inst, Online: true, InCluster: true, SupportsClone: true, ReportHostIsIPv4: false}, true)
	if !errs.As(err, errs.InvalidArg) {
		t.Errorf("ValidateDonor() = %v, want InvalidArg for non-IPv4 report_host", err)
	}

	err = ValidateDonor(DonorOption{Instance: inst, Online: true, InCluster: true, SupportsClone: true, ReportHostIsIPv4: true}, true)
	if err != nil {
		t.Errorf("ValidateDonor() = %v, want nil", err)
	}
}

func TestNeedsForceClone(t *testing.T) {
	if NeedsForceClone("") {
		t.Errorf("NeedsForceClone(\"\") = true, want false")
	}
	if !NeedsForceClone("uuid:1-5") {
		t.Errorf("NeedsForceClone(non-empty) = false, want true")
	}
}

func TestResetStatement(t *testing.T) {
	if got := ResetStatement(instance.ServerVersion{Major: 8, Minor: 0, Patch: 35}); got != "RESET MASTER" {
		t.Errorf("ResetStatement(8.0.35) = %q, want RESET MASTER", got)
	}
	if got := ResetStatement(instance.ServerVersion{Major: 8, Minor: 4, Patch: 0}); got != "RESET BINARY LOGS AND GTIDS" {
		t.Errorf("ResetStatement(8.4.0) = %q, want RESET BINARY LOGS AND GTIDS", got)
	}
}
