package channel

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

func TestResolveEffectiveSourcePrimary(t *testing.T) {
	src, err := ResolveEffectiveSource(Options{Policy: metadata.SourcesPrimary}, "primary:3306", nil)
	if err != nil {
		t.Fatalf("ResolveEffectiveSource() error: %v", err)
	}
	if src != "primary:3306" {
		t.Errorf("ResolveEffectiveSource() = %s, want primary:3306", src)
	}
}

func TestResolveEffectiveSourceSecondaryFallsBackToPrimary(t *testing.T) {
	src, err := ResolveEffectiveSource(Options{Policy: metadata.SourcesSecondary}, "primary:3306", nil)
	if err != nil {
		t.Fatalf("ResolveEffectiveSource() error: %v", err)
	}
	if src != "primary:3306" {
		t.Errorf("ResolveEffectiveSource() = %s, want fallback to primary:3306", src)
	}
}

func TestResolveEffectiveSourceCustomRequiresList(t *testing.T) {
	_, err := ResolveEffectiveSource(Options{Policy: metadata.SourcesCustom}, "primary:3306", nil)
	if !errs.As(err, errs.ReadReplicaInvalidSourceList) {
		t.Errorf("ResolveEffectiveSource() = %v, want ReadReplicaInvalidSourceList", err)
	}
}

func TestBuildFailoverListPrimaryPolicy(t *testing.T) {
	list, err := BuildFailoverList(Options{Policy: metadata.SourcesPrimary}, "p:3306", []string{"s1:3306", "s2:3306"})
	if err != nil {
		t.Fatalf("BuildFailoverList() error: %v", err)
	}
	if len(list) != 3 || list[0].Weight != weightHigh || list[1].Weight != weightLow || list[2].Weight != weightLow {
		t.Errorf("BuildFailoverList() = %+v, want primary=80 secondaries=60", list)
	}
}

func TestBuildFailoverListSecondaryPolicyInverts(t *testing.T) {
	list, err := BuildFailoverList(Options{Policy: metadata.SourcesSecondary}, "p:3306", []string{"s1:3306"})
	if err != nil {
		t.Fatalf("BuildFailoverList() error: %v", err)
	}
	if len(list) != 2 || list[0].Weight != weightHigh || list[1].Weight != weightLow {
		t.Errorf("BuildFailoverList() = %+v, want secondary=80 primary=60", list)
	}
}

func TestBuildFailoverListCustomMonotonicallyDecreasing(t *testing.T) {
	opts := Options{Policy: metadata.SourcesCustom, CustomSources: []metadata.WeightedSource{
		{Endpoint: "a:3306"}, {Endpoint: "b:3306"}, {Endpoint: "c:3306"},
	}}
	list, err := BuildFailoverList(opts, "", nil)
	if err != nil {
		t.Fatalf("BuildFailoverList() error: %v", err)
	}
	if list[0].Weight != 100 || list[1].Weight != 99 || list[2].Weight != 98 {
		t.Errorf("BuildFailoverList() = %+v, want 100,99,98", list)
	}
}

func TestValidateSourcesRejectsSelf(t *testing.T) {
	err := ValidateSources("replica:3306", instance.ServerVersion{Major: 8}, []Candidate{
		{Endpoint: "replica:3306", Online: true},
	})
	if !errs.As(err, errs.ReadReplicaInvalidSourceList) {
		t.Errorf("ValidateSources() = %v, want ReadReplicaInvalidSourceList", err)
	}
}

func TestValidateSourcesRejectsOfflineAndReadReplica(t *testing.T) {
	if err := ValidateSources("replica:3306", instance.ServerVersion{Major: 8}, []Candidate{
		{Endpoint: "s1:3306", Online: false},
	}); !errs.As(err, errs.ReadReplicaInvalidSourceList) {
		t.Errorf("ValidateSources() offline = %v, want ReadReplicaInvalidSourceList", err)
	}
	if err := ValidateSources("replica:3306", instance.ServerVersion{Major: 8}, []Candidate{
		{Endpoint: "s1:3306", Online: true, IsReadReplica: true},
	}); !errs.As(err, errs.ReadReplicaInvalidSourceList) {
		t.Errorf("ValidateSources() read-replica source = %v, want ReadReplicaInvalidSourceList", err)
	}
}

func TestValidateSourcesAccepts(t *testing.T) {
	err := ValidateSources("replica:3306", instance.ServerVersion{Major: 8}, []Candidate{
		{Endpoint: "s1:3306", Online: true, Version: instance.ServerVersion{Major: 8}},
	})
	if err != nil {
		t.Errorf("ValidateSources() = %v, want nil", err)
	}
}

func TestConfigureDryRunSkipsExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "replica", Port: 3306}, "u", 3, instance.ServerVersion{Major: 8})

	plan := Plan{EffectiveSource: "primary:3306", Sources: []metadata.WeightedSource{{Endpoint: "primary:3306", Weight: 80}}}
	if err := Configure(context.Background(), inst, plan, Credentials{User: "repl", Password: "pw"}, Options{DryRun: true}); err != nil {
		t.Fatalf("Configure() dry-run error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("dry-run issued SQL: %v", err)
	}
}

func TestConfigureExecutesChangeAndFailoverSetup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()
	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "replica", Port: 3306}, "u", 3, instance.ServerVersion{Major: 8})

	mock.ExpectExec("CHANGE REPLICATION SOURCE TO").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT asynchronous_connection_failover_reset_source").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT asynchronous_connection_failover_add_source").WillReturnResult(sqlmock.NewResult(0, 0))

	plan := Plan{EffectiveSource: "primary:3306", Sources: []metadata.WeightedSource{{Endpoint: "primary:3306", Weight: 80}}}
	if err := Configure(context.Background(), inst, plan, Credentials{User: "repl", Password: "pw"}, Options{ConnectRetry: 3, RetryCount: 10}); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
