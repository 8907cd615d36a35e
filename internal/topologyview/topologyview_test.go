package topologyview

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

func TestAvailabilityOnline(t *testing.T) {
	v := &View{
		Cluster: &metadata.Cluster{TopologyMode: metadata.SinglePrimary},
		Members: []Member{
			{ServerUUID: "u1", State: MemberOnline, Role: RolePrimary},
			{ServerUUID: "u2", State: MemberOnline, Role: RoleSecondary},
			{ServerUUID: "u3", State: MemberOnline, Role: RoleSecondary},
		},
	}
	v.Primary = &v.Members[0]
	if got := v.Availability(); got != metadata.Online {
		t.Errorf("Availability() = %v, want ONLINE", got)
	}
}

func TestAvailabilityNoQuorum(t *testing.T) {
	v := &View{
		Cluster: &metadata.Cluster{TopologyMode: metadata.SinglePrimary},
		Members: []Member{
			{ServerUUID: "u1", State: MemberUnreachable},
			{ServerUUID: "u2", State: MemberOnline, Role: RolePrimary},
			{ServerUUID: "u3", State: MemberUnreachable},
		},
	}
	if got := v.Availability(); got != metadata.NoQuorum {
		t.Errorf("Availability() = %v, want NO_QUORUM", got)
	}
}

func TestAvailabilityOnlineNoPrimary(t *testing.T) {
	v := &View{
		Cluster: &metadata.Cluster{TopologyMode: metadata.SinglePrimary},
		Members: []Member{
			{ServerUUID: "u1", State: MemberOnline, Role: RoleSecondary},
			{ServerUUID: "u2", State: MemberOnline, Role: RoleSecondary},
		},
	}
	if got := v.Availability(); got != metadata.OnlineNoPrimary {
		t.Errorf("Availability() = %v, want ONLINE_NO_PRIMARY", got)
	}
}

func TestBuildMergesMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	inst := instance.NewForTesting(db, instance.ConnectionConfig{Host: "host1", Port: 3306}, "u1", 101,
		instance.ServerVersion{Major: 8, Minor: 0, Patch: 35})
	store := metadata.Open(inst)

	mock.ExpectQuery("SELECT instance_id").WillReturnRows(
		sqlmock.NewRows([]string{"instance_id", "cluster_id", "mysql_server_uuid", "endpoint", "xendpoint", "grendpoint", "label", "instance_type", "server_id"}).
			AddRow(1, 10, "u1", "host1:3306", "host1:33060", "host1:33061", "host1", "HA", "101"))
	mock.ExpectQuery("SELECT MEMBER_ID").WillReturnRows(
		sqlmock.NewRows([]string{"MEMBER_ID", "MEMBER_HOST", "MEMBER_PORT", "MEMBER_STATE", "MEMBER_ROLE"}).
			AddRow("u1", "host1", 3306, "ONLINE", "PRIMARY"))

	cluster := &metadata.Cluster{ClusterID: 10, TopologyMode: metadata.SinglePrimary}
	v, err := Build(context.Background(), store, cluster, inst)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(v.Members) != 1 || v.Members[0].Metadata == nil {
		t.Fatalf("Build() did not merge metadata instance row")
	}
	if v.Primary == nil || v.Primary.ServerUUID != "u1" {
		t.Errorf("Build() did not detect primary")
	}
}
