package engine

import (
	"context"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

// StatusReport is the data status()/describe() render (spec.md §6.1); the
// output package turns this into text/json/markdown/plain.
type StatusReport struct {
	ClusterName  string
	GroupName    string
	TopologyMode metadata.TopologyMode
	Availability metadata.ClusterAvailability
	Primary      string // endpoint, empty if none
	Members      []MemberStatus
}

// MemberStatus is one member's row in a status report.
type MemberStatus struct {
	Endpoint string
	UUID     string
	Role     topologyview.MemberRole
	State    topologyview.MemberState
	Label    string
	Hidden   bool
}

// Status implements status() (spec.md §6.1): a live snapshot merging
// Metadata and GR/async state.
func (e *Engine) Status(ctx context.Context, clusterName string, reachable *instance.Instance) (*StatusReport, error) {
	cluster, view, err := e.loadView(ctx, clusterName, reachable)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		ClusterName:  cluster.ClusterName,
		GroupName:    cluster.GroupName,
		TopologyMode: cluster.TopologyMode,
		Availability: view.Availability(),
	}
	if view.Primary != nil {
		report.Primary = view.Primary.Endpoint
	}
	for _, m := range view.Members {
		ms := MemberStatus{Endpoint: m.Endpoint, UUID: m.ServerUUID, Role: m.Role, State: m.State}
		if m.Metadata != nil {
			ms.Label = m.Metadata.Label
			ms.Hidden = m.Metadata.Hidden
		}
		report.Members = append(report.Members, ms)
	}
	return report, nil
}

// DescribeReport is the static topology description (spec.md §6.1
// "describe"): Metadata-only, independent of live reachability, grounded on
// original_source's describe.cc "Cluster description is Metadata-driven,
// status is live-driven" split.
type DescribeReport struct {
	ClusterName string
	Topology    []DescribeInstance
}

// DescribeInstance is one Metadata instance row in a describe() report.
type DescribeInstance struct {
	Label      string
	Endpoint   string
	Role       metadata.InstanceRole
	Sources    []metadata.WeightedSource // only meaningful for Read-Replicas
}

// Describe implements describe() purely from the Metadata, without
// querying live GR state (spec.md §6.1).
func (e *Engine) Describe(ctx context.Context, cluster *metadata.Cluster) (*DescribeReport, error) {
	instances, err := e.Store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return nil, err
	}
	report := &DescribeReport{ClusterName: cluster.ClusterName}
	for _, mi := range instances {
		report.Topology = append(report.Topology, DescribeInstance{
			Label:    mi.Label,
			Endpoint: mi.Endpoint,
			Role:     mi.Role,
			Sources:  mi.ReadReplicaSources,
		})
	}
	return report, nil
}
