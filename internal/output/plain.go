package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/innodbcluster/admin-engine/internal/engine"
)

// PlainRenderer produces unformatted text output safe for piping.
type PlainRenderer struct {
	w io.Writer
}

func (r *PlainRenderer) RenderStatus(report *engine.StatusReport) {
	fmt.Fprintf(r.w, "=== Cluster — %s ===\n\n", report.ClusterName)
	fmt.Fprintf(r.w, "Topology mode: %s\n", formatTopologyMode(report.TopologyMode))
	fmt.Fprintf(r.w, "Group name:    %s\n", report.GroupName)
	fmt.Fprintf(r.w, "Availability:  %s\n", report.Availability)
	fmt.Fprintf(r.w, "Primary:       %s\n\n", orNone(report.Primary))

	fmt.Fprintf(r.w, "--- Members ---\n")
	for _, m := range sortedMembers(report.Members) {
		label := m.Label
		if label == "" {
			label = m.Endpoint
		}
		fmt.Fprintf(r.w, "%-24s %-24s role=%-10s state=%-12s hidden=%v\n", label, m.Endpoint, m.Role, m.State, m.Hidden)
	}
}

func (r *PlainRenderer) RenderDescribe(report *engine.DescribeReport) {
	fmt.Fprintf(r.w, "=== Topology — %s ===\n\n", report.ClusterName)
	for _, inst := range report.Topology {
		label := inst.Label
		if label == "" {
			label = inst.Endpoint
		}
		fmt.Fprintf(r.w, "%-24s %-24s role=%s\n", label, inst.Endpoint, inst.Role)
		for _, s := range inst.Sources {
			fmt.Fprintf(r.w, "  source: %s weight=%d\n", s.Endpoint, s.Weight)
		}
	}
}

func (r *PlainRenderer) RenderOptions(opts *engine.ClusterOptions) {
	fmt.Fprintf(r.w, "=== Options — %s ===\n\n", opts.ClusterName)
	var endpoints []string
	for ep := range opts.PerInstance {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	for _, ep := range endpoints {
		fmt.Fprintf(r.w, "%s:\n", ep)
		var names []string
		for name := range opts.PerInstance[ep] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.w, "  %-24s %s\n", name+":", opts.PerInstance[ep][name])
		}
	}
}

func (r *PlainRenderer) RenderRescan(result *engine.RescanResult) {
	fmt.Fprintf(r.w, "=== Rescan ===\n\n")
	fmt.Fprintf(r.w, "Newly discovered: %s\n", joinOrNone(result.NewlyDiscovered))
	fmt.Fprintf(r.w, "Unavailable:      %s\n", joinOrNone(result.Unavailable))
	fmt.Fprintf(r.w, "Metadata updated: %s\n", joinOrNone(result.Updated))
	fmt.Fprintf(r.w, "Added:            %s\n", joinOrNone(result.Added))
	fmt.Fprintf(r.w, "Removed:          %s\n", joinOrNone(result.Removed))
}

func (r *PlainRenderer) RenderDissolve(result *engine.DissolveResult) {
	fmt.Fprintf(r.w, "=== Dissolve ===\n\n")
	fmt.Fprintf(r.w, "Stopped: %s\n", joinOrNone(result.Stopped))
	fmt.Fprintf(r.w, "Skipped: %s\n", joinOrNone(result.Skipped))
}
