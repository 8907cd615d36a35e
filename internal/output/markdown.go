package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/innodbcluster/admin-engine/internal/engine"
)

// MarkdownRenderer produces markdown output for documentation/tickets.
type MarkdownRenderer struct {
	w io.Writer
}

func (r *MarkdownRenderer) RenderStatus(report *engine.StatusReport) {
	fmt.Fprintf(r.w, "# Cluster — %s\n\n", report.ClusterName)
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Topology mode | %s |\n", formatTopologyMode(report.TopologyMode))
	fmt.Fprintf(r.w, "| Group name | %s |\n", report.GroupName)
	fmt.Fprintf(r.w, "| Availability | %s |\n", report.Availability)
	fmt.Fprintf(r.w, "| Primary | %s |\n\n", orNone(report.Primary))

	fmt.Fprintf(r.w, "## Members\n\n")
	fmt.Fprintf(r.w, "| Label | Endpoint | Role | State | Hidden |\n|---|---|---|---|---|\n")
	for _, m := range sortedMembers(report.Members) {
		label := m.Label
		if label == "" {
			label = m.Endpoint
		}
		fmt.Fprintf(r.w, "| %s | %s | %s | %s | %v |\n", label, m.Endpoint, m.Role, m.State, m.Hidden)
	}
	fmt.Fprintln(r.w)
}

func (r *MarkdownRenderer) RenderDescribe(report *engine.DescribeReport) {
	fmt.Fprintf(r.w, "# Topology — %s\n\n", report.ClusterName)
	fmt.Fprintf(r.w, "| Label | Endpoint | Role | Sources |\n|---|---|---|---|\n")
	for _, inst := range report.Topology {
		label := inst.Label
		if label == "" {
			label = inst.Endpoint
		}
		var srcs string
		for i, s := range inst.Sources {
			if i > 0 {
				srcs += ", "
			}
			srcs += fmt.Sprintf("%s(%d)", s.Endpoint, s.Weight)
		}
		fmt.Fprintf(r.w, "| %s | %s | %s | %s |\n", label, inst.Endpoint, inst.Role, srcs)
	}
	fmt.Fprintln(r.w)
}

func (r *MarkdownRenderer) RenderOptions(opts *engine.ClusterOptions) {
	fmt.Fprintf(r.w, "# Options — %s\n\n", opts.ClusterName)
	var endpoints []string
	for ep := range opts.PerInstance {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	for _, ep := range endpoints {
		fmt.Fprintf(r.w, "## %s\n\n", ep)
		fmt.Fprintf(r.w, "| Option | Value |\n|---|---|\n")
		var names []string
		for name := range opts.PerInstance[ep] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.w, "| %s | %s |\n", name, opts.PerInstance[ep][name])
		}
		fmt.Fprintln(r.w)
	}
}

func (r *MarkdownRenderer) RenderRescan(result *engine.RescanResult) {
	fmt.Fprintf(r.w, "# Rescan\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Newly discovered | %s |\n", joinOrNone(result.NewlyDiscovered))
	fmt.Fprintf(r.w, "| Unavailable | %s |\n", joinOrNone(result.Unavailable))
	fmt.Fprintf(r.w, "| Metadata updated | %s |\n", joinOrNone(result.Updated))
	fmt.Fprintf(r.w, "| Added | %s |\n", joinOrNone(result.Added))
	fmt.Fprintf(r.w, "| Removed | %s |\n\n", joinOrNone(result.Removed))
}

func (r *MarkdownRenderer) RenderDissolve(result *engine.DissolveResult) {
	fmt.Fprintf(r.w, "# Dissolve\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Stopped | %s |\n", joinOrNone(result.Stopped))
	fmt.Fprintf(r.w, "| Skipped | %s |\n\n", joinOrNone(result.Skipped))
}
