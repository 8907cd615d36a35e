package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w io.Writer
}

func (r *TextRenderer) RenderStatus(report *engine.StatusReport) {
	width := 64
	fmt.Fprintln(r.w)

	header := TitleStyle.Render(fmt.Sprintf("Cluster — %s", report.ClusterName))
	var lines []string
	lines = append(lines, r.labelValue("Topology mode:", formatTopologyMode(report.TopologyMode)))
	lines = append(lines, r.labelValue("Group name:", report.GroupName))
	lines = append(lines, r.labelValue("Primary:", orNone(report.Primary)))
	metaBox := availabilityBoxStyle(report.Availability).Width(width).Render(
		header + "\n" + r.labelValue("Availability:", colorAvailability(report.Availability)) + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, metaBox)

	title := TitleStyle.Render("Members")
	var memberLines []string
	for _, m := range sortedMembers(report.Members) {
		memberLines = append(memberLines, r.memberLine(m))
	}
	membersBox := BoxStyle.Width(width).Render(title + "\n" + strings.Join(memberLines, "\n"))
	fmt.Fprintln(r.w, membersBox)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) memberLine(m engine.MemberStatus) string {
	label := m.Label
	if label == "" {
		label = m.Endpoint
	}
	state := colorMemberState(string(m.State))
	line := fmt.Sprintf("%s  %s  role=%s state=%s", LabelStyle.Width(24).Render(label), m.Endpoint, m.Role, state)
	if m.Hidden {
		line += "  " + MutedText.Render("(hidden)")
	}
	return line
}

func (r *TextRenderer) RenderDescribe(report *engine.DescribeReport) {
	width := 64
	fmt.Fprintln(r.w)
	title := TitleStyle.Render(fmt.Sprintf("Topology — %s", report.ClusterName))

	var lines []string
	for _, inst := range report.Topology {
		label := inst.Label
		if label == "" {
			label = inst.Endpoint
		}
		lines = append(lines, fmt.Sprintf("%s  %s  role=%s", LabelStyle.Width(24).Render(label), inst.Endpoint, inst.Role))
		if len(inst.Sources) > 0 {
			var srcs []string
			for _, s := range inst.Sources {
				srcs = append(srcs, fmt.Sprintf("%s(weight=%d)", s.Endpoint, s.Weight))
			}
			lines = append(lines, MutedText.Render("  sources: "+strings.Join(srcs, ", ")))
		}
	}
	box := BoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderOptions(opts *engine.ClusterOptions) {
	width := 64
	fmt.Fprintln(r.w)
	title := TitleStyle.Render(fmt.Sprintf("Options — %s", opts.ClusterName))

	var endpoints []string
	for ep := range opts.PerInstance {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	var lines []string
	for _, ep := range endpoints {
		lines = append(lines, LabelStyle.Width(24).Render(ep))
		var names []string
		for name := range opts.PerInstance[ep] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, "  "+r.labelValue(name+":", opts.PerInstance[ep][name]))
		}
	}
	box := BoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderRescan(result *engine.RescanResult) {
	width := 64
	fmt.Fprintln(r.w)
	title := TitleStyle.Render("Rescan")

	var lines []string
	lines = append(lines, r.labelValue("Newly discovered:", joinOrNone(result.NewlyDiscovered)))
	lines = append(lines, r.labelValue("Unavailable:", joinOrNone(result.Unavailable)))
	lines = append(lines, r.labelValue("Metadata updated:", joinOrNone(result.Updated)))
	lines = append(lines, r.labelValue("Added:", joinOrNone(result.Added)))
	lines = append(lines, r.labelValue("Removed:", joinOrNone(result.Removed)))

	box := BoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderDissolve(result *engine.DissolveResult) {
	width := 64
	fmt.Fprintln(r.w)
	title := TitleStyle.Render("Dissolve")

	var lines []string
	lines = append(lines, r.labelValue("Stopped:", joinOrNone(result.Stopped)))
	if len(result.Skipped) > 0 {
		lines = append(lines, WarningText.Render(r.labelValue("Skipped (unreachable):", joinOrNone(result.Skipped))))
	}

	box := SafeBoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

// helpers

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func sortedMembers(members []engine.MemberStatus) []engine.MemberStatus {
	out := make([]engine.MemberStatus, len(members))
	copy(out, members)
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

func availabilityBoxStyle(a metadata.ClusterAvailability) lipgloss.Style {
	switch a {
	case metadata.Online:
		return SafeBoxStyle
	case metadata.OnlineNoPrimary:
		return WarningBoxStyle
	case metadata.NoQuorum:
		return DangerBoxStyle
	default:
		return WarningBoxStyle
	}
}

func colorAvailability(a metadata.ClusterAvailability) string {
	switch a {
	case metadata.Online:
		return SafeText.Render(string(a))
	case metadata.OnlineNoPrimary:
		return WarningText.Render(string(a))
	case metadata.NoQuorum:
		return DangerText.Render(string(a))
	default:
		return string(a)
	}
}

func colorMemberState(state string) string {
	switch state {
	case "ONLINE":
		return SafeText.Render(state)
	case "RECOVERING":
		return WarningText.Render(state)
	case "ERROR", "UNREACHABLE", "OFFLINE":
		return DangerText.Render(state)
	default:
		return state
	}
}

func formatTopologyMode(mode metadata.TopologyMode) string {
	if mode == "" {
		return "REPLICASET (async)"
	}
	return string(mode)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
