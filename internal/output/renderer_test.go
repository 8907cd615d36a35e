package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/topologyview"
)

func sampleStatus() *engine.StatusReport {
	return &engine.StatusReport{
		ClusterName:  "mycluster",
		GroupName:    "agroup",
		TopologyMode: metadata.SinglePrimary,
		Availability: metadata.Online,
		Primary:      "host1:3306",
		Members: []engine.MemberStatus{
			{Endpoint: "host1:3306", UUID: "u1", Role: topologyview.RolePrimary, State: topologyview.MemberOnline, Label: "host1"},
			{Endpoint: "host2:3306", UUID: "u2", Role: topologyview.RoleSecondary, State: topologyview.MemberOnline, Label: "host2"},
		},
	}
}

func TestNewRendererDispatchesByFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"text", "*output.TextRenderer"},
		{"plain", "*output.PlainRenderer"},
		{"json", "*output.JSONRenderer"},
		{"markdown", "*output.MarkdownRenderer"},
		{"unknown", "*output.TextRenderer"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		r := NewRenderer(tt.format, &buf)
		if got := typeName(r); got != tt.want {
			t.Errorf("NewRenderer(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func typeName(r Renderer) string {
	switch r.(type) {
	case *TextRenderer:
		return "*output.TextRenderer"
	case *PlainRenderer:
		return "*output.PlainRenderer"
	case *JSONRenderer:
		return "*output.JSONRenderer"
	case *MarkdownRenderer:
		return "*output.MarkdownRenderer"
	default:
		return "unknown"
	}
}

func TestTextRendererRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	(&TextRenderer{w: &buf}).RenderStatus(sampleStatus())
	out := buf.String()
	if !strings.Contains(out, "mycluster") || !strings.Contains(out, "host1:3306") {
		t.Errorf("RenderStatus output missing expected content: %s", out)
	}
}

func TestPlainRendererRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	(&PlainRenderer{w: &buf}).RenderStatus(sampleStatus())
	out := buf.String()
	if !strings.Contains(out, "host2:3306") {
		t.Errorf("RenderStatus plain output missing member: %s", out)
	}
}

func TestMarkdownRendererRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	(&MarkdownRenderer{w: &buf}).RenderStatus(sampleStatus())
	out := buf.String()
	if !strings.Contains(out, "| Label | Endpoint | Role | State | Hidden |") {
		t.Errorf("RenderStatus markdown output missing table header: %s", out)
	}
}

func TestJSONRendererRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	(&JSONRenderer{w: &buf}).RenderStatus(sampleStatus())

	var decoded engine.StatusReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if decoded.ClusterName != "mycluster" || len(decoded.Members) != 2 {
		t.Errorf("decoded report = %+v, want ClusterName=mycluster with 2 members", decoded)
	}
}

func TestTextRendererRenderDissolveFlagsSkipped(t *testing.T) {
	var buf bytes.Buffer
	(&TextRenderer{w: &buf}).RenderDissolve(&engine.DissolveResult{
		Stopped: []string{"host1:3306"},
		Skipped: []string{"host2:3306"},
	})
	out := buf.String()
	if !strings.Contains(out, "host1:3306") || !strings.Contains(out, "host2:3306") {
		t.Errorf("RenderDissolve output missing stopped/skipped endpoints: %s", out)
	}
}

func TestJoinOrNoneDefaultsWhenEmpty(t *testing.T) {
	if got := joinOrNone(nil); got != "None" {
		t.Errorf("joinOrNone(nil) = %q, want %q", got, "None")
	}
	if got := joinOrNone([]string{"a", "b"}); got != "a, b" {
		t.Errorf("joinOrNone([a,b]) = %q, want %q", got, "a, b")
	}
}
