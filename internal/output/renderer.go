package output

import (
	"io"

	"github.com/innodbcluster/admin-engine/internal/engine"
)

// Renderer is the shared interface every output format implements. It
// mirrors the report shapes the engine's read-only commands return
// (status, describe, options, rescan, dissolve), the same structural split
// the teacher's Renderer used for RenderPlan/RenderTopology.
type Renderer interface {
	RenderStatus(report *engine.StatusReport)
	RenderDescribe(report *engine.DescribeReport)
	RenderOptions(opts *engine.ClusterOptions)
	RenderRescan(result *engine.RescanResult)
	RenderDissolve(result *engine.DissolveResult)
}

// NewRenderer creates a renderer for the given format: text, plain, json,
// or markdown.
func NewRenderer(format string, w io.Writer) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w}
	case "markdown":
		return &MarkdownRenderer{w: w}
	case "plain":
		return &PlainRenderer{w: w}
	default:
		return &TextRenderer{w: w}
	}
}
