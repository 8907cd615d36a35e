package output

import (
	"encoding/json"
	"io"

	"github.com/innodbcluster/admin-engine/internal/engine"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w io.Writer
}

func (r *JSONRenderer) RenderStatus(report *engine.StatusReport) {
	r.encode(report)
}

func (r *JSONRenderer) RenderDescribe(report *engine.DescribeReport) {
	r.encode(report)
}

func (r *JSONRenderer) RenderOptions(opts *engine.ClusterOptions) {
	r.encode(opts)
}

func (r *JSONRenderer) RenderRescan(result *engine.RescanResult) {
	r.encode(result)
}

func (r *JSONRenderer) RenderDissolve(result *engine.DissolveResult) {
	r.encode(result)
}

func (r *JSONRenderer) encode(v any) {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
