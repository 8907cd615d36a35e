// Package applier implements the member-configuration applier of §4.8: a
// Config object aggregating per-member sysvar handlers, applied with a
// best-effort or fatal failure mode depending on the caller's operation.
package applier

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/instance"
)

// Handler is one member's pending sysvar change.
type Handler struct {
	Target *instance.Instance
	Name   string
	Value  string // SQL literal, already quoted if needed
}

// resolveScope picks PERSIST where supported, otherwise GLOBAL, or
// PERSIST_ONLY when the target is known to be offline (spec.md §4.8).
func resolveScope(target *instance.Instance, offline bool) instance.Scope {
	if offline {
		if target.Version().SupportsPersistOnly() {
			return instance.ScopePersistOnly
		}
		return instance.ScopeGlobal
	}
	if target.Version().SupportsPersistOnly() {
		return instance.ScopePersist
	}
	return instance.ScopeGlobal
}

// Config aggregates the handlers for one apply() call (spec.md §4.8).
type Config struct {
	handlers []Handler
	offline  map[string]bool // endpoint -> known offline, forces PERSIST_ONLY
}

// NewConfig builds an empty Config. offlineEndpoints marks members that are
// not currently reachable for a live GLOBAL/PERSIST set but should still
// receive a PERSIST_ONLY write when supported.
func NewConfig(offlineEndpoints map[string]bool) *Config {
	return &Config{offline: offlineEndpoints}
}

// Add registers a sysvar change for one member.
func (c *Config) Add(target *instance.Instance, name, value string) {
	c.handlers = append(c.handlers, Handler{Target: target, Name: name, Value: value})
}

// Result records the outcome of apply() for one handler.
type Result struct {
	Endpoint string
	Name     string
	Err      error
}

// Apply iterates handlers in registration order and executes each sysvar
// change. In best-effort mode, a failing handler is recorded in Result but
// does not stop later handlers from running; otherwise the first failure
// aborts and is returned as an error (spec.md §4.8 "apply()").
func Apply(ctx context.Context, cfg *Config, bestEffort bool) ([]Result, error) {
	var results []Result
	for _, h := range cfg.handlers {
		offline := cfg.offline[h.Target.Endpoint()]
		scope := resolveScope(h.Target, offline)
		err := h.Target.SetVariable(ctx, scope, h.Name, h.Value)
		results = append(results, Result{Endpoint: h.Target.Endpoint(), Name: h.Name, Err: err})
		if err != nil {
			if !bestEffort {
				return results, fmt.Errorf("applying %s on %s: %w", h.Name, h.Target.Endpoint(), err)
			}
		}
	}
	return results, nil
}

// Failed filters Apply's results down to the failures, the shape callers
// use to log best-effort warnings (spec.md §4.2 step 11, §4.8).
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
