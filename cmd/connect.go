package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/innodbcluster/admin-engine/internal/config"
	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
)

// promptPassword reads a password from the terminal without echoing it,
// the same way the teacher's -p-with-no-value convention expects.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// splitEndpoint parses a host:port endpoint, defaulting the port to cfg.Port
// when omitted.
func splitEndpoint(cfg config.Config, endpoint string) (string, int, error) {
	host, portStr, ok := strings.Cut(endpoint, ":")
	if !ok {
		return endpoint, cfg.Port, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}

// connectEndpoint opens a live connection to one cluster member, layering
// cfg's user/password/TLS onto the given host:port.
func connectEndpoint(ctx context.Context, cfg config.Config, endpoint string) (*instance.Instance, error) {
	host, port, err := splitEndpoint(cfg, endpoint)
	if err != nil {
		return nil, err
	}
	return instance.Connect(ctx, instance.ConnectionConfig{
		Host:     host,
		Port:     port,
		User:     cfg.User,
		Password: cfg.Password,
		Socket:   cfg.Socket,
		TLSMode:  cfg.TLSMode,
		TLSCA:    cfg.TLSCA,
	})
}

// connectMany opens a connection to every endpoint in the list, in the
// shape engine operations expect for their Reachable/Targets maps.
// Endpoints it cannot reach are simply omitted; the caller decides whether
// that's fatal.
func connectMany(ctx context.Context, cfg config.Config, endpoints []string) map[string]*instance.Instance {
	out := make(map[string]*instance.Instance, len(endpoints))
	for _, ep := range endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		conn, err := connectEndpoint(ctx, cfg, ep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not reach %s: %v\n", ep, err)
			continue
		}
		out[conn.Endpoint()] = conn
	}
	return out
}

func closeAll(conns map[string]*instance.Instance) {
	for _, c := range conns {
		c.Close()
	}
}

// newEngine opens the Metadata store against a live connection and wraps it
// in an Engine scoped to this one command invocation (spec.md §5 "Instance
// handles are not shared across commands").
func newEngine(cfg config.Config, primary *instance.Instance) *engine.Engine {
	return engine.New(cfg, metadata.Open(primary))
}

// pickAny returns an arbitrary connection from a connectMany result, for
// commands that only need one live handle to open the Metadata store.
func pickAny(conns map[string]*instance.Instance) *instance.Instance {
	for _, c := range conns {
		return c
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
