// Package channel implements the managed channel configurator of §4.7: the
// async replication channel used by Read-Replicas and ClusterSet REPLICA
// clusters, including effective-source resolution and weighted
// connection-failover configuration.
package channel

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// ChannelName is the fixed async channel name managed channels use, the way
// internal/mysql/connection.go fixes a single DSN shape for every member.
const ChannelName = "read_replica_replication"

// weight bounds for the PRIMARY/SECONDARY policies (spec.md §4.7 step 3).
const (
	weightHigh = 80
	weightLow  = 60
)

// Candidate is one reachable cluster member considered as a replication
// source.
type Candidate struct {
	Endpoint     string
	Online       bool
	IsPrimary    bool
	IsReadReplica bool
	Version      instance.ServerVersion
}

// Options configures setup_read_replica (spec.md §4.7).
type Options struct {
	Policy           metadata.ReplicationSourcesPolicy
	CustomSources    []metadata.WeightedSource // ordered, used only when Policy == SourcesCustom
	ConnectRetry     int
	RetryCount       int
	Rejoin           bool
	DryRun           bool
}

// Plan is the resolved configuration setup_read_replica would apply; kept
// separate from execution so callers (and tests) can inspect the decision
// before any SQL runs, mirroring the dry_run contract in spec.md §4.7.
type Plan struct {
	EffectiveSource string
	Sources         []metadata.WeightedSource // failover list in priority order, including weights
}

// ResolveEffectiveSource implements step 1 of setup_read_replica: pick the
// single source CHANGE REPLICATION SOURCE TO will target initially.
func ResolveEffectiveSource(opts Options, primary string, onlineSecondaries []string) (string, error) {
	switch opts.Policy {
	case metadata.SourcesPrimary:
		if primary == "" {
			return "", errs.New(errs.PrimaryUnavailable, "no reachable primary to use as replication source")
		}
		return primary, nil
	case metadata.SourcesSecondary:
		if len(onlineSecondaries) == 0 {
			if primary == "" {
				return "", errs.New(errs.PrimaryUnavailable, "no ONLINE secondary and no primary to fall back to")
			}
			return primary, nil
		}
		return onlineSecondaries[0], nil
	case metadata.SourcesCustom:
		if len(opts.CustomSources) == 0 {
			return "", errs.New(errs.ReadReplicaInvalidSourceList, "CUSTOM policy requires at least one source")
		}
		return opts.CustomSources[0].Endpoint, nil
	default:
		return "", errs.New(errs.InvalidArg, "unrecognized replication sources policy %q", opts.Policy)
	}
}

// BuildFailoverList implements step 3's weight assignment: PRIMARY policy
// gives the primary weight 80 and secondaries 60; SECONDARY inverts; CUSTOM
// keeps each entry's non-zero weight and gives entries with weight 0 the
// value of a counter that starts at 100 and drops by one per entry (floor 1).
func BuildFailoverList(opts Options, primary string, onlineSecondaries []string) ([]metadata.WeightedSource, error) {
	switch opts.Policy {
	case metadata.SourcesPrimary:
		var list []metadata.WeightedSource
		if primary != "" {
			list = append(list, metadata.WeightedSource{Endpoint: primary, Weight: weightHigh})
		}
		for _, s := range onlineSecondaries {
			list = append(list, metadata.WeightedSource{Endpoint: s, Weight: weightLow})
		}
		return list, nil
	case metadata.SourcesSecondary:
		var list []metadata.WeightedSource
		for _, s := range onlineSecondaries {
			list = append(list, metadata.WeightedSource{Endpoint: s, Weight: weightHigh})
		}
		if primary != "" {
			list = append(list, metadata.WeightedSource{Endpoint: primary, Weight: weightLow})
		}
		return list, nil
	case metadata.SourcesCustom:
		if len(opts.CustomSources) == 0 {
			return nil, errs.New(errs.ReadReplicaInvalidSourceList, "CUSTOM policy requires at least one source")
		}
		list := make([]metadata.WeightedSource, len(opts.CustomSources))
		weight := 100
		for i, s := range opts.CustomSources {
			w := s.Weight
			if w == 0 {
				w = weight
			}
			list[i] = metadata.WeightedSource{Endpoint: s.Endpoint, Weight: w}
			weight--
			if weight < 1 {
				weight = 1
			}
		}
		return list, nil
	default:
		return nil, errs.New(errs.InvalidArg, "unrecognized replication sources policy %q", opts.Policy)
	}
}

// BuildPlan resolves the effective source and failover list without
// executing anything, so dry_run and validation can share the same
// decision path.
func BuildPlan(opts Options, primary string, onlineSecondaries []string) (Plan, error) {
	src, err := ResolveEffectiveSource(opts, primary, onlineSecondaries)
	if err != nil {
		return Plan{}, err
	}
	list, err := BuildFailoverList(opts, primary, onlineSecondaries)
	if err != nil {
		return Plan{}, err
	}
	return Plan{EffectiveSource: src, Sources: list}, nil
}

// ValidateSources implements validate_replication_sources (spec.md §4.7
// last paragraph): every candidate must be ONLINE, not the replica itself,
// not itself a Read-Replica, and not of an older major version than the
// replica (a zero Version is not checked). Cluster membership is not
// checked here.
func ValidateSources(replicaEndpoint string, replicaVersion instance.ServerVersion, candidates []Candidate) error {
	for _, c := range candidates {
		if c.Endpoint == replicaEndpoint {
			return errs.New(errs.ReadReplicaInvalidSourceList, "source %s is the replica itself", c.Endpoint)
		}
		if !c.Online {
			return errs.New(errs.ReadReplicaInvalidSourceList, "source %s is not ONLINE", c.Endpoint)
		}
		if c.IsReadReplica {
			return errs.New(errs.ReadReplicaInvalidSourceList, "source %s is itself a Read-Replica", c.Endpoint)
		}
		if c.Version.Major != 0 && c.Version.Major < replicaVersion.Major {
			return errs.New(errs.ReadReplicaInvalidSourceList, "source %s (%s) is older than replica (%s)", c.Endpoint, c.Version, replicaVersion)
		}
	}
	return nil
}

// Configure runs CHANGE REPLICATION SOURCE TO ... FOR CHANNEL against the
// replica, then resets and reinstalls the weighted connection-failover
// configuration (spec.md §4.7 steps 2-3).
func Configure(ctx context.Context, replica *instance.Instance, plan Plan, creds Credentials, opts Options) error {
	host, port, err := splitEndpoint(plan.EffectiveSource)
	if err != nil {
		return err
	}

	changeStmt := fmt.Sprintf(
		"CHANGE REPLICATION SOURCE TO SOURCE_HOST=%s, SOURCE_PORT=%d, SOURCE_USER=%s, SOURCE_PASSWORD=%s, "+
			"SOURCE_CONNECTION_AUTO_FAILOVER=1, SOURCE_CONNECT_RETRY=%d, SOURCE_RETRY_COUNT=%d, GET_SOURCE_PUBLIC_KEY=1 "+
			"FOR CHANNEL %s",
		sqlutil.QuoteString(host), port, sqlutil.QuoteString(creds.User), sqlutil.QuoteString(creds.Password),
		opts.ConnectRetry, opts.RetryCount, sqlutil.QuoteString(ChannelName))
	if opts.DryRun {
		return nil
	}
	if _, err := replica.Exec(ctx, changeStmt); err != nil {
		return fmt.Errorf("configuring replication source on %s: %w", replica.Endpoint(), err)
	}

	if err := resetFailoverSources(ctx, replica); err != nil {
		return err
	}
	for _, src := range plan.Sources {
		h, p, err := splitEndpoint(src.Endpoint)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf(
			"SELECT asynchronous_connection_failover_add_source(%s, %s, %d, %s, %d)",
			sqlutil.QuoteString(ChannelName), sqlutil.QuoteString(h), p, sqlutil.QuoteString(""), src.Weight)
		if _, err := replica.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("adding failover source %s on %s: %w", src.Endpoint, replica.Endpoint(), err)
		}
	}
	return nil
}

func resetFailoverSources(ctx context.Context, replica *instance.Instance) error {
	stmt := fmt.Sprintf("SELECT asynchronous_connection_failover_reset_source(%s)", sqlutil.QuoteString(ChannelName))
	if _, err := replica.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("resetting failover sources on %s: %w", replica.Endpoint(), err)
	}
	return nil
}

// Credentials are the channel's replication account credentials.
type Credentials struct {
	User     string
	Password string
}

func splitEndpoint(endpoint string) (host string, port int, err error) {
	idx := strings.Index(endpoint, ":")
	if idx <= 0 {
		return "", 0, errs.New(errs.InvalidArg, "malformed endpoint %q", endpoint)
	}
	port, convErr := strconv.Atoi(endpoint[idx+1:])
	if convErr != nil {
		return "", 0, errs.New(errs.InvalidArg, "malformed endpoint %q", endpoint)
	}
	return endpoint[:idx], port, nil
}

// SortByWeightDescending orders a failover list the way SHOW output and
// describe() present it (spec.md §6.1 describe).
func SortByWeightDescending(list []metadata.WeightedSource) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Weight > list[j].Weight })
}
