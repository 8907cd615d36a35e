package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/innodbcluster/admin-engine/internal/config"
	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
)

var clustersetCmd = &cobra.Command{
	Use:   "clusterset",
	Short: "Administer a ClusterSet: one PRIMARY cluster, N REPLICA clusters",
}

func init() {
	rootCmd.AddCommand(clustersetCmd)

	csCreateCmd.Flags().String("primary", "", "endpoint of a reachable member of the founding cluster (required)")
	csCreateCmd.Flags().String("domain", "", "clusterset domain name (required)")
	csCreateCmd.MarkFlagRequired("primary")
	csCreateCmd.MarkFlagRequired("domain")
	clustersetCmd.AddCommand(csCreateCmd)

	csStatusCmd.Flags().Int64("clusterset-id", 0, "clusterset id (required)")
	csStatusCmd.Flags().String("primary", "", "endpoint of any reachable member, to reach the metadata (required)")
	csStatusCmd.MarkFlagRequired("clusterset-id")
	csStatusCmd.MarkFlagRequired("primary")
	clustersetCmd.AddCommand(csStatusCmd)

	csAddReplicaCmd.Flags().Int64("clusterset-id", 0, "clusterset id (required)")
	csAddReplicaCmd.Flags().String("global-primary", "", "endpoint of the clusterset's global primary (required)")
	csAddReplicaCmd.Flags().String("replica-primary", "", "endpoint of the joining cluster's primary (required)")
	csAddReplicaCmd.MarkFlagRequired("clusterset-id")
	csAddReplicaCmd.MarkFlagRequired("global-primary")
	csAddReplicaCmd.MarkFlagRequired("replica-primary")
	clustersetCmd.AddCommand(csAddReplicaCmd)

	csFailoverCmd.Flags().Int64("clusterset-id", 0, "clusterset id (required)")
	csFailoverCmd.Flags().Int64("old-primary-id", 0, "the unreachable former PRIMARY cluster's cluster_id (required)")
	csFailoverCmd.Flags().String("candidate", "", "comma-separated list of candidate-cluster-primary endpoints to consider for promotion (required)")
	csFailoverCmd.MarkFlagRequired("clusterset-id")
	csFailoverCmd.MarkFlagRequired("old-primary-id")
	csFailoverCmd.MarkFlagRequired("candidate")
	clustersetCmd.AddCommand(csFailoverCmd)
}

var csCreateCmd = &cobra.Command{
	Use:   "create <cluster-name>",
	Short: "Promote a standalone cluster into the PRIMARY of a new ClusterSet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		primaryEP, _ := cmd.Flags().GetString("primary")
		primary, err := connectEndpoint(ctx, cfg, primaryEP)
		if err != nil {
			return err
		}
		defer primary.Close()

		domain, _ := cmd.Flags().GetString("domain")

		eng := newEngine(cfg, primary)
		cs, err := eng.CreateClusterSet(ctx, engine.CreateClusterSetOptions{
			ClusterName: args[0],
			Primary:     primary,
			DomainName:  domain,
		})
		if err != nil {
			return err
		}
		cmd.Printf("clusterset %d (domain %s) created, primary cluster %s\n", cs.ClusterSetID, domain, args[0])
		return nil
	},
}

var csStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print every cluster's role and view generation in a ClusterSet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		// getClusterSet is a pure Metadata read; any already-configured
		// connection works, so reuse --primary for it.
		primaryEP, _ := cmd.Flags().GetString("primary")
		if primaryEP == "" {
			return errs.New(errs.BadArg, "--primary is required to reach the metadata")
		}
		primary, err := connectEndpoint(ctx, cfg, primaryEP)
		if err != nil {
			return err
		}
		defer primary.Close()

		id, _ := cmd.Flags().GetInt64("clusterset-id")

		eng := newEngine(cfg, primary)
		cs, members, err := eng.GetClusterSet(ctx, id)
		if err != nil {
			return err
		}

		cmd.Printf("ClusterSet %d, view %d, primary cluster_id=%d\n", cs.ClusterSetID, cs.ViewID, cs.PrimaryClusterID)
		for _, m := range members {
			cmd.Printf("  cluster_id=%d role=%s invalidated=%v\n", m.ClusterID, m.Role, m.Invalidated)
		}
		return nil
	},
}

var csAddReplicaCmd = &cobra.Command{
	Use:   "add-replica-cluster <replica-cluster-name>",
	Short: "Join an existing cluster to the ClusterSet as a REPLICA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		globalPrimaryEP, _ := cmd.Flags().GetString("global-primary")
		globalPrimary, err := connectEndpoint(ctx, cfg, globalPrimaryEP)
		if err != nil {
			return err
		}
		defer globalPrimary.Close()

		replicaPrimaryEP, _ := cmd.Flags().GetString("replica-primary")
		replicaPrimary, err := connectEndpoint(ctx, cfg, replicaPrimaryEP)
		if err != nil {
			return err
		}
		defer replicaPrimary.Close()

		clusterSetID, _ := cmd.Flags().GetInt64("clusterset-id")

		eng := newEngine(cfg, replicaPrimary)
		cluster, err := eng.Store.GetClusterByName(ctx, args[0])
		if err != nil {
			return err
		}

		return eng.AddReplicaCluster(ctx, engine.AddReplicaClusterOptions{
			ClusterSetID:   clusterSetID,
			GlobalPrimary:  globalPrimary,
			ReplicaCluster: cluster,
			ReplicaPrimary: replicaPrimary,
		})
	},
}

var csFailoverCmd = &cobra.Command{
	Use:   "failover",
	Short: "Promote the most caught-up REPLICA cluster to PRIMARY after the old PRIMARY is lost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		clusterSetID, _ := cmd.Flags().GetInt64("clusterset-id")
		oldPrimaryID, _ := cmd.Flags().GetInt64("old-primary-id")
		candidateList, _ := cmd.Flags().GetString("candidate")

		endpoints := splitList(candidateList)
		if len(endpoints) == 0 {
			return errs.New(errs.BadArg, "--candidate must name at least one endpoint")
		}

		candidates, conns, err := buildClusterSetCandidates(ctx, cfg, endpoints)
		if err != nil {
			return err
		}
		defer closeAll(conns)

		eng := newEngine(cfg, pickAny(conns))
		promoted, err := eng.ForcePrimaryCluster(ctx, engine.ForcePrimaryClusterOptions{
			ClusterSetID: clusterSetID,
			OldPrimaryID: oldPrimaryID,
			Candidates:   candidates,
		})
		if err != nil {
			return err
		}
		cmd.Printf("promoted cluster %s (cluster_id=%d) to PRIMARY\n", promoted.ClusterName, promoted.ClusterID)
		return nil
	},
}

// buildClusterSetCandidates connects to each candidate cluster's primary,
// loads its metadata row, and reads its current GTID_EXECUTED, the inputs
// ForcePrimaryCluster needs to pick a winner (spec.md §4.3).
func buildClusterSetCandidates(ctx context.Context, cfg config.Config, endpoints []string) ([]engine.ClusterSetCandidate, map[string]*instance.Instance, error) {
	conns := connectMany(ctx, cfg, endpoints)
	if len(conns) == 0 {
		return nil, conns, errs.New(errs.GroupHasNoQuorum, "could not reach any candidate replica cluster")
	}

	var candidates []engine.ClusterSetCandidate
	for _, conn := range conns {
		store := newEngine(cfg, conn).Store
		groupName, err := conn.GetGlobalVariable(ctx, "group_replication_group_name")
		if err != nil {
			return nil, conns, err
		}
		cluster, err := store.GetClusterByGroupName(ctx, groupName)
		if err != nil {
			return nil, conns, err
		}
		var gtid string
		if err := conn.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&gtid); err != nil {
			return nil, conns, err
		}
		candidates = append(candidates, engine.ClusterSetCandidate{
			Cluster:      cluster,
			Primary:      conn,
			GTIDExecuted: gtid,
		})
	}
	return candidates, conns, nil
}
