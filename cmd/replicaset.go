package cmd

import (
	"github.com/spf13/cobra"

	"github.com/innodbcluster/admin-engine/internal/config"
	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/output"
)

var replicasetCmd = &cobra.Command{
	Use:   "replicaset",
	Short: "Administer an InnoDB ReplicaSet (star-topology async replication)",
}

func init() {
	rootCmd.AddCommand(replicasetCmd)

	rsAddInstanceCmd.Flags().String("reachable", "", "comma-separated list of already-known members (required)")
	rsAddInstanceCmd.Flags().String("label", "", "metadata label for the new member")
	rsAddInstanceCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsAddInstanceCmd)

	rsRejoinInstanceCmd.Flags().String("reachable", "", "comma-separated list of already-known members (required)")
	rsRejoinInstanceCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsRejoinInstanceCmd)

	rsRemoveInstanceCmd.Flags().String("reachable", "", "comma-separated list of already-known members (required)")
	rsRemoveInstanceCmd.Flags().Bool("force", false, "remove the metadata row even if the target cannot be reached")
	rsRemoveInstanceCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsRemoveInstanceCmd)

	rsSetPrimaryInstanceCmd.Flags().String("reachable", "", "comma-separated list of already-known members (required)")
	rsSetPrimaryInstanceCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsSetPrimaryInstanceCmd)

	rsForcePrimaryInstanceCmd.Flags().String("reachable", "", "comma-separated list of reachable members; the unreachable old primary is simply absent (required)")
	rsForcePrimaryInstanceCmd.Flags().String("new-primary", "", "endpoint to promote; empty lets the engine pick the most caught-up candidate")
	rsForcePrimaryInstanceCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsForcePrimaryInstanceCmd)

	rsStatusCmd.Flags().String("reachable", "", "comma-separated list of reachable members (required)")
	rsStatusCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsStatusCmd)

	rsDissolveCmd.Flags().String("reachable", "", "comma-separated list of reachable members (required)")
	rsDissolveCmd.Flags().Bool("force", false, "drop metadata rows for members that cannot be reached")
	rsDissolveCmd.MarkFlagRequired("reachable")
	replicasetCmd.AddCommand(rsDissolveCmd)
}

// rsConnect resolves the config and opens every --reachable endpoint.
// ReplicaSet commands have no single fixed "primary" flag since the whole
// point of several of them is that the primary may be unreachable.
func rsConnect(cmd *cobra.Command) (config.Config, map[string]*instance.Instance, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return cfg, nil, err
	}
	reachableList, _ := cmd.Flags().GetString("reachable")
	endpoints := splitList(reachableList)
	if len(endpoints) == 0 {
		return cfg, nil, errs.New(errs.BadArg, "--reachable must name at least one endpoint")
	}
	conns := connectMany(cmd.Context(), cfg, endpoints)
	if len(conns) == 0 {
		return cfg, conns, errs.New(errs.GroupHasNoQuorum, "could not reach any of the listed members")
	}
	return cfg, conns, nil
}

var rsAddInstanceCmd = &cobra.Command{
	Use:   "add-instance <cluster-name> <endpoint>",
	Short: "Add a new SECONDARY to the ReplicaSet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		label, _ := cmd.Flags().GetString("label")

		eng := newEngine(cfg, pickAny(conns))
		return eng.AddInstanceToReplicaSet(ctx, engine.AddInstanceToReplicaSetOptions{
			ClusterName: args[0],
			Target:      target,
			Reachable:   conns,
			Label:       label,
		})
	},
}

var rsRejoinInstanceCmd = &cobra.Command{
	Use:   "rejoin-instance <cluster-name> <endpoint>",
	Short: "Restart replication on a SECONDARY that fell off the ReplicaSet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		eng := newEngine(cfg, pickAny(conns))
		return eng.RejoinInstanceInReplicaSet(ctx, engine.RejoinInstanceInReplicaSetOptions{
			ClusterName: args[0],
			Target:      target,
			Reachable:   conns,
		})
	},
}

var rsRemoveInstanceCmd = &cobra.Command{
	Use:   "remove-instance <cluster-name> <endpoint>",
	Short: "Remove a SECONDARY from the ReplicaSet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		force, _ := cmd.Flags().GetBool("force")

		target, connErr := connectEndpoint(ctx, cfg, args[1])
		if connErr == nil {
			defer target.Close()
		} else if !force {
			return connErr
		}

		eng := newEngine(cfg, pickAny(conns))
		opts := engine.RemoveInstanceFromReplicaSetOptions{
			ClusterName: args[0],
			Reachable:   conns,
			Endpoint:    args[1],
			Force:       force,
		}
		if connErr == nil {
			opts.Target = target
		}
		return eng.RemoveInstanceFromReplicaSet(ctx, opts)
	},
}

var rsSetPrimaryInstanceCmd = &cobra.Command{
	Use:   "set-primary-instance <cluster-name> <new-primary-endpoint>",
	Short: "Promote an ONLINE SECONDARY to PRIMARY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		eng := newEngine(cfg, pickAny(conns))
		return eng.SetPrimaryInstanceReplicaSet(ctx, engine.SetPrimaryInstanceReplicaSetOptions{
			ClusterName:        args[0],
			Reachable:          conns,
			NewPrimaryEndpoint: args[1],
		})
	},
}

var rsForcePrimaryInstanceCmd = &cobra.Command{
	Use:   "force-primary-instance <cluster-name>",
	Short: "Promote a SECONDARY when the current PRIMARY cannot be reached at all",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		newPrimary, _ := cmd.Flags().GetString("new-primary")

		eng := newEngine(cfg, pickAny(conns))
		promoted, err := eng.ForcePrimaryInstanceReplicaSet(ctx, engine.ForcePrimaryInstanceReplicaSetOptions{
			ClusterName:        args[0],
			Reachable:          conns,
			NewPrimaryEndpoint: newPrimary,
		})
		if err != nil {
			return err
		}
		cmd.Printf("promoted %s to PRIMARY\n", promoted)
		return nil
	},
}

var rsStatusCmd = &cobra.Command{
	Use:   "status <cluster-name>",
	Short: "Print a live snapshot of the ReplicaSet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		eng := newEngine(cfg, pickAny(conns))
		report, err := eng.StatusReplicaSet(ctx, args[0], conns)
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderStatus(report)
		return nil
	},
}

var rsDissolveCmd = &cobra.Command{
	Use:   "dissolve <cluster-name>",
	Short: "Tear the ReplicaSet down and remove it from the metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conns, err := rsConnect(cmd)
		if err != nil {
			return err
		}
		defer closeAll(conns)
		ctx := cmd.Context()

		force, _ := cmd.Flags().GetBool("force")

		eng := newEngine(cfg, pickAny(conns))
		result, err := eng.DissolveReplicaSet(ctx, engine.DissolveOptions{
			ClusterName: args[0],
			Primary:     pickAny(conns),
			Reachable:   conns,
			Force:       force,
		})
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderDissolve(result)
		return nil
	},
}
