package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/innodbcluster/admin-engine/internal/engine"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/output"
	"github.com/innodbcluster/admin-engine/internal/recovery"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Administer an InnoDB Cluster (Group Replication)",
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	addInstanceCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	addInstanceCmd.Flags().String("recovery-method", "AUTO", "AUTO, INCREMENTAL, or CLONE")
	addInstanceCmd.Flags().String("donor", "", "endpoint to clone from, defaults to --primary")
	addInstanceCmd.Flags().String("label", "", "metadata label for the new member")
	addInstanceCmd.Flags().Int("member-weight", 50, "election weight (0-100)")
	addInstanceCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(addInstanceCmd)

	addReplicaInstanceCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	addReplicaInstanceCmd.Flags().String("label", "", "metadata label for the new read replica")
	addReplicaInstanceCmd.Flags().String("replication-sources", "primary", "primary, secondary, or a comma-separated endpoint:weight list")
	addReplicaInstanceCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(addReplicaInstanceCmd)

	rejoinInstanceCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	rejoinInstanceCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(rejoinInstanceCmd)

	removeInstanceCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	removeInstanceCmd.Flags().Bool("force", false, "remove the metadata row even if the target cannot be reached")
	removeInstanceCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(removeInstanceCmd)

	rescanCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	rescanCmd.Flags().Bool("auto-add", false, "register every GR member missing from the metadata")
	rescanCmd.Flags().Bool("auto-remove", false, "drop every metadata row no longer a GR member")
	rescanCmd.Flags().String("add", "", "comma-separated endpoints to add regardless of --auto-add")
	rescanCmd.Flags().String("remove", "", "comma-separated endpoints to remove regardless of --auto-remove")
	rescanCmd.Flags().Bool("update-view-change-uuid", false, "set group_replication_view_change_uuid when unset")
	rescanCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(rescanCmd)

	statusCmd.Flags().String("instance", "", "any reachable member (required)")
	statusCmd.MarkFlagRequired("instance")
	clusterCmd.AddCommand(statusCmd)

	describeCmd.Flags().String("instance", "", "any reachable member (required)")
	describeCmd.MarkFlagRequired("instance")
	clusterCmd.AddCommand(describeCmd)

	dissolveCmd.Flags().String("reachable", "", "comma-separated list of reachable members (required)")
	dissolveCmd.Flags().Bool("force", false, "drop metadata rows for members that cannot be reached")
	dissolveCmd.MarkFlagRequired("reachable")
	clusterCmd.AddCommand(dissolveCmd)

	setPrimaryInstanceCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	setPrimaryInstanceCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(setPrimaryInstanceCmd)

	switchToSinglePrimaryCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	switchToSinglePrimaryCmd.Flags().String("instance", "", "member to promote; empty lets GR pick")
	switchToSinglePrimaryCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(switchToSinglePrimaryCmd)

	switchToMultiPrimaryCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	switchToMultiPrimaryCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(switchToMultiPrimaryCmd)

	forceQuorumCmd.Flags().String("instance", "", "a reachable member of the surviving partition (required)")
	forceQuorumCmd.MarkFlagRequired("instance")
	clusterCmd.AddCommand(forceQuorumCmd)

	fenceWritesCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	fenceWritesCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(fenceWritesCmd)

	unfenceWritesCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	unfenceWritesCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(unfenceWritesCmd)

	fenceAllTrafficCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	fenceAllTrafficCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(fenceAllTrafficCmd)

	setOptionCmd.Flags().String("reachable", "", "comma-separated list of reachable members (required)")
	setOptionCmd.MarkFlagRequired("reachable")
	clusterCmd.AddCommand(setOptionCmd)

	setInstanceOptionCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	setInstanceOptionCmd.Flags().String("instance", "", "the member the option applies to (required)")
	setInstanceOptionCmd.MarkFlagRequired("primary")
	setInstanceOptionCmd.MarkFlagRequired("instance")
	clusterCmd.AddCommand(setInstanceOptionCmd)

	optionsCmd.Flags().String("reachable", "", "comma-separated list of reachable members (required)")
	optionsCmd.MarkFlagRequired("reachable")
	clusterCmd.AddCommand(optionsCmd)

	setupAdminAccountCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	setupAdminAccountCmd.Flags().String("user", "", "account name (required)")
	setupAdminAccountCmd.Flags().String("host", "%", "allowed host pattern")
	setupAdminAccountCmd.Flags().Bool("update", false, "alter the account if it already exists")
	setupAdminAccountCmd.MarkFlagRequired("primary")
	setupAdminAccountCmd.MarkFlagRequired("user")
	clusterCmd.AddCommand(setupAdminAccountCmd)

	setupRouterAccountCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	setupRouterAccountCmd.Flags().String("user", "", "account name (required)")
	setupRouterAccountCmd.Flags().String("host", "%", "allowed host pattern")
	setupRouterAccountCmd.Flags().Bool("update", false, "alter the account if it already exists")
	setupRouterAccountCmd.MarkFlagRequired("primary")
	setupRouterAccountCmd.MarkFlagRequired("user")
	clusterCmd.AddCommand(setupRouterAccountCmd)

	resetRecoveryAccountsPasswordCmd.Flags().String("primary", "", "endpoint of a reachable cluster member (required)")
	resetRecoveryAccountsPasswordCmd.Flags().String("reachable", "", "comma-separated list of reachable members, for password propagation")
	resetRecoveryAccountsPasswordCmd.MarkFlagRequired("primary")
	clusterCmd.AddCommand(resetRecoveryAccountsPasswordCmd)
}

var addInstanceCmd = &cobra.Command{
	Use:   "add-instance <cluster-name> <endpoint>",
	Short: "Join a new member to the cluster's Group Replication group",
	Args:  cobra.ExactArgs(2),
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

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		method, _ := cmd.Flags().GetString("recovery-method")
		donorEP, _ := cmd.Flags().GetString("donor")
		label, _ := cmd.Flags().GetString("label")
		weight, _ := cmd.Flags().GetInt("member-weight")

		donor := primary
		if donorEP != "" {
			d, err := connectEndpoint(ctx, cfg, donorEP)
			if err != nil {
				return err
			}
			defer d.Close()
			donor = d
		}

		eng := newEngine(cfg, primary)
		return eng.AddInstance(ctx, engine.AddInstanceOptions{
			ClusterName:    args[0],
			Target:         target,
			Primary:        primary,
			RecoveryMethod: recovery.Method(strings.ToUpper(method)),
			Donor:          donor,
			Label:          label,
			MemberWeight:   weight,
		})
	},
}

var addReplicaInstanceCmd = &cobra.Command{
	Use:   "add-replica-instance <cluster-name> <endpoint>",
	Short: "Add a Read-Replica following the cluster over an async channel",
	Args:  cobra.ExactArgs(2),
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

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		label, _ := cmd.Flags().GetString("label")
		sources, _ := cmd.Flags().GetString("replication-sources")

		policy, custom, err := parseReplicationSources(sources)
		if err != nil {
			return err
		}

		eng := newEngine(cfg, primary)
		return eng.AddReplicaInstance(ctx, engine.AddReplicaInstanceOptions{
			ClusterName:   args[0],
			Primary:       primary,
			Target:        target,
			Label:         label,
			Policy:        policy,
			CustomSources: custom,
		})
	},
}

// parseReplicationSources turns --replication-sources into a policy plus,
// for CUSTOM, the endpoint:weight list addReplicaInstance needs.
func parseReplicationSources(raw string) (metadata.ReplicationSourcesPolicy, []metadata.WeightedSource, error) {
	switch strings.ToLower(raw) {
	case "primary", "":
		return metadata.SourcesPrimary, nil, nil
	case "secondary":
		return metadata.SourcesSecondary, nil, nil
	}
	var sources []metadata.WeightedSource
	for _, item := range splitList(raw) {
		endpoint, weightStr, ok := strings.Cut(item, ":")
		weight := 50
		if ok {
			w, err := strconv.Atoi(weightStr)
			if err != nil {
				return "", nil, fmt.Errorf("invalid weight in %q: %w", item, err)
			}
			weight = w
		} else {
			endpoint = item
		}
		sources = append(sources, metadata.WeightedSource{Endpoint: endpoint, Weight: weight})
	}
	if len(sources) == 0 {
		return "", nil, fmt.Errorf("--replication-sources=%q: expected primary, secondary, or endpoint:weight[,...]", raw)
	}
	return metadata.SourcesCustom, sources, nil
}

var rejoinInstanceCmd = &cobra.Command{
	Use:   "rejoin-instance <cluster-name> <endpoint>",
	Short: "Rejoin a member that fell out of the group or lost its channel",
	Args:  cobra.ExactArgs(2),
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

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		eng := newEngine(cfg, primary)
		return eng.RejoinInstance(ctx, engine.RejoinInstanceOptions{
			ClusterName: args[0],
			Primary:     primary,
			Target:      target,
		})
	},
}

var removeInstanceCmd = &cobra.Command{
	Use:   "remove-instance <cluster-name> <endpoint>",
	Short: "Remove a member from the cluster",
	Args:  cobra.ExactArgs(2),
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

		force, _ := cmd.Flags().GetBool("force")

		conn, connErr := connectEndpoint(ctx, cfg, args[1])
		if connErr == nil {
			defer conn.Close()
		} else if !force {
			return connErr
		}

		eng := newEngine(cfg, primary)
		opts := engine.RemoveInstanceOptions{
			ClusterName: args[0],
			Primary:     primary,
			Endpoint:    args[1],
			Force:       force,
		}
		if connErr == nil {
			opts.Target = conn
		}
		return eng.RemoveInstance(ctx, opts)
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan <cluster-name>",
	Short: "Reconcile the metadata against the live group",
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

		autoAdd, _ := cmd.Flags().GetBool("auto-add")
		autoRemove, _ := cmd.Flags().GetBool("auto-remove")
		addList, _ := cmd.Flags().GetString("add")
		removeList, _ := cmd.Flags().GetString("remove")
		updateUUID, _ := cmd.Flags().GetBool("update-view-change-uuid")

		eng := newEngine(cfg, primary)
		result, err := eng.Rescan(ctx, engine.RescanOptions{
			ClusterName:          args[0],
			Primary:              primary,
			AutoAdd:              autoAdd,
			AutoRemove:           autoRemove,
			AddList:              splitList(addList),
			RemoveList:           splitList(removeList),
			UpdateViewChangeUUID: updateUUID,
		})
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderRescan(result)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <cluster-name>",
	Short: "Print a live snapshot of the cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		instEP, _ := cmd.Flags().GetString("instance")
		conn, err := connectEndpoint(ctx, cfg, instEP)
		if err != nil {
			return err
		}
		defer conn.Close()

		eng := newEngine(cfg, conn)
		report, err := eng.Status(ctx, args[0], conn)
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderStatus(report)
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <cluster-name>",
	Short: "Print the cluster's metadata-only topology",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		instEP, _ := cmd.Flags().GetString("instance")
		conn, err := connectEndpoint(ctx, cfg, instEP)
		if err != nil {
			return err
		}
		defer conn.Close()

		eng := newEngine(cfg, conn)
		cluster, err := eng.Store.GetClusterByName(ctx, args[0])
		if err != nil {
			return err
		}
		report, err := eng.Describe(ctx, cluster)
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderDescribe(report)
		return nil
	},
}

var dissolveCmd = &cobra.Command{
	Use:   "dissolve <cluster-name>",
	Short: "Tear the cluster down and remove it from the metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		reachableList, _ := cmd.Flags().GetString("reachable")
		force, _ := cmd.Flags().GetBool("force")
		endpoints := splitList(reachableList)
		if len(endpoints) == 0 {
			return errs.New(errs.BadArg, "--reachable must name at least one endpoint")
		}

		conns := connectMany(ctx, cfg, endpoints)
		defer closeAll(conns)
		if len(conns) == 0 {
			return errs.New(errs.GroupHasNoQuorum, "could not reach any of the listed members")
		}

		primary := pickAny(conns)
		eng := newEngine(cfg, primary)
		result, err := eng.Dissolve(ctx, engine.DissolveOptions{
			ClusterName: args[0],
			Primary:     primary,
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

var setPrimaryInstanceCmd = &cobra.Command{
	Use:   "set-primary-instance <cluster-name> <new-primary-endpoint>",
	Short: "Elect a new primary in a single-primary cluster",
	Args:  cobra.ExactArgs(2),
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

		target, err := connectEndpoint(ctx, cfg, args[1])
		if err != nil {
			return err
		}
		defer target.Close()

		eng := newEngine(cfg, primary)
		return eng.SetPrimaryInstance(ctx, engine.SetPrimaryInstanceOptions{
			ClusterName:    args[0],
			Primary:        primary,
			NewPrimaryUUID: target.ServerUUID(),
		})
	},
}

var switchToSinglePrimaryCmd = &cobra.Command{
	Use:   "switch-to-single-primary-mode <cluster-name>",
	Short: "Switch a multi-primary cluster back to single-primary mode",
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

		newPrimaryUUID := ""
		if instEP, _ := cmd.Flags().GetString("instance"); instEP != "" {
			target, err := connectEndpoint(ctx, cfg, instEP)
			if err != nil {
				return err
			}
			defer target.Close()
			newPrimaryUUID = target.ServerUUID()
		}

		eng := newEngine(cfg, primary)
		return eng.SwitchToSinglePrimaryMode(ctx, engine.SwitchToSinglePrimaryModeOptions{
			ClusterName:    args[0],
			Primary:        primary,
			NewPrimaryUUID: newPrimaryUUID,
		})
	},
}

var switchToMultiPrimaryCmd = &cobra.Command{
	Use:   "switch-to-multi-primary-mode <cluster-name>",
	Short: "Switch a single-primary cluster to multi-primary mode",
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

		eng := newEngine(cfg, primary)
		return eng.SwitchToMultiPrimaryMode(ctx, engine.SwitchToMultiPrimaryModeOptions{
			ClusterName: args[0],
			Primary:     primary,
		})
	},
}

var forceQuorumCmd = &cobra.Command{
	Use:   "force-quorum-using-partition-of <cluster-name>",
	Short: "Force the group's quorum to the partition reachable from --instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		instEP, _ := cmd.Flags().GetString("instance")
		conn, err := connectEndpoint(ctx, cfg, instEP)
		if err != nil {
			return err
		}
		defer conn.Close()

		eng := newEngine(cfg, conn)
		return eng.ForceQuorumUsingPartitionOf(ctx, engine.ForceQuorumUsingPartitionOfOptions{
			ClusterName: args[0],
			Reachable:   conn,
		})
	},
}

var fenceWritesCmd = &cobra.Command{
	Use:   "fence-writes <cluster-name>",
	Short: "Set super_read_only on every online member",
	Args:  cobra.ExactArgs(1),
	RunE:  fenceRunner(func(e *engine.Engine, ctx context.Context, opts engine.FenceOptions) error { return e.FenceWrites(ctx, opts) }),
}

var unfenceWritesCmd = &cobra.Command{
	Use:   "unfence-writes <cluster-name>",
	Short: "Clear super_read_only on every online member",
	Args:  cobra.ExactArgs(1),
	RunE:  fenceRunner(func(e *engine.Engine, ctx context.Context, opts engine.FenceOptions) error { return e.UnfenceWrites(ctx, opts) }),
}

var fenceAllTrafficCmd = &cobra.Command{
	Use:   "fence-all-traffic <cluster-name>",
	Short: "Stop Group Replication on every online member, fencing reads and writes",
	Args:  cobra.ExactArgs(1),
	RunE:  fenceRunner(func(e *engine.Engine, ctx context.Context, opts engine.FenceOptions) error { return e.FenceAllTraffic(ctx, opts) }),
}

func fenceRunner(call func(*engine.Engine, context.Context, engine.FenceOptions) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		eng := newEngine(cfg, primary)
		return call(eng, ctx, engine.FenceOptions{ClusterName: args[0], Primary: primary})
	}
}

var setOptionCmd = &cobra.Command{
	Use:   "set-option <cluster-name> <name> <value>",
	Short: "Set a Group Replication option across the cluster",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		reachableList, _ := cmd.Flags().GetString("reachable")
		conns := connectMany(ctx, cfg, splitList(reachableList))
		defer closeAll(conns)
		if len(conns) == 0 {
			return errs.New(errs.GroupHasNoQuorum, "could not reach any of the listed members")
		}
		primary := pickAny(conns)

		eng := newEngine(cfg, primary)
		return eng.SetOption(ctx, engine.SetOptionOptions{
			ClusterName: args[0],
			Primary:     primary,
			Targets:     conns,
			Name:        args[1],
			Value:       args[2],
		})
	},
}

var setInstanceOptionCmd = &cobra.Command{
	Use:   "set-instance-option <cluster-name> <name> <value>",
	Short: "Set a Group Replication option on one member",
	Args:  cobra.ExactArgs(3),
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

		instEP, _ := cmd.Flags().GetString("instance")
		target, err := connectEndpoint(ctx, cfg, instEP)
		if err != nil {
			return err
		}
		defer target.Close()

		eng := newEngine(cfg, primary)
		return eng.SetInstanceOption(ctx, engine.SetInstanceOptionOptions{
			ClusterName: args[0],
			Primary:     primary,
			Target:      target,
			Name:        args[1],
			Value:       args[2],
		})
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options <cluster-name>",
	Short: "Print the live option values of every reachable member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		reachableList, _ := cmd.Flags().GetString("reachable")
		conns := connectMany(ctx, cfg, splitList(reachableList))
		defer closeAll(conns)

		eng := newEngine(cfg, pickAny(conns))
		opts, err := eng.Options(ctx, args[0], conns)
		if err != nil {
			return err
		}
		output.NewRenderer(cfg.Format, cmd.OutOrStdout()).RenderOptions(opts)
		return nil
	},
}

var setupAdminAccountCmd = &cobra.Command{
	Use:   "setup-admin-account <cluster-name>",
	Short: "Create or update an account with full metadata privileges",
	Args:  cobra.ExactArgs(1),
	RunE: accountRunner(func(e *engine.Engine, ctx context.Context, primary *instance.Instance, user, host, password string, update bool) error {
		return e.SetupAdminAccount(ctx, engine.SetupAdminAccountOptions{Primary: primary, User: user, Host: host, Password: password, Update: update})
	}),
}

var setupRouterAccountCmd = &cobra.Command{
	Use:   "setup-router-account <cluster-name>",
	Short: "Create or update a Router account",
	Args:  cobra.ExactArgs(1),
	RunE: accountRunner(func(e *engine.Engine, ctx context.Context, primary *instance.Instance, user, host, password string, update bool) error {
		return e.SetupRouterAccount(ctx, engine.SetupRouterAccountOptions{Primary: primary, User: user, Host: host, Password: password, Update: update})
	}),
}

func accountRunner(call func(e *engine.Engine, ctx context.Context, primary *instance.Instance, user, host, password string, update bool) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		user, _ := cmd.Flags().GetString("user")
		host, _ := cmd.Flags().GetString("host")
		update, _ := cmd.Flags().GetBool("update")

		password, err := promptPassword()
		if err != nil {
			return err
		}

		eng := newEngine(cfg, primary)
		return call(eng, ctx, primary, user, host, password, update)
	}
}

var resetRecoveryAccountsPasswordCmd = &cobra.Command{
	Use:   "reset-recovery-accounts-password <cluster-name>",
	Short: "Rotate every member's recovery-channel password",
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

		reachableList, _ := cmd.Flags().GetString("reachable")
		conns := connectMany(ctx, cfg, splitList(reachableList))
		defer closeAll(conns)

		eng := newEngine(cfg, primary)
		return eng.ResetRecoveryAccountsPassword(ctx, engine.ResetRecoveryAccountsPasswordOptions{
			ClusterName: args[0],
			Primary:     primary,
			Targets:     conns,
		})
	},
}
