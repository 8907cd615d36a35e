package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print mysqlsh-admin version and supported topologies",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mysqlsh-admin %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Fprintln(cmd.OutOrStdout(), "Supported topologies:")
		fmt.Fprintln(cmd.OutOrStdout(), "  • InnoDB Cluster (Group Replication, single- and multi-primary)")
		fmt.Fprintln(cmd.OutOrStdout(), "  • InnoDB ReplicaSet (star-topology async replication)")
		fmt.Fprintln(cmd.OutOrStdout(), "  • InnoDB ClusterSet (one PRIMARY cluster, N REPLICA clusters)")
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), "MySQL 5.7 is not supported (EOL October 2023).")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
