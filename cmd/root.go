package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/innodbcluster/admin-engine/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mysqlsh-admin",
	Short: "Administer InnoDB Cluster and InnoDB ReplicaSet topologies",
	Long: `mysqlsh-admin drives the same topology-change operations as the
AdminAPI's Cluster/ReplicaSet/ClusterSet objects: adding and removing
members, rejoining a dropped one, promoting a new primary, fencing writes,
rescanning the Metadata, and tearing a deployment down.

It never runs the interactive shell; every subcommand connects, performs
one operation against the Metadata and the live group, and exits.`,
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.mysqlsh-admin/config.yaml)")
	rootCmd.PersistentFlags().StringP("host", "H", "", "MySQL host")
	rootCmd.PersistentFlags().IntP("port", "P", 3306, "MySQL port")
	rootCmd.PersistentFlags().StringP("user", "u", "", "MySQL user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "MySQL password (will prompt if flag present without value)")
	rootCmd.PersistentFlags().Lookup("password").NoOptDefVal = ""
	rootCmd.PersistentFlags().StringP("socket", "S", "", "Unix socket path")
	rootCmd.PersistentFlags().String("tls-mode", "", "TLS mode: disabled, preferred, required, skip-verify, custom")
	rootCmd.PersistentFlags().String("tls-ca", "", "CA bundle path, for --tls-mode=custom")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, plain, json, markdown")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show additional debug info")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("socket", rootCmd.PersistentFlags().Lookup("socket"))
	viper.BindPFlag("tlsMode", rootCmd.PersistentFlags().Lookup("tls-mode"))
	viper.BindPFlag("tlsCA", rootCmd.PersistentFlags().Lookup("tls-ca"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// resolveConfig layers the config file, MYSQLADMIN_* environment
// variables, and the flags bound in init() into one Config, flags taking
// precedence (internal/config.Load's rule). -p with no value (NoOptDefVal)
// triggers an interactive password prompt, mirroring the mysql client.
func resolveConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return cfg, err
	}
	if f := rootCmd.PersistentFlags().Lookup("password"); f.Changed && f.Value.String() == "" {
		pw, err := promptPassword()
		if err != nil {
			return cfg, err
		}
		cfg.Password = pw
	}
	return cfg, nil
}
