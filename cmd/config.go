package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mysqlsh-admin configuration",
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create config file interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		configDir := filepath.Join(home, ".mysqlsh-admin")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Config file already exists at %s\n", configPath)
			fmt.Fprint(cmd.OutOrStdout(), "Overwrite? [y/N]: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}

		if err := os.MkdirAll(configDir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		reader := bufio.NewReader(cmd.InOrStdin())

		fmt.Fprintln(cmd.OutOrStdout(), "mysqlsh-admin configuration setup")
		fmt.Fprintln(cmd.OutOrStdout(), "──────────────────────────────────")
		fmt.Fprintln(cmd.OutOrStdout())

		fmt.Fprint(cmd.OutOrStdout(), "MySQL host [127.0.0.1]: ")
		host, _ := reader.ReadString('\n')
		host = strings.TrimSpace(host)
		if host == "" {
			host = "127.0.0.1"
		}

		fmt.Fprint(cmd.OutOrStdout(), "MySQL port [3306]: ")
		port, _ := reader.ReadString('\n')
		port = strings.TrimSpace(port)
		if port == "" {
			port = "3306"
		}

		fmt.Fprint(cmd.OutOrStdout(), "MySQL admin user [root]: ")
		user, _ := reader.ReadString('\n')
		user = strings.TrimSpace(user)
		if user == "" {
			user = "root"
		}

		fmt.Fprint(cmd.OutOrStdout(), "Default output format [text]: ")
		format, _ := reader.ReadString('\n')
		format = strings.TrimSpace(format)
		if format == "" {
			format = "text"
		}

		fmt.Fprint(cmd.OutOrStdout(), "Default recovery method (AUTO/INCREMENTAL/CLONE) [AUTO]: ")
		recoveryMethod, _ := reader.ReadString('\n')
		recoveryMethod = strings.ToUpper(strings.TrimSpace(recoveryMethod))
		if recoveryMethod == "" {
			recoveryMethod = "AUTO"
		}

		var out strings.Builder
		out.WriteString("# mysqlsh-admin configuration\n\n")
		out.WriteString(fmt.Sprintf("host: %s\n", host))
		out.WriteString(fmt.Sprintf("port: %s\n", port))
		out.WriteString(fmt.Sprintf("user: %s\n", user))
		out.WriteString("# password: omitted for security, will prompt with -p\n")
		out.WriteString(fmt.Sprintf("format: %s\n", format))
		out.WriteString(fmt.Sprintf("recoveryMethod: %s\n", recoveryMethod))
		out.WriteString("accountHostPattern: \"%\"\n")

		if err := os.WriteFile(configPath, []byte(out.String()), 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s Config written to %s\n", "✅", configPath)

		if user != "root" {
			fmt.Fprintln(cmd.OutOrStdout(), "\nRecommended: create a dedicated administrative account:")
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "  CREATE USER '%s'@'%%' IDENTIFIED BY '<password>';\n", user)
			fmt.Fprintf(cmd.OutOrStdout(), "  GRANT ALL PRIVILEGES ON mysql_innodb_cluster_metadata.* TO '%s'@'%%' WITH GRANT OPTION;\n", user)
			fmt.Fprintf(cmd.OutOrStdout(), "  GRANT SELECT ON performance_schema.* TO '%s'@'%%';\n", user)
			fmt.Fprintf(cmd.OutOrStdout(), "  GRANT SUPER, RELOAD, REPLICATION SLAVE, REPLICATION CLIENT ON *.* TO '%s'@'%%';\n", user)
			fmt.Fprintln(cmd.OutOrStdout())
		}

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No config file found.")
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'mysqlsh-admin config init' to create one.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n\n", configFile)

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
