// Package config holds the engine-wide configuration: connection defaults,
// lock-acquisition timeouts, GR state-wait timeouts, and recovery-method
// policy. It is bound from a YAML file, environment variables, and CLI
// flags, flags taking precedence, the same layering cmd/root.go uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// RecoveryPolicy is the default recovery-method choice an operator can pin
// for addInstance/addReplicaInstance when not explicitly overridden per call.
type RecoveryPolicy string

const (
	RecoveryAuto        RecoveryPolicy = "AUTO"
	RecoveryIncremental RecoveryPolicy = "INCREMENTAL"
	RecoveryClone       RecoveryPolicy = "CLONE"
)

// Config is the fully resolved engine configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Socket   string
	TLSMode  string
	TLSCA    string

	// Format controls status/describe rendering: text, plain, json, markdown.
	Format  string
	Verbose bool

	// LockTimeout bounds named-lock acquisition (spec.md §5).
	LockTimeout time.Duration
	// GRStateTimeout bounds waits for RECOVERING->ONLINE transitions.
	GRStateTimeout time.Duration
	// CloneTimeout is loaded from configuration but no command reads it;
	// the wait after START GROUP_REPLICATION is bounded by GRStateTimeout.
	CloneTimeout time.Duration
	// GTIDSyncTimeout bounds waits for transaction catch-up before remove.
	GTIDSyncTimeout time.Duration

	RecoveryMethod RecoveryPolicy

	// AccountHostPattern is the default allowed-host pattern for newly
	// created replication accounts, e.g. "%".
	AccountHostPattern string
}

// Default returns the engine defaults applied before config file, env, and
// flags are layered on top.
func Default() Config {
	return Config{
		Port:               3306,
		Format:             "text",
		LockTimeout:        10 * time.Second,
		GRStateTimeout:     2 * time.Minute,
		CloneTimeout:       15 * time.Minute,
		GTIDSyncTimeout:    1 * time.Minute,
		RecoveryMethod:     RecoveryAuto,
		AccountHostPattern: "%",
	}
}

// Load reads the config file (if present), environment variables prefixed
// MYSQLADMIN_, and returns the layered result. cfgFile, if non-empty,
// overrides the default search path.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	cfg := Default()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".mysqlsh-admin"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	v.SetEnvPrefix("MYSQLADMIN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
	}

	if v.IsSet("host") {
		cfg.Host = v.GetString("host")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("user") {
		cfg.User = v.GetString("user")
	}
	if v.IsSet("password") {
		cfg.Password = v.GetString("password")
	}
	if v.IsSet("socket") {
		cfg.Socket = v.GetString("socket")
	}
	if v.IsSet("tlsMode") {
		cfg.TLSMode = v.GetString("tlsMode")
	}
	if v.IsSet("tlsCA") {
		cfg.TLSCA = v.GetString("tlsCA")
	}
	if v.IsSet("format") {
		cfg.Format = v.GetString("format")
	}
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}
	if v.IsSet("lockTimeout") {
		cfg.LockTimeout = v.GetDuration("lockTimeout")
	}
	if v.IsSet("grStateTimeout") {
		cfg.GRStateTimeout = v.GetDuration("grStateTimeout")
	}
	if v.IsSet("cloneTimeout") {
		cfg.CloneTimeout = v.GetDuration("cloneTimeout")
	}
	if v.IsSet("gtidSyncTimeout") {
		cfg.GTIDSyncTimeout = v.GetDuration("gtidSyncTimeout")
	}
	if v.IsSet("recoveryMethod") {
		cfg.RecoveryMethod = RecoveryPolicy(v.GetString("recoveryMethod"))
	}
	if v.IsSet("accountHostPattern") {
		cfg.AccountHostPattern = v.GetString("accountHostPattern")
	}

	return cfg, nil
}
