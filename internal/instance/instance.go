// Package instance implements the Instance handle component of §2: a
// connected SQL session plus cached sysvars for one MySQL server, able to
// set variables at GLOBAL/PERSIST/PERSIST_ONLY scope and acquire named
// locks via the locking-service UDFs. It is the only package that issues
// SQL directly against a cluster member; every other package in this module
// talks to a member exclusively through an *Instance.
//
// Connection handling (DSN construction, TLS registration, pooling) follows
// internal/mysql/connection.go in the teacher repo; this package generalizes
// it from a single short-lived CLI connection to a longer-lived handle that
// also caches sysvars and exposes locking-service calls.
package instance

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// ConnectionConfig holds MySQL connection parameters for one member.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Socket   string
	TLSMode  string // "", "disabled", "preferred", "required", "skip-verify", "custom"
	TLSCA    string
}

// Endpoint returns the canonical host:port form used throughout the
// Metadata (spec.md §3.1 Instance.endpoint).
func (c ConnectionConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Scope selects where a sysvar write lands: the live GLOBAL value, the
// persisted-config store, or both (spec.md §4.2 step 8, §6.5).
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopePersist
	ScopePersistOnly
)

func (s Scope) sqlKeyword() string {
	switch s {
	case ScopePersist:
		return "PERSIST"
	case ScopePersistOnly:
		return "PERSIST_ONLY"
	default:
		return "GLOBAL"
	}
}

// Instance is a connected SQL session plus cached sysvars for one server.
type Instance struct {
	cfg ConnectionConfig
	db  *sql.DB

	mu       sync.RWMutex
	sysvars  map[string]string
	uuid     string
	serverID uint32
	version  ServerVersion
}

// Connect opens and pings a connection to a cluster member. Mirrors
// internal/mysql/connection.go's Connect, generalized to cache server
// identity (uuid/server_id/version) immediately, since almost every
// topology decision needs them.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Instance, error) {
	if cfg.TLSMode == "custom" {
		if cfg.TLSCA == "" {
			return nil, fmt.Errorf("tls-ca is required when tls mode is custom")
		}
		if err := registerCustomTLS(cfg.Endpoint(), cfg.TLSCA); err != nil {
			return nil, fmt.Errorf("tls setup failed: %w", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", cfg.Endpoint(), err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Endpoint(), err)
	}

	// A handle is held for the lifetime of a command across many steps; a
	// larger pool than the teacher's CLI-tool default avoids serializing
	// unrelated queries against the same member within one command.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	inst := &Instance{cfg: cfg, db: db, sysvars: make(map[string]string)}
	if err := inst.refreshIdentity(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return inst, nil
}

func (i *Instance) refreshIdentity(ctx context.Context) error {
	var raw string
	if err := i.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return fmt.Errorf("querying version on %s: %w", i.Endpoint(), err)
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return err
	}

	uuid, err := i.GetGlobalVariable(ctx, "server_uuid")
	if err != nil {
		return err
	}
	sidStr, err := i.GetGlobalVariable(ctx, "server_id")
	if err != nil {
		return err
	}
	var sid uint32
	fmt.Sscanf(sidStr, "%d", &sid)

	i.mu.Lock()
	i.version = v
	i.uuid = uuid
	i.serverID = sid
	i.mu.Unlock()
	return nil
}

// NewForTesting builds an Instance around an already-open *sql.DB (a
// sqlmock database in tests), bypassing Connect's dialing and identity
// refresh. Exported so other packages' tests (metadata, accounts,
// topologyview, ...) can exercise code that takes an *Instance without a
// real server, the same role sqlmock plays in the teacher's *_test.go files.
func NewForTesting(db *sql.DB, cfg ConnectionConfig, uuid string, serverID uint32, version ServerVersion) *Instance {
	return &Instance{cfg: cfg, db: db, sysvars: make(map[string]string), uuid: uuid, serverID: serverID, version: version}
}

// Close releases the underlying connection.
func (i *Instance) Close() error { return i.db.Close() }

// Endpoint is the canonical host:port this handle was connected to.
func (i *Instance) Endpoint() string { return i.cfg.Endpoint() }

// Config returns the connection config this handle was opened with.
func (i *Instance) Config() ConnectionConfig { return i.cfg }

// DB exposes the underlying *sql.DB for packages (metadata, accounts) that
// need to run their own statements without re-implementing query plumbing.
func (i *Instance) DB() *sql.DB { return i.db }

// ServerUUID returns the cached server_uuid.
func (i *Instance) ServerUUID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.uuid
}

// ServerID returns the cached server_id.
func (i *Instance) ServerID() uint32 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.serverID
}

// Version returns the cached parsed server version.
func (i *Instance) Version() ServerVersion {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.version
}

// GetGlobalVariable reads a single GLOBAL sysvar, using SHOW GLOBAL
// VARIABLES LIKE as the teacher's GetVariable does, since prepared
// statements are not universally supported for SHOW commands.
func (i *Instance) GetGlobalVariable(ctx context.Context, name string) (string, error) {
	var varName, value sql.NullString
	query := fmt.Sprintf("SHOW GLOBAL VARIABLES LIKE %s", quoteLike(name))
	if err := i.db.QueryRowContext(ctx, query).Scan(&varName, &value); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("variable %q does not exist", name)
		}
		return "", fmt.Errorf("reading variable %q: %w", name, err)
	}
	return value.String, nil
}

// SetVariable applies SET [GLOBAL|PERSIST|PERSIST_ONLY] name = value.
// Callers (the member-configuration applier) decide scope based on server
// reachability and version support (spec.md §4.8).
func (i *Instance) SetVariable(ctx context.Context, scope Scope, name, literalValue string) error {
	stmt := fmt.Sprintf("SET %s %s = %s", scope.sqlKeyword(), name, literalValue)
	if _, err := i.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("setting %s (%s) on %s: %w", name, scope.sqlKeyword(), i.Endpoint(), err)
	}
	i.mu.Lock()
	i.sysvars[name] = literalValue
	i.mu.Unlock()
	return nil
}

// Exec runs a statement with no result set expected (account management,
// GR UDF calls, CHANGE REPLICATION SOURCE, ...).
func (i *Instance) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := i.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing on %s: %w", i.Endpoint(), err)
	}
	return res, nil
}

// Query runs a statement returning rows.
func (i *Instance) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", i.Endpoint(), err)
	}
	return rows, nil
}

// QueryRow runs a statement returning at most one row.
func (i *Instance) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return i.db.QueryRowContext(ctx, query, args...)
}

// AcquireLock takes a named lock via the locking-service UDFs
// (service_get_write_locks / service_get_read_locks, spec.md §6.3), scoped
// to the AdminAPI_cluster namespace (spec.md §5).
func (i *Instance) AcquireLock(ctx context.Context, namespace, name string, exclusive bool, timeout time.Duration) error {
	fn := "service_get_read_locks"
	if exclusive {
		fn = "service_get_write_locks"
	}
	var ok int
	query := fmt.Sprintf("SELECT %s(%s, %s, %d)", fn, sqlutil.QuoteString(namespace), sqlutil.QuoteString(name), int(timeout.Seconds()))
	if err := i.db.QueryRowContext(ctx, query).Scan(&ok); err != nil {
		return fmt.Errorf("acquiring lock %s.%s on %s: %w", namespace, name, i.Endpoint(), err)
	}
	if ok != 1 {
		return fmt.Errorf("lock %s.%s not granted on %s", namespace, name, i.Endpoint())
	}
	return nil
}

// ReleaseLock releases every lock this session holds in namespace, via
// service_release_locks.
func (i *Instance) ReleaseLock(ctx context.Context, namespace string) error {
	var ok int
	query := fmt.Sprintf("SELECT service_release_locks(%s)", sqlutil.QuoteString(namespace))
	if err := i.db.QueryRowContext(ctx, query).Scan(&ok); err != nil {
		return fmt.Errorf("releasing locks in %s on %s: %w", namespace, i.Endpoint(), err)
	}
	return nil
}

func registerCustomTLS(endpoint, caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate %q: %w", caPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no valid certificates found in %q", caPath)
	}
	return mysqldriver.RegisterTLSConfig("admin-engine-"+endpoint, &tls.Config{RootCAs: pool})
}

func buildDSN(cfg ConnectionConfig) (string, error) {
	switch cfg.TLSMode {
	case "", "disabled", "preferred", "required", "skip-verify", "custom":
	default:
		return "", fmt.Errorf("invalid TLS mode %q", cfg.TLSMode)
	}

	var addr string
	if cfg.Socket != "" {
		addr = fmt.Sprintf("unix(%s)", cfg.Socket)
	} else {
		addr = fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	}

	dsn := fmt.Sprintf("%s:%s@%s/?parseTime=true&interpolateParams=true", cfg.User, cfg.Password, addr)

	switch cfg.TLSMode {
	case "preferred":
		dsn += "&tls=preferred"
	case "required":
		dsn += "&tls=true"
	case "skip-verify":
		dsn += "&tls=skip-verify"
	case "custom":
		dsn += "&tls=" + "admin-engine-" + cfg.Endpoint()
	}
	return dsn, nil
}

func quoteLike(name string) string {
	return sqlutil.QuoteString(name)
}
