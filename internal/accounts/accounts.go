// Package accounts implements the replication account manager of §4.6:
// deterministic account naming, five auth types, grant/undo snapshots, and
// password rotation pushed through CHANGE REPLICATION SOURCE.
//
// Statement shaping follows the teacher's pattern of building parameterized
// DDL/DML strings with explicit identifier/string quoting
// (internal/mysql/metadata.go's escapeIdentifier), generalized here to
// CREATE USER/GRANT/DROP USER instead of schema introspection, and grounded
// on original_source/modules/adminapi/common/accounts.cc for the exact
// grant shape (REPLICATION SLAVE, REPLICATION CONNECTION_ADMIN for HA
// recovery users; no SELECT on the metadata schema).
package accounts

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// AuthType enumerates the five supported authentication modes (spec.md §4.6).
type AuthType string

const (
	Password            AuthType = "PASSWORD"
	CertIssuer          AuthType = "CERT_ISSUER"
	CertIssuerPassword  AuthType = "CERT_ISSUER_PASSWORD"
	CertSubject         AuthType = "CERT_SUBJECT"
	CertSubjectPassword AuthType = "CERT_SUBJECT_PASSWORD"
)

// RecoveryAccountPrefix, ClusterSetAccountPrefix and ReadReplicaAccountPrefix
// name the three deterministic account families of spec.md §4.6 / §3.2
// invariant 6.
const (
	RecoveryAccountPrefix   = "mysql_innodb_cluster_"
	ClusterSetAccountPrefix = "mysql_innodb_cs_"
	ReadReplicaAccountPrefix = "mysql_innodb_replica_"
)

// Credentials describes one account to create or refresh.
type Credentials struct {
	User     string
	Host     string
	Auth     AuthType
	Password string // used when Auth is PASSWORD or a *_PASSWORD combination
	CertIssuer  string
	CertSubject string
}

// RecoveryAccountName builds the deterministic HA recovery account name
// `<prefix><server_id>` (spec.md §3.2 invariant 6, §4.6).
func RecoveryAccountName(serverID uint32) string {
	return fmt.Sprintf("%s%d", RecoveryAccountPrefix, serverID)
}

// ClusterSetAccountName builds the deterministic ClusterSet channel account
// name `<prefix><uuid-suffix>` (spec.md §4.6).
func ClusterSetAccountName(uuidSuffix string) string {
	return fmt.Sprintf("%s%s", ClusterSetAccountPrefix, uuidSuffix)
}

// ReadReplicaAccountName builds the deterministic Read-Replica channel
// account name (spec.md §4.6).
func ReadReplicaAccountName(uuidSuffix string) string {
	return fmt.Sprintf("%s%s", ReadReplicaAccountPrefix, uuidSuffix)
}

// UndoSnapshot is "SHOW GRANTS + SHOW CREATE USER" captured before a drop,
// so the account can be recreated verbatim on undo (spec.md §4.6).
type UndoSnapshot struct {
	CreateUserSQL string
	GrantSQLs     []string
}

// CheckCertPrerequisites validates that ssl_cert, ssl_key, and one of
// ssl_ca/ssl_capath are set before a cert-based account is created on a
// server (spec.md §4.6).
func CheckCertPrerequisites(ctx context.Context, target *instance.Instance) error {
	cert, err := target.GetGlobalVariable(ctx, "ssl_cert")
	if err != nil || cert == "" {
		return fmt.Errorf("ssl_cert is not configured on %s", target.Endpoint())
	}
	key, err := target.GetGlobalVariable(ctx, "ssl_key")
	if err != nil || key == "" {
		return fmt.Errorf("ssl_key is not configured on %s", target.Endpoint())
	}
	ca, _ := target.GetGlobalVariable(ctx, "ssl_ca")
	capath, _ := target.GetGlobalVariable(ctx, "ssl_capath")
	if ca == "" && capath == "" {
		return fmt.Errorf("neither ssl_ca nor ssl_capath is configured on %s", target.Endpoint())
	}
	return nil
}

// CreateRecoveryAccount creates the HA recovery account on primary (and, if
// requireOnTarget is set because the comm stack is MYSQL, on target under
// suppressed binary logging too), per spec.md §4.2 step 6.
func CreateRecoveryAccount(ctx context.Context, primary *instance.Instance, creds Credentials, host string, requireOnTarget bool, target *instance.Instance) error {
	if err := createAccount(ctx, primary, creds, host); err != nil {
		return err
	}
	if err := grantRecovery(ctx, primary, creds.User, host); err != nil {
		return err
	}
	if requireOnTarget {
		if _, err := target.Exec(ctx, "SET sql_log_bin = 0"); err != nil {
			return fmt.Errorf("suppressing binlog on %s for recovery account creation: %w", target.Endpoint(), err)
		}
		defer target.Exec(ctx, "SET sql_log_bin = 1")

		if err := createAccount(ctx, target, creds, host); err != nil {
			return err
		}
		if err := grantRecovery(ctx, target, creds.User, host); err != nil {
			return err
		}
	}
	return nil
}

func createAccount(ctx context.Context, on *instance.Instance, creds Credentials, host string) error {
	ident := sqlutil.AccountAtHost(creds.User, host)
	var authClause string
	switch creds.Auth {
	case Password:
		authClause = fmt.Sprintf("IDENTIFIED BY %s", sqlutil.QuoteString(creds.Password))
	case CertIssuer:
		authClause = fmt.Sprintf("REQUIRE ISSUER %s", sqlutil.QuoteString(creds.CertIssuer))
	case CertIssuerPassword:
		authClause = fmt.Sprintf("IDENTIFIED BY %s REQUIRE ISSUER %s", sqlutil.QuoteString(creds.Password), sqlutil.QuoteString(creds.CertIssuer))
	case CertSubject:
		authClause = fmt.Sprintf("REQUIRE SUBJECT %s", sqlutil.QuoteString(creds.CertSubject))
	case CertSubjectPassword:
		authClause = fmt.Sprintf("IDENTIFIED BY %s REQUIRE SUBJECT %s", sqlutil.QuoteString(creds.Password), sqlutil.QuoteString(creds.CertSubject))
	default:
		return fmt.Errorf("unsupported auth type %q", creds.Auth)
	}

	stmt := fmt.Sprintf("CREATE USER IF NOT EXISTS %s %s", ident, authClause)
	if _, err := on.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("creating account %s on %s: %w", ident, on.Endpoint(), err)
	}
	return nil
}

func grantRecovery(ctx context.Context, on *instance.Instance, user, host string) error {
	ident := sqlutil.AccountAtHost(user, host)
	stmt := fmt.Sprintf("GRANT REPLICATION SLAVE, REPLICATION CONNECTION_ADMIN ON *.* TO %s", ident)
	if _, err := on.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("granting recovery privileges to %s on %s: %w", ident, on.Endpoint(), err)
	}
	return nil
}

// Drop removes an account, first capturing its SHOW GRANTS/SHOW CREATE USER
// state so undo can recreate it (spec.md §4.6).
func Drop(ctx context.Context, on *instance.Instance, user, host string) (*UndoSnapshot, error) {
	snapshot, err := snapshot(ctx, on, user, host)
	if err != nil {
		// Account may already be gone; nothing to snapshot or drop.
		return nil, nil
	}

	ident := sqlutil.AccountAtHost(user, host)
	if _, err := on.Exec(ctx, fmt.Sprintf("DROP USER IF EXISTS %s", ident)); err != nil {
		return nil, fmt.Errorf("dropping account %s on %s: %w", ident, on.Endpoint(), err)
	}
	return snapshot, nil
}

func snapshot(ctx context.Context, on *instance.Instance, user, host string) (*UndoSnapshot, error) {
	ident := sqlutil.AccountAtHost(user, host)
	s := &UndoSnapshot{}

	var createUser string
	if err := on.QueryRow(ctx, fmt.Sprintf("SHOW CREATE USER %s", ident)).Scan(&createUser); err != nil {
		return nil, fmt.Errorf("reading SHOW CREATE USER for %s: %w", ident, err)
	}
	s.CreateUserSQL = createUser

	rows, err := on.Query(ctx, fmt.Sprintf("SHOW GRANTS FOR %s", ident))
	if err != nil {
		return nil, fmt.Errorf("reading SHOW GRANTS for %s: %w", ident, err)
	}
	defer rows.Close()
	for rows.Next() {
		var grant string
		if err := rows.Scan(&grant); err != nil {
			return nil, err
		}
		s.GrantSQLs = append(s.GrantSQLs, grant)
	}
	return s, rows.Err()
}

// Restore replays a captured UndoSnapshot (spec.md §4.6, §4.9).
func Restore(ctx context.Context, on *instance.Instance, snap *UndoSnapshot) error {
	if snap == nil {
		return nil
	}
	if _, err := on.Exec(ctx, snap.CreateUserSQL); err != nil {
		return fmt.Errorf("restoring account via %q: %w", snap.CreateUserSQL, err)
	}
	for _, grant := range snap.GrantSQLs {
		if _, err := on.Exec(ctx, grant); err != nil {
			return fmt.Errorf("restoring grant via %q: %w", grant, err)
		}
	}
	return nil
}

// RefreshReplicationUser rotates the password for an account and pushes the
// new credentials to channel via CHANGE REPLICATION SOURCE (spec.md §4.6).
func RefreshReplicationUser(ctx context.Context, primary, onChannel *instance.Instance, user, host, newPassword, channel string) error {
	ident := sqlutil.AccountAtHost(user, host)
	if _, err := primary.Exec(ctx, fmt.Sprintf("ALTER USER %s IDENTIFIED BY %s", ident, sqlutil.QuoteString(newPassword))); err != nil {
		return fmt.Errorf("rotating password for %s: %w", ident, err)
	}
	stmt := fmt.Sprintf(
		"CHANGE REPLICATION SOURCE TO SOURCE_USER=%s, SOURCE_PASSWORD=%s FOR CHANNEL %s",
		sqlutil.QuoteString(user), sqlutil.QuoteString(newPassword), sqlutil.QuoteString(channel))
	if _, err := onChannel.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("pushing rotated credentials to channel %s on %s: %w", channel, onChannel.Endpoint(), err)
	}
	return nil
}
