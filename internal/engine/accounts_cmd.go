package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/innodbcluster/admin-engine/internal/accounts"
	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/metadata"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// adminGrants and routerGrants are the fixed privilege sets
// setupAdminAccount/setupRouterAccount grant, grounded on
// original_source/modules/adminapi/common/accounts.cc's k_admin_schema_grants
// and k_router_schema_grants/k_router_table_grants tables: admin accounts get
// full control over the Metadata schema plus mysql.* maintenance privileges;
// router accounts get read-only Metadata access plus write access limited to
// the routers bookkeeping tables, with no recovery-account privileges.
var adminGrants = []string{
	fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO %%s WITH GRANT OPTION", metadata.SchemaName),
	"GRANT INSERT, UPDATE, DELETE ON mysql.* TO %s",
}

var routerGrants = []string{
	fmt.Sprintf("GRANT SELECT, EXECUTE ON %s.* TO %%s", metadata.SchemaName),
	fmt.Sprintf("GRANT INSERT, UPDATE, DELETE ON %s.routers TO %%s", metadata.SchemaName),
	fmt.Sprintf("GRANT INSERT, UPDATE, DELETE ON %s.v2_routers TO %%s", metadata.SchemaName),
	"GRANT SELECT ON performance_schema.replication_group_members TO %s",
	"GRANT SELECT ON performance_schema.replication_group_member_stats TO %s",
	"GRANT SELECT ON performance_schema.global_variables TO %s",
}

// SetupAdminAccountOptions parameterizes setupAdminAccount (spec.md §6.1).
type SetupAdminAccountOptions struct {
	Primary  *instance.Instance
	User     string
	Host     string
	Password string
	Update   bool // ALTER instead of CREATE when the account already exists
}

// SetupAdminAccount creates (or updates) an account with full administrative
// privileges over the Metadata schema, for use by a second AdminAPI client
// (spec.md §6.1 setupAdminAccount).
func (e *Engine) SetupAdminAccount(ctx context.Context, opts SetupAdminAccountOptions) error {
	return createPrivilegedAccount(ctx, opts.Primary, opts.User, opts.Host, opts.Password, opts.Update, adminGrants)
}

// SetupRouterAccountOptions parameterizes setupRouterAccount (spec.md §6.1).
type SetupRouterAccountOptions struct {
	Primary  *instance.Instance
	User     string
	Host     string
	Password string
	Update   bool
}

// SetupRouterAccount creates (or updates) a narrower account for MySQL
// Router: read-only on the Metadata schema plus write access to the routers
// bookkeeping tables, and the performance_schema reads Router needs to poll
// group membership (spec.md §6.1 setupRouterAccount).
func (e *Engine) SetupRouterAccount(ctx context.Context, opts SetupRouterAccountOptions) error {
	return createPrivilegedAccount(ctx, opts.Primary, opts.User, opts.Host, opts.Password, opts.Update, routerGrants)
}

func createPrivilegedAccount(ctx context.Context, on *instance.Instance, user, host, password string, update bool, grants []string) error {
	ident := sqlutil.AccountAtHost(user, host)
	if update {
		stmt := fmt.Sprintf("ALTER USER %s IDENTIFIED BY %s", ident, sqlutil.QuoteString(password))
		if _, err := on.Exec(ctx, stmt); err != nil {
			return errs.Wrap(errs.TargetQueryError, err, "updating account %s", ident)
		}
	} else {
		stmt := fmt.Sprintf("CREATE USER IF NOT EXISTS %s IDENTIFIED BY %s", ident, sqlutil.QuoteString(password))
		if _, err := on.Exec(ctx, stmt); err != nil {
			return errs.Wrap(errs.TargetQueryError, err, "creating account %s", ident)
		}
	}

	for _, tmpl := range grants {
		if _, err := on.Exec(ctx, fmt.Sprintf(tmpl, ident)); err != nil {
			return errs.Wrap(errs.TargetQueryError, err, "granting privileges to %s", ident)
		}
	}
	return nil
}

// ResetRecoveryAccountsPasswordOptions parameterizes
// resetRecoveryAccountsPassword (spec.md §6.1).
type ResetRecoveryAccountsPasswordOptions struct {
	ClusterName string
	Primary     *instance.Instance
	Targets     map[string]*instance.Instance // endpoint -> connection, for each online member whose own channel needs the new password pushed
}

// ResetRecoveryAccountsPassword rotates the password on every HA recovery
// account registered in the Metadata whose member is in opts.Targets, and
// pushes the new password to that member's own recovery channel; members
// not in opts.Targets are skipped. This lets a leaked or expired recovery
// password be rotated without rejoining members (spec.md §6.1, §4.6
// RefreshReplicationUser).
func (e *Engine) ResetRecoveryAccountsPassword(ctx context.Context, opts ResetRecoveryAccountsPasswordOptions) error {
	cluster, _, err := e.loadView(ctx, opts.ClusterName, opts.Primary)
	if err != nil {
		return err
	}

	sess, err := e.acquireClusterLock(ctx, opts.Primary, opts.ClusterName, true)
	if err != nil {
		return err
	}
	defer sess.Release(ctx)

	instances, err := e.Store.ListInstances(ctx, cluster.ClusterID)
	if err != nil {
		return err
	}

	for _, mi := range instances {
		if mi.Role != metadata.RoleHA {
			continue
		}
		target, ok := opts.Targets[mi.Endpoint]
		if !ok {
			continue // best-effort: unreachable members keep their old password until rejoined
		}
		newPassword := uuid.NewString()
		if err := accounts.RefreshReplicationUser(ctx, opts.Primary, target, accounts.RecoveryAccountName(mi.ServerID), e.Cfg.AccountHostPattern, newPassword, "group_replication_recovery"); err != nil {
			return fmt.Errorf("rotating recovery password for %s: %w", mi.Endpoint, err)
		}
	}
	return nil
}
