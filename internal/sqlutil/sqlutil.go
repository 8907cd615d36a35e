// Package sqlutil provides small SQL-shaping helpers shared by every
// component that talks to a MySQL server: identifier quoting, GTID-set
// statement construction, and account name formatting. It borrows
// vitess.io/vitess/go/vt/sqlparser the way internal/parser/sql.go does, but
// only for the pieces that need a real SQL-aware quoting routine rather than
// ad hoc string concatenation.
package sqlutil

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"
)

// QuoteIdentifier backtick-quotes a MySQL identifier (account user, channel
// name, endpoint-derived label), escaping embedded backticks. Vitess's
// formatter does the escaping for names that need it; it leaves plain
// identifiers bare, so those are wrapped in backticks here.
func QuoteIdentifier(name string) string {
	q := sqlparser.String(sqlparser.NewIdentifierCS(name))
	if !strings.HasPrefix(q, "`") {
		q = "`" + q + "`"
	}
	return q
}

// QuoteString single-quotes a SQL string literal, escaping embedded quotes
// and backslashes. Used for account hosts, passwords in account-management
// statements, and endpoint literals in CHANGE REPLICATION SOURCE TO clauses.
func QuoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// AccountAtHost formats a MySQL account identifier as 'user'@'host'.
func AccountAtHost(user, host string) string {
	return fmt.Sprintf("%s@%s", QuoteString(user), QuoteString(host))
}

// GTIDSubtract builds a `SELECT GTID_SUBTRACT(?, ?)` style expression used
// when computing whether a candidate's executed set is a subset of a
// donor's (recovery method decision, §4.4).
func GTIDSubtract(minuend, subtrahend string) string {
	return fmt.Sprintf("SELECT GTID_SUBTRACT(%s, %s)", QuoteString(minuend), QuoteString(subtrahend))
}

// IsEmptyGTIDSet reports whether a raw @@gtid_executed/@@gtid_purged value
// represents an empty set.
func IsEmptyGTIDSet(raw string) bool {
	return strings.TrimSpace(raw) == ""
}
