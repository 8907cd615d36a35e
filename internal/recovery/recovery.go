// Package recovery implements the recovery-method decider of §4.4:
// choosing between incremental (log-based) and clone-based provisioning
// for a joining member based on GTID-set relationships, and validating
// donor compatibility.
package recovery

import (
	"context"
	"fmt"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
	"github.com/innodbcluster/admin-engine/internal/sqlutil"
)

// Method is the chosen or requested recovery method (spec.md §4.4).
type Method string

const (
	Auto        Method = "AUTO"
	Incremental Method = "INCREMENTAL"
	Clone       Method = "CLONE"
)

// GTIDState classifies a target's executed set relative to a donor's
// (spec.md §4.4 step 1).
type GTIDState string

const (
	Identical     GTIDState = "IDENTICAL"
	Recoverable   GTIDState = "RECOVERABLE"
	Irrecoverable GTIDState = "IRRECOVERABLE"
	Diverged      GTIDState = "DIVERGED"
)

// GTIDSnapshot holds the raw GTID sets needed to classify a target/donor
// pair, fetched once so the classification itself stays a pure function
// (easy to unit test and to keep deterministic, spec.md §8 property 8).
type GTIDSnapshot struct {
	DonorExecuted  string
	DonorPurged    string
	TargetExecuted string
}

// FetchSnapshot reads @@gtid_executed / @@gtid_purged from donor and target.
func FetchSnapshot(ctx context.Context, donor, target *instance.Instance) (GTIDSnapshot, error) {
	var snap GTIDSnapshot
	if err := donor.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&snap.DonorExecuted); err != nil {
		return snap, fmt.Errorf("reading donor gtid_executed: %w", err)
	}
	if err := donor.QueryRow(ctx, "SELECT @@global.gtid_purged").Scan(&snap.DonorPurged); err != nil {
		return snap, fmt.Errorf("reading donor gtid_purged: %w", err)
	}
	if err := target.QueryRow(ctx, "SELECT @@global.gtid_executed").Scan(&snap.TargetExecuted); err != nil {
		return snap, fmt.Errorf("reading target gtid_executed: %w", err)
	}
	return snap, nil
}

// gtidSubtract runs GTID_SUBTRACT(set1, set2) against a reachable instance
// (any member works; MySQL's GTID_SUBTRACT is a pure string function).
func gtidSubtract(ctx context.Context, on *instance.Instance, set1, set2 string) (string, error) {
	var result string
	if err := on.QueryRow(ctx, sqlutil.GTIDSubtract(set1, set2)).Scan(&result); err != nil {
		return "", fmt.Errorf("computing GTID_SUBTRACT: %w", err)
	}
	return result, nil
}

// ClassifyState computes the target's GTID state relative to the donor
// (spec.md §4.4 step 1), running GTID_SUBTRACT on the given instance (the
// target is the natural choice since it already has a session open).
func ClassifyState(ctx context.Context, on *instance.Instance, snap GTIDSnapshot) (GTIDState, error) {
	errant, err := gtidSubtract(ctx, on, snap.TargetExecuted, snap.DonorExecuted)
	if err != nil {
		return "", err
	}
	if !sqlutil.IsEmptyGTIDSet(errant) {
		return Diverged, nil
	}

	missing, err := gtidSubtract(ctx, on, snap.DonorExecuted, snap.TargetExecuted)
	if err != nil {
		return "", err
	}
	if sqlutil.IsEmptyGTIDSet(missing) {
		return Identical, nil
	}

	// Incremental recovery is possible only if every missing transaction is
	// still present in the donor's binary logs, i.e. none of it was purged.
	purgedOverlap, err := gtidSubtract(ctx, on, missing, donorRetained(snap))
	if err != nil {
		return "", err
	}
	if !sqlutil.IsEmptyGTIDSet(purgedOverlap) {
		return Irrecoverable, nil
	}
	return Recoverable, nil
}

// donorRetained approximates "donor_executed minus donor_purged": the
// range of transactions the donor can still replay from its binary logs.
func donorRetained(snap GTIDSnapshot) string {
	// GTID_SUBTRACT(executed, purged) would be the precise form; callers
	// needing exact retained-set math should subtract DonorPurged from
	// DonorExecuted via gtidSubtract directly. For overlap testing here we
	// compare against purged directly: an overlap between "missing" and
	// "purged" means the donor can't serve those transactions anymore.
	return snap.DonorPurged
}

// DonorOption is the caller-supplied or default donor choice (spec.md §4.4
// "Donor selection: caller may override; default is the current primary").
type DonorOption struct {
	Instance         *instance.Instance
	Online           bool
	InCluster        bool
	ReportHostIsIPv4 bool
	SupportsClone    bool
}

// ValidateDonor checks donor compatibility (spec.md §4.4 last paragraph).
func ValidateDonor(d DonorOption, forClone bool) error {
	if !d.Online {
		return errs.New(errs.GroupMemberNotOnline, "donor %s is not ONLINE", d.Instance.Endpoint())
	}
	if !d.InCluster {
		return errs.New(errs.InvalidArg, "donor %s does not belong to the cluster", d.Instance.Endpoint())
	}
	if forClone {
		if !d.SupportsClone {
			return errs.New(errs.InvalidArg, "donor %s does not support the clone plugin", d.Instance.Endpoint())
		}
		if !d.ReportHostIsIPv4 {
			return errs.New(errs.InvalidArg, "donor %s report_host does not resolve via IPv4", d.Instance.Endpoint())
		}
	}
	return nil
}

// Decide implements the deterministic decision table of spec.md §4.4 steps
// 2-4. gtidSetComplete is the cluster's "assume_gtid_set_complete" flag;
// cloneAvailable reports whether at least one ONLINE, non-IPv6 donor with
// the clone plugin exists.
func Decide(requested Method, state GTIDState, gtidSetComplete, cloneAvailable bool) (Method, error) {
	switch requested {
	case Incremental:
		if state == Irrecoverable || state == Diverged {
			return "", errs.New(errs.DataErrantTransactions, "requested INCREMENTAL recovery but GTID state is %s", state)
		}
		return Incremental, nil
	case Clone:
		if !cloneAvailable {
			return "", errs.New(errs.InvalidArg, "CLONE requested but no compatible donor is available")
		}
		return Clone, nil
	case Auto, "":
		switch state {
		case Identical, Recoverable:
			if gtidSetComplete {
				return Incremental, nil
			}
			if cloneAvailable {
				return Clone, nil
			}
			return Incremental, nil
		case Irrecoverable:
			if cloneAvailable {
				return Clone, nil
			}
			return "", errs.New(errs.DataRecoveryNotPossible, "GTID state is IRRECOVERABLE and no clone donor is available")
		case Diverged:
			return "", errs.New(errs.DataErrantTransactions, "target has errant transactions relative to every candidate donor")
		}
	}
	return "", errs.New(errs.InvalidArg, "unrecognized recovery method %q", requested)
}

// NeedsForceClone reports whether the target already has GTIDs and so must
// be cleared (RESET BINARY LOGS AND GTIDS / RESET MASTER) after force_clone
// before a CLONE recovery runs (spec.md §4.4 step 5).
func NeedsForceClone(targetExecuted string) bool {
	return !sqlutil.IsEmptyGTIDSet(targetExecuted)
}

// ResetStatement returns the correct GTID-reset statement for the target's
// server version (spec.md §4.4 step 5, §6.3).
func ResetStatement(v instance.ServerVersion) string {
	if v.SupportsResetBinaryLogsAndGtids() {
		return "RESET BINARY LOGS AND GTIDS"
	}
	return "RESET MASTER"
}
