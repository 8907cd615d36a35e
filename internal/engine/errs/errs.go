// Package errs defines the stable error-kind taxonomy of spec.md §7 and a
// typed Error that carries a kind alongside the usual wrapped message, the
// way a caller (CLI, tests) needs to branch on "was this a quorum problem or
// a lock problem" without parsing strings.
package errs

import "fmt"

// Kind is a stable numeric error kind. Values must never be renumbered once
// shipped, since callers may persist or compare them.
type Kind int

const (
	_ Kind = iota
	BadArg
	InvalidArg
	MetadataMissing
	MetadataInconsistent
	GroupHasNoQuorum
	GroupHasNoPrimary
	PrimaryUnavailable
	GroupMemberNotOnline
	UnsupportedClusterType
	UnsupportedAsyncConfiguration
	InvalidServerUUID
	InvalidServerID
	MissingCertOption
	DataErrantTransactions
	DataRecoveryNotPossible
	CloneRecoveryFailed
	DistributedRecoveryFailed
	ServerRestartTimeout
	GTIDSyncTimeout
	ReplicationError
	ReplicationInvalid
	ReplicationOff
	ReplicationApplierError
	ReadReplicaInvalidSourceList
	LockGetFailed
	TargetQueryError
	ConnectionError
)

var kindNames = map[Kind]string{
	BadArg:                        "BADARG",
	InvalidArg:                    "INVALID_ARG",
	MetadataMissing:               "METADATA_MISSING",
	MetadataInconsistent:          "METADATA_INCONSISTENT",
	GroupHasNoQuorum:              "GROUP_HAS_NO_QUORUM",
	GroupHasNoPrimary:             "GROUP_HAS_NO_PRIMARY",
	PrimaryUnavailable:            "PRIMARY_UNAVAILABLE",
	GroupMemberNotOnline:          "GROUP_MEMBER_NOT_ONLINE",
	UnsupportedClusterType:        "UNSUPPORTED_CLUSTER_TYPE",
	UnsupportedAsyncConfiguration: "UNSUPPORTED_ASYNC_CONFIGURATION",
	InvalidServerUUID:             "INVALID_SERVER_UUID",
	InvalidServerID:               "INVALID_SERVER_ID",
	MissingCertOption:             "MISSING_CERT_OPTION",
	DataErrantTransactions:        "DATA_ERRANT_TRANSACTIONS",
	DataRecoveryNotPossible:       "DATA_RECOVERY_NOT_POSSIBLE",
	CloneRecoveryFailed:           "CLONE_RECOVERY_FAILED",
	DistributedRecoveryFailed:     "DISTRIBUTED_RECOVERY_FAILED",
	ServerRestartTimeout:          "SERVER_RESTART_TIMEOUT",
	GTIDSyncTimeout:               "GTID_SYNC_TIMEOUT",
	ReplicationError:              "REPLICATION_ERROR",
	ReplicationInvalid:            "REPLICATION_INVALID",
	ReplicationOff:                "REPLICATION_OFF",
	ReplicationApplierError:       "REPLICATION_APPLIER_ERROR",
	ReadReplicaInvalidSourceList:  "READ_REPLICA_INVALID_SOURCE_LIST",
	LockGetFailed:                 "LOCK_GET_FAILED",
	TargetQueryError:              "TARGET_QUERY_ERROR",
	ConnectionError:               "CONNECTION_ERROR",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_KIND(%d)", int(k))
}

// Error is a typed engine error: a stable Kind plus context and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// As reports whether err is (or wraps) an *Error of the given kind.
func As(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
