// Package metadata implements the Metadata store component of §4.5: typed
// read/write access to the persistent topology schema on the current global
// primary (§6.4), versioned, with a transaction object that records an
// undo log capable of regenerating the pre-state by executing inverse SQL.
//
// Table layout follows spec.md §6.4 logical schema; query shaping follows
// the teacher's internal/mysql/metadata.go pattern of hand-written
// information_schema-style SELECTs plus IFNULL-guarded scalar columns,
// generalized from table metadata to cluster topology metadata.
package metadata

import "encoding/json"

// TopologyMode mirrors the GR primary-election mode (spec.md §3.1).
type TopologyMode string

const (
	SinglePrimary TopologyMode = "SINGLE_PRIMARY"
	MultiPrimary  TopologyMode = "MULTI_PRIMARY"
)

// CommStack is GR's transport choice (spec.md Glossary).
type CommStack string

const (
	CommStackXCom  CommStack = "XCOM"
	CommStackMySQL CommStack = "MYSQL"
)

// ClusterAvailability mirrors spec.md §3.1 Cluster.availability.
type ClusterAvailability string

const (
	Online           ClusterAvailability = "ONLINE"
	OnlineNoPrimary  ClusterAvailability = "ONLINE_NO_PRIMARY"
	Offline          ClusterAvailability = "OFFLINE"
	NoQuorum         ClusterAvailability = "NO_QUORUM"
	SomeUnreachable  ClusterAvailability = "SOME_UNREACHABLE"
	ClusterUnreachable ClusterAvailability = "UNREACHABLE"
)

// InstanceRole distinguishes HA (GR) members from Read-Replicas (spec.md §3.1).
type InstanceRole string

const (
	RoleHA          InstanceRole = "HA"
	RoleReadReplica InstanceRole = "READ_REPLICA"
)

// ClusterSetMemberRole mirrors spec.md §3.1 ClusterSet roles.
type ClusterSetMemberRole string

const (
	ClusterSetPrimary     ClusterSetMemberRole = "PRIMARY"
	ClusterSetReplica     ClusterSetMemberRole = "REPLICA"
	ClusterSetInvalidated ClusterSetMemberRole = "INVALIDATED"
)

// ReplicationSourcesPolicy is a Read-Replica's source selection policy
// (spec.md §3.1 Read-Replica.replicationSources).
type ReplicationSourcesPolicy string

const (
	SourcesPrimary   ReplicationSourcesPolicy = "PRIMARY"
	SourcesSecondary ReplicationSourcesPolicy = "SECONDARY"
	SourcesCustom    ReplicationSourcesPolicy = "CUSTOM"
)

// CompatibilityState is the result of Store.State() (spec.md §4.5).
type CompatibilityState string

const (
	StateFailedSetup   CompatibilityState = "FAILED_SETUP"
	StateFailedUpgrade CompatibilityState = "FAILED_UPGRADE"
	StateNonexisting   CompatibilityState = "NONEXISTING"
	StateUpgrading     CompatibilityState = "UPGRADING"
	StateMajorHigher   CompatibilityState = "MAJOR_HIGHER"
	StateMinorHigher   CompatibilityState = "MINOR_HIGHER"
	StatePatchHigher   CompatibilityState = "PATCH_HIGHER"
	StateEqual         CompatibilityState = "EQUAL"
	StateMinorLower    CompatibilityState = "MINOR_LOWER"
	StateMajorLower    CompatibilityState = "MAJOR_LOWER"
)

// Cluster is the clusters row (spec.md §3.1, §6.4).
type Cluster struct {
	ClusterID      int64
	ClusterName    string
	Description    string
	GroupName      string
	TopologyMode   TopologyMode
	ViewChangeUUID string
	CommStack      CommStack
	ClusterSetID   int64 // 0 if not part of a ClusterSet
	Attributes     map[string]json.RawMessage
}

// Instance is the instances row (spec.md §3.1, §6.4).
type Instance struct {
	InstanceID         int64
	ClusterID          int64
	ServerUUID         string
	ServerID           uint32
	Endpoint           string // host:port, from report_host
	XEndpoint          string
	GREndpoint         string // GR local address
	Label              string
	Role               InstanceRole
	Hidden             bool
	RecoveryAccountUser string
	RecoveryAccountHost string
	// ReadReplicaSources holds the ordered CUSTOM source list; only
	// meaningful when Role == RoleReadReplica and Policy == SourcesCustom.
	ReplicationSourcesPolicy ReplicationSourcesPolicy
	ReadReplicaSources       []WeightedSource
}

// WeightedSource is one entry of a Read-Replica's CUSTOM source list or a
// managed channel's weighted failover list (spec.md §3.1, §4.7).
type WeightedSource struct {
	Endpoint string
	Weight   int
}

// ClusterSet is the logical grouping of clusters (spec.md §3.1).
type ClusterSet struct {
	ClusterSetID int64
	ViewID       int64 // monotonically increasing generation
	PrimaryClusterID int64
}

// ClusterSetMember is one cluster_set_members row (spec.md §6.4).
type ClusterSetMember struct {
	ClusterSetID int64
	ClusterID    int64
	Role         ClusterSetMemberRole
	Invalidated  bool
}

// ReplicationAccount records credentials for a GR recovery or async channel
// account (spec.md §3.1, §4.6).
type ReplicationAccount struct {
	User     string
	Host     string
	AuthType string // PASSWORD, CERT_ISSUER, CERT_ISSUER_PASSWORD, CERT_SUBJECT, CERT_SUBJECT_PASSWORD
}

// Attribute keys used by core logic (spec.md §6.4).
const (
	AttrAssumeGTIDComplete      = "assume_GTID_complete"
	AttrDisableClone            = "disable_clone"
	AttrManualStartOnBoot       = "manual_start_on_boot"
	AttrReplicationAllowedHost  = "replication_allowed_host"
	AttrTransactionSizeLimit    = "transaction_size_limit"
	AttrViewChangeUUID          = "group_replication_view_change_uuid"
	AttrServerID                = "server_id"
	AttrReadReplicaSources      = "read_replica_replication_sources"
	AttrCSMDRemovePending       = "cs_md_remove_pending"
)
