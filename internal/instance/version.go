package instance

import (
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is a parsed MySQL server version, adapted from the
// version-parsing the teacher uses to gate DDL algorithm choice
// (internal/mysql/variables.go) and repurposed here to gate GR/clone
// feature availability (view_change_uuid support, 8.4+ binlog reset syntax,
// minimum join version).
type ServerVersion struct {
	Raw   string
	Major int
	Minor int
	Patch int
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// ParseVersion parses the output of SELECT VERSION().
func ParseVersion(raw string) (ServerVersion, error) {
	m := versionRe.FindStringSubmatch(raw)
	if len(m) < 4 {
		return ServerVersion{}, fmt.Errorf("could not parse server version: %s", raw)
	}
	v := ServerVersion{Raw: raw}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	return v, nil
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v >= major.minor.patch.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// SupportsViewChangeUUID reports 8.0.27+ support for group_replication_view_change_uuid (spec.md §4.10 step 4).
func (v ServerVersion) SupportsViewChangeUUID() bool {
	return v.AtLeast(8, 0, 27)
}

// SupportsPersistOnly reports SET PERSIST_ONLY support (8.0.x, all supported releases).
func (v ServerVersion) SupportsPersistOnly() bool {
	return v.AtLeast(8, 0, 0)
}

// SupportsResetBinaryLogsAndGtids reports 8.4+ RESET BINARY LOGS AND GTIDS
// syntax vs the older RESET MASTER (spec.md §4.4 step 5, §6.3).
func (v ServerVersion) SupportsResetBinaryLogsAndGtids() bool {
	return v.AtLeast(8, 4, 0)
}

// SupportsCommunicationStackOption reports group_replication_communication_stack availability (8.0.27+).
func (v ServerVersion) SupportsCommunicationStackOption() bool {
	return v.AtLeast(8, 0, 27)
}
