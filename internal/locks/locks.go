// Package locks implements the precondition/locking layer of §5: named
// distributed locks on the current primary, acquired via the Instance
// handle's locking-service calls, scoped to a single namespace
// ("AdminAPI_cluster") with SHARED/EXCLUSIVE modes per spec.md §5.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/innodbcluster/admin-engine/internal/engine/errs"
	"github.com/innodbcluster/admin-engine/internal/instance"
)

// Namespace is the single lock namespace of spec.md §5.
const Namespace = "AdminAPI_cluster"

// Scope is the named lock an operation takes.
type Scope struct {
	Exclusive bool
	Name      string // e.g. the cluster name, or "<cluster>.<endpoint>" for per-instance locks
}

// Session holds every lock acquired for one command, so they can be
// released together when the command finishes.
type Session struct {
	on     *instance.Instance
	scopes []Scope
}

// Acquire takes a sequence of locks in order on the given instance
// (normally the current primary), returning a Session that releases
// everything acquired so far on error or on Release. Write-type operations
// take EXCLUSIVE on the Cluster lock; per-instance operations add
// EXCLUSIVE on the target instance's lock; read-like operations take
// SHARED on the Cluster lock (spec.md §5).
func Acquire(ctx context.Context, on *instance.Instance, timeout time.Duration, scopes ...Scope) (*Session, error) {
	s := &Session{on: on}
	for _, sc := range scopes {
		if err := on.AcquireLock(ctx, Namespace, sc.Name, sc.Exclusive, timeout); err != nil {
			s.Release(ctx)
			return nil, errs.Wrap(errs.LockGetFailed, err, "could not acquire lock %q on %s", sc.Name, on.Endpoint())
		}
		s.scopes = append(s.scopes, sc)
	}
	return s, nil
}

// Release releases every lock this session holds.
func (s *Session) Release(ctx context.Context) error {
	if s == nil || len(s.scopes) == 0 {
		return nil
	}
	if err := s.on.ReleaseLock(ctx, Namespace); err != nil {
		return fmt.Errorf("releasing locks: %w", err)
	}
	s.scopes = nil
	return nil
}

// ClusterExclusive builds the EXCLUSIVE cluster-wide scope used by
// write-type operations (add, remove, dissolve, set-primary, fence).
func ClusterExclusive(clusterName string) Scope {
	return Scope{Exclusive: true, Name: clusterName}
}

// ClusterShared builds the SHARED cluster-wide scope used by read-like or
// per-instance operations (rejoin). The account-setup commands take no
// cluster lock.
func ClusterShared(clusterName string) Scope {
	return Scope{Exclusive: false, Name: clusterName}
}

// InstanceExclusive builds the EXCLUSIVE per-instance scope.
func InstanceExclusive(clusterName, endpoint string) Scope {
	return Scope{Exclusive: true, Name: fmt.Sprintf("%s.%s", clusterName, endpoint)}
}
