// Package errs defines the sentinel error kinds surfaced by the storage
// engine, executor, and distributed coordinator. Callers use errors.Is
// against these sentinels; wrapping adds the offending gid/transaction for
// diagnostics without losing the sentinel identity.
package errs

import "errors"

var (
	// ErrSerialization is an MVCC write-write conflict: another committed
	// transaction changed the record after the caller's snapshot was taken.
	// The transaction must abort and may retry.
	ErrSerialization = errors.New("serialization error")

	// ErrLockTimeout is returned when a record lock could not be acquired
	// before the configured deadline. The transaction must abort.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrRecordDeleted is returned when an update targets a version already
	// expired by a committed transaction.
	ErrRecordDeleted = errors.New("record deleted")

	// ErrUnableToDeleteVertex is returned by RemoveVertex(check_empty) when
	// the vertex still has incident edges.
	ErrUnableToDeleteVertex = errors.New("unable to delete vertex: still has edges")

	// ErrNotFound is returned when no version of the requested Gid is
	// visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrRpcFailure is returned when a worker call failed or timed out.
	// Escalates to transaction abort.
	ErrRpcFailure = errors.New("rpc failure")

	// ErrWalWriteFailure is fatal: once raised the database must refuse
	// further commits until restarted.
	ErrWalWriteFailure = errors.New("wal write failure")

	// ErrQuery is a semantic error surfaced by the planner (unknown
	// identifier, type mismatch, etc.).
	ErrQuery = errors.New("query error")
)

// Abortable reports whether an error requires the owning transaction to
// abort: ErrSerialization, ErrLockTimeout, ErrRecordDeleted,
// ErrUnableToDeleteVertex and ErrRpcFailure do. ErrNotFound and ErrQuery
// do not, and ErrWalWriteFailure is a process-level condition, not a
// per-transaction one.
func Abortable(err error) bool {
	switch {
	case errors.Is(err, ErrSerialization),
		errors.Is(err, ErrLockTimeout),
		errors.Is(err, ErrRecordDeleted),
		errors.Is(err, ErrUnableToDeleteVertex),
		errors.Is(err, ErrRpcFailure):
		return true
	default:
		return false
	}
}
