// Package errs declares the sentinel errors shared across component
// boundaries, matching the error-kind taxonomy the daemon uses to decide
// between "log and drop" and "log and terminate".
package errs

import "errors"

var (
	// ErrScopeViolation marks an event whose path lies outside every
	// configured indexing path. Dropped silently; this is the normal case.
	ErrScopeViolation = errors.New("anyfind: path outside indexing scope")

	// ErrUnknownDevice marks an event whose (major, minor) pair is not yet
	// in the partition map. Dropped with a warning; a later mount event may
	// populate the map.
	ErrUnknownDevice = errors.New("anyfind: unknown device id")

	// ErrIndexCorrupt marks a failure opening the on-disk index that
	// requires a wipe-and-rebuild of the volatile directory.
	ErrIndexCorrupt = errors.New("anyfind: index corrupt")

	// ErrConfigConflict marks two indexing paths whose resolved event
	// paths overlap; the later entry is skipped.
	ErrConfigConflict = errors.New("anyfind: overlapping indexing paths")

	// ErrPathTooLong marks a path exceeding the 4096-byte wire limit.
	ErrPathTooLong = errors.New("anyfind: path exceeds 4096 bytes")

	// ErrNotReady marks index state that is not available yet: it is
	// returned by searchindex.ReadPersistentStatus when the persistent
	// directory holds no status.json. Search never returns it.
	ErrNotReady = errors.New("anyfind: index not ready")
)
