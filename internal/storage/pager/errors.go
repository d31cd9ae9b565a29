package pager

import "errors"

// Sentinel errors classify the conditions callers need to branch on, per
// the engine's error taxonomy. Every such condition, the non-fatal ones
// (out-of-bounds, no-space) included, is returned as an error wrapping one
// of these, which a caller matches with errors.Is; plain OS I/O failures
// are returned wrapped without a sentinel.
var (
	// ErrOutOfBounds is returned when a page ID falls outside the
	// container's current page range. Non-fatal: callers treat it as "no
	// such page" rather than corruption.
	ErrOutOfBounds = errors.New("pager: page id out of bounds")

	// ErrInvalidPage signals a page whose header magic does not match,
	// i.e. corruption or an uninitialized page read as if it were live.
	ErrInvalidPage = errors.New("pager: invalid page header")

	// ErrNoSpace is returned by a page layout's insert when the record
	// does not fit in the remaining free space.
	ErrNoSpace = errors.New("pager: no space in page")

	// ErrNoEvictable is returned by the buffer pool when every frame is
	// pinned and a new page cannot be fetched or allocated.
	ErrNoEvictable = errors.New("bufferpool: no evictable frame")

	// ErrDuplicateKey is returned by a B-tree insert of a key already
	// present in the tree.
	ErrDuplicateKey = errors.New("btree: duplicate key")

	// ErrMissingContainer is returned when an operation names a tablespace
	// that has no open container and buffer pool in this process. The
	// catalog's load does not check whether a cataloged tablespace's
	// container file exists on disk.
	ErrMissingContainer = errors.New("storage: missing container")

	// ErrCatalogCorruption signals a stored row that does not decode.
	// catalog.Manager.ScanRows returns the rows decoded before the failing
	// one together with this error; the catalog's Bootstrap stops at the
	// first such SYS_* row and returns no Manager.
	ErrCatalogCorruption = errors.New("catalog: corruption detected")

	// ErrClosed is returned by a container's operations after Close has
	// run. A buffer pool's Shutdown does not by itself make later pool
	// calls fail.
	ErrClosed = errors.New("pager: container closed")
)
