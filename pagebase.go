// Package pagebase is the top-level facade over the storage engine:
// opening a database directory, creating tablespaces inside it, and
// handing out the buffer pool and schema manager each tablespace needs to
// be read from or written to.
//
// Grounded on tinySQL's PageBackend (internal/storage/pager/backend.go),
// which wraps a single Pager+Catalog behind a small facade with a config
// struct and atomic stats counters — generalized here to a registry of
// many tablespaces, each with its own buffer pool but all sharing one
// central catalog rooted in the SYSTEM tablespace, since this engine's
// scope is the storage substrate for potentially many tablespaces rather
// than one fixed database file.
package pagebase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/catalog"
	"github.com/pagebase/pagebase/internal/storage/pager"
)

// Options configures a DatabaseSystem at Open time, following the same
// plain-struct-with-constructor-defaults convention as
// pager.ContainerConfig and bufferpool.Config.
type Options struct {
	// DataDir is where every tablespace's container file lives. Created
	// if missing.
	DataDir string

	// PageSize is used for every tablespace this DatabaseSystem creates;
	// an existing container keeps the page size it was created with.
	// Defaults to pager.DefaultPageSize.
	PageSize int

	// BufferPoolCapacity is the default number of resident frames per
	// tablespace's buffer pool. Defaults to 64.
	BufferPoolCapacity int

	// SystemTablespace names the one tablespace that centrally hosts the
	// catalog (SYS_TABLESPACES, SYS_TABLES, SYS_COLUMNS, SYS_INDEXES,
	// SYS_INDEX_COLUMNS) describing every other tablespace and table in
	// the database. Defaults to "system". Every other tablespace is
	// registered as a row in this one's SYS_TABLESPACES rather than
	// bootstrapping its own independent catalog.
	SystemTablespace string

	Logger *slog.Logger
}

// DatabaseSystem is one open database directory: a storage manager over
// its tablespaces, a buffer pool per open tablespace, and a single,
// central schema manager describing every tablespace and table in the
// database (spec §4.5's one SYSTEM tablespace).
type DatabaseSystem struct {
	mu         sync.Mutex
	opts       Options
	instanceID uuid.UUID
	log        *slog.Logger

	storage *pager.Manager
	pools   map[string]*bufferpool.Pool
	catalog *catalog.Manager
}

// OpenDatabase opens (or creates) the database directory described by
// opts.
func OpenDatabase(opts Options) (*DatabaseSystem, error) {
	if opts.PageSize == 0 {
		opts.PageSize = pager.DefaultPageSize
	}
	if opts.BufferPoolCapacity == 0 {
		opts.BufferPoolCapacity = 64
	}
	if opts.SystemTablespace == "" {
		opts.SystemTablespace = "system"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db := &DatabaseSystem{
		opts:       opts,
		instanceID: uuid.New(),
		log:        opts.Logger.With("component", "pagebase", "data_dir", opts.DataDir),
		storage:    pager.NewManager(opts.DataDir, opts.Logger),
		pools:      make(map[string]*bufferpool.Pool),
	}
	db.log.Info("database opened", "instance_id", db.instanceID.String())
	return db, nil
}

// CreateTablespace creates (or reopens) a named tablespace: its container
// file and its buffer pool open here. If this is the first tablespace
// created in this process, the SYSTEM tablespace is bootstrapped first
// (creating it too, if it doesn't already exist) so the central catalog
// is always available before any other tablespace's tables are touched.
func (db *DatabaseSystem) CreateTablespace(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.pools[name]; exists {
		return nil
	}

	if name != db.opts.SystemTablespace && db.catalog == nil {
		if err := db.openTablespaceLocked(db.opts.SystemTablespace); err != nil {
			return fmt.Errorf("pagebase: bootstrap system tablespace: %w", err)
		}
	}
	return db.openTablespaceLocked(name)
}

// openTablespaceLocked opens name's container and buffer pool, then
// either bootstraps the central catalog (if name is the SYSTEM
// tablespace) or registers name with the already-bootstrapped catalog.
// db.mu must already be held.
func (db *DatabaseSystem) openTablespaceLocked(name string) error {
	if _, exists := db.pools[name]; exists {
		return nil
	}

	ts, err := db.storage.CreateTablespace(name, pager.ContainerConfig{PageSize: db.opts.PageSize})
	if err != nil {
		return fmt.Errorf("pagebase: create tablespace %q: %w", name, err)
	}

	pool := bufferpool.Open(ts.Container, name, bufferpool.Config{
		Capacity: db.opts.BufferPoolCapacity,
		Logger:   db.opts.Logger,
	})
	db.pools[name] = pool

	if name == db.opts.SystemTablespace {
		mgr, err := catalog.Bootstrap(name, pool, ts.Container, db.opts.Logger)
		if err != nil {
			return fmt.Errorf("pagebase: bootstrap catalog for %q: %w", name, err)
		}
		db.catalog = mgr
		return nil
	}

	if err := db.catalog.RegisterTablespace(name, pool, ts.Container.Path(), ts.Container.PageSize()); err != nil {
		return fmt.Errorf("pagebase: register tablespace %q: %w", name, err)
	}
	return nil
}

// GetBufferPool returns the buffer pool for a previously created
// tablespace.
func (db *DatabaseSystem) GetBufferPool(name string) (*bufferpool.Pool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	pool, ok := db.pools[name]
	if !ok {
		return nil, fmt.Errorf("pagebase: tablespace %q: %w", name, pager.ErrMissingContainer)
	}
	return pool, nil
}

// GetSchemaManager returns the central schema manager, so long as name
// has already been created in this process. Every tablespace shares the
// same *catalog.Manager; callers scope their table/index lookups to name
// themselves (e.g. Manager.Table(name, "T")).
func (db *DatabaseSystem) GetSchemaManager(name string) (*catalog.Manager, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.pools[name]; !ok {
		return nil, fmt.Errorf("pagebase: tablespace %q: %w", name, pager.ErrMissingContainer)
	}
	return db.catalog, nil
}

// Tablespaces lists every tablespace opened so far in this process.
func (db *DatabaseSystem) Tablespaces() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.storage.Names()
}

// Shutdown flushes and closes every open tablespace's buffer pool and
// container.
func (db *DatabaseSystem) Shutdown(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var first error
	for name, pool := range db.pools {
		if err := pool.Shutdown(ctx); err != nil && first == nil {
			first = fmt.Errorf("pagebase: shutdown buffer pool %q: %w", name, err)
		}
	}
	if err := db.storage.Close(); err != nil && first == nil {
		first = fmt.Errorf("pagebase: close storage manager: %w", err)
	}
	db.log.Info("database shut down", "instance_id", db.instanceID.String())
	return first
}

// InstanceID identifies this running DatabaseSystem; it is also logged on
// open and shutdown, so an external observer can correlate log output
// with the process that emitted it.
func (db *DatabaseSystem) InstanceID() uuid.UUID { return db.instanceID }
