package pager

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Tablespace names and owns one Container file on disk, plus the logger
// the rest of the engine should use when talking about it. It exists as a
// separate type from Container mainly so the Storage Manager has a stable,
// named handle to track even across a container being closed and reopened.
type Tablespace struct {
	Name      string
	Container *Container
	log       *slog.Logger
}

// Manager is the storage manager registry: it tracks every open
// tablespace by name and is the single place a caller asks for "the
// tablespace named X" rather than threading Container pointers around.
//
// Grounded on how tinySQL's PageBackend wraps a single Pager with a name
// and stats — generalized here to a registry of many, since this engine's
// scope includes multiple tablespaces rather than one fixed database file.
type Manager struct {
	dir string
	log *slog.Logger

	spaces map[string]*Tablespace
}

// NewManager creates a registry rooted at dir (created by CreateTablespace
// if missing), using
// log for every tablespace it opens or creates. A nil log falls back to
// slog.Default().
func NewManager(dir string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dir:    dir,
		log:    log,
		spaces: make(map[string]*Tablespace),
	}
}

// CreateTablespace opens (creating if necessary) the container file for
// name under the manager's directory and registers it. Re-creating an
// already-registered name returns the existing Tablespace.
func (m *Manager) CreateTablespace(name string, cfg ContainerConfig) (*Tablespace, error) {
	if ts, ok := m.spaces[name]; ok {
		return ts, nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data directory %q: %w", m.dir, err)
	}
	cfg.TablespaceName = name
	path := filepath.Join(m.dir, name+".pgbase")
	c, err := OpenContainer(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create tablespace %q: %w", name, err)
	}
	ts := &Tablespace{
		Name:      name,
		Container: c,
		log:       m.log.With("tablespace", name),
	}
	m.spaces[name] = ts
	ts.log.Info("tablespace opened", "path", path, "pages", c.TotalPages(), "page_size", c.PageSize())
	return ts, nil
}

// Get returns a previously created tablespace by name.
func (m *Manager) Get(name string) (*Tablespace, bool) {
	ts, ok := m.spaces[name]
	return ts, ok
}

// Names returns the names of every registered tablespace.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.spaces))
	for n := range m.spaces {
		names = append(names, n)
	}
	return names
}

// Close closes every registered tablespace's container. It collects and
// returns the first error encountered but still attempts to close every
// tablespace.
func (m *Manager) Close() error {
	var first error
	for name, ts := range m.spaces {
		if err := ts.Container.Close(); err != nil && first == nil {
			first = fmt.Errorf("storage: close tablespace %q: %w", name, err)
		}
	}
	return first
}
