// Package catalog implements the schema manager: bootstrapping the five
// SYS_* tables that live centrally in the SYSTEM tablespace, and the CRUD
// surface a higher layer uses to create and look up tables, indexes, and
// tablespaces across the whole database.
//
// Grounded on tinySQL's catalog.go for the bootstrap *concept* (a
// well-known set of catalog tables must exist before anything else can be
// looked up) but not its data structure: tinySQL keeps one JSON-valued
// B+Tree keyed by "tenant\x00table"; this engine's catalog tables are
// ordinary table-header-plus-table-data pages, scannable by name like any
// other table, replacing the "empty in-memory map on every restart" bug
// the source design calls out.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pagebase/pagebase/internal/btree"
	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

// TableDescriptor is a loaded or newly created table's in-memory
// description: everything needed to append and scan its rows without
// re-reading SYS_COLUMNS each time. Tablespace names which tablespace's
// container physically holds the table's pages, which may or may not be
// the SYSTEM tablespace the descriptor itself is cataloged in.
type TableDescriptor struct {
	ID         int32
	Name       string
	Tablespace string
	HeaderPage pager.PageID
	Columns    []Column
}

// IndexDescriptor is a loaded or newly created index's in-memory
// description.
type IndexDescriptor struct {
	ID         int32
	Name       string
	TableName  string
	Tablespace string
	HeaderPage pager.PageID
	KeyType    layout.KeyType
	Unique     bool
	Columns    []string
}

// Manager is the single, central schema manager for a database: it lives
// in exactly one SYSTEM tablespace (spec §4.5's "exactly one SYSTEM
// tablespace") and describes every tablespace, table, and index in the
// database, regardless of which tablespace's container a table's actual
// rows live in. pools holds one bufferpool.Pool per attached tablespace,
// keyed by name, so InsertRow/ScanRows/OpenIndex can route to the right
// container without the caller ever juggling pools directly.
type Manager struct {
	systemName string
	log        *slog.Logger

	pools map[string]*bufferpool.Pool

	// tables is keyed by tablespace name, then table name, so table names
	// only have to be unique within a tablespace.
	tables  map[string]map[string]*TableDescriptor
	indexes map[string]*IndexDescriptor

	nextTableID int32
	nextIndexID int32
}

// Bootstrap runs the startup protocol against the designated SYSTEM
// tablespace: probe its container for existing table-header pages by
// name, create any of the five SYS_* tables that are missing, describe
// the newly created ones (even if some sibling SYS_* tables already
// existed — a partially present catalog self-heals rather than halting),
// and load every already-cataloged tablespace/table/index descriptor from
// the existing rows.
func Bootstrap(systemName string, pool *bufferpool.Pool, container *pager.Container, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "catalog", "system_tablespace", systemName)

	m := &Manager{
		systemName: systemName,
		log:        log,
		pools:      map[string]*bufferpool.Pool{systemName: pool},
		tables:     map[string]map[string]*TableDescriptor{systemName: {}},
		indexes:    make(map[string]*IndexDescriptor),
	}

	found, err := m.probeTableHeaders(pool, container)
	if err != nil {
		return nil, fmt.Errorf("catalog: bootstrap: probe: %w", err)
	}

	sysHeaderPages := make(map[string]pager.PageID, len(sysTableOrder))
	var missing []string
	for _, name := range sysTableOrder {
		if id, ok := found[name]; ok {
			sysHeaderPages[name] = id
		} else {
			missing = append(missing, name)
		}
	}

	for _, name := range missing {
		id, err := createTableHeader(pool, name, sysSchemas[name])
		if err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: create %s: %w", name, err)
		}
		sysHeaderPages[name] = id
		log.Info("created catalog table", "table", name, "header_page", id)
	}

	switch {
	case len(missing) == len(sysTableOrder):
		// Every SYS_* table was just created: self-describe all five
		// before anything else can be looked up.
		if err := m.describeTables(sysTableOrder, sysHeaderPages); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: self-describe: %w", err)
		}
		if err := m.describeSelfTablespace(container); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: self-describe tablespace: %w", err)
		}
	case len(missing) > 0:
		// Some but not all five were found: load whatever the existing
		// ones already describe, then describe the ones that were just
		// (re)created, healing the partial catalog rather than halting.
		if err := m.load(sysHeaderPages); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: load: %w", err)
		}
		if err := m.describeTables(missing, sysHeaderPages); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: describe missing: %w", err)
		}
		if containsName(missing, SysTablespaces) {
			if err := m.describeSelfTablespace(container); err != nil {
				return nil, fmt.Errorf("catalog: bootstrap: self-describe tablespace: %w", err)
			}
		}
	default:
		if err := m.load(sysHeaderPages); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap: load: %w", err)
		}
	}

	return m, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// probeTableHeaders scans every page in container looking for TABLE_HEADER
// pages, tolerating unreadable pages (out-of-bounds or invalid) by
// skipping and logging rather than failing the whole scan — matching the
// error taxonomy's "invalid page" and "out-of-bounds" being non-fatal at
// this layer.
func (m *Manager) probeTableHeaders(pool *bufferpool.Pool, container *pager.Container) (map[string]pager.PageID, error) {
	found := make(map[string]pager.PageID)
	total := container.TotalPages()
	for id := 2; id < total; id++ {
		buf, err := container.ReadPage(pager.PageID(id))
		if err != nil {
			m.log.Warn("catalog probe: unreadable page", "page_id", id, "error", err)
			continue
		}
		hdr, err := pager.ReadHeader(buf)
		if err != nil {
			continue
		}
		if hdr.Type != pager.TypeTableHeader {
			continue
		}
		th, err := layout.DecodeTableHeader(buf)
		if err != nil {
			m.log.Warn("catalog probe: unreadable table header", "page_id", id, "error", err)
			continue
		}
		found[th.Name] = pager.PageID(id)
	}
	return found, nil
}

// describeTables writes SYS_TABLES and SYS_COLUMNS rows for each named
// SYS_* table, describing it into the catalog. Used both for a completely
// fresh bootstrap (all five names) and for self-healing a partial one
// (just the names that were missing).
func (m *Manager) describeTables(names []string, sysHeaderPages map[string]pager.PageID) error {
	sysTablesHeader := sysHeaderPages[SysTables]
	sysColumnsHeader := sysHeaderPages[SysColumns]
	for _, name := range names {
		tableID := m.nextTableID
		m.nextTableID++
		headerPage := sysHeaderPages[name]
		cols := sysSchemas[name]

		row, err := EncodeRow(sysSchemas[SysTables], []Value{
			IntValue(tableID), StringValue(name), StringValue(m.systemName), IntValue(int32(headerPage)),
		})
		if err != nil {
			return err
		}
		if err := appendRow(m.pools[m.systemName], sysTablesHeader, row); err != nil {
			return fmt.Errorf("describe %s into SYS_TABLES: %w", name, err)
		}

		for ordinal, c := range cols {
			row, err := EncodeRow(sysSchemas[SysColumns], []Value{
				IntValue(tableID), IntValue(int32(ordinal)), StringValue(c.Name), IntValue(int32(c.Type)), IntValue(c.MaxLength), BoolValue(c.Nullable),
			})
			if err != nil {
				return err
			}
			if err := appendRow(m.pools[m.systemName], sysColumnsHeader, row); err != nil {
				return fmt.Errorf("describe %s.%s into SYS_COLUMNS: %w", name, c.Name, err)
			}
		}

		m.tables[m.systemName][name] = &TableDescriptor{ID: tableID, Name: name, Tablespace: m.systemName, HeaderPage: headerPage, Columns: cols}
	}
	return nil
}

// describeSelfTablespace writes the SYSTEM tablespace's own row into
// SYS_TABLESPACES, since it describes every tablespace including itself.
func (m *Manager) describeSelfTablespace(container *pager.Container) error {
	row, err := EncodeRow(sysSchemas[SysTablespaces], []Value{
		StringValue(m.systemName), StringValue(container.Path()), IntValue(int32(container.PageSize())),
	})
	if err != nil {
		return err
	}
	return appendRow(m.pools[m.systemName], m.tables[m.systemName][SysTablespaces].HeaderPage, row)
}

// load reconstructs every tablespace, table, and index descriptor from
// the catalog rows already on disk in the SYSTEM tablespace. Tablespaces
// other than SYSTEM are only known by name until a caller attaches their
// pool via RegisterTablespace: the container path and page size in their
// SYS_TABLESPACES rows are not kept, and their containers are not opened
// or checked for here.
func (m *Manager) load(sysHeaderPages map[string]pager.PageID) error {
	systemPool := m.pools[m.systemName]

	tablespaceRows, err := scanTable(systemPool, sysHeaderPages[SysTablespaces])
	if err != nil {
		return fmt.Errorf("scan SYS_TABLESPACES: %w", err)
	}
	for _, raw := range tablespaceRows {
		vals, err := DecodeRow(sysSchemas[SysTablespaces], raw)
		if err != nil {
			return fmt.Errorf("%w: decode SYS_TABLESPACES row: %v", pager.ErrCatalogCorruption, err)
		}
		name := vals[0].Str
		if _, ok := m.tables[name]; !ok {
			m.tables[name] = make(map[string]*TableDescriptor)
		}
	}
	if _, ok := m.tables[m.systemName]; !ok {
		m.tables[m.systemName] = make(map[string]*TableDescriptor)
	}

	tableRows, err := scanTable(systemPool, sysHeaderPages[SysTables])
	if err != nil {
		return fmt.Errorf("scan SYS_TABLES: %w", err)
	}

	byID := make(map[int32]*TableDescriptor, len(tableRows))
	maxTableID := int32(-1)
	for _, raw := range tableRows {
		vals, err := DecodeRow(sysSchemas[SysTables], raw)
		if err != nil {
			return fmt.Errorf("%w: decode SYS_TABLES row: %v", pager.ErrCatalogCorruption, err)
		}
		td := &TableDescriptor{
			ID:         vals[0].Int,
			Name:       vals[1].Str,
			Tablespace: vals[2].Str,
			HeaderPage: pager.PageID(vals[3].Int),
		}
		byID[td.ID] = td
		if _, ok := m.tables[td.Tablespace]; !ok {
			m.tables[td.Tablespace] = make(map[string]*TableDescriptor)
		}
		m.tables[td.Tablespace][td.Name] = td
		if td.ID > maxTableID {
			maxTableID = td.ID
		}
	}

	columnRows, err := scanTable(systemPool, sysHeaderPages[SysColumns])
	if err != nil {
		return fmt.Errorf("scan SYS_COLUMNS: %w", err)
	}
	type ordinalCol struct {
		ordinal int32
		col     Column
	}
	colsByTable := make(map[int32][]ordinalCol)
	for _, raw := range columnRows {
		vals, err := DecodeRow(sysSchemas[SysColumns], raw)
		if err != nil {
			return fmt.Errorf("%w: decode SYS_COLUMNS row: %v", pager.ErrCatalogCorruption, err)
		}
		tableID := vals[0].Int
		colsByTable[tableID] = append(colsByTable[tableID], ordinalCol{
			ordinal: vals[1].Int,
			col:     Column{Name: vals[2].Str, Type: ColumnType(vals[3].Int), MaxLength: vals[4].Int, Nullable: vals[5].Bool},
		})
	}
	for tableID, ocs := range colsByTable {
		td, ok := byID[tableID]
		if !ok {
			continue
		}
		cols := make([]Column, len(ocs))
		for _, oc := range ocs {
			if int(oc.ordinal) < len(cols) {
				cols[oc.ordinal] = oc.col
			}
		}
		td.Columns = cols
	}
	m.nextTableID = maxTableID + 1

	indexRows, err := scanTable(systemPool, sysHeaderPages[SysIndexes])
	if err != nil {
		return fmt.Errorf("scan SYS_INDEXES: %w", err)
	}
	maxIndexID := int32(-1)
	byIndexID := make(map[int32]*IndexDescriptor, len(indexRows))
	for _, raw := range indexRows {
		vals, err := DecodeRow(sysSchemas[SysIndexes], raw)
		if err != nil {
			return fmt.Errorf("%w: decode SYS_INDEXES row: %v", pager.ErrCatalogCorruption, err)
		}
		id := &IndexDescriptor{
			ID:         vals[0].Int,
			Name:       vals[1].Str,
			TableName:  vals[2].Str,
			Tablespace: vals[3].Str,
			HeaderPage: pager.PageID(vals[4].Int),
			KeyType:    layout.KeyType(vals[5].Int),
			Unique:     vals[6].Bool,
		}
		m.indexes[id.Name] = id
		byIndexID[id.ID] = id
		if id.ID > maxIndexID {
			maxIndexID = id.ID
		}
	}
	indexColumnRows, err := scanTable(systemPool, sysHeaderPages[SysIndexColumns])
	if err != nil {
		return fmt.Errorf("scan SYS_INDEX_COLUMNS: %w", err)
	}
	for _, raw := range indexColumnRows {
		vals, err := DecodeRow(sysSchemas[SysIndexColumns], raw)
		if err != nil {
			return fmt.Errorf("%w: decode SYS_INDEX_COLUMNS row: %v", pager.ErrCatalogCorruption, err)
		}
		if id, ok := byIndexID[vals[0].Int]; ok {
			id.Columns = append(id.Columns, vals[2].Str)
		}
	}
	m.nextIndexID = maxIndexID + 1

	return nil
}

// RegisterTablespace attaches pool as the buffer pool backing name's
// tablespace. If name has no existing SYS_TABLESPACES row (a brand new
// tablespace, or one from a database created before this tablespace
// existed), a row is described for it first; if name was already known
// from a prior load (a tablespace reopened after a restart), only the
// pool is attached, so it isn't described twice.
func (m *Manager) RegisterTablespace(name string, pool *bufferpool.Pool, containerPath string, pageSize int) error {
	if _, attached := m.pools[name]; attached {
		return nil
	}
	if _, known := m.tables[name]; !known {
		row, err := EncodeRow(sysSchemas[SysTablespaces], []Value{
			StringValue(name), StringValue(containerPath), IntValue(int32(pageSize)),
		})
		if err != nil {
			return err
		}
		if err := appendRow(m.pools[m.systemName], m.tables[m.systemName][SysTablespaces].HeaderPage, row); err != nil {
			return fmt.Errorf("catalog: register tablespace %q: %w", name, err)
		}
		m.tables[name] = make(map[string]*TableDescriptor)
	}
	m.pools[name] = pool
	return nil
}

// CreateTable creates a new table inside tablespace, self-describing it
// into SYS_TABLES and SYS_COLUMNS the same way a freshly bootstrapped
// SYS_* table describes itself.
func (m *Manager) CreateTable(tablespace, name string, columns []Column) (*TableDescriptor, error) {
	pool, ok := m.pools[tablespace]
	if !ok {
		return nil, fmt.Errorf("catalog: create table %q: tablespace %q: %w", name, tablespace, pager.ErrMissingContainer)
	}
	if tbls, ok := m.tables[tablespace]; ok {
		if _, exists := tbls[name]; exists {
			return nil, fmt.Errorf("catalog: create table %q: already exists", name)
		}
	} else {
		m.tables[tablespace] = make(map[string]*TableDescriptor)
	}

	headerPage, err := createTableHeader(pool, name, columns)
	if err != nil {
		return nil, err
	}
	tableID := m.nextTableID
	m.nextTableID++

	row, err := EncodeRow(sysSchemas[SysTables], []Value{
		IntValue(tableID), StringValue(name), StringValue(tablespace), IntValue(int32(headerPage)),
	})
	if err != nil {
		return nil, err
	}
	if err := appendRow(m.pools[m.systemName], m.tables[m.systemName][SysTables].HeaderPage, row); err != nil {
		return nil, fmt.Errorf("catalog: create table %q: describe into SYS_TABLES: %w", name, err)
	}
	for ordinal, c := range columns {
		row, err := EncodeRow(sysSchemas[SysColumns], []Value{
			IntValue(tableID), IntValue(int32(ordinal)), StringValue(c.Name), IntValue(int32(c.Type)), IntValue(c.MaxLength), BoolValue(c.Nullable),
		})
		if err != nil {
			return nil, err
		}
		if err := appendRow(m.pools[m.systemName], m.tables[m.systemName][SysColumns].HeaderPage, row); err != nil {
			return nil, fmt.Errorf("catalog: create table %q: describe column %q: %w", name, c.Name, err)
		}
	}

	td := &TableDescriptor{ID: tableID, Name: name, Tablespace: tablespace, HeaderPage: headerPage, Columns: columns}
	m.tables[tablespace][name] = td
	return td, nil
}

// Table returns a previously loaded or created table's descriptor.
func (m *Manager) Table(tablespace, name string) (*TableDescriptor, bool) {
	tbls, ok := m.tables[tablespace]
	if !ok {
		return nil, false
	}
	td, ok := tbls[name]
	return td, ok
}

// Tables lists every known table name within tablespace, sys and user
// alike (the SYS_* tables only ever live in the SYSTEM tablespace).
func (m *Manager) Tables(tablespace string) []string {
	tbls := m.tables[tablespace]
	names := make([]string, 0, len(tbls))
	for n := range tbls {
		names = append(names, n)
	}
	return names
}

// InsertRow encodes values with table's columns and appends the row to
// table, in whichever tablespace's container the table actually lives.
func (m *Manager) InsertRow(table *TableDescriptor, values []Value) error {
	pool, ok := m.pools[table.Tablespace]
	if !ok {
		return fmt.Errorf("catalog: insert into %q: tablespace %q not attached: %w", table.Name, table.Tablespace, pager.ErrMissingContainer)
	}
	row, err := EncodeRow(table.Columns, values)
	if err != nil {
		return err
	}
	return appendRow(pool, table.HeaderPage, row)
}

// ScanRows returns every live row of table, decoded.
func (m *Manager) ScanRows(table *TableDescriptor) ([][]Value, error) {
	pool, ok := m.pools[table.Tablespace]
	if !ok {
		return nil, fmt.Errorf("catalog: scan %q: tablespace %q not attached: %w", table.Name, table.Tablespace, pager.ErrMissingContainer)
	}
	raw, err := scanTable(pool, table.HeaderPage)
	if err != nil {
		return nil, err
	}
	out := make([][]Value, 0, len(raw))
	for _, r := range raw {
		vals, err := DecodeRow(table.Columns, r)
		if err != nil {
			if errors.Is(err, pager.ErrInvalidPage) {
				return out, fmt.Errorf("%w: %v", pager.ErrCatalogCorruption, err)
			}
			return nil, err
		}
		out = append(out, vals)
	}
	return out, nil
}

// RegisterIndex records a newly created B-tree's descriptor into the
// central SYS_INDEXES and SYS_INDEX_COLUMNS, so it can be reopened via its
// header page (in table's own tablespace) after a restart.
func (m *Manager) RegisterIndex(name string, table *TableDescriptor, columns []string, headerPage pager.PageID, keyType layout.KeyType, unique bool) (*IndexDescriptor, error) {
	if _, exists := m.indexes[name]; exists {
		return nil, fmt.Errorf("catalog: create index %q: already exists", name)
	}
	indexID := m.nextIndexID
	m.nextIndexID++

	row, err := EncodeRow(sysSchemas[SysIndexes], []Value{
		IntValue(indexID), StringValue(name), StringValue(table.Name), StringValue(table.Tablespace), IntValue(int32(headerPage)), IntValue(int32(keyType)), BoolValue(unique),
	})
	if err != nil {
		return nil, err
	}
	if err := appendRow(m.pools[m.systemName], m.tables[m.systemName][SysIndexes].HeaderPage, row); err != nil {
		return nil, fmt.Errorf("catalog: create index %q: describe into SYS_INDEXES: %w", name, err)
	}
	for ordinal, col := range columns {
		row, err := EncodeRow(sysSchemas[SysIndexColumns], []Value{IntValue(indexID), IntValue(int32(ordinal)), StringValue(col)})
		if err != nil {
			return nil, err
		}
		if err := appendRow(m.pools[m.systemName], m.tables[m.systemName][SysIndexColumns].HeaderPage, row); err != nil {
			return nil, fmt.Errorf("catalog: create index %q: describe column %q: %w", name, col, err)
		}
	}

	id := &IndexDescriptor{ID: indexID, Name: name, TableName: table.Name, Tablespace: table.Tablespace, HeaderPage: headerPage, KeyType: keyType, Unique: unique, Columns: columns}
	m.indexes[name] = id
	return id, nil
}

// CreateIndex builds a new, empty B-tree in table's own tablespace and
// describes it into SYS_INDEXES/SYS_INDEX_COLUMNS in one step, so a
// caller never has to remember to register a tree it created directly
// through the btree package.
func (m *Manager) CreateIndex(name string, table *TableDescriptor, columns []string, keyType layout.KeyType, unique bool) (*IndexDescriptor, error) {
	pool, ok := m.pools[table.Tablespace]
	if !ok {
		return nil, fmt.Errorf("catalog: create index %q: tablespace %q not attached: %w", name, table.Tablespace, pager.ErrMissingContainer)
	}
	_, headerPage, err := btree.Create(pool, keyType, unique)
	if err != nil {
		return nil, fmt.Errorf("catalog: create index %q: %w", name, err)
	}
	return m.RegisterIndex(name, table, columns, headerPage, keyType, unique)
}

// OpenIndex reopens a previously created index's B-tree by its descriptor.
func (m *Manager) OpenIndex(idx *IndexDescriptor) (*btree.BTree, error) {
	pool, ok := m.pools[idx.Tablespace]
	if !ok {
		return nil, fmt.Errorf("catalog: open index %q: tablespace %q not attached: %w", idx.Name, idx.Tablespace, pager.ErrMissingContainer)
	}
	return btree.Open(pool, idx.HeaderPage)
}

// Index returns a previously loaded or registered index's descriptor.
func (m *Manager) Index(name string) (*IndexDescriptor, bool) {
	id, ok := m.indexes[name]
	return id, ok
}
