package catalog

// The five SYS_* tables the SYSTEM tablespace bootstraps on first open.
// Fixed, hand-written schemas rather than anything user-definable — they
// exist to describe every other table, including each other.
const (
	SysTablespaces = "SYS_TABLESPACES"
	SysTables      = "SYS_TABLES"
	SysColumns     = "SYS_COLUMNS"
	SysIndexes     = "SYS_INDEXES"
	SysIndexColumns = "SYS_INDEX_COLUMNS"
)

// sysTableOrder fixes the bootstrap order: tables with no forward
// reference to another sys table first, though in practice all five are
// created before any of them is self-described, so the order here only
// affects the catalog's own table IDs.
var sysTableOrder = []string{SysTablespaces, SysTables, SysColumns, SysIndexes, SysIndexColumns}

// sysSchemas carries each SYS_* table's columns, including internal
// bookkeeping columns (table_id/index_id surrogate keys, key_type) needed
// to reconstruct descriptors on load. SYS_COLUMNS and SYS_INDEX_COLUMNS
// refer to their table or index by that surrogate id, not by name, and
// SYS_INDEXES' root_page_id holds the index's INDEX_HEADER page ID.
var sysSchemas = map[string][]Column{
	SysTablespaces: {
		{Name: "name", Type: TypeString},
		{Name: "container_path", Type: TypeString},
		{Name: "page_size", Type: TypeInt},
	},
	SysTables: {
		{Name: "table_id", Type: TypeInt},
		{Name: "name", Type: TypeString},
		{Name: "tablespace_name", Type: TypeString},
		{Name: "header_page_id", Type: TypeInt},
	},
	SysColumns: {
		{Name: "table_id", Type: TypeInt},
		{Name: "ordinal", Type: TypeInt},
		{Name: "name", Type: TypeString},
		{Name: "type", Type: TypeInt},
		{Name: "max_length", Type: TypeInt},
		{Name: "nullable", Type: TypeBool},
	},
	SysIndexes: {
		{Name: "index_id", Type: TypeInt},
		{Name: "name", Type: TypeString},
		{Name: "table_name", Type: TypeString},
		{Name: "tablespace_name", Type: TypeString},
		{Name: "root_page_id", Type: TypeInt},
		{Name: "key_type", Type: TypeInt},
		{Name: "unique", Type: TypeBool},
	},
	SysIndexColumns: {
		{Name: "index_id", Type: TypeInt},
		{Name: "ordinal", Type: TypeInt},
		{Name: "column_name", Type: TypeString},
	},
}

// IsSysTable reports whether name is one of the five bootstrap tables.
func IsSysTable(name string) bool {
	_, ok := sysSchemas[name]
	return ok
}
