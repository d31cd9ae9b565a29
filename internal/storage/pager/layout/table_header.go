package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// ColumnSpec is one column's on-disk description, as carried by the table
// header page: name, data type, an optional length bound (e.g. VARCHAR(32)),
// and nullability. It mirrors catalog.Column one-for-one but lives in
// layout so the header page's encode/decode does not have to import the
// catalog package (catalog already imports layout, not the reverse).
type ColumnSpec struct {
	Name      string
	DataType  int32
	MaxLength int32
	Nullable  bool
}

// TableHeader is the fixed-format page that anchors a table: its name, the
// head/tail of its table-data page chain, and its column list. The column
// list is also independently recorded in SYS_COLUMNS by the catalog
// manager; carrying it here too means a table's own shape can be recovered
// by walking its header page alone, without a working catalog — the same
// self-sufficiency a table-header-plus-table-data chain already gives the
// row data itself.
type TableHeader struct {
	FirstDataPage pager.PageID
	LastDataPage  pager.PageID
	Name          string
	Columns       []ColumnSpec
}

const tableHeaderFixedSize = 4 /* last data page */

// EncodeInto serializes h into a page-sized buffer. The header's common
// NextPageID field doubles as FirstDataPage (reusing the chain-pointer
// field rather than inventing a new one, the same trick tinySQL's
// btree_page.go plays with leaf NextLeaf/PrevLeaf). After the fixed fields
// and the name comes column_count followed by each column's
// name/data_type/max_length/nullable record.
func (h TableHeader) EncodeInto(buf []byte) {
	pager.PutHeader(buf, pager.Header{
		Type:       pager.TypeTableHeader,
		NextPageID: h.FirstDataPage,
		PrevPageID: pager.NoPage,
	})
	off := pager.HeaderSize
	putUint32(buf[off:], uint32(h.LastDataPage))
	off += 4

	rest := pager.PutString(nil, h.Name)
	copy(buf[off:], rest)
	off += len(rest)

	putUint32(buf[off:], uint32(len(h.Columns)))
	off += 4
	for _, c := range h.Columns {
		nameBytes := pager.PutString(nil, c.Name)
		copy(buf[off:], nameBytes)
		off += len(nameBytes)
		putUint32(buf[off:], uint32(c.DataType))
		off += 4
		putUint32(buf[off:], uint32(c.MaxLength))
		off += 4
		if c.Nullable {
			buf[off] = 1
		} else {
			buf[off] = 0
		}
		off++
	}
}

// DecodeTableHeader parses a table header page's bytes.
func DecodeTableHeader(buf []byte) (TableHeader, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return TableHeader{}, err
	}
	if hdr.Type != pager.TypeTableHeader {
		return TableHeader{}, fmt.Errorf("layout: expected table header page, got %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
	off := pager.HeaderSize
	last := pager.PageID(int32(getUint32(buf[off:])))
	off += 4
	name, n, err := pager.GetString(buf[off:])
	if err != nil {
		return TableHeader{}, err
	}
	off += n

	if off+4 > len(buf) {
		return TableHeader{FirstDataPage: hdr.NextPageID, LastDataPage: last, Name: name}, nil
	}
	count := int(getUint32(buf[off:]))
	off += 4
	columns := make([]ColumnSpec, 0, count)
	for i := 0; i < count; i++ {
		colName, n, err := pager.GetString(buf[off:])
		if err != nil {
			return TableHeader{}, fmt.Errorf("layout: decode table header: column %d name: %w", i, err)
		}
		off += n
		if off+9 > len(buf) {
			return TableHeader{}, fmt.Errorf("layout: decode table header: column %d: truncated: %w", i, pager.ErrInvalidPage)
		}
		dataType := int32(getUint32(buf[off:]))
		off += 4
		maxLength := int32(getUint32(buf[off:]))
		off += 4
		nullable := buf[off] != 0
		off++
		columns = append(columns, ColumnSpec{Name: colName, DataType: dataType, MaxLength: maxLength, Nullable: nullable})
	}

	return TableHeader{
		FirstDataPage: hdr.NextPageID,
		LastDataPage:  last,
		Name:          name,
		Columns:       columns,
	}, nil
}
