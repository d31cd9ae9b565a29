package catalog

import (
	"errors"
	"fmt"

	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

// createTableHeader allocates a table-header page and a single empty
// table-data page for it, chained together, and returns the header page's
// ID. columns is encoded onto the header page itself so a table's shape
// can be recovered from its header alone, independent of SYS_COLUMNS.
func createTableHeader(pool *bufferpool.Pool, name string, columns []Column) (pager.PageID, error) {
	dataPage, err := pool.AllocatePage(pager.TypeTableData)
	if err != nil {
		return 0, fmt.Errorf("catalog: create table %q: allocate data page: %w", name, err)
	}
	layout.InitTableData(dataPage.Data, pager.NoPage, pager.NoPage)
	if err := pool.UnpinPage(dataPage.ID, true); err != nil {
		return 0, err
	}

	headerPage, err := pool.AllocatePage(pager.TypeTableHeader)
	if err != nil {
		return 0, fmt.Errorf("catalog: create table %q: allocate header page: %w", name, err)
	}
	th := layout.TableHeader{
		FirstDataPage: dataPage.ID,
		LastDataPage:  dataPage.ID,
		Name:          name,
		Columns:       columnSpecs(columns),
	}
	th.EncodeInto(headerPage.Data)
	if err := pool.UnpinPage(headerPage.ID, true); err != nil {
		return 0, err
	}
	return headerPage.ID, nil
}

func columnSpecs(columns []Column) []layout.ColumnSpec {
	specs := make([]layout.ColumnSpec, len(columns))
	for i, c := range columns {
		specs[i] = layout.ColumnSpec{
			Name:      c.Name,
			DataType:  int32(c.Type),
			MaxLength: c.MaxLength,
			Nullable:  c.Nullable,
		}
	}
	return specs
}

// appendRow appends row to the table rooted at headerPage, allocating a
// new table-data page if the last one has no room.
func appendRow(pool *bufferpool.Pool, headerPage pager.PageID, row []byte) error {
	hp, err := pool.FetchPage(headerPage)
	if err != nil {
		return fmt.Errorf("catalog: append row: fetch header %d: %w", headerPage, err)
	}
	th, err := layout.DecodeTableHeader(hp.Data)
	if err != nil {
		pool.UnpinPage(headerPage, false)
		return err
	}

	lastPage, err := pool.FetchPage(th.LastDataPage)
	if err != nil {
		pool.UnpinPage(headerPage, false)
		return fmt.Errorf("catalog: append row: fetch last data page %d: %w", th.LastDataPage, err)
	}
	lastData, err := layout.WrapTableData(lastPage.Data)
	if err != nil {
		pool.UnpinPage(headerPage, false)
		pool.UnpinPage(th.LastDataPage, false)
		return err
	}

	if _, err := lastData.InsertRecord(row); err == nil {
		pool.UnpinPage(th.LastDataPage, true)
		return pool.UnpinPage(headerPage, false)
	} else if !errors.Is(err, pager.ErrNoSpace) {
		pool.UnpinPage(th.LastDataPage, false)
		pool.UnpinPage(headerPage, false)
		return fmt.Errorf("catalog: append row: insert into %d: %w", th.LastDataPage, err)
	}

	// No room: allocate a fresh data page, link it onto the chain, and
	// retry the insert there.
	newPage, err := pool.AllocatePage(pager.TypeTableData)
	if err != nil {
		pool.UnpinPage(th.LastDataPage, false)
		pool.UnpinPage(headerPage, false)
		return fmt.Errorf("catalog: append row: allocate new data page: %w", err)
	}
	newData := layout.InitTableData(newPage.Data, pager.NoPage, th.LastDataPage)
	if _, err := newData.InsertRecord(row); err != nil {
		pool.UnpinPage(newPage.ID, false)
		pool.UnpinPage(th.LastDataPage, false)
		pool.UnpinPage(headerPage, false)
		return fmt.Errorf("catalog: append row: row too large for an empty page: %w", err)
	}
	if err := pool.UnpinPage(newPage.ID, true); err != nil {
		return err
	}

	lastHdr := lastPage.Header()
	lastHdr.NextPageID = newPage.ID
	pager.PutHeader(lastPage.Data, lastHdr)
	if err := pool.UnpinPage(th.LastDataPage, true); err != nil {
		pool.UnpinPage(headerPage, false)
		return err
	}

	th.LastDataPage = newPage.ID
	th.EncodeInto(hp.Data)
	return pool.UnpinPage(headerPage, true)
}

// scanTable returns every live record stored across headerPage's data-page
// chain, in page/slot order.
func scanTable(pool *bufferpool.Pool, headerPage pager.PageID) ([][]byte, error) {
	hp, err := pool.FetchPage(headerPage)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan table: fetch header %d: %w", headerPage, err)
	}
	th, err := layout.DecodeTableHeader(hp.Data)
	if err := pool.UnpinPage(headerPage, false); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	var rows [][]byte
	id := th.FirstDataPage
	for id != pager.NoPage {
		page, err := pool.FetchPage(id)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan table: fetch data page %d: %w", id, err)
		}
		data, err := layout.WrapTableData(page.Data)
		if err != nil {
			pool.UnpinPage(id, false)
			return nil, err
		}
		rows = append(rows, data.LiveRecords()...)
		next := page.Header().NextPageID
		if err := pool.UnpinPage(id, false); err != nil {
			return nil, err
		}
		id = next
	}
	return rows, nil
}
