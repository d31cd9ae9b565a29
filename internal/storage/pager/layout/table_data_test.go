package layout

import (
	"errors"
	"testing"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

func TestTableDataInsertGetRecord(t *testing.T) {
	buf := make([]byte, pager.DefaultPageSize)
	td := InitTableData(buf, pager.NoPage, pager.NoPage)

	slot, err := td.InsertRecord([]byte("row-1"))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if slot != 0 {
		t.Fatalf("first slot = %d, want 0", slot)
	}

	got, ok := td.GetRecord(0)
	if !ok || string(got) != "row-1" {
		t.Fatalf("GetRecord(0) = %q, %v; want \"row-1\", true", got, ok)
	}
}

func TestTableDataFreeSpaceInvariant(t *testing.T) {
	buf := make([]byte, pager.DefaultPageSize)
	td := InitTableData(buf, pager.NoPage, pager.NoPage)
	for i := 0; i < 10; i++ {
		if _, err := td.InsertRecord([]byte("x")); err != nil {
			t.Fatalf("InsertRecord %d: %v", i, err)
		}
	}
	// row_count*8 + 36 <= free_space_offset <= page_size
	lowerBound := td.SlotCount()*8 + 36
	fso := td.freeSpaceOffset()
	if lowerBound > fso || fso > len(buf) {
		t.Fatalf("free space offset %d outside [%d, %d]", fso, lowerBound, len(buf))
	}
}

func TestTableDataNoSpaceWhenFull(t *testing.T) {
	buf := make([]byte, 128) // small page to force exhaustion quickly
	td := InitTableData(buf, pager.NoPage, pager.NoPage)

	inserted := 0
	for {
		if _, err := td.InsertRecord([]byte("0123456789")); err != nil {
			if !errors.Is(err, pager.ErrNoSpace) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		inserted++
		if inserted > 1000 {
			t.Fatal("InsertRecord never reported ErrNoSpace")
		}
	}
	if inserted == 0 {
		t.Fatal("expected at least one record to fit")
	}
}

func TestTableDataDeleteTombstones(t *testing.T) {
	buf := make([]byte, pager.DefaultPageSize)
	td := InitTableData(buf, pager.NoPage, pager.NoPage)
	td.InsertRecord([]byte("keep"))
	td.InsertRecord([]byte("drop"))

	if err := td.DeleteRecord(1); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, ok := td.GetRecord(1); ok {
		t.Fatal("deleted slot should no longer return a record")
	}
	live := td.LiveRecords()
	if len(live) != 1 || string(live[0]) != "keep" {
		t.Fatalf("LiveRecords = %v, want just \"keep\"", live)
	}
}

func TestWrapTableDataRejectsWrongType(t *testing.T) {
	buf := make([]byte, pager.DefaultPageSize)
	pager.PutHeader(buf, pager.Header{Type: pager.TypeTableHeader})
	if _, err := WrapTableData(buf); !errors.Is(err, pager.ErrInvalidPage) {
		t.Fatalf("WrapTableData on a table-header page: err = %v, want ErrInvalidPage", err)
	}
}
