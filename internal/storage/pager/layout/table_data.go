package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// Slot directory entries are 8 bytes: a uint32 row offset and a uint32 row
// length, wider than tinySQL's 4-byte (uint16+uint16) slots since this
// format is not meant to cap page size at 64KiB the way tinySQL's does.
const slotSize = 8

// tableDataHeaderSize is the space reserved after the common 32-byte
// header for the slot count, before the slot directory itself begins.
const tableDataHeaderSize = 4

// TableData is a slotted page: a directory of fixed-size slots growing
// upward from just after the page header, and row payloads packed growing
// downward from the end of the page. The common header's FreeSpaceOffset
// field holds the offset where the payload region begins, which is the end
// of the free region that starts where the directory ends.
//
// Grounded on tinySQL's slotted_page.go for the overall technique
// (directory-up, payload-down, a tombstone delete via zero length) but
// widened per spec and with update-in-place/compaction left out: this
// engine's core scenarios are append/read, and the invariant it must hold
// is only that the directory never overruns the free-space offset.
type TableData struct {
	buf []byte
}

// WrapTableData treats buf as a table-data page view without copying it.
// Use InitTableData first if buf is freshly allocated.
func WrapTableData(buf []byte) (*TableData, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Type != pager.TypeTableData {
		return nil, fmt.Errorf("layout: expected table data page, got %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
	return &TableData{buf: buf}, nil
}

// InitTableData formats buf (already page-sized) as an empty table-data
// page, chained via next/prev to the rest of its table's page list.
func InitTableData(buf []byte, next, prev pager.PageID) *TableData {
	pager.PutHeader(buf, pager.Header{
		Type:            pager.TypeTableData,
		NextPageID:      next,
		PrevPageID:      prev,
		FreeSpaceOffset: uint32(len(buf)),
	})
	putUint32(buf[pager.HeaderSize:], 0)
	return &TableData{buf: buf}
}

func (t *TableData) slotCount() int {
	return int(getUint32(t.buf[pager.HeaderSize:]))
}

func (t *TableData) setSlotCount(n int) {
	putUint32(t.buf[pager.HeaderSize:], uint32(n))
}

func (t *TableData) directoryEnd() int {
	return pager.HeaderSize + tableDataHeaderSize + t.slotCount()*slotSize
}

func (t *TableData) freeSpaceOffset() int {
	h, _ := pager.ReadHeader(t.buf)
	return int(h.FreeSpaceOffset)
}

func (t *TableData) setFreeSpaceOffset(off int) {
	h, _ := pager.ReadHeader(t.buf)
	h.FreeSpaceOffset = uint32(off)
	pager.PutHeader(t.buf, h)
	// PutHeader re-zeroes the reserved bytes only; slot count lives past
	// the header and is untouched by this call.
}

// SlotCount returns the number of slots in the directory, including any
// tombstoned (deleted) slots.
func (t *TableData) SlotCount() int { return t.slotCount() }

// FreeSpace returns the number of bytes currently available for a new
// record between the end of the directory and the start of the payload
// region.
func (t *TableData) FreeSpace() int {
	return t.freeSpaceOffset() - t.directoryEnd()
}

func (t *TableData) slotOffset(i int) int {
	return pager.HeaderSize + tableDataHeaderSize + i*slotSize
}

func (t *TableData) readSlot(i int) (rowOffset, rowLength uint32) {
	s := t.buf[t.slotOffset(i):]
	return getUint32(s), getUint32(s[4:])
}

func (t *TableData) writeSlot(i int, rowOffset, rowLength uint32) {
	s := t.buf[t.slotOffset(i):]
	putUint32(s, rowOffset)
	putUint32(s[4:], rowLength)
}

// InsertRecord appends record to the payload region and a new slot
// pointing at it, returning the new slot index. It returns
// pager.ErrNoSpace if the record plus a new slot does not fit in the page's
// remaining free space.
func (t *TableData) InsertRecord(record []byte) (slot int, err error) {
	needed := slotSize + len(record)
	if t.FreeSpace() < needed {
		return 0, pager.ErrNoSpace
	}
	newFreeEnd := t.freeSpaceOffset() - len(record)
	copy(t.buf[newFreeEnd:], record)
	t.setFreeSpaceOffset(newFreeEnd)

	idx := t.slotCount()
	t.setSlotCount(idx + 1)
	t.writeSlot(idx, uint32(newFreeEnd), uint32(len(record)))
	return idx, nil
}

// GetRecord returns the bytes stored at slot, or ok=false if the slot was
// deleted (tombstoned) or out of range.
func (t *TableData) GetRecord(slot int) (record []byte, ok bool) {
	if slot < 0 || slot >= t.slotCount() {
		return nil, false
	}
	off, length := t.readSlot(slot)
	if length == 0 {
		return nil, false
	}
	return t.buf[off : off+length], true
}

// DeleteRecord tombstones slot by zeroing its length, leaving the payload
// bytes in place. This engine does not compact or reclaim slotted-page
// space on delete; that is a Non-goal-adjacent optimization left out.
func (t *TableData) DeleteRecord(slot int) error {
	if slot < 0 || slot >= t.slotCount() {
		return fmt.Errorf("layout: slot %d out of range", slot)
	}
	off, _ := t.readSlot(slot)
	t.writeSlot(slot, off, 0)
	return nil
}

// LiveRecords returns every non-tombstoned record in slot order.
func (t *TableData) LiveRecords() [][]byte {
	out := make([][]byte, 0, t.slotCount())
	for i := 0; i < t.slotCount(); i++ {
		if rec, ok := t.GetRecord(i); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Bytes returns the page's underlying buffer.
func (t *TableData) Bytes() []byte { return t.buf }
