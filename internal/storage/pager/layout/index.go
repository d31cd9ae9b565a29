package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// LeafEntry is one B-tree leaf entry: a key paired with the location of
// the record it indexes. Unlike tinySQL's btree_page.go, which stores the
// row's value inline (spilling to an overflow chain for large values),
// entries here are always a fixed-shape pointer — the value itself lives
// in a table-data slot, so there is never a need for overflow pages.
type LeafEntry struct {
	Key          Key
	RecordPageID pager.PageID
	RecordSlot   int32
}

func (e LeafEntry) encodedSize() int {
	return e.Key.EncodedSize() + 4 + 4
}

// LeafPage is the decoded form of an INDEX_LEAF page: a sorted run of
// LeafEntry values plus sibling links for range scans. The common header's
// NextPageID/PrevPageID fields are reused as NextLeaf/PrevLeaf, and
// FreeSpaceOffset is reused as the entry count — the same "header field
// means something else per page type" trick the common header's doc
// comment calls out.
type LeafPage struct {
	KeyType KeyType
	Entries []LeafEntry
	Next    pager.PageID
	Prev    pager.PageID
}

// DecodeLeafPage parses buf as an INDEX_LEAF page. keyType comes from the
// owning index's metadata page, since a bare page buffer does not record
// it.
func DecodeLeafPage(buf []byte, keyType KeyType) (LeafPage, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return LeafPage{}, err
	}
	if hdr.Type != pager.TypeIndexLeaf {
		return LeafPage{}, fmt.Errorf("layout: expected index leaf page, got %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
	count := int(hdr.FreeSpaceOffset)
	entries := make([]LeafEntry, 0, count)
	off := pager.HeaderSize
	for i := 0; i < count; i++ {
		k, n, err := GetKey(buf[off:], keyType)
		if err != nil {
			return LeafPage{}, err
		}
		off += n
		pid := pager.PageID(int32(getUint32(buf[off:])))
		off += 4
		slot := int32(getUint32(buf[off:]))
		off += 4
		entries = append(entries, LeafEntry{Key: k, RecordPageID: pid, RecordSlot: slot})
	}
	return LeafPage{KeyType: keyType, Entries: entries, Next: hdr.NextPageID, Prev: hdr.PrevPageID}, nil
}

// EncodeInto serializes p into buf (page-sized), replacing whatever was
// there before. It returns pager.ErrNoSpace if the entries do not fit.
func (p LeafPage) EncodeInto(buf []byte) error {
	size := pager.HeaderSize
	for _, e := range p.Entries {
		size += e.encodedSize()
	}
	if size > len(buf) {
		return pager.ErrNoSpace
	}
	pager.PutHeader(buf, pager.Header{
		Type:            pager.TypeIndexLeaf,
		NextPageID:      p.Next,
		PrevPageID:      p.Prev,
		FreeSpaceOffset: uint32(len(p.Entries)),
	})
	rest := make([]byte, 0, size-pager.HeaderSize)
	for _, e := range p.Entries {
		rest = PutKey(rest, e.Key)
		var pidBuf, slotBuf [4]byte
		putUint32(pidBuf[:], uint32(e.RecordPageID))
		rest = append(rest, pidBuf[:]...)
		putUint32(slotBuf[:], uint32(e.RecordSlot))
		rest = append(rest, slotBuf[:]...)
	}
	copy(buf[pager.HeaderSize:], rest)
	return nil
}

// InternalEntry pairs a separator key with the child to its right; the
// leftmost child of an internal page (the one for keys less than the
// first separator) is stored out of band as InternalPage.LeftChild.
type InternalEntry struct {
	Key   Key
	Child pager.PageID
}

func (e InternalEntry) encodedSize() int {
	return e.Key.EncodedSize() + 4
}

// InternalPage is the decoded form of an INDEX_INTERNAL page: M separator
// keys and M+1 child pointers, stored as a leftmost child plus M
// (key, right-child) pairs.
type InternalPage struct {
	KeyType   KeyType
	LeftChild pager.PageID
	Entries   []InternalEntry
}

// DecodeInternalPage parses buf as an INDEX_INTERNAL page.
func DecodeInternalPage(buf []byte, keyType KeyType) (InternalPage, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return InternalPage{}, err
	}
	if hdr.Type != pager.TypeIndexInternal {
		return InternalPage{}, fmt.Errorf("layout: expected index internal page, got %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
	count := int(hdr.FreeSpaceOffset)
	off := pager.HeaderSize
	leftChild := pager.PageID(int32(getUint32(buf[off:])))
	off += 4
	entries := make([]InternalEntry, 0, count)
	for i := 0; i < count; i++ {
		k, n, err := GetKey(buf[off:], keyType)
		if err != nil {
			return InternalPage{}, err
		}
		off += n
		child := pager.PageID(int32(getUint32(buf[off:])))
		off += 4
		entries = append(entries, InternalEntry{Key: k, Child: child})
	}
	return InternalPage{KeyType: keyType, LeftChild: leftChild, Entries: entries}, nil
}

// EncodeInto serializes p into buf. Returns pager.ErrNoSpace if it does
// not fit.
func (p InternalPage) EncodeInto(buf []byte) error {
	size := pager.HeaderSize + 4
	for _, e := range p.Entries {
		size += e.encodedSize()
	}
	if size > len(buf) {
		return pager.ErrNoSpace
	}
	pager.PutHeader(buf, pager.Header{
		Type:            pager.TypeIndexInternal,
		NextPageID:      pager.NoPage,
		PrevPageID:      pager.NoPage,
		FreeSpaceOffset: uint32(len(p.Entries)),
	})
	rest := make([]byte, 4, size-pager.HeaderSize)
	putUint32(rest, uint32(p.LeftChild))
	for _, e := range p.Entries {
		rest = PutKey(rest, e.Key)
		var childBuf [4]byte
		putUint32(childBuf[:], uint32(e.Child))
		rest = append(rest, childBuf[:]...)
	}
	copy(buf[pager.HeaderSize:], rest)
	return nil
}

// Children returns every child pointer in left-to-right order
// (LeftChild followed by each entry's Child).
func (p InternalPage) Children() []pager.PageID {
	out := make([]pager.PageID, 0, len(p.Entries)+1)
	out = append(out, p.LeftChild)
	for _, e := range p.Entries {
		out = append(out, e.Child)
	}
	return out
}

// ChildFor returns the child pointer a search for key should follow.
func (p InternalPage) ChildFor(key Key) pager.PageID {
	child := p.LeftChild
	for _, e := range p.Entries {
		if key.Compare(e.Key) < 0 {
			break
		}
		child = e.Child
	}
	return child
}
