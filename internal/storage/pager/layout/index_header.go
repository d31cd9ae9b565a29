package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// IndexHeader is the per-index metadata page (page type INDEX_HEADER):
// the durable pointer to a B-tree's current root, persisted independently
// of any in-memory tree handle. A root split writes a new IndexHeader
// rather than only updating an in-memory field, resolving the source
// design's open question about how a root change survives a restart.
//
// Grounded on tinySQL's superblock CatalogRoot field (a single persisted
// root pointer for the one catalog tree tinySQL has) generalized to one
// page per index, since this engine supports many B-trees rather than
// exactly one.
type IndexHeader struct {
	Root    pager.PageID
	KeyType KeyType
	Unique  bool
}

// EncodeInto serializes h into buf. The common header's NextPageID field
// doubles as the persisted root pointer.
func (h IndexHeader) EncodeInto(buf []byte) {
	pager.PutHeader(buf, pager.Header{
		Type:       pager.TypeIndexHeader,
		NextPageID: h.Root,
		PrevPageID: pager.NoPage,
	})
	off := pager.HeaderSize
	buf[off] = byte(h.KeyType)
	off++
	if h.Unique {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
}

// DecodeIndexHeader parses an INDEX_HEADER page's bytes.
func DecodeIndexHeader(buf []byte) (IndexHeader, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return IndexHeader{}, err
	}
	if hdr.Type != pager.TypeIndexHeader {
		return IndexHeader{}, fmt.Errorf("layout: expected index header page, got %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
	off := pager.HeaderSize
	keyType := KeyType(buf[off])
	off++
	unique := buf[off] != 0
	return IndexHeader{Root: hdr.NextPageID, KeyType: keyType, Unique: unique}, nil
}
