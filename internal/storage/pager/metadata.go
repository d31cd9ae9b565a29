package pager

import (
	"encoding/binary"
	"time"
)

// ContainerMetadata is the decoded form of page 0 of every container. Page
// size, creation time and tablespace name are fixed when the container is
// created; LastOpenedAt and TotalPages are rewritten as the container is
// reopened and grows.
//
// Grounded on tinySQL's superblock.go, but trimmed to what this engine
// actually needs: no format version, feature flags, catalog root, or
// checkpoint LSN (those are transaction/WAL/catalog-as-Btree concepts this
// design doesn't have). What's left — page size, page count, and a name —
// is closer to a label than tinySQL's superblock, on purpose.
type ContainerMetadata struct {
	PageSize          int
	CreatedAt         time.Time
	LastOpenedAt      time.Time
	TotalPages        int
	FreeSpaceMapPage  PageID
	TablespaceName    string
}

const metadataFixedFieldsSize = 4 /* page size */ + 8 /* created at unix nano */ + 8 /* last opened at */ + 4 /* total pages */ + 4 /* free space map page */

// EncodeInto serializes m into a page-sized buffer.
func (m ContainerMetadata) EncodeInto(buf []byte) {
	PutHeader(buf, Header{
		Type:       TypeContainerMetadata,
		NextPageID: NoPage,
		PrevPageID: NoPage,
	})
	off := HeaderSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(m.PageSize))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(m.CreatedAt.UnixNano()))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(m.LastOpenedAt.UnixNano()))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(m.TotalPages))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(m.FreeSpaceMapPage))
	off += 4
	rest := PutString(nil, m.TablespaceName)
	copy(buf[off:], rest)
}

// DecodeContainerMetadata parses page 0's bytes.
func DecodeContainerMetadata(buf []byte) (ContainerMetadata, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return ContainerMetadata{}, err
	}
	if h.Type != TypeContainerMetadata {
		return ContainerMetadata{}, ErrInvalidPage
	}
	off := HeaderSize
	pageSize := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	createdAt := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	lastOpenedAt := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	totalPages := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	fsmPage := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	name, _, err := GetString(buf[off:])
	if err != nil {
		return ContainerMetadata{}, err
	}
	return ContainerMetadata{
		PageSize:         int(pageSize),
		CreatedAt:        time.Unix(0, createdAt).UTC(),
		LastOpenedAt:     time.Unix(0, lastOpenedAt).UTC(),
		TotalPages:       int(totalPages),
		FreeSpaceMapPage: PageID(fsmPage),
		TablespaceName:   name,
	}, nil
}
