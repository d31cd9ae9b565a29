// Package pager implements the on-disk page format for pagebase: fixed-size
// pages inside a storage container, a free-space bitmap allocator, and the
// typed page layouts (table header, table data, index, metadata) that sit on
// top of a raw page buffer.
//
// There is no write-ahead log and no CRC here — pagebase is an educational
// engine whose durability promise stops at "the last successful fsync
// survives"; crash recovery, checksums, and transactions are explicitly out
// of scope.
package pager

import (
	"encoding/binary"
	"fmt"
)

// Page sizes are fixed per database and must be a power of two.
const (
	DefaultPageSize = 8192
	MinPageSize     = 4096
	MaxPageSize     = 65536

	// HeaderSize is the size, in bytes, of the common page header present
	// at the start of every page regardless of type.
	//
	// Layout:
	//   [0]      Type              (1 byte)
	//   [1:5]    Magic             (4 bytes, uint32 LE, always MagicNumber)
	//   [5:9]    NextPageID        (4 bytes, int32 LE, -1 if none)
	//   [9:13]   PrevPageID        (4 bytes, int32 LE, -1 if none)
	//   [13:17]  FreeSpaceOffset   (4 bytes, uint32 LE, meaning is per-type)
	//   [17:32]  Reserved          (15 bytes, zero-filled)
	HeaderSize = 32

	// MagicNumber identifies a page written by this engine.
	MagicNumber uint32 = 0xDADADADA

	// NoPage is the sentinel value for an absent page pointer.
	NoPage PageID = -1
)

// PageID identifies a page within a single tablespace's storage container.
// Page 0 is always the container metadata page; page 1 is always the
// free-space map.
type PageID int32

// Type is the one-byte tag at the start of every page, used by the page
// layout factory to decide how to interpret the bytes that follow the
// common header.
type Type uint8

const (
	TypeUnused            Type = 0
	TypeTableHeader       Type = 1
	TypeTableData         Type = 2
	TypeIndexHeader       Type = 3
	TypeIndexInternal     Type = 4
	TypeIndexLeaf         Type = 5
	_                     Type = 6 // reserved
	TypeFreeSpaceMap      Type = 7
	TypeTransactionLog     Type = 8 // reserved, never written
	TypeContainerMetadata Type = 9
)

func (t Type) String() string {
	switch t {
	case TypeUnused:
		return "Unused"
	case TypeTableHeader:
		return "TableHeader"
	case TypeTableData:
		return "TableData"
	case TypeIndexHeader:
		return "IndexHeader"
	case TypeIndexInternal:
		return "IndexInternal"
	case TypeIndexLeaf:
		return "IndexLeaf"
	case TypeFreeSpaceMap:
		return "FreeSpaceMap"
	case TypeTransactionLog:
		return "TransactionLog"
	case TypeContainerMetadata:
		return "ContainerMetadata"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Header is the common 32-byte page header, decoded from a page buffer.
type Header struct {
	Type            Type
	NextPageID      PageID
	PrevPageID      PageID
	FreeSpaceOffset uint32
}

// PutHeader writes h into the first HeaderSize bytes of buf.
func PutHeader(buf []byte, h Header) {
	if len(buf) < HeaderSize {
		panic("pager: buffer smaller than HeaderSize")
	}
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint32(buf[1:5], MagicNumber)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(h.NextPageID))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(h.PrevPageID))
	binary.LittleEndian.PutUint32(buf[13:17], h.FreeSpaceOffset)
	for i := 17; i < HeaderSize; i++ {
		buf[i] = 0
	}
}

// ReadHeader decodes the common header from buf. It returns ErrInvalidPage
// if the magic number does not match, which is the engine's signal that a
// page is corrupt or was never initialized.
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("pager: page buffer shorter than header: %w", ErrInvalidPage)
	}
	magic := binary.LittleEndian.Uint32(buf[1:5])
	if magic != MagicNumber {
		return Header{}, fmt.Errorf("pager: bad magic %#x: %w", magic, ErrInvalidPage)
	}
	return Header{
		Type:            Type(buf[0]),
		NextPageID:      PageID(int32(binary.LittleEndian.Uint32(buf[5:9]))),
		PrevPageID:      PageID(int32(binary.LittleEndian.Uint32(buf[9:13]))),
		FreeSpaceOffset: binary.LittleEndian.Uint32(buf[13:17]),
	}, nil
}

// NewPageBuf allocates a zeroed page-sized buffer with its header initialized.
func NewPageBuf(pageSize int, t Type) []byte {
	buf := make([]byte, pageSize)
	PutHeader(buf, Header{Type: t, NextPageID: NoPage, PrevPageID: NoPage})
	return buf
}

// Page is a cached, pinnable page: its identity and bytes. The buffer pool
// keeps each resident page's pin count and dirty flag in its own frame
// record; it sets PinCount to 1 when it first hands the page out and does
// not update Dirty or PinCount afterwards. Page itself does no locking.
type Page struct {
	ID       PageID
	Data     []byte
	Dirty    bool
	PinCount int
}

// Header is a convenience accessor — it re-parses the page's own header
// bytes and panics on corruption, since a Page's bytes are assumed valid
// the moment it is constructed (invalid pages never reach this far; see
// Container.ReadPage).
func (p *Page) Header() Header {
	h, err := ReadHeader(p.Data)
	if err != nil {
		panic(err)
	}
	return h
}
