// Package layout implements the typed views over a raw page buffer: table
// header pages, slotted table-data pages, and B-tree index pages (leaf and
// internal). A factory dispatches on the page-type byte in the common
// header rather than on any reflection over a Go type, matching the
// engine's "tagged variant + factory" design response to needing typed
// page access without per-record reflection.
//
// Grounded on tinySQL's slotted_page.go and btree_page.go, which use the
// same trick of layering a type-specific header directly after the common
// one and reinterpreting the common header's trailing fields; the record
// formats themselves are new, since tinySQL's (flags byte + optional
// overflow chain, or JSON-valued catalog rows) don't match this engine's
// fixed, schema-typed record formats.
package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// KeyType identifies how a B-tree key is encoded on disk and compared.
type KeyType uint8

const (
	KeyTypeInt    KeyType = 1
	KeyTypeFloat  KeyType = 2
	KeyTypeString KeyType = 3
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeInt:
		return "int"
	case KeyTypeFloat:
		return "float"
	case KeyTypeString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Key is a single B-tree key value, tagged with the type that determines
// its on-disk width and comparison rule (int: 4 bytes; float: 8 bytes;
// string: length-prefixed UTF-16).
type Key struct {
	Type KeyType
	Int  int32
	Flt  float64
	Str  string
}

func IntKey(v int32) Key       { return Key{Type: KeyTypeInt, Int: v} }
func FloatKey(v float64) Key   { return Key{Type: KeyTypeFloat, Flt: v} }
func StringKey(v string) Key   { return Key{Type: KeyTypeString, Str: v} }

// Compare returns <0, 0, >0 as k is less than, equal to, or greater than
// other. Both keys must share the same Type.
func (k Key) Compare(other Key) int {
	switch k.Type {
	case KeyTypeInt:
		switch {
		case k.Int < other.Int:
			return -1
		case k.Int > other.Int:
			return 1
		default:
			return 0
		}
	case KeyTypeFloat:
		switch {
		case k.Flt < other.Flt:
			return -1
		case k.Flt > other.Flt:
			return 1
		default:
			return 0
		}
	case KeyTypeString:
		switch {
		case k.Str < other.Str:
			return -1
		case k.Str > other.Str:
			return 1
		default:
			return 0
		}
	default:
		panic(fmt.Sprintf("layout: compare of unset key type"))
	}
}

// EncodedSize returns the on-disk byte width of k.
func (k Key) EncodedSize() int {
	switch k.Type {
	case KeyTypeInt:
		return 4
	case KeyTypeFloat:
		return 8
	case KeyTypeString:
		return pager.StringSize(k.Str)
	default:
		return 0
	}
}

// PutKey appends k's encoded bytes to buf.
func PutKey(buf []byte, k Key) []byte {
	switch k.Type {
	case KeyTypeInt:
		var b [4]byte
		putUint32(b[:], uint32(k.Int))
		return append(buf, b[:]...)
	case KeyTypeFloat:
		var b [8]byte
		putUint64(b[:], float64bits(k.Flt))
		return append(buf, b[:]...)
	case KeyTypeString:
		return pager.PutString(buf, k.Str)
	default:
		panic("layout: put of unset key type")
	}
}

// GetKey decodes a key of the given type starting at buf[0], returning the
// key and the number of bytes consumed.
func GetKey(buf []byte, t KeyType) (Key, int, error) {
	switch t {
	case KeyTypeInt:
		if len(buf) < 4 {
			return Key{}, 0, fmt.Errorf("layout: truncated int key: %w", pager.ErrInvalidPage)
		}
		return Key{Type: KeyTypeInt, Int: int32(getUint32(buf))}, 4, nil
	case KeyTypeFloat:
		if len(buf) < 8 {
			return Key{}, 0, fmt.Errorf("layout: truncated float key: %w", pager.ErrInvalidPage)
		}
		return Key{Type: KeyTypeFloat, Flt: float64frombits(getUint64(buf))}, 8, nil
	case KeyTypeString:
		s, n, err := pager.GetString(buf)
		if err != nil {
			return Key{}, 0, err
		}
		return Key{Type: KeyTypeString, Str: s}, n, nil
	default:
		return Key{}, 0, fmt.Errorf("layout: unknown key type %d: %w", t, pager.ErrInvalidPage)
	}
}
