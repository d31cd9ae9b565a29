package catalog

import (
	"encoding/binary"
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// ColumnType is one of the column types a catalog-described table's rows
// are encoded with. Unlike tinySQL's row_codec.go, which tags every value
// with its own type byte so a row can hold any mix of Go values, this
// codec is schema-driven: the column list already says what type each
// position holds, so only nullability needs a bit per row.
type ColumnType uint8

const (
	TypeInt    ColumnType = 1
	TypeString ColumnType = 2
	TypeBool   ColumnType = 3
)

// Column describes one column of a catalog-known table. MaxLength records
// a TypeString column's declared bound (e.g. VARCHAR(32)); EncodeRow does
// not enforce it. It is meaningless for other column types and left at
// zero for them.
type Column struct {
	Name      string
	Type      ColumnType
	MaxLength int32
	Nullable  bool
}

// Value is one column's value in a decoded row. Null is only meaningful
// when the column is Nullable.
type Value struct {
	Null bool
	Int  int32
	Str  string
	Bool bool
}

func IntValue(v int32) Value    { return Value{Int: v} }
func StringValue(v string) Value { return Value{Str: v} }
func BoolValue(v bool) Value    { return Value{Bool: v} }
func NullValue() Value          { return Value{Null: true} }

// EncodeRow serializes values (one per column, in column order) as: a
// null bitmap covering only the nullable columns (one bit per nullable
// column, in column order, set if that value is null), followed by each
// non-null value in column order — ints as 4-byte LE, strings as
// length-prefixed UTF-16, bools as a single byte.
func EncodeRow(cols []Column, values []Value) ([]byte, error) {
	if len(cols) != len(values) {
		return nil, fmt.Errorf("catalog: encode row: %d columns, %d values", len(cols), len(values))
	}

	nullableCount := 0
	for _, c := range cols {
		if c.Nullable {
			nullableCount++
		}
	}
	bitmap := make([]byte, (nullableCount+7)/8)
	nullableIdx := 0
	for i, c := range cols {
		if !c.Nullable {
			continue
		}
		if values[i].Null {
			bitmap[nullableIdx/8] |= 1 << uint(nullableIdx%8)
		}
		nullableIdx++
	}

	buf := append([]byte(nil), bitmap...)
	for i, c := range cols {
		if c.Nullable && values[i].Null {
			continue
		}
		switch c.Type {
		case TypeInt:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(values[i].Int))
			buf = append(buf, b[:]...)
		case TypeString:
			buf = pager.PutString(buf, values[i].Str)
		case TypeBool:
			var b byte
			if values[i].Bool {
				b = 1
			}
			buf = append(buf, b)
		default:
			return nil, fmt.Errorf("catalog: encode row: unknown column type %d for %q", c.Type, c.Name)
		}
	}
	return buf, nil
}

// DecodeRow is EncodeRow's inverse.
func DecodeRow(cols []Column, buf []byte) ([]Value, error) {
	nullableCount := 0
	for _, c := range cols {
		if c.Nullable {
			nullableCount++
		}
	}
	bitmapLen := (nullableCount + 7) / 8
	if len(buf) < bitmapLen {
		return nil, fmt.Errorf("catalog: decode row: truncated null bitmap: %w", pager.ErrInvalidPage)
	}
	bitmap := buf[:bitmapLen]
	off := bitmapLen

	values := make([]Value, len(cols))
	nullableIdx := 0
	for i, c := range cols {
		isNull := false
		if c.Nullable {
			isNull = bitmap[nullableIdx/8]&(1<<uint(nullableIdx%8)) != 0
			nullableIdx++
		}
		if isNull {
			values[i] = Value{Null: true}
			continue
		}
		switch c.Type {
		case TypeInt:
			if off+4 > len(buf) {
				return nil, fmt.Errorf("catalog: decode row: truncated int at %q: %w", c.Name, pager.ErrInvalidPage)
			}
			values[i] = Value{Int: int32(binary.LittleEndian.Uint32(buf[off:]))}
			off += 4
		case TypeString:
			s, n, err := pager.GetString(buf[off:])
			if err != nil {
				return nil, fmt.Errorf("catalog: decode row: string at %q: %w", c.Name, err)
			}
			values[i] = Value{Str: s}
			off += n
		case TypeBool:
			if off >= len(buf) {
				return nil, fmt.Errorf("catalog: decode row: truncated bool at %q: %w", c.Name, pager.ErrInvalidPage)
			}
			values[i] = Value{Bool: buf[off] != 0}
			off++
		default:
			return nil, fmt.Errorf("catalog: decode row: unknown column type %d for %q", c.Type, c.Name)
		}
	}
	return values, nil
}
