package pager

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// On-disk strings are length-prefixed UTF-16 (native Go strings stay UTF-8
// in memory; this codec is the boundary between the two). No pack library
// offers a length-prefixed UTF-16 wire codec — this is the one place the
// engine reaches for the standard library's unicode/utf16 by necessity
// rather than by choice; see DESIGN.md.

// PutString appends a uint32 UTF-16 code-unit count followed by that many
// little-endian uint16 code units to buf, returning the extended slice.
func PutString(buf []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(units)))
	buf = append(buf, lenBuf[:]...)
	for _, u := range units {
		var unitBuf [2]byte
		binary.LittleEndian.PutUint16(unitBuf[:], u)
		buf = append(buf, unitBuf[:]...)
	}
	return buf
}

// StringSize returns the number of bytes PutString would write for s.
func StringSize(s string) int {
	return 4 + 2*len(utf16.Encode([]rune(s)))
}

// GetString decodes a length-prefixed UTF-16 string starting at buf[0] and
// returns the string plus the number of bytes consumed.
func GetString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, fmt.Errorf("pager: string length prefix truncated: %w", ErrInvalidPage)
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	need := 4 + int(n)*2
	if len(buf) < need {
		return "", 0, fmt.Errorf("pager: string body truncated: %w", ErrInvalidPage)
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[4+2*i : 6+2*i])
	}
	return string(utf16.Decode(units)), need, nil
}
