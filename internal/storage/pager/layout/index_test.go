package layout

import (
	"testing"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

func TestLeafPageEncodeDecodeRoundTrip(t *testing.T) {
	p := LeafPage{
		KeyType: KeyTypeInt,
		Entries: []LeafEntry{
			{Key: IntKey(1), RecordPageID: 5, RecordSlot: 0},
			{Key: IntKey(2), RecordPageID: 5, RecordSlot: 1},
		},
		Next: 9,
		Prev: pager.NoPage,
	}
	buf := make([]byte, pager.DefaultPageSize)
	if err := p.EncodeInto(buf); err != nil {
		t.Fatalf("EncodeInto: %v", err)
	}
	got, err := DecodeLeafPage(buf, KeyTypeInt)
	if err != nil {
		t.Fatalf("DecodeLeafPage: %v", err)
	}
	if len(got.Entries) != 2 || got.Next != 9 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Entries[1].RecordSlot != 1 {
		t.Fatalf("entry 1 slot = %d, want 1", got.Entries[1].RecordSlot)
	}
}

func TestInternalPageChildFor(t *testing.T) {
	p := InternalPage{
		KeyType:   KeyTypeInt,
		LeftChild: 1,
		Entries: []InternalEntry{
			{Key: IntKey(10), Child: 2},
			{Key: IntKey(20), Child: 3},
		},
	}
	cases := []struct {
		key  Key
		want pager.PageID
	}{
		{IntKey(5), 1},
		{IntKey(10), 2},
		{IntKey(15), 2},
		{IntKey(20), 3},
		{IntKey(99), 3},
	}
	for _, c := range cases {
		if got := p.ChildFor(c.key); got != c.want {
			t.Fatalf("ChildFor(%v) = %d, want %d", c.key.Int, got, c.want)
		}
	}
}

func TestInternalPageEncodeDecodeRoundTrip(t *testing.T) {
	p := InternalPage{
		KeyType:   KeyTypeString,
		LeftChild: 4,
		Entries: []InternalEntry{
			{Key: StringKey("m"), Child: 5},
		},
	}
	buf := make([]byte, pager.DefaultPageSize)
	if err := p.EncodeInto(buf); err != nil {
		t.Fatalf("EncodeInto: %v", err)
	}
	got, err := DecodeInternalPage(buf, KeyTypeString)
	if err != nil {
		t.Fatalf("DecodeInternalPage: %v", err)
	}
	if got.LeftChild != 4 || len(got.Entries) != 1 || got.Entries[0].Key.Str != "m" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestIndexHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := IndexHeader{Root: 42, KeyType: KeyTypeFloat, Unique: true}
	buf := make([]byte, pager.DefaultPageSize)
	h.EncodeInto(buf)
	got, err := DecodeIndexHeader(buf)
	if err != nil {
		t.Fatalf("DecodeIndexHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}
