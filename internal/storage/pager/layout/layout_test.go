package layout

import "testing"

func TestKeyCompare(t *testing.T) {
	if IntKey(5).Compare(IntKey(10)) >= 0 {
		t.Fatal("5 should compare less than 10")
	}
	if StringKey("b").Compare(StringKey("a")) <= 0 {
		t.Fatal("\"b\" should compare greater than \"a\"")
	}
	if FloatKey(1.5).Compare(FloatKey(1.5)) != 0 {
		t.Fatal("equal floats should compare equal")
	}
}

func TestKeyEncodeDecodeRoundTrip(t *testing.T) {
	keys := []Key{IntKey(42), FloatKey(3.25), StringKey("row-42")}
	for _, k := range keys {
		buf := PutKey(nil, k)
		got, n, err := GetKey(buf, k.Type)
		if err != nil {
			t.Fatalf("GetKey(%v): %v", k, err)
		}
		if got.Compare(k) != 0 {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, k)
		}
		if n != len(buf) {
			t.Fatalf("GetKey consumed %d bytes, want %d", n, len(buf))
		}
	}
}
