package btree

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

func openTestTree(t *testing.T, unique bool) *BTree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pgbase")
	c, err := pager.OpenContainer(path, pager.ContainerConfig{TablespaceName: "test"})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	pool := bufferpool.Open(c, "test", bufferpool.Config{Capacity: 64})
	t.Cleanup(func() { pool.Shutdown(context.Background()) })

	tree, _, err := Create(pool, layout.KeyTypeInt, unique)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tree
}

// TestInsertFindSequence matches the B-tree insert+find scenario: a
// specific insertion order, a present-key lookup, an absent-key lookup,
// and a range scan.
func TestInsertFindSequence(t *testing.T) {
	tree := openTestTree(t, true)
	keys := []int32{50, 25, 75, 10, 30, 60, 90, 5, 15, 27, 35}
	for i, k := range keys {
		if err := tree.Insert(layout.IntKey(k), pager.PageID(100+i), int32(i)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	pageID, slot, ok, err := tree.Find(layout.IntKey(27))
	if err != nil {
		t.Fatalf("Find(27): %v", err)
	}
	if !ok {
		t.Fatal("Find(27) = not found, want found")
	}
	wantPage := pager.PageID(100 + 9) // 27 was the 10th key inserted (index 9)
	if pageID != wantPage || slot != 9 {
		t.Fatalf("Find(27) = (%d, %d), want (%d, 9)", pageID, slot, wantPage)
	}

	_, _, ok, err = tree.Find(layout.IntKey(100))
	if err != nil {
		t.Fatalf("Find(100): %v", err)
	}
	if ok {
		t.Fatal("Find(100) = found, want not found")
	}

	entries, err := tree.FindRange(layout.IntKey(20), layout.IntKey(70))
	if err != nil {
		t.Fatalf("FindRange(20, 70): %v", err)
	}
	want := []int32{25, 27, 30, 35, 50, 60}
	if len(entries) != len(want) {
		t.Fatalf("FindRange returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Key.Int != want[i] {
			t.Fatalf("FindRange[%d] = %d, want %d", i, e.Key.Int, want[i])
		}
	}
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	tree := openTestTree(t, true)
	if err := tree.Insert(layout.IntKey(25), 1, 0); err != nil {
		t.Fatalf("Insert(25): %v", err)
	}
	err := tree.Insert(layout.IntKey(25), 2, 1)
	if !errors.Is(err, pager.ErrDuplicateKey) {
		t.Fatalf("Insert(25) again: err = %v, want ErrDuplicateKey", err)
	}

	pageID, slot, ok, err := tree.Find(layout.IntKey(25))
	if err != nil || !ok {
		t.Fatalf("Find(25) after rejected duplicate: ok=%v err=%v", ok, err)
	}
	if pageID != 1 || slot != 0 {
		t.Fatalf("Find(25) = (%d, %d), want (1, 0) — original pointer must be unchanged", pageID, slot)
	}
}

// TestNonUniqueIndexAcceptsDuplicateKeys matches the spec's "Unique"
// contract: a non-unique tree accepts more than one entry under the same
// key, in sorted order, rather than rejecting the second insert.
func TestNonUniqueIndexAcceptsDuplicateKeys(t *testing.T) {
	tree := openTestTree(t, false)
	if err := tree.Insert(layout.IntKey(25), 1, 0); err != nil {
		t.Fatalf("Insert(25) first: %v", err)
	}
	if err := tree.Insert(layout.IntKey(25), 2, 0); err != nil {
		t.Fatalf("Insert(25) second: %v", err)
	}
	if err := tree.Insert(layout.IntKey(25), 3, 0); err != nil {
		t.Fatalf("Insert(25) third: %v", err)
	}

	entries, err := tree.FindRange(layout.IntKey(25), layout.IntKey(25))
	if err != nil {
		t.Fatalf("FindRange(25, 25): %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("FindRange(25,25) returned %d entries, want 3", len(entries))
	}
	pages := map[pager.PageID]bool{}
	for _, e := range entries {
		pages[e.RecordPageID] = true
	}
	for _, want := range []pager.PageID{1, 2, 3} {
		if !pages[want] {
			t.Fatalf("FindRange(25,25) = %+v, missing record page %d", entries, want)
		}
	}
}

// TestManyInsertsForceSplitsAtEveryLevel inserts enough keys to force the
// root to split more than once, exercising multi-level tree growth and
// durable root persistence across the split.
func TestManyInsertsForceSplitsAtEveryLevel(t *testing.T) {
	tree := openTestTree(t, true)
	const n = 500
	for i := 0; i < n; i++ {
		if err := tree.Insert(layout.IntKey(int32(i)), pager.PageID(i), 0); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i += 37 {
		_, _, ok, err := tree.Find(layout.IntKey(int32(i)))
		if err != nil {
			t.Fatalf("Find(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Find(%d) = not found after %d inserts", i, n)
		}
	}
}
