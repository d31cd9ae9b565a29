// Package btree implements the B-tree index on top of a buffer pool: a
// root-identified tree of fixed fanout M, with leaf entries pointing at
// table-data record locations rather than carrying values inline.
//
// Grounded on tinySQL's btree.go for the overall insert/find/split/promote
// shape — including the "insert into parent" pattern for upward-
// propagating splits — but the on-disk entry format (typed, fixed-width
// keys rather than flags-byte-plus-overflow) and the durable root pointer
// (a dedicated INDEX_HEADER page rather than a single superblock field)
// are new. Per the concurrency model, BTree holds no lock of its own:
// callers are responsible for serializing concurrent writers to the same
// tree.
package btree

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

// Fanout is the maximum number of keys in an internal node (M), and the
// maximum number of entries in a leaf before it splits.
const Fanout = 10

// BTree is a handle to one index: a key type, a uniqueness constraint, and
// the page ID of its durable INDEX_HEADER metadata page, through which the
// current root is always read and updated.
type BTree struct {
	pool       *bufferpool.Pool
	HeaderPage pager.PageID
	KeyType    layout.KeyType
	Unique     bool
}

// Create allocates a fresh, empty tree: one empty leaf as the initial
// root, and an INDEX_HEADER page recording it. It returns the BTree handle
// and the ID of the header page, which the catalog persists in
// SYS_INDEXES so the tree can be reopened later via Open.
func Create(pool *bufferpool.Pool, keyType layout.KeyType, unique bool) (*BTree, pager.PageID, error) {
	rootPage, err := pool.AllocatePage(pager.TypeIndexLeaf)
	if err != nil {
		return nil, 0, fmt.Errorf("btree: create: allocate root: %w", err)
	}
	leaf := layout.LeafPage{KeyType: keyType, Next: pager.NoPage, Prev: pager.NoPage}
	if err := leaf.EncodeInto(rootPage.Data); err != nil {
		return nil, 0, fmt.Errorf("btree: create: encode root: %w", err)
	}
	if err := pool.UnpinPage(rootPage.ID, true); err != nil {
		return nil, 0, err
	}

	headerPage, err := pool.AllocatePage(pager.TypeIndexHeader)
	if err != nil {
		return nil, 0, fmt.Errorf("btree: create: allocate header: %w", err)
	}
	hdr := layout.IndexHeader{Root: rootPage.ID, KeyType: keyType, Unique: unique}
	hdr.EncodeInto(headerPage.Data)
	if err := pool.UnpinPage(headerPage.ID, true); err != nil {
		return nil, 0, err
	}

	return &BTree{pool: pool, HeaderPage: headerPage.ID, KeyType: keyType, Unique: unique}, headerPage.ID, nil
}

// Open reattaches to an existing tree via its header page.
func Open(pool *bufferpool.Pool, headerPage pager.PageID) (*BTree, error) {
	hp, err := pool.FetchPage(headerPage)
	if err != nil {
		return nil, fmt.Errorf("btree: open: fetch header %d: %w", headerPage, err)
	}
	defer pool.UnpinPage(headerPage, false)
	hdr, err := layout.DecodeIndexHeader(hp.Data)
	if err != nil {
		return nil, fmt.Errorf("btree: open: decode header %d: %w", headerPage, err)
	}
	return &BTree{pool: pool, HeaderPage: headerPage, KeyType: hdr.KeyType, Unique: hdr.Unique}, nil
}

func (t *BTree) root() (pager.PageID, error) {
	hp, err := t.pool.FetchPage(t.HeaderPage)
	if err != nil {
		return 0, fmt.Errorf("btree: read root: %w", err)
	}
	defer t.pool.UnpinPage(t.HeaderPage, false)
	hdr, err := layout.DecodeIndexHeader(hp.Data)
	if err != nil {
		return 0, fmt.Errorf("btree: read root: %w", err)
	}
	return hdr.Root, nil
}

func (t *BTree) setRoot(id pager.PageID) error {
	hp, err := t.pool.FetchPage(t.HeaderPage)
	if err != nil {
		return fmt.Errorf("btree: update root: %w", err)
	}
	defer t.pool.UnpinPage(t.HeaderPage, true)
	hdr, err := layout.DecodeIndexHeader(hp.Data)
	if err != nil {
		return fmt.Errorf("btree: update root: %w", err)
	}
	hdr.Root = id
	hdr.EncodeInto(hp.Data)
	return nil
}

// Find returns the record location for key, and ok=false if no entry has
// that key.
func (t *BTree) Find(key layout.Key) (pageID pager.PageID, slot int32, ok bool, err error) {
	leafID, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return 0, 0, false, err
	}
	defer t.pool.UnpinPage(leafID, false)
	for _, e := range leaf.Entries {
		if e.Key.Compare(key) == 0 {
			return e.RecordPageID, e.RecordSlot, true, nil
		}
	}
	return 0, 0, false, nil
}

// FindRange returns every entry with key in [start, end], inclusive,
// walking leaf sibling links once the first matching leaf is located.
func (t *BTree) FindRange(start, end layout.Key) ([]layout.LeafEntry, error) {
	leafID, leaf, err := t.descendToLeaf(start)
	if err != nil {
		return nil, err
	}

	var out []layout.LeafEntry
	for {
		for _, e := range leaf.Entries {
			if e.Key.Compare(start) >= 0 && e.Key.Compare(end) <= 0 {
				out = append(out, e)
			}
		}
		next := leaf.Next
		if err := t.pool.UnpinPage(leafID, false); err != nil {
			return nil, err
		}
		if next == pager.NoPage {
			break
		}
		nextPage, err := t.pool.FetchPage(next)
		if err != nil {
			return nil, fmt.Errorf("btree: range scan: fetch leaf %d: %w", next, err)
		}
		nextLeaf, err := layout.DecodeLeafPage(nextPage.Data, t.KeyType)
		if err != nil {
			t.pool.UnpinPage(next, false)
			return nil, err
		}
		if len(nextLeaf.Entries) > 0 && nextLeaf.Entries[0].Key.Compare(end) > 0 {
			t.pool.UnpinPage(next, false)
			break
		}
		leafID, leaf = next, nextLeaf
	}
	return out, nil
}

// descendToLeaf walks from the root to the leaf that would contain key,
// returning it fetched (and pinned — caller must unpin).
func (t *BTree) descendToLeaf(key layout.Key) (pager.PageID, layout.LeafPage, error) {
	id, err := t.root()
	if err != nil {
		return 0, layout.LeafPage{}, err
	}
	for {
		page, err := t.pool.FetchPage(id)
		if err != nil {
			return 0, layout.LeafPage{}, fmt.Errorf("btree: descend: fetch %d: %w", id, err)
		}
		hdr, err := pager.ReadHeader(page.Data)
		if err != nil {
			t.pool.UnpinPage(id, false)
			return 0, layout.LeafPage{}, err
		}
		if hdr.Type == pager.TypeIndexLeaf {
			leaf, err := layout.DecodeLeafPage(page.Data, t.KeyType)
			if err != nil {
				t.pool.UnpinPage(id, false)
				return 0, layout.LeafPage{}, err
			}
			return id, leaf, nil
		}
		internal, err := layout.DecodeInternalPage(page.Data, t.KeyType)
		if err != nil {
			t.pool.UnpinPage(id, false)
			return 0, layout.LeafPage{}, err
		}
		next := internal.ChildFor(key)
		if err := t.pool.UnpinPage(id, false); err != nil {
			return 0, layout.LeafPage{}, err
		}
		id = next
	}
}

// pathEntry records one step taken descending toward a leaf during Insert,
// so a split can propagate a new separator key up to the correct parent
// without needing parent pointers stored on disk.
type pathEntry struct {
	pageID pager.PageID
}

// Insert adds (key -> recordPageID, recordSlot) to the tree. For a Unique
// tree, it returns pager.ErrDuplicateKey if key is already present. For a
// non-unique tree, a key already present is not an error: the new entry is
// inserted alongside the existing one(s), in sorted order.
func (t *BTree) Insert(key layout.Key, recordPageID pager.PageID, recordSlot int32) error {
	rootID, err := t.root()
	if err != nil {
		return err
	}

	var path []pathEntry
	id := rootID
	for {
		page, err := t.pool.FetchPage(id)
		if err != nil {
			return fmt.Errorf("btree: insert: fetch %d: %w", id, err)
		}
		hdr, err := pager.ReadHeader(page.Data)
		if err != nil {
			t.pool.UnpinPage(id, false)
			return err
		}
		if hdr.Type == pager.TypeIndexLeaf {
			if err := t.pool.UnpinPage(id, false); err != nil {
				return err
			}
			break
		}
		internal, err := layout.DecodeInternalPage(page.Data, t.KeyType)
		if err != nil {
			t.pool.UnpinPage(id, false)
			return err
		}
		path = append(path, pathEntry{pageID: id})
		next := internal.ChildFor(key)
		if err := t.pool.UnpinPage(id, false); err != nil {
			return err
		}
		id = next
	}

	return t.insertIntoLeaf(id, path, key, recordPageID, recordSlot)
}

func (t *BTree) insertIntoLeaf(leafID pager.PageID, path []pathEntry, key layout.Key, recordPageID pager.PageID, recordSlot int32) error {
	page, err := t.pool.FetchPage(leafID)
	if err != nil {
		return fmt.Errorf("btree: insert: fetch leaf %d: %w", leafID, err)
	}
	leaf, err := layout.DecodeLeafPage(page.Data, t.KeyType)
	if err != nil {
		t.pool.UnpinPage(leafID, false)
		return err
	}

	idx := 0
	for idx < len(leaf.Entries) && leaf.Entries[idx].Key.Compare(key) < 0 {
		idx++
	}
	if t.Unique && idx < len(leaf.Entries) && leaf.Entries[idx].Key.Compare(key) == 0 {
		t.pool.UnpinPage(leafID, false)
		return fmt.Errorf("btree: insert key: %w", pager.ErrDuplicateKey)
	}

	entries := make([]layout.LeafEntry, 0, len(leaf.Entries)+1)
	entries = append(entries, leaf.Entries[:idx]...)
	entries = append(entries, layout.LeafEntry{Key: key, RecordPageID: recordPageID, RecordSlot: recordSlot})
	entries = append(entries, leaf.Entries[idx:]...)

	if len(entries) <= Fanout {
		leaf.Entries = entries
		if err := leaf.EncodeInto(page.Data); err != nil {
			t.pool.UnpinPage(leafID, false)
			return fmt.Errorf("btree: insert: re-encode leaf %d: %w", leafID, err)
		}
		return t.pool.UnpinPage(leafID, true)
	}

	// Split: left keeps the first half, right gets the rest as a new
	// leaf; the right leaf's first key is promoted to the parent as the
	// new separator.
	mid := len(entries) / 2
	leftEntries := entries[:mid]
	rightEntries := entries[mid:]

	rightPage, err := t.pool.AllocatePage(pager.TypeIndexLeaf)
	if err != nil {
		t.pool.UnpinPage(leafID, false)
		return fmt.Errorf("btree: insert: split: allocate right leaf: %w", err)
	}
	rightLeaf := layout.LeafPage{KeyType: t.KeyType, Entries: rightEntries, Next: leaf.Next, Prev: leafID}
	if err := rightLeaf.EncodeInto(rightPage.Data); err != nil {
		t.pool.UnpinPage(leafID, false)
		t.pool.UnpinPage(rightPage.ID, false)
		return fmt.Errorf("btree: insert: split: encode right leaf: %w", err)
	}
	if err := t.pool.UnpinPage(rightPage.ID, true); err != nil {
		t.pool.UnpinPage(leafID, false)
		return err
	}

	if leaf.Next != pager.NoPage {
		if err := t.relinkPrev(leaf.Next, rightPage.ID); err != nil {
			t.pool.UnpinPage(leafID, false)
			return err
		}
	}

	leaf.Entries = leftEntries
	leaf.Next = rightPage.ID
	if err := leaf.EncodeInto(page.Data); err != nil {
		t.pool.UnpinPage(leafID, false)
		return fmt.Errorf("btree: insert: split: re-encode left leaf: %w", err)
	}
	if err := t.pool.UnpinPage(leafID, true); err != nil {
		return err
	}

	separator := rightEntries[0].Key
	return t.insertIntoParent(path, leafID, separator, rightPage.ID)
}

func (t *BTree) relinkPrev(leafID, newPrev pager.PageID) error {
	page, err := t.pool.FetchPage(leafID)
	if err != nil {
		return fmt.Errorf("btree: relink: fetch %d: %w", leafID, err)
	}
	leaf, err := layout.DecodeLeafPage(page.Data, t.KeyType)
	if err != nil {
		t.pool.UnpinPage(leafID, false)
		return err
	}
	leaf.Prev = newPrev
	if err := leaf.EncodeInto(page.Data); err != nil {
		t.pool.UnpinPage(leafID, false)
		return err
	}
	return t.pool.UnpinPage(leafID, true)
}

// insertIntoParent inserts (separator -> rightChild) into the parent of
// leftChild, identified as the last entry on path. If path is empty,
// leftChild was the root, and a brand new root is created over both
// halves, which is how the tree grows taller.
func (t *BTree) insertIntoParent(path []pathEntry, leftChild pager.PageID, separator layout.Key, rightChild pager.PageID) error {
	if len(path) == 0 {
		return t.createNewRoot(leftChild, separator, rightChild)
	}

	parentID := path[len(path)-1].pageID
	page, err := t.pool.FetchPage(parentID)
	if err != nil {
		return fmt.Errorf("btree: insert into parent: fetch %d: %w", parentID, err)
	}
	parent, err := layout.DecodeInternalPage(page.Data, t.KeyType)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}

	idx := 0
	for idx < len(parent.Entries) && parent.Entries[idx].Key.Compare(separator) < 0 {
		idx++
	}
	entries := make([]layout.InternalEntry, 0, len(parent.Entries)+1)
	entries = append(entries, parent.Entries[:idx]...)
	entries = append(entries, layout.InternalEntry{Key: separator, Child: rightChild})
	entries = append(entries, parent.Entries[idx:]...)

	if len(entries) <= Fanout {
		parent.Entries = entries
		if err := parent.EncodeInto(page.Data); err != nil {
			t.pool.UnpinPage(parentID, false)
			return fmt.Errorf("btree: insert into parent: re-encode %d: %w", parentID, err)
		}
		return t.pool.UnpinPage(parentID, true)
	}

	// Parent overflows too: split it and promote its median key one
	// level further up, the same way tinySQL's insertIntoParent walks up
	// the tree one split at a time until an ancestor has room or a new
	// root is created.
	if err := t.pool.UnpinPage(parentID, false); err != nil {
		return err
	}
	return t.splitInternal(path[:len(path)-1], parentID, parent.LeftChild, entries)
}

func (t *BTree) splitInternal(grandparentPath []pathEntry, nodeID pager.PageID, leftChild pager.PageID, entries []layout.InternalEntry) error {
	mid := len(entries) / 2
	medianKey := entries[mid].Key

	leftEntries := entries[:mid]
	rightEntries := entries[mid+1:]
	rightLeftChild := entries[mid].Child

	page, err := t.pool.FetchPage(nodeID)
	if err != nil {
		return fmt.Errorf("btree: split internal: fetch %d: %w", nodeID, err)
	}
	left := layout.InternalPage{KeyType: t.KeyType, LeftChild: leftChild, Entries: leftEntries}
	if err := left.EncodeInto(page.Data); err != nil {
		t.pool.UnpinPage(nodeID, false)
		return fmt.Errorf("btree: split internal: encode left %d: %w", nodeID, err)
	}
	if err := t.pool.UnpinPage(nodeID, true); err != nil {
		return err
	}

	rightPage, err := t.pool.AllocatePage(pager.TypeIndexInternal)
	if err != nil {
		return fmt.Errorf("btree: split internal: allocate right: %w", err)
	}
	right := layout.InternalPage{KeyType: t.KeyType, LeftChild: rightLeftChild, Entries: rightEntries}
	if err := right.EncodeInto(rightPage.Data); err != nil {
		t.pool.UnpinPage(rightPage.ID, false)
		return fmt.Errorf("btree: split internal: encode right: %w", err)
	}
	if err := t.pool.UnpinPage(rightPage.ID, true); err != nil {
		return err
	}

	return t.insertIntoParent(grandparentPath, nodeID, medianKey, rightPage.ID)
}

// createNewRoot builds a new internal root over leftChild/rightChild and
// durably updates the index header — the moment the tree grows taller.
func (t *BTree) createNewRoot(leftChild pager.PageID, separator layout.Key, rightChild pager.PageID) error {
	rootPage, err := t.pool.AllocatePage(pager.TypeIndexInternal)
	if err != nil {
		return fmt.Errorf("btree: create new root: allocate: %w", err)
	}
	root := layout.InternalPage{
		KeyType:   t.KeyType,
		LeftChild: leftChild,
		Entries:   []layout.InternalEntry{{Key: separator, Child: rightChild}},
	}
	if err := root.EncodeInto(rootPage.Data); err != nil {
		t.pool.UnpinPage(rootPage.ID, false)
		return fmt.Errorf("btree: create new root: encode: %w", err)
	}
	if err := t.pool.UnpinPage(rootPage.ID, true); err != nil {
		return err
	}
	return t.setRoot(rootPage.ID)
}

// Root returns the tree's current root page ID, reading it fresh from the
// durable index header.
func (t *BTree) Root() (pager.PageID, error) {
	return t.root()
}
