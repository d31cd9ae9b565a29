// Package inspect is the dedicated, read-only inspection interface the
// source design calls for in place of reflection-based access: it lets a
// caller (a test, or the optional external visualizer) dump a page's
// header and type-specific fields, and walk a set of known roots to find
// every page reachable from them.
//
// Grounded on tinySQL's inspect.go (the page-type-dispatch-to-typed-fields
// technique) and gc.go (the reachability walk) — but, per the spec this
// engine follows, the walk here stays strictly read-only. tinySQL's GC
// folds orphan pages back into its free list; this package never touches
// the free-space map, because that would be a vacuum/reclaim operation
// the source design never asks for.
package inspect

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

// PageInfo is a page's header plus whatever type-specific summary fields
// its layout exposes, assembled without any reflection over a Go type —
// the factory in the layout package already did the type dispatch.
type PageInfo struct {
	ID              pager.PageID
	Type            pager.Type
	NextPageID      pager.PageID
	PrevPageID      pager.PageID
	FreeSpaceOffset uint32

	// Populated only for the page types where they apply.
	SlotCount  int    // TableData
	TableName  string // TableHeader
	EntryCount int    // IndexLeaf / IndexInternal
	Root       pager.PageID // IndexHeader
}

// InspectPage reads id from container and summarizes it. keyType is only
// consulted for index pages.
func InspectPage(container *pager.Container, id pager.PageID, keyType layout.KeyType) (PageInfo, error) {
	buf, err := container.ReadPage(id)
	if err != nil {
		return PageInfo{}, fmt.Errorf("inspect: page %d: %w", id, err)
	}
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return PageInfo{}, fmt.Errorf("inspect: page %d: %w", id, err)
	}
	info := PageInfo{
		ID:              id,
		Type:            hdr.Type,
		NextPageID:      hdr.NextPageID,
		PrevPageID:      hdr.PrevPageID,
		FreeSpaceOffset: hdr.FreeSpaceOffset,
	}

	view, err := layout.Open(buf, keyType)
	if err != nil {
		return info, fmt.Errorf("inspect: page %d: %w", id, err)
	}
	switch v := view.(type) {
	case *layout.TableData:
		info.SlotCount = v.SlotCount()
	case layout.TableHeader:
		info.TableName = v.Name
	case layout.LeafPage:
		info.EntryCount = len(v.Entries)
	case layout.InternalPage:
		info.EntryCount = len(v.Entries)
	case layout.IndexHeader:
		info.Root = v.Root
	}
	return info, nil
}

// ContainerReport is a whole-container summary for debug tooling: total
// page count and the bytes that implies, independent of any one
// tablespace's buffer pool.
type ContainerReport struct {
	PageSize   int
	TotalPages int
}

// Report summarizes container's current size.
func Report(container *pager.Container) ContainerReport {
	return ContainerReport{
		PageSize:   container.PageSize(),
		TotalPages: container.TotalPages(),
	}
}

// String renders "N pages, PAGE_SIZE each, TOTAL total" with humanized
// counts and byte totals, e.g. "1,024 pages, 8.2 kB each, 8.4 MB total".
func (r ContainerReport) String() string {
	total := uint64(r.TotalPages) * uint64(r.PageSize)
	return fmt.Sprintf("%s pages, %s each, %s total",
		humanize.Comma(int64(r.TotalPages)),
		humanize.Bytes(uint64(r.PageSize)),
		humanize.Bytes(total),
	)
}

// Walk starting from roots (table-header or index-header page IDs) visits
// every page reachable by following table-data chains and B-tree
// structure, and returns the full reachable set. It never mutates the
// container — this is inspection, not garbage collection.
func Walk(container *pager.Container, roots []pager.PageID, keyType layout.KeyType) (map[pager.PageID]bool, error) {
	reachable := make(map[pager.PageID]bool)
	for _, root := range roots {
		if err := walkOne(container, root, keyType, reachable); err != nil {
			return reachable, err
		}
	}
	return reachable, nil
}

func walkOne(container *pager.Container, id pager.PageID, keyType layout.KeyType, reachable map[pager.PageID]bool) error {
	if reachable[id] {
		return nil
	}
	buf, err := container.ReadPage(id)
	if err != nil {
		return fmt.Errorf("inspect: walk: page %d: %w", id, err)
	}
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return fmt.Errorf("inspect: walk: page %d: %w", id, err)
	}
	reachable[id] = true

	switch hdr.Type {
	case pager.TypeTableHeader:
		th, err := layout.DecodeTableHeader(buf)
		if err != nil {
			return err
		}
		for p := th.FirstDataPage; p != pager.NoPage; {
			if reachable[p] {
				break
			}
			dbuf, err := container.ReadPage(p)
			if err != nil {
				return fmt.Errorf("inspect: walk: table data page %d: %w", p, err)
			}
			dhdr, err := pager.ReadHeader(dbuf)
			if err != nil {
				return fmt.Errorf("inspect: walk: table data page %d: %w", p, err)
			}
			reachable[p] = true
			p = dhdr.NextPageID
		}
	case pager.TypeIndexHeader:
		ih, err := layout.DecodeIndexHeader(buf)
		if err != nil {
			return err
		}
		return walkBTreeNode(container, ih.Root, ih.KeyType, reachable)
	}
	return nil
}

func walkBTreeNode(container *pager.Container, id pager.PageID, keyType layout.KeyType, reachable map[pager.PageID]bool) error {
	if id == pager.NoPage || reachable[id] {
		return nil
	}
	buf, err := container.ReadPage(id)
	if err != nil {
		return fmt.Errorf("inspect: walk: btree node %d: %w", id, err)
	}
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return fmt.Errorf("inspect: walk: btree node %d: %w", id, err)
	}
	reachable[id] = true
	if hdr.Type != pager.TypeIndexInternal {
		return nil
	}
	internal, err := layout.DecodeInternalPage(buf, keyType)
	if err != nil {
		return err
	}
	for _, child := range internal.Children() {
		if err := walkBTreeNode(container, child, keyType, reachable); err != nil {
			return err
		}
	}
	return nil
}
