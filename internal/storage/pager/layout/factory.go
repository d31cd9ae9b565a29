package layout

import (
	"fmt"

	"github.com/pagebase/pagebase/internal/storage/pager"
)

// View is whatever a decoded page layout returns: one of TableHeader,
// *TableData, LeafPage, InternalPage, IndexHeader, pager.ContainerMetadata,
// or, for a free-space-map page, its bare pager.Header. Callers type-switch on the result rather than
// the caller picking a decode function ahead of time — the factory is the
// one place that needs to know the mapping from page-type byte to Go
// type, so a new layout only has to be taught to this function and not to
// every call site.
type View interface{}

// Open reads buf's common header and dispatches to the matching decode
// function, returning a typed View. keyType is only consulted for index
// pages (leaf/internal) and is ignored otherwise.
func Open(buf []byte, keyType KeyType) (View, error) {
	hdr, err := pager.ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	switch hdr.Type {
	case pager.TypeTableHeader:
		return DecodeTableHeader(buf)
	case pager.TypeTableData:
		return WrapTableData(buf)
	case pager.TypeIndexLeaf:
		return DecodeLeafPage(buf, keyType)
	case pager.TypeIndexInternal:
		return DecodeInternalPage(buf, keyType)
	case pager.TypeIndexHeader:
		return DecodeIndexHeader(buf)
	case pager.TypeContainerMetadata:
		return pager.DecodeContainerMetadata(buf)
	case pager.TypeFreeSpaceMap:
		// The free-space map's bit count depends on the container's
		// total page count, which isn't recoverable from the page's
		// own bytes — callers that need it go through
		// pager.DecodeFreeSpaceMap directly with that count in hand.
		return hdr, nil
	default:
		return nil, fmt.Errorf("layout: no view for page type %s: %w", hdr.Type, pager.ErrInvalidPage)
	}
}
