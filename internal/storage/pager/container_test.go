package pager

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestContainer(t *testing.T) *Container {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pgbase")
	c, err := OpenContainer(path, ContainerConfig{TablespaceName: "test"})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenContainerFormatsFreshFile(t *testing.T) {
	c := openTestContainer(t)
	if got := c.TotalPages(); got != 3 {
		t.Fatalf("fresh container total pages = %d, want 3 (metadata, free-space map, one usable page)", got)
	}
}

func TestOpenContainerHonorsInitialPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initial.pgbase")
	c, err := OpenContainer(path, ContainerConfig{TablespaceName: "test", InitialPages: 10})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	defer c.Close()
	if got := c.TotalPages(); got != 10 {
		t.Fatalf("total pages = %d, want 10", got)
	}
	for i := 0; i < 8; i++ {
		id, err := c.AllocatePage(TypeTableData)
		if err != nil {
			t.Fatalf("AllocatePage %d: %v", i, err)
		}
		if id >= 10 {
			t.Fatalf("AllocatePage %d returned %d, want one of the 8 pre-grown pages (< 10)", i, id)
		}
	}
}

func TestOpenContainerGrowsExistingOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.pgbase")
	c, err := OpenContainer(path, ContainerConfig{TablespaceName: "test"})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	grown, err := OpenContainer(path, ContainerConfig{InitialPages: 20})
	if err != nil {
		t.Fatalf("reopen OpenContainer: %v", err)
	}
	defer grown.Close()
	if got := grown.TotalPages(); got != 20 {
		t.Fatalf("grown total pages = %d, want 20", got)
	}
}

func TestContainerAllocateWriteReadRoundTrip(t *testing.T) {
	c := openTestContainer(t)

	id, err := c.AllocatePage(TypeTableData)
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id != 2 {
		t.Fatalf("first allocated page = %d, want 2", id)
	}

	buf, err := c.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	copy(buf[HeaderSize:], []byte{0xCA, 0xFE, 0xBA, 0xBE})
	if err := c.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := c.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage after write: %v", err)
	}
	if got[HeaderSize] != 0xCA || got[HeaderSize+3] != 0xBE {
		t.Fatalf("marker bytes did not round trip: %x", got[HeaderSize:HeaderSize+4])
	}
}

func TestContainerReadPageOutOfBounds(t *testing.T) {
	c := openTestContainer(t)
	_, err := c.ReadPage(999)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("ReadPage(999) error = %v, want ErrOutOfBounds", err)
	}
}

func TestContainerDeallocateThenReallocate(t *testing.T) {
	c := openTestContainer(t)
	id, err := c.AllocatePage(TypeTableData)
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := c.DeallocatePage(id); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}
	next, err := c.AllocatePage(TypeTableData)
	if err != nil {
		t.Fatalf("AllocatePage after dealloc: %v", err)
	}
	if next != id {
		t.Fatalf("expected reuse of deallocated page %d, got %d", id, next)
	}
}

func TestContainerReopenPersistsMetadataAndBitmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.pgbase")
	c, err := OpenContainer(path, ContainerConfig{TablespaceName: "reopen"})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	var allocated []PageID
	for i := 0; i < 5; i++ {
		id, err := c.AllocatePage(TypeTableData)
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		allocated = append(allocated, id)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenContainer(path, ContainerConfig{})
	if err != nil {
		t.Fatalf("reopen OpenContainer: %v", err)
	}
	defer reopened.Close()

	if got := reopened.TotalPages(); got != 7 {
		t.Fatalf("reopened total pages = %d, want 7", got)
	}
	next, err := reopened.AllocatePage(TypeTableData)
	if err != nil {
		t.Fatalf("AllocatePage after reopen: %v", err)
	}
	if next != 7 {
		t.Fatalf("next allocated page after reopen = %d, want 7 (append at end of file)", next)
	}
}
