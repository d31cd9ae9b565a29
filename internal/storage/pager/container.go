package pager

// ───────────────────────────────────────────────────────────────────────────
// Storage Container
// ───────────────────────────────────────────────────────────────────────────
//
// A Container owns exactly one tablespace's backing file: page 0 is the
// container metadata page, page 1 is the free-space bitmap, and every page
// after that is allocated and freed through the bitmap's two-pass
// round-robin scan. Unlike tinySQL's Pager, a Container does not know about
// buffer pools, WAL, or transactions — it is purely the file-and-bitmap
// layer that a bufferpool.Pool sits on top of.

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ContainerConfig configures a Container at Open time. Zero values are
// replaced with defaults in OpenContainer, following tinySQL's
// PagerConfig/PageBackendConfig pattern of a plain exported struct with
// constructor-applied defaults rather than functional options.
type ContainerConfig struct {
	// PageSize is the fixed page size for this container. Only consulted
	// when creating a new container file; ignored (and read back from
	// page 0) when reopening an existing one. Defaults to
	// DefaultPageSize.
	PageSize int

	// TablespaceName is recorded in the container metadata page when the
	// container is first created.
	TablespaceName string

	// InitialPages is the minimum number of pages the container must have.
	// On first creation, a container always has at least 3 pages (page 0
	// metadata, page 1 free-space map, and at least one page free for
	// immediate use) regardless of this value. On reopen, if the backing
	// file has fewer than InitialPages pages, it is grown to meet it. Zero
	// means "no growth requested."
	InitialPages int
}

const minContainerPages = 3

// Container is a single tablespace's open backing file plus its free-space
// bitmap, guarded by one mutex covering both file I/O and bitmap mutation —
// matching the concurrency model's "container I/O mutex and bitmap mutex
// acquired in a fixed order" by simply folding them into one lock, since
// every allocate/deallocate already needs both held together.
type Container struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	pageSize int
	meta     ContainerMetadata
	fsm      *FreeSpaceMap
	closed   bool
}

// OpenContainer opens path, creating and formatting it if it does not
// exist. The returned Container's page 0 and page 1 are always valid and
// already read into memory.
func OpenContainer(path string, cfg ContainerConfig) (*Container, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize < MinPageSize || cfg.PageSize > MaxPageSize || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return nil, fmt.Errorf("pager: page size %d must be a power of two in [%d, %d]", cfg.PageSize, MinPageSize, MaxPageSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	c := &Container{file: f, path: path}

	if info.Size() == 0 {
		if err := c.format(cfg); err != nil {
			f.Close()
			return nil, err
		}
		return c, nil
	}

	if err := c.load(); err != nil {
		f.Close()
		return nil, err
	}
	if cfg.InitialPages > 0 {
		if err := c.growTo(cfg.InitialPages); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) format(cfg ContainerConfig) error {
	initialPages := cfg.InitialPages
	if initialPages < minContainerPages {
		initialPages = minContainerPages
	}

	c.pageSize = cfg.PageSize
	now := time.Now()
	c.meta = ContainerMetadata{
		PageSize:         cfg.PageSize,
		CreatedAt:        now,
		LastOpenedAt:     now,
		TotalPages:       initialPages,
		FreeSpaceMapPage: 1,
		TablespaceName:   cfg.TablespaceName,
	}
	c.fsm = NewFreeSpaceMap(initialPages)

	metaBuf := make([]byte, c.pageSize)
	c.meta.EncodeInto(metaBuf)
	if err := c.writeRaw(0, metaBuf); err != nil {
		return err
	}

	fsmBuf := make([]byte, c.pageSize)
	c.fsm.EncodeInto(fsmBuf)
	if err := c.writeRaw(1, fsmBuf); err != nil {
		return err
	}

	for i := 2; i < initialPages; i++ {
		if err := c.writeRaw(int64(i), NewPageBuf(c.pageSize, TypeUnused)); err != nil {
			return fmt.Errorf("pager: format: write initial page %d: %w", i, err)
		}
	}

	return c.file.Sync()
}

// growTo extends the container to at least pages total, materializing each
// new page as TypeUnused and marking it free, per the "reopen grows an
// undersized container" half of open(name, path, page_size, initial_pages).
func (c *Container) growTo(pages int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pages <= c.meta.TotalPages {
		return nil
	}
	for i := c.meta.TotalPages; i < pages; i++ {
		if err := c.writeRaw(int64(i), NewPageBuf(c.pageSize, TypeUnused)); err != nil {
			return fmt.Errorf("pager: grow container: write page %d: %w", i, err)
		}
		c.fsm.Grow(i + 1)
		c.fsm.markFree(PageID(i))
	}
	c.meta.TotalPages = pages
	if err := c.flushFreeSpaceMapLocked(); err != nil {
		return err
	}
	return c.flushMetadataLocked()
}

func (c *Container) load() error {
	metaBuf := make([]byte, HeaderSize+metadataFixedFieldsSize+64)
	n, err := c.file.ReadAt(metaBuf, 0)
	if err != nil && n < HeaderSize {
		return fmt.Errorf("pager: read container metadata: %w", err)
	}
	meta, err := DecodeContainerMetadata(metaBuf)
	if err != nil {
		return fmt.Errorf("pager: decode container metadata: %w", err)
	}
	c.pageSize = meta.PageSize
	meta.LastOpenedAt = time.Now()
	c.meta = meta

	fsmBuf := make([]byte, c.pageSize)
	if err := c.readRaw(int64(meta.FreeSpaceMapPage), fsmBuf); err != nil {
		return fmt.Errorf("pager: read free-space map: %w", err)
	}
	fsm, err := DecodeFreeSpaceMap(fsmBuf, meta.TotalPages)
	if err != nil {
		return fmt.Errorf("pager: decode free-space map: %w", err)
	}
	c.fsm = fsm

	return c.flushMetadataLocked()
}

func (c *Container) readRaw(pageID int64, buf []byte) error {
	_, err := c.file.ReadAt(buf, pageID*int64(len(buf)))
	return err
}

func (c *Container) writeRaw(pageID int64, buf []byte) error {
	_, err := c.file.WriteAt(buf, pageID*int64(len(buf)))
	return err
}

func (c *Container) flushMetadataLocked() error {
	buf := make([]byte, c.pageSize)
	c.meta.EncodeInto(buf)
	return c.writeRaw(0, buf)
}

func (c *Container) flushFreeSpaceMapLocked() error {
	buf := make([]byte, c.pageSize)
	c.fsm.EncodeInto(buf)
	return c.writeRaw(int64(c.meta.FreeSpaceMapPage), buf)
}

// PageSize returns the container's fixed page size.
func (c *Container) PageSize() int {
	return c.pageSize
}

// TotalPages returns the number of pages currently allocated in the
// container's address space, including freed-but-not-reused pages.
func (c *Container) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.TotalPages
}

// ReadPage reads a single page's bytes. It returns ErrOutOfBounds (wrapped)
// for a page ID outside [0, TotalPages), and ErrInvalidPage (wrapped) if
// the page's header magic does not validate.
func (c *Container) ReadPage(id PageID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if int(id) < 0 || int(id) >= c.meta.TotalPages {
		return nil, fmt.Errorf("pager: page %d: %w", id, ErrOutOfBounds)
	}
	buf := make([]byte, c.pageSize)
	if err := c.readRaw(int64(id), buf); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	if _, err := ReadHeader(buf); err != nil {
		return nil, fmt.Errorf("pager: page %d: %w", id, err)
	}
	return buf, nil
}

// WritePage persists buf as page id. The caller is responsible for buf
// already carrying a valid header.
func (c *Container) WritePage(id PageID, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if int(id) < 0 || int(id) >= c.meta.TotalPages {
		return fmt.Errorf("pager: page %d: %w", id, ErrOutOfBounds)
	}
	if len(buf) != c.pageSize {
		return fmt.Errorf("pager: write page %d: buffer size %d != page size %d", id, len(buf), c.pageSize)
	}
	if err := c.writeRaw(int64(id), buf); err != nil {
		return fmt.Errorf("pager: write page %d: %w", id, err)
	}
	return nil
}

// AllocatePage finds a free page via the bitmap's two-pass round-robin
// scan, extending the container's page range if none is free, zero-fills
// it with t's header, writes it, and returns its ID.
func (c *Container) AllocatePage(t Type) (PageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	id, ok := c.fsm.FindFree()
	if !ok {
		id = PageID(c.meta.TotalPages)
		c.meta.TotalPages++
		c.fsm.Grow(c.meta.TotalPages)
	}
	c.fsm.Allocate(id)

	buf := NewPageBuf(c.pageSize, t)
	if err := c.writeRaw(int64(id), buf); err != nil {
		return 0, fmt.Errorf("pager: allocate page: %w", err)
	}
	if err := c.flushFreeSpaceMapLocked(); err != nil {
		return 0, fmt.Errorf("pager: allocate page: flush free-space map: %w", err)
	}
	if err := c.flushMetadataLocked(); err != nil {
		return 0, fmt.Errorf("pager: allocate page: flush metadata: %w", err)
	}
	return id, nil
}

// DeallocatePage returns id to the free-space map. It is the caller's
// (buffer pool's) responsibility to ensure the page is not pinned and has
// been evicted from cache first.
func (c *Container) DeallocatePage(id PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if id < 2 {
		return fmt.Errorf("pager: cannot deallocate reserved page %d", id)
	}
	if int(id) >= c.meta.TotalPages {
		return fmt.Errorf("pager: page %d: %w", id, ErrOutOfBounds)
	}
	c.fsm.Deallocate(id)
	return c.flushFreeSpaceMapLocked()
}

// Close flushes metadata and closes the backing file. Close is idempotent.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.flushMetadataLocked(); err != nil {
		return err
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("pager: sync on close: %w", err)
	}
	return c.file.Close()
}

// Path returns the backing file's path.
func (c *Container) Path() string {
	return c.path
}
