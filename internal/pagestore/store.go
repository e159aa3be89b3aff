// Package pagestore owns the backing file for the database: it presents
// the file as an array of PageSize-sized slots addressable by PageID and
// persists the recyclable-identifier free list across restarts.
package pagestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrPageOutOfRange is returned by Read when the requested page has
	// never been allocated.
	ErrPageOutOfRange = errors.New("pagestore: page id out of range")
	// ErrHeaderPageProtected is returned by Deallocate for HeaderPageID.
	ErrHeaderPageProtected = errors.New("pagestore: cannot deallocate header page")
	// ErrFreeListOverflow is logged (not returned) when Close is asked to
	// persist more identifiers than the free-list page can hold.
	ErrFreeListOverflow = errors.New("pagestore: free list exceeds one page, truncating")
)

// maxFreeListEntries is DataSize / 4: the number of PageID-sized
// entries that fit in the free-list page's data area.
const maxFreeListEntries = DataSize / 4

// Store is a durable, random-access, page-granular file with free-page
// recycling. A single mutex serializes every operation, including the I/O
// itself; callers must assume any call may block.
type Store struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	pageSize int
	numPages uint32
	freeList []PageID
	logger   *zap.Logger
}

// Open creates the backing file if it does not exist (stamping a header
// page and an empty free-list page) or opens it and derives numPages from
// the file size, loading the free list from page 1.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, pageSize: PageSize, logger: logger}

	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create %s: %w", path, err)
		}
		s.file = f
		if err := s.initializeNewFile(); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		logger.Info("created new database file", zap.String("path", path), zap.Uint32("num_pages", s.numPages))
		return s, nil
	}
	if statErr != nil {
		return nil, fmt.Errorf("pagestore: stat %s: %w", path, statErr)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	s.file = f

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagestore: stat open file %s: %w", path, err)
	}
	s.numPages = uint32(fi.Size() / PageSize)
	s.loadFreeList()
	logger.Info("opened existing database file", zap.String("path", path), zap.Uint32("num_pages", s.numPages))
	return s, nil
}

// initializeNewFile writes the header page (id 0) and the empty free-list
// page (id 1), bringing numPages to 2.
func (s *Store) initializeNewFile() error {
	header := NewPage()
	header.SetPageID(HeaderPageID)
	header.SetPageType(PageTypeHeader)
	data := header.Data()
	binary.LittleEndian.PutUint32(data[0:], 1)        // version
	binary.LittleEndian.PutUint32(data[4:], PageSize) // page_size
	binary.LittleEndian.PutUint32(data[8:], 1)        // num_pages, advisory
	header.UpdateChecksum()
	s.numPages = 0
	if err := s.writeRaw(HeaderPageID, header); err != nil {
		return fmt.Errorf("pagestore: write header page: %w", err)
	}
	s.numPages = 1

	freeList := NewPage()
	freeList.SetPageID(FreeListPageID)
	freeList.SetPageType(PageTypeFreeList)
	freeList.SetNumRecords(0)
	freeList.UpdateChecksum()
	if err := s.writeRaw(FreeListPageID, freeList); err != nil {
		return fmt.Errorf("pagestore: write free-list page: %w", err)
	}
	s.numPages = 2
	return nil
}

// loadFreeList reads page 1; if it is not a FREE_LIST page, the store
// starts with an empty in-memory free list.
func (s *Store) loadFreeList() {
	if s.numPages < 2 {
		return
	}
	p := NewPage()
	if err := s.readRaw(FreeListPageID, p); err != nil {
		s.logger.Warn("failed to read free-list page, starting empty", zap.Error(err))
		return
	}
	if p.PageType() != PageTypeFreeList {
		s.logger.Warn("page 1 is not a free-list page, starting empty", zap.Uint8("page_type", uint8(p.PageType())))
		return
	}
	count := p.NumRecords()
	data := p.Data()
	s.freeList = make([]PageID, 0, count)
	for i := uint32(0); i < count; i++ {
		off := i * 4
		if off+4 > uint32(len(data)) {
			break
		}
		s.freeList = append(s.freeList, PageID(binary.LittleEndian.Uint32(data[off:])))
	}
	s.logger.Info("loaded free list", zap.Int("count", len(s.freeList)))
}

// Read seeks to id*PageSize and reads exactly PageSize bytes into page.
// Verifies the checksum (advisory, logged only) for DATA/INDEX pages whose
// stamped checksum is non-zero.
func (s *Store) Read(id PageID, page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readChecked(id, page)
}

func (s *Store) readChecked(id PageID, page *Page) error {
	if uint32(id) >= s.numPages {
		return fmt.Errorf("%w: %d (num_pages=%d)", ErrPageOutOfRange, id, s.numPages)
	}
	if err := s.readRaw(id, page); err != nil {
		return err
	}
	t := page.PageType()
	if (t == PageTypeData || t == PageTypeIndex) && page.Checksum() != 0 {
		if !page.VerifyChecksum() {
			s.logger.Warn("checksum mismatch on read", zap.Uint32("page_id", uint32(id)))
		}
	}
	return nil
}

func (s *Store) readRaw(id PageID, page *Page) error {
	offset := int64(id) * int64(s.pageSize)
	n, err := s.file.ReadAt(page.Raw(), offset)
	if err != nil {
		return fmt.Errorf("pagestore: read page %d: %w", id, err)
	}
	if n != s.pageSize {
		return fmt.Errorf("pagestore: short read for page %d: got %d bytes", id, n)
	}
	return nil
}

// Write seeks to id*PageSize and writes exactly PageSize bytes, extending
// numPages if id is beyond the current end of file. Flushes to the OS.
func (s *Store) Write(id PageID, page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRaw(id, page)
}

func (s *Store) writeRaw(id PageID, page *Page) error {
	offset := int64(id) * int64(s.pageSize)
	if _, err := s.file.WriteAt(page.Raw(), offset); err != nil {
		return fmt.Errorf("pagestore: write page %d: %w", id, err)
	}
	if uint32(id) >= s.numPages {
		s.numPages = uint32(id) + 1
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("pagestore: sync after writing page %d: %w", id, err)
	}
	return nil
}

// Allocate returns and removes the last recyclable identifier if the free
// list is non-empty; otherwise it returns numPages and extends it. Never
// returns HeaderPageID, FreeListPageID, or InvalidPageID.
func (s *Store) Allocate() (PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.freeList); n > 0 {
		id := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		return id, nil
	}
	id := PageID(s.numPages)
	s.numPages++
	return id, nil
}

// Deallocate appends id to the in-memory recyclable free list. Fails for
// HeaderPageID or an id that has never been allocated. Does not zero the
// page on disk.
func (s *Store) Deallocate(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == HeaderPageID {
		return ErrHeaderPageProtected
	}
	if uint32(id) >= s.numPages {
		return fmt.Errorf("%w: %d (num_pages=%d)", ErrPageOutOfRange, id, s.numPages)
	}
	s.freeList = append(s.freeList, id)
	return nil
}

// Flush requests the file system flush pending writes.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// NumPages returns the current extent of the file, in pages.
func (s *Store) NumPages() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numPages
}

// Close serializes the free list into page 1, flushes, and closes the
// underlying file. If more identifiers are pending than fit in one
// free-list page, the overflow is truncated and logged (Open Question 1).
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}

	entries := s.freeList
	if len(entries) > maxFreeListEntries {
		s.logger.Warn("free list exceeds one page, truncating",
			zap.Int("count", len(entries)), zap.Int("capacity", maxFreeListEntries),
			zap.Error(ErrFreeListOverflow))
		entries = entries[:maxFreeListEntries]
	}

	p := NewPage()
	p.SetPageID(FreeListPageID)
	p.SetPageType(PageTypeFreeList)
	p.SetNumRecords(uint32(len(entries)))
	data := p.Data()
	for i, id := range entries {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(id))
	}
	p.UpdateChecksum()

	if err := s.writeRaw(FreeListPageID, p); err != nil {
		s.file.Close()
		s.file = nil
		return fmt.Errorf("pagestore: persist free list on close: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		s.file = nil
		return fmt.Errorf("pagestore: sync on close: %w", err)
	}
	err := s.file.Close()
	s.file = nil
	return err
}
