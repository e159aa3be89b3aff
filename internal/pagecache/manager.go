// Package pagecache is the sole client-visible surface of the storage
// layer: a bounded associative cache mapping page identifiers to
// in-memory frames, with pin/unpin reference counting, dirty tracking,
// and write-back eviction, orchestrated over a pagestore.Store and a
// replacer.LRU.
package pagecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sushant-115/logicmaze/internal/pagestore"
	"github.com/sushant-115/logicmaze/internal/replacer"
)

// Manager owns the frame array, pin counts, dirty bits, and the
// page-id -> frame mapping. It mediates all page access; clients above
// this layer never touch the page store directly. Every operation
// acquires Manager's single exclusive latch at entry and releases it at
// exit; the page-store latch is acquired only inside the store, never
// while the replacer runs.
type Manager struct {
	mu sync.Mutex

	id    uuid.UUID
	store *pagestore.Store
	repl  *replacer.LRU

	frames    []*frame
	pageTable map[pagestore.PageID]replacer.FrameID
	freeList  []replacer.FrameID

	hitCount  uint64
	missCount uint64

	logger       *zap.Logger
	hits, misses metric.Int64Counter
	hitRateGauge metric.Float64ObservableGauge
}

// New constructs a Manager with poolSize frames backed by store. meter may
// be a no-op meter (see internal/telemetry); Manager always records its
// hit/miss counters through it.
func New(poolSize int, store *pagestore.Store, logger *zap.Logger, meter metric.Meter) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poolSize <= 0 {
		return nil, fmt.Errorf("pagecache: pool size must be positive, got %d", poolSize)
	}

	m := &Manager{
		id:        uuid.New(),
		store:     store,
		repl:      replacer.New(poolSize, logger),
		frames:    make([]*frame, poolSize),
		pageTable: make(map[pagestore.PageID]replacer.FrameID, poolSize),
		freeList:  make([]replacer.FrameID, poolSize),
		logger:    logger,
	}
	for i := 0; i < poolSize; i++ {
		m.frames[i] = newFrame()
		m.freeList[i] = replacer.FrameID(i)
	}

	if meter != nil {
		var err error
		m.hits, err = meter.Int64Counter("buffer.hits", metric.WithDescription("buffer pool fetch hits"))
		if err != nil {
			return nil, fmt.Errorf("pagecache: register hits counter: %w", err)
		}
		m.misses, err = meter.Int64Counter("buffer.misses", metric.WithDescription("buffer pool fetch misses"))
		if err != nil {
			return nil, fmt.Errorf("pagecache: register misses counter: %w", err)
		}
		m.hitRateGauge, err = meter.Float64ObservableGauge("buffer.hit_rate",
			metric.WithDescription("buffer pool hit rate"),
			metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
				o.Observe(m.HitRate())
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("pagecache: register hit rate gauge: %w", err)
		}
	}

	m.logger.Info("buffer pool initialized", zap.String("manager_id", m.id.String()), zap.Int("pool_size", poolSize))
	return m, nil
}

// PoolSize returns the number of frames in the pool.
func (m *Manager) PoolSize() int {
	return len(m.frames)
}

// getVictimFrame returns a frame id to be (re)used: a free frame first,
// otherwise the replacer's least-recently-used candidate, otherwise
// InvalidFrameID. Must be called with mu held.
func (m *Manager) getVictimFrame() replacer.FrameID {
	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id
	}
	return m.repl.Victim()
}

// evictIfOccupied writes back frameID's current occupant if dirty (with a
// fresh checksum) and removes its page-table entry. Must be called with mu
// held.
func (m *Manager) evictIfOccupied(frameID replacer.FrameID) error {
	f := m.frames[frameID]
	if f.pageID == pagestore.InvalidPageID {
		return nil
	}
	if f.dirty {
		f.page.UpdateChecksum()
		if err := m.store.Write(f.pageID, f.page); err != nil {
			return fmt.Errorf("pagecache: write back dirty victim page %d: %w", f.pageID, err)
		}
		m.logger.Debug("flushed dirty victim before reuse", zap.Uint32("page_id", uint32(f.pageID)), zap.Int32("frame_id", int32(frameID)))
	}
	delete(m.pageTable, f.pageID)
	return nil
}

// Fetch returns the pinned page for id, reading it from the page store on
// a miss. Returns (nil, nil) if the pool has no free or evictable frame.
func (m *Manager) Fetch(id pagestore.PageID) (*pagestore.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frameID, ok := m.pageTable[id]; ok {
		f := m.frames[frameID]
		f.pinCount++
		m.repl.Pin(frameID)
		m.hitCount++
		m.recordHit()
		m.logger.Debug("buffer pool hit", zap.Uint32("page_id", uint32(id)), zap.Int32("frame_id", int32(frameID)))
		return f.page, nil
	}

	m.missCount++
	m.recordMiss()

	frameID := m.getVictimFrame()
	if frameID == replacer.InvalidFrameID {
		m.logger.Warn("buffer pool full, fetch cannot proceed", zap.Uint32("page_id", uint32(id)))
		return nil, nil
	}
	if err := m.evictIfOccupied(frameID); err != nil {
		return nil, err
	}

	f := m.frames[frameID]
	f.page.Reset()
	if err := m.store.Read(id, f.page); err != nil {
		return nil, fmt.Errorf("pagecache: read page %d: %w", id, err)
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = false

	m.pageTable[id] = frameID
	m.repl.Pin(frameID)
	m.logger.Debug("buffer pool miss, loaded from disk", zap.Uint32("page_id", uint32(id)), zap.Int32("frame_id", int32(frameID)))
	return f.page, nil
}

// NewPage allocates a fresh page on disk, installs it pinned and dirty in
// a frame, and returns its id and contents. Returns (InvalidPageID, nil,
// nil) if the pool has no free or evictable frame.
func (m *Manager) NewPage() (pagestore.PageID, *pagestore.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID := m.getVictimFrame()
	if frameID == replacer.InvalidFrameID {
		m.logger.Warn("buffer pool full, new page cannot be allocated")
		return pagestore.InvalidPageID, nil, nil
	}
	if err := m.evictIfOccupied(frameID); err != nil {
		return pagestore.InvalidPageID, nil, err
	}

	id, err := m.store.Allocate()
	if err != nil {
		return pagestore.InvalidPageID, nil, fmt.Errorf("pagecache: allocate page: %w", err)
	}

	f := m.frames[frameID]
	f.page.Reset()
	f.page.SetPageID(id)
	f.page.SetPageType(pagestore.PageTypeData)
	f.page.SetFreeSpace(pagestore.DataSize)
	f.page.SetFreeSpaceOffsetField(0)
	f.page.UpdateChecksum()

	f.pageID = id
	f.pinCount = 1
	f.dirty = true

	m.pageTable[id] = frameID
	m.repl.Pin(frameID)
	m.logger.Debug("allocated new page", zap.Uint32("page_id", uint32(id)), zap.Int32("frame_id", int32(frameID)))
	return id, f.page, nil
}

// Unpin decrements id's pin count, optionally marking it dirty. Fails if id
// is not resident or is already unpinned.
func (m *Manager) Unpin(id pagestore.PageID, isDirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		m.logger.Warn("unpin failed", zap.Uint32("page_id", uint32(id)), zap.Error(ErrPageNotFound))
		return false
	}
	f := m.frames[frameID]
	if f.pinCount == 0 {
		m.logger.Warn("unpin failed", zap.Uint32("page_id", uint32(id)), zap.Error(ErrNotPinned))
		return false
	}

	f.pinCount--
	if isDirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		m.repl.Unpin(frameID)
	}
	return true
}

// Flush writes id to the page store if resident, updating its checksum
// first, and clears its dirty bit. May be called while the page is
// pinned. Fails if id is not resident.
func (m *Manager) Flush(id pagestore.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		m.logger.Warn("flush failed", zap.Uint32("page_id", uint32(id)), zap.Error(ErrPageNotFound))
		return false
	}
	f := m.frames[frameID]
	f.page.UpdateChecksum()
	if err := m.store.Write(id, f.page); err != nil {
		m.logger.Error("flush failed", zap.Uint32("page_id", uint32(id)), zap.Error(err))
		return false
	}
	f.dirty = false
	return true
}

// FlushAll writes every dirty resident page to the page store, clearing
// each dirty bit in turn.
func (m *Manager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, frameID := range m.pageTable {
		f := m.frames[frameID]
		if !f.dirty {
			continue
		}
		f.page.UpdateChecksum()
		if err := m.store.Write(id, f.page); err != nil {
			return fmt.Errorf("pagecache: flush all, page %d: %w", id, err)
		}
		f.dirty = false
	}
	return nil
}

// Delete removes id from the buffer pool and returns its frame to the free
// list, then deallocates it on disk. If id is not resident it is only
// deallocated on disk. Fails if id is resident and pinned.
func (m *Manager) Delete(id pagestore.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		if err := m.store.Deallocate(id); err != nil {
			m.logger.Warn("deallocate of non-resident page failed", zap.Uint32("page_id", uint32(id)), zap.Error(err))
			return false
		}
		return true
	}

	f := m.frames[frameID]
	if f.pinCount > 0 {
		m.logger.Warn("delete failed", zap.Uint32("page_id", uint32(id)), zap.Error(ErrPagePinned))
		return false
	}

	delete(m.pageTable, id)
	// Proactively purge any stale replacer entry for this frame (Open
	// Question 4): the frame may be sitting in the replacer's evictable
	// set right now, keyed by a frame id that is about to mean something
	// else.
	m.repl.Pin(frameID)
	f.reset()
	m.freeList = append(m.freeList, frameID)

	if err := m.store.Deallocate(id); err != nil {
		m.logger.Warn("deallocate on disk failed after removing from pool", zap.Uint32("page_id", uint32(id)), zap.Error(err))
		return false
	}
	return true
}

// HitRate returns hits / (hits + misses), or 0.0 if neither has occurred.
func (m *Manager) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.hitCount + m.missCount
	if total == 0 {
		return 0.0
	}
	return float64(m.hitCount) / float64(total)
}

// HitCount returns the number of Fetch calls that found the page resident.
func (m *Manager) HitCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hitCount
}

// MissCount returns the number of Fetch calls that required a disk read.
func (m *Manager) MissCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missCount
}

// Close flushes every dirty page before the caller releases the
// underlying store.
func (m *Manager) Close() error {
	return m.FlushAll()
}

func (m *Manager) recordHit() {
	if m.hits != nil {
		m.hits.Add(context.Background(), 1)
	}
}

func (m *Manager) recordMiss() {
	if m.misses != nil {
		m.misses.Add(context.Background(), 1)
	}
}
