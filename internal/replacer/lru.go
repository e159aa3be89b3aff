// Package replacer implements the least-recently-used replacement policy
// used by the buffer manager to choose eviction victims among currently
// unpinned frames.
package replacer

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

// FrameID addresses a slot in the buffer pool's frame array.
type FrameID int32

// InvalidFrameID is the sentinel for "no frame".
const InvalidFrameID FrameID = -1

// LRU maintains the set of evictable frames in recency order: a doubly
// linked list from most-recently-unpinned (front) to least-recently-unpinned
// (back), plus a map from frame id to list node for O(1) membership checks
// and removal. It performs no I/O and holds no other lock.
type LRU struct {
	mu     sync.Mutex
	order  *list.List
	nodes  map[FrameID]*list.Element
	logger *zap.Logger
}

// New returns an LRU replacer with capacity for up to poolSize frames.
// poolSize only sizes the internal map; the list itself grows and shrinks
// with Pin/Unpin calls.
func New(poolSize int, logger *zap.Logger) *LRU {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LRU{
		order:  list.New(),
		nodes:  make(map[FrameID]*list.Element, poolSize),
		logger: logger,
	}
}

// Pin removes frameID from the evictable set if present. No-op otherwise:
// pinned frames are not tracked.
func (r *LRU) Pin(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.nodes[frameID]; ok {
		r.order.Remove(elem)
		delete(r.nodes, frameID)
	}
}

// Unpin marks frameID most-recently-unpinned: if it is already tracked it
// is moved to the front, refreshing its recency; otherwise it is inserted
// at the front.
func (r *LRU) Unpin(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.nodes[frameID]; ok {
		r.order.MoveToFront(elem)
		return
	}
	r.nodes[frameID] = r.order.PushFront(frameID)
}

// Victim removes and returns the least-recently-unpinned frame, or
// InvalidFrameID if no frame is currently evictable.
func (r *LRU) Victim() FrameID {
	r.mu.Lock()
	defer r.mu.Unlock()
	back := r.order.Back()
	if back == nil {
		return InvalidFrameID
	}
	frameID := back.Value.(FrameID)
	r.order.Remove(back)
	delete(r.nodes, frameID)
	return frameID
}

// Size returns the current number of evictable frames.
func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
