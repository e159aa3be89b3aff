package pagecache

import (
	"github.com/sushant-115/logicmaze/internal/pagestore"
)

// frame is a single slot in the buffer pool's frame array: the resident
// page buffer plus the per-frame bookkeeping the distilled spec keeps as
// parallel side tables (pin count, dirty bit, resident id). Consolidating
// them into one record owned by the frame array (rather than
// frame-id-keyed maps, as the teacher's BufferPoolManager does) eliminates
// the possibility of the tables drifting out of sync with each other.
type frame struct {
	page     *pagestore.Page
	pageID   pagestore.PageID
	pinCount int
	dirty    bool
}

func newFrame() *frame {
	f := &frame{
		page:   pagestore.NewPage(),
		pageID: pagestore.InvalidPageID,
	}
	return f
}

func (f *frame) reset() {
	f.page.Reset()
	f.pageID = pagestore.InvalidPageID
	f.pinCount = 0
	f.dirty = false
}
