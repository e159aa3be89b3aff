package pagecache

import "errors"

// Sentinel errors surfaced by Manager's invalid-argument paths. Capacity
// exhaustion is not an error: Fetch and NewPage return (nil, ...) with no
// error when the pool is full, matching the distilled spec's in-band
// failure contract.
var (
	ErrPageNotFound = errors.New("pagecache: page not found in buffer pool")
	ErrNotPinned    = errors.New("pagecache: page has pin count 0, cannot unpin")
	ErrPagePinned   = errors.New("pagecache: page is pinned, cannot delete")
)
