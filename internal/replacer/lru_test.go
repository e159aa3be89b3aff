package replacer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRU_VictimOnEmptyReturnsInvalid(t *testing.T) {
	r := New(4, nil)
	require.Equal(t, InvalidFrameID, r.Victim())
	require.Equal(t, 0, r.Size())
}

func TestLRU_UnpinThenVictimReturnsLeastRecentlyUnpinned(t *testing.T) {
	r := New(4, nil)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	require.Equal(t, 3, r.Size())

	require.Equal(t, FrameID(1), r.Victim())
	require.Equal(t, FrameID(2), r.Victim())
	require.Equal(t, FrameID(3), r.Victim())
	require.Equal(t, InvalidFrameID, r.Victim())
}

func TestLRU_PinRemovesFromEvictableSet(t *testing.T) {
	r := New(4, nil)
	r.Unpin(1)
	r.Unpin(2)
	r.Pin(1)
	require.Equal(t, 1, r.Size())
	require.Equal(t, FrameID(2), r.Victim())
}

func TestLRU_PinOnUntrackedFrameIsNoOp(t *testing.T) {
	r := New(4, nil)
	r.Pin(99)
	require.Equal(t, 0, r.Size())
}

func TestLRU_ReUnpinRefreshesRecency(t *testing.T) {
	r := New(4, nil)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)

	// Re-unpinning 1 moves it to the front, so it should now be evicted last.
	r.Unpin(1)

	require.Equal(t, FrameID(2), r.Victim())
	require.Equal(t, FrameID(3), r.Victim())
	require.Equal(t, FrameID(1), r.Victim())
}

func TestLRU_UnpinAlreadyEvictableIsIdempotentPositionWise(t *testing.T) {
	r := New(4, nil)
	r.Unpin(1)
	r.Unpin(1)
	require.Equal(t, 1, r.Size())
	require.Equal(t, FrameID(1), r.Victim())
}
