package pagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPage_ResetZeroesAndSetsDefaults(t *testing.T) {
	p := NewPage()
	p.SetPageID(PageID(5))
	copy(p.Data(), []byte("stale"))
	p.Reset()

	require.Equal(t, InvalidPageID, p.PageID())
	require.Equal(t, uint32(DataSize), p.FreeSpace())
	for _, b := range p.Data()[:5] {
		require.Equal(t, byte(0), b)
	}
}

func TestPage_ChecksumRoundTrip(t *testing.T) {
	p := NewPage()
	copy(p.Data(), []byte("checksum me"))
	p.UpdateChecksum()
	require.True(t, p.VerifyChecksum())

	p.Data()[0] ^= 0xFF
	require.False(t, p.VerifyChecksum())
}

func TestPage_HeaderFieldsRoundTrip(t *testing.T) {
	p := NewPage()
	p.SetPageID(PageID(42))
	p.SetPageType(PageTypeIndex)
	p.SetNumRecords(7)
	p.SetFreeSpace(100)
	p.SetFreeSpaceOffsetField(200)

	require.Equal(t, PageID(42), p.PageID())
	require.Equal(t, PageTypeIndex, p.PageType())
	require.Equal(t, uint32(7), p.NumRecords())
	require.Equal(t, uint32(100), p.FreeSpace())
	require.Equal(t, uint32(200), p.FreeSpaceOffsetField())
}

func TestPage_RawLengthIsPageSize(t *testing.T) {
	p := NewPage()
	require.Len(t, p.Raw(), PageSize)
	require.Len(t, p.Data(), DataSize)
}
