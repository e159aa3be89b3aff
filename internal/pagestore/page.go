package pagestore

import "encoding/binary"

// PageID names a page slot in the backing file. Identifiers are stable
// across restarts.
type PageID uint32

const (
	// HeaderPageID names the database header page.
	HeaderPageID PageID = 0
	// FreeListPageID names the persisted free-list page.
	FreeListPageID PageID = 1
	// InvalidPageID is the sentinel denoting absence of a page.
	InvalidPageID PageID = 0xFFFFFFFF
)

// PageType classifies the contents of a page's data area.
type PageType uint8

const (
	PageTypeInvalid  PageType = 0
	PageTypeHeader   PageType = 1
	PageTypeData     PageType = 2
	PageTypeIndex    PageType = 3
	PageTypeFreeList PageType = 4
)

const (
	// PageSize is the fixed size of every page, header included.
	PageSize = 8192
	// HeaderSize is the fixed size of the page header.
	HeaderSize = 128
	// DataSize is the size of the opaque data area following the header.
	DataSize = PageSize - HeaderSize

	pageIDOffset          = 0
	pageTypeOffset        = 4
	numRecordsOffset      = 8
	freeSpaceOffset       = 12
	freeSpaceOffsetOffset = 16
	checksumOffset        = 20
)

// Page is a fixed-size, in-memory copy of one on-disk page: a 128-byte
// header view over the first bytes of the buffer, followed by an
// 8064-byte data area. The on-disk layout is byte-identical to the raw
// buffer, little-endian throughout.
type Page struct {
	buf [PageSize]byte
}

// NewPage returns a zeroed page.
func NewPage() *Page {
	return &Page{}
}

// Raw returns the full PageSize backing buffer, header and data area.
func (p *Page) Raw() []byte { return p.buf[:] }

// Data returns the 8064-byte data area following the header.
func (p *Page) Data() []byte { return p.buf[HeaderSize:] }

// Reset zeroes the page and stamps a fresh, empty header.
func (p *Page) Reset() {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.SetPageID(InvalidPageID)
	p.SetFreeSpace(DataSize)
}

func (p *Page) PageID() PageID {
	return PageID(binary.LittleEndian.Uint32(p.buf[pageIDOffset:]))
}

func (p *Page) SetPageID(id PageID) {
	binary.LittleEndian.PutUint32(p.buf[pageIDOffset:], uint32(id))
}

func (p *Page) PageType() PageType {
	return PageType(p.buf[pageTypeOffset])
}

func (p *Page) SetPageType(t PageType) {
	p.buf[pageTypeOffset] = byte(t)
}

func (p *Page) NumRecords() uint32 {
	return binary.LittleEndian.Uint32(p.buf[numRecordsOffset:])
}

func (p *Page) SetNumRecords(n uint32) {
	binary.LittleEndian.PutUint32(p.buf[numRecordsOffset:], n)
}

func (p *Page) FreeSpace() uint32 {
	return binary.LittleEndian.Uint32(p.buf[freeSpaceOffset:])
}

func (p *Page) SetFreeSpace(n uint32) {
	binary.LittleEndian.PutUint32(p.buf[freeSpaceOffset:], n)
}

func (p *Page) FreeSpaceOffsetField() uint32 {
	return binary.LittleEndian.Uint32(p.buf[freeSpaceOffsetOffset:])
}

func (p *Page) SetFreeSpaceOffsetField(n uint32) {
	binary.LittleEndian.PutUint32(p.buf[freeSpaceOffsetOffset:], n)
}

func (p *Page) Checksum() uint32 {
	return binary.LittleEndian.Uint32(p.buf[checksumOffset:])
}

func (p *Page) SetChecksum(c uint32) {
	binary.LittleEndian.PutUint32(p.buf[checksumOffset:], c)
}

// computeChecksum XORs every 32-bit little-endian word of the data area.
func (p *Page) computeChecksum() uint32 {
	data := p.Data()
	var sum uint32
	for i := 0; i+4 <= len(data); i += 4 {
		sum ^= binary.LittleEndian.Uint32(data[i:])
	}
	return sum
}

// UpdateChecksum recomputes and stamps the checksum from the current data
// area. Called before every write.
func (p *Page) UpdateChecksum() {
	p.SetChecksum(p.computeChecksum())
}

// VerifyChecksum reports whether the stamped checksum matches the data
// area's current contents. Only meaningful for DATA/INDEX pages whose
// stamped checksum is non-zero; the caller is responsible for that gate.
func (p *Page) VerifyChecksum() bool {
	return p.Checksum() == p.computeChecksum()
}
