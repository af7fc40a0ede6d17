package waldump

// WAL page magic numbers. WALMagic16 is the current on-disk format
// (XLOG_PAGE_MAGIC); WALMagicAlt is an alternate build's magic that older
// tooling still emits. A reader locks onto whichever magic the first page
// it reads presents and expects every subsequent page to match it.
const (
	WALMagic16  = 0xD114
	WALMagicAlt = 0xD110
)

// Page header info flags (xlp_info).
const (
	XLPFirstIsContRecord = 0x0001
	XLPLongHeader        = 0x0002
	XLPBkpRemovable      = 0x0004
	XLPAllFlags          = 0x000F
)

// IsValidWALMagic reports whether magic is a recognized page-header magic.
func IsValidWALMagic(magic uint16) bool {
	switch magic {
	case WALMagic16, WALMagicAlt:
		return true
	}
	return false
}

// PGVersionFromMagic maps a page magic to a build label, for display
// purposes only; decoding never branches on it.
func PGVersionFromMagic(magic uint16) string {
	switch magic {
	case WALMagic16:
		return "current"
	case WALMagicAlt:
		return "alternate"
	default:
		return "unknown"
	}
}

// PageHeader is XLogPageHeaderData, extended with the long-header fields
// present only on a segment's first page (xlp_info & XLPLongHeader).
type PageHeader struct {
	Magic      uint16
	Info       uint16
	TimelineID TimelineID
	PageAddr   LSN
	RemLen     uint32

	// Long-header fields, zero unless Long is true.
	Long      bool
	SystemID  uint64
	SegSize   uint32
	BlockSize uint32
}

// HeaderSize returns the number of bytes this header occupies on the page:
// LongPageHeaderSize if XLPLongHeader is set, else ShortPageHeaderSize.
func (h *PageHeader) HeaderSize() int {
	if h.Info&XLPLongHeader != 0 {
		return LongPageHeaderSize
	}
	return ShortPageHeaderSize
}

// decodePageHeader reads a PageHeader from the start of buf. buf must be at
// least ShortPageHeaderSize bytes; if xlp_info indicates a long header and
// buf has at least LongPageHeaderSize bytes, the long fields are filled in
// too. Callers decide whether the absence of a long header where one was
// expected is itself an error (page.go's validators do).
func decodePageHeader(buf []byte) (*PageHeader, error) {
	c := newCursor(buf)

	magic, err := c.u16("xlp_magic")
	if err != nil {
		return nil, err
	}
	info, err := c.u16("xlp_info")
	if err != nil {
		return nil, err
	}
	tli, err := c.u32("xlp_tli")
	if err != nil {
		return nil, err
	}
	pageAddr, err := c.u64("xlp_pageaddr")
	if err != nil {
		return nil, err
	}
	remLen, err := c.u32("xlp_rem_len")
	if err != nil {
		return nil, err
	}

	h := &PageHeader{
		Magic:      magic,
		Info:       info,
		TimelineID: TimelineID(tli),
		PageAddr:   LSN(pageAddr),
		RemLen:     remLen,
	}

	// The standard header's on-disk size (ShortPageHeaderSize) is padded out
	// to an 8-byte boundary beyond its five packed fields; skip that padding
	// before any long-header fields, which are laid out immediately after it.
	if err := c.skip(ShortPageHeaderSize - c.pos); err != nil {
		return h, err
	}

	if info&XLPLongHeader != 0 && c.remaining() >= LongPageHeaderSize-ShortPageHeaderSize {
		systemID, err := c.u64("xlp_sysid")
		if err != nil {
			return h, err
		}
		segSize, err := c.u32("xlp_seg_size")
		if err != nil {
			return h, err
		}
		blockSize, err := c.u32("xlp_xlog_blcksz")
		if err != nil {
			return h, err
		}
		h.Long = true
		h.SystemID = systemID
		h.SegSize = segSize
		h.BlockSize = blockSize
	}

	return h, nil
}

// validatePageHeader cross-checks a decoded page header against the
// expected page address, the reader's locked-in timeline, and (for a long
// header) the reader's segment size, mirroring
// xlog_reader_validate_page_header in the original source: magic must be
// recognized, only defined bits may be set in xlp_info, a long header must
// agree on segment/block size, a short header must not land on a segment's
// first page, the page address must match where the reader expected to
// find this page, and the timeline must not decrease.
func validatePageHeader(h *PageHeader, expectedAddr LSN, expectTLI TimelineID, segSize uint32) error {
	if !IsValidWALMagic(h.Magic) {
		return &HeaderError{Reason: "unrecognized page magic", LSN: expectedAddr}
	}
	if h.Info&^XLPAllFlags != 0 {
		return &HeaderError{Reason: "undefined bits set in page info", LSN: expectedAddr}
	}
	if h.Long {
		if h.BlockSize != XLogBlockSize {
			return &HeaderError{Reason: "page header reports mismatched WAL block size", LSN: expectedAddr}
		}
		if h.SegSize != segSize {
			return &HeaderError{Reason: "page header reports mismatched WAL segment size", LSN: expectedAddr}
		}
	} else if expectedAddr.IsValid() && SegmentOffset(expectedAddr, segSize) == 0 {
		return &HeaderError{Reason: "segment's first page must carry a long header", LSN: expectedAddr}
	}
	if expectedAddr.IsValid() && h.PageAddr != expectedAddr {
		return &HeaderError{Reason: "page address does not match expected position", LSN: expectedAddr}
	}
	if expectTLI != 0 && h.TimelineID < expectTLI {
		return &HeaderError{Reason: "timeline ID goes backwards", LSN: expectedAddr}
	}
	return nil
}

// firstIsContRecord reports whether this page continues a record begun on
// the previous page. The original source tested this with
// `xlp_info & XLPFirstIsContRecord == 1`; since the flag's value is 1 that
// comparison gives the same answer, but a non-zero mask test does not
// depend on the flag's value.
func firstIsContRecord(info uint16) bool {
	return info&XLPFirstIsContRecord != 0
}
