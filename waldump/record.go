package waldump

import "fmt"

// Block reference sub-header discriminator bytes. A byte >= 0 and
// <= XLRMaxBlockID is an ordinary block reference; the four values above
// that range are special markers.
const (
	XLRMaxBlockID         = 32
	XLRBlockIDTopLevelXID = 0xFC
	XLRBlockIDOrigin      = 0xFD
	XLRBlockIDDataLong    = 0xFE
	XLRBlockIDDataShort   = 0xFF
)

// Block header fork/flag bits (fork_flags byte).
const (
	BkpBlockForkMask = 0x0F
	BkpBlockHasImage = 0x10
	BkpBlockHasData  = 0x20
	BkpBlockWillInit = 0x40
	BkpBlockSameRel  = 0x80
)

// Block image info bits (bimg_info byte).
const (
	BkpImageHasHole       = 0x01
	BkpImageApply         = 0x02
	BkpImageCompressPGLZ  = 0x04
	BkpImageCompressLZ4   = 0x08
	BkpImageCompressZSTD  = 0x10
	bkpImageCompressedAny = BkpImageCompressPGLZ | BkpImageCompressLZ4 | BkpImageCompressZSTD
)

// CompressMethod names the algorithm a compressed full-page image was
// stored with, or NoCompression for an image stored verbatim.
type CompressMethod int

const (
	NoCompression CompressMethod = iota
	CompressPGLZ
	CompressLZ4
	CompressZSTD
)

func (m CompressMethod) String() string {
	switch m {
	case CompressPGLZ:
		return "pglz"
	case CompressLZ4:
		return "lz4"
	case CompressZSTD:
		return "zstd"
	default:
		return "none"
	}
}

func compressMethodFromBimgInfo(info uint8) CompressMethod {
	switch {
	case info&BkpImageCompressPGLZ != 0:
		return CompressPGLZ
	case info&BkpImageCompressLZ4 != 0:
		return CompressLZ4
	case info&BkpImageCompressZSTD != 0:
		return CompressZSTD
	default:
		return NoCompression
	}
}

// RelFileLocator identifies the tablespace, database and relation a block
// belongs to; this is PostgreSQL's on-disk RelFileLocator/RelFileNode.
type RelFileLocator struct {
	SpcOID uint32
	DbOID  uint32
	RelOID uint32
}

// BlockImage is a full-page image (FPI) attached to a block reference.
type BlockImage struct {
	Length     uint16
	HoleOffset uint16
	HoleLength uint16
	Info       uint8
	Compress   CompressMethod
	Apply      bool
	Raw        []byte // stored bytes, still compressed if Compress != NoCompression
}

// BlockReference is one block's sub-header plus its attached data/image,
// in the order it appeared in the record.
type BlockReference struct {
	ID       uint8
	ForkNum  uint8
	HasImage bool
	HasData  bool
	WillInit bool
	SameRel  bool
	Locator  RelFileLocator
	BlockNum uint32
	Image    *BlockImage
	Data     []byte
}

// Record is a fully decoded XLogRecord: fixed header, optional block
// references (each possibly carrying a full-page image), an optional
// replication origin and top-level xid, and the rmgr main data.
type Record struct {
	LSN      LSN
	TotalLen uint32
	XID      uint32
	PrevLSN  LSN
	Info     uint8
	RmgrID   uint8
	CRC      uint32

	Origin      uint16
	HasOrigin   bool
	TopLevelXID uint32
	HasTopXID   bool

	Blocks   []BlockReference
	MainData []byte
}

// decodeRecordHeader reads the fixed 24-byte XLogRecord header from the
// start of buf.
func decodeRecordHeader(buf []byte, lsn LSN) (*Record, error) {
	c := newCursor(buf)

	totalLen, err := c.u32("xl_tot_len")
	if err != nil {
		return nil, err
	}
	xid, err := c.u32("xl_xid")
	if err != nil {
		return nil, err
	}
	prev, err := c.u64("xl_prev")
	if err != nil {
		return nil, err
	}
	info, err := c.u8("xl_info")
	if err != nil {
		return nil, err
	}
	rmid, err := c.u8("xl_rmid")
	if err != nil {
		return nil, err
	}
	if err := c.skip(2); err != nil { // reserved padding
		return nil, err
	}
	crc, err := c.u32("xl_crc")
	if err != nil {
		return nil, err
	}

	if totalLen < XLogRecordHeaderSize {
		return nil, &RecordError{Reason: fmt.Sprintf("total length %d smaller than header size", totalLen), LSN: lsn}
	}

	return &Record{
		LSN:      lsn,
		TotalLen: totalLen,
		XID:      xid,
		PrevLSN:  LSN(prev),
		Info:     info,
		RmgrID:   rmid,
		CRC:      crc,
	}, nil
}

// decodeRecordPayload decodes the sub-header list and data sections that
// follow the fixed header, filling in rec.Blocks, rec.Origin, rec.TopLevelXID
// and rec.MainData. body is the record's bytes starting immediately after
// the 24-byte header, sized to rec.TotalLen-XLogRecordHeaderSize.
//
// The sub-header loop and its cross-checks follow PostgreSQL's
// DecodeXLogRecord: a run of block-reference sub-headers (ids 0..32),
// optionally interleaved with an origin marker (0xFD) and a top-level-xid
// marker (0xFC), terminated by a short (0xFF) or long (0xFE) main-data
// marker; the data section that follows lays out each block's image and
// data bytes in the same order the headers were encountered, finishing
// with the main data.
func decodeRecordPayload(rec *Record, body []byte) error {
	c := newCursor(body)

	var mainDataLen uint32
	haveMainDataMarker := false
	var lastLocator *RelFileLocator
	lastBlockID := -1

	for {
		if haveMainDataMarker {
			break
		}
		blockID, err := c.u8("block id")
		if err != nil {
			return wrapRecordErr(rec.LSN, err)
		}

		switch blockID {
		case XLRBlockIDDataShort:
			n, err := c.u8("main data length (short)")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			mainDataLen = uint32(n)
			haveMainDataMarker = true

		case XLRBlockIDDataLong:
			n, err := c.u32("main data length (long)")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			mainDataLen = n
			haveMainDataMarker = true

		case XLRBlockIDOrigin:
			origin, err := c.u16("replication origin")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			rec.Origin = origin
			rec.HasOrigin = true

		case XLRBlockIDTopLevelXID:
			xid, err := c.u32("top-level xid")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			rec.TopLevelXID = xid
			rec.HasTopXID = true

		default:
			if blockID > XLRMaxBlockID {
				return &RecordError{Reason: fmt.Sprintf("out-of-range block id %d", blockID), LSN: rec.LSN}
			}
			if int(blockID) <= lastBlockID {
				return &RecordError{Reason: fmt.Sprintf("out-of-order block id %d (last %d)", blockID, lastBlockID), LSN: rec.LSN}
			}
			lastBlockID = int(blockID)
			blk, locator, err := decodeBlockHeader(c, blockID, lastLocator, rec.LSN)
			if err != nil {
				return err
			}
			if !blk.SameRel {
				lastLocator = locator
			}
			rec.Blocks = append(rec.Blocks, *blk)
		}
	}

	// Data section: walk the blocks in encounter order, pulling image bytes
	// then block data bytes for each, then the main data.
	for i := range rec.Blocks {
		blk := &rec.Blocks[i]
		if blk.Image != nil {
			raw, err := c.bytes(int(blk.Image.Length), "block image data")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			blk.Image.Raw = append([]byte(nil), raw...)
		}
		if blk.HasData {
			data, err := c.bytes(len(blk.Data), "block data")
			if err != nil {
				return wrapRecordErr(rec.LSN, err)
			}
			copy(blk.Data, data)
		}
	}

	mainData, err := c.bytes(int(mainDataLen), "main data")
	if err != nil {
		return wrapRecordErr(rec.LSN, err)
	}
	rec.MainData = append([]byte(nil), mainData...)

	if c.remaining() != 0 {
		return &RecordError{Reason: fmt.Sprintf("length accounting mismatch: %d trailing bytes", c.remaining()), LSN: rec.LSN}
	}

	return nil
}

// decodeBlockHeader decodes one XLogRecordBlockHeader (and its optional
// image sub-header and RelFileLocator) starting right after the block id
// byte has already been consumed from c. blk.Data is pre-sized to data_len
// but left empty; the caller fills it in from the trailing data section.
func decodeBlockHeader(c *cursor, blockID uint8, lastLocator *RelFileLocator, lsn LSN) (*BlockReference, *RelFileLocator, error) {
	forkFlags, err := c.u8("fork_flags")
	if err != nil {
		return nil, nil, wrapRecordErr(lsn, err)
	}
	dataLen, err := c.u16("block data length")
	if err != nil {
		return nil, nil, wrapRecordErr(lsn, err)
	}

	blk := &BlockReference{
		ID:       blockID,
		ForkNum:  forkFlags & BkpBlockForkMask,
		HasImage: forkFlags&BkpBlockHasImage != 0,
		HasData:  forkFlags&BkpBlockHasData != 0,
		WillInit: forkFlags&BkpBlockWillInit != 0,
		SameRel:  forkFlags&BkpBlockSameRel != 0,
	}

	if blk.HasData && dataLen == 0 {
		return nil, nil, &RecordError{Reason: "BKPBLOCK_HAS_DATA set but data length is zero", LSN: lsn}
	}
	if !blk.HasData && dataLen != 0 {
		return nil, nil, &RecordError{Reason: "data length nonzero without BKPBLOCK_HAS_DATA", LSN: lsn}
	}
	blk.Data = make([]byte, dataLen)

	if blk.HasImage {
		length, err := c.u16("bimg_len")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}
		holeOffset, err := c.u16("hole_offset")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}
		info, err := c.u8("bimg_info")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}

		img := &BlockImage{Length: length, HoleOffset: holeOffset, Info: info}
		img.Compress = compressMethodFromBimgInfo(info)
		img.Apply = info&BkpImageApply != 0

		hasHole := info&BkpImageHasHole != 0
		compressed := info&bkpImageCompressedAny != 0

		if hasHole && compressed {
			holeLen, err := c.u16("hole_length")
			if err != nil {
				return nil, nil, wrapRecordErr(lsn, err)
			}
			img.HoleLength = holeLen
		} else if hasHole {
			img.HoleLength = XLogBlockSize - length
		}

		if hasHole && (holeOffset == 0 || img.HoleLength == 0 || length == XLogBlockSize) {
			return nil, nil, &RecordError{Reason: "inconsistent hole fields on compressed/hole image", LSN: lsn}
		}
		if !hasHole && holeOffset != 0 {
			return nil, nil, &RecordError{Reason: "hole offset set without BKPIMAGE_HAS_HOLE", LSN: lsn}
		}
		if !hasHole && !compressed && length != XLogBlockSize {
			return nil, nil, &RecordError{Reason: "uncompressed image without hole is not a full page", LSN: lsn}
		}

		blk.Image = img
	}

	var locator *RelFileLocator
	if !blk.SameRel {
		spc, err := c.u32("spcOid")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}
		db, err := c.u32("dbOid")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}
		rel, err := c.u32("relNumber")
		if err != nil {
			return nil, nil, wrapRecordErr(lsn, err)
		}
		locator = &RelFileLocator{SpcOID: spc, DbOID: db, RelOID: rel}
		blk.Locator = *locator
	} else {
		if lastLocator == nil {
			return nil, nil, &RecordError{Reason: "BKPBLOCK_SAME_REL with no preceding relation", LSN: lsn}
		}
		blk.Locator = *lastLocator
	}

	blkno, err := c.u32("blkno")
	if err != nil {
		return nil, nil, wrapRecordErr(lsn, err)
	}
	blk.BlockNum = blkno

	return blk, locator, nil
}

func wrapRecordErr(lsn LSN, err error) error {
	return &RecordError{Reason: err.Error(), LSN: lsn}
}
