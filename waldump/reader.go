package waldump

import "fmt"

// DefaultSegmentSize is used when Config.SegmentSize is left zero; it
// matches initdb's default --wal-segsize.
const DefaultSegmentSize = 16 * 1024 * 1024

// Config configures a Reader.
type Config struct {
	WorkDir     string     // directory holding WAL segment files
	Timeline    TimelineID // timeline segment files are opened under; 0 skips the timeline check until the first page read sets it (file names still use timeline 0)
	SegmentSize uint32     // 0 means DefaultSegmentSize
}

func (c Config) normalized() (Config, error) {
	if c.WorkDir == "" {
		return c, &ConfigError{Field: "WorkDir", Err: fmt.Errorf("must not be empty")}
	}
	if c.SegmentSize == 0 {
		c.SegmentSize = DefaultSegmentSize
	}
	if !IsValidSegmentSize(c.SegmentSize) {
		return c, &ConfigError{Field: "SegmentSize", Err: fmt.Errorf("%d is not a power of two in [%d, %d]", c.SegmentSize, MinSegmentSize, MaxSegmentSize)}
	}
	return c, nil
}

// Reader is a positioned cursor over a WAL directory: it tracks at most
// one open segment file handle and a single cached page, and reassembles
// records that span page and segment boundaries. A Reader is not safe for
// concurrent use (spec's single-goroutine reader model).
type Reader struct {
	cfg Config
	ctx segmentContext
	seg *openSegment

	curTLI TimelineID

	pageValid bool
	pageAddr  LSN
	pageBuf   [XLogBlockSize]byte
	pageHdr   *PageHeader

	nextRecPtr LSN // where ReadRecord will look for the next record
	prevRecPtr LSN // start LSN of the last record returned; the next record's xl_prev must match it

	errState
}

// NewReader opens a reader over cfg.WorkDir. It does not position the
// reader; call BeginRead or FindNextRecord before ReadRecord.
func NewReader(cfg Config) (*Reader, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &Reader{
		cfg:    normalized,
		ctx:    segmentContext{dir: normalized.WorkDir, segSize: normalized.SegmentSize},
		curTLI: normalized.Timeline,
	}, nil
}

// Close releases the reader's open segment file handle, if any.
func (r *Reader) Close() {
	if r.seg != nil {
		r.seg.close()
		r.seg = nil
	}
}

// BeginRead positions the reader to start decoding at exactly start,
// without scanning for a record boundary; start must already be a valid
// record start LSN (e.g. one reported by FindNextRecord).
func (r *Reader) BeginRead(start LSN) {
	r.nextRecPtr = start
	r.prevRecPtr = InvalidLSN
	r.errState.clear()
}

// LastError returns the most recent internal error recorded by a failed
// ReadRecord/FindNextRecord call, or nil. It is provided so callers can
// distinguish "no more records" from "a specific record was malformed"
// after a nil/false return, matching spec's single-last-error-slot policy.
func (r *Reader) LastError() error {
	return r.errState.last
}

// loadPage ensures r.pageBuf holds the XLOG_BLCKSZ page containing addr,
// reading it from disk and validating its header if it is not already
// cached. addr must be page-aligned.
func (r *Reader) loadPage(addr LSN) error {
	if r.pageValid && r.pageAddr == addr {
		return nil
	}

	seg, err := r.ctx.readWALRange(r.seg, r.curTLI, addr, r.pageBuf[:])
	r.seg = seg
	if err != nil {
		r.pageValid = false
		return err
	}

	hdr, err := decodePageHeader(r.pageBuf[:])
	if err != nil {
		r.pageValid = false
		return &HeaderError{Reason: err.Error(), LSN: addr}
	}

	if err := validatePageHeader(hdr, addr, r.curTLI, r.cfg.SegmentSize); err != nil {
		r.pageValid = false
		return err
	}
	if r.pageHdr != nil && hdr.Magic != r.pageHdr.Magic {
		r.pageValid = false
		return &HeaderError{Reason: "page magic differs from earlier pages", LSN: addr}
	}
	if r.curTLI == 0 {
		r.curTLI = hdr.TimelineID
	}

	r.pageAddr = addr
	r.pageHdr = hdr
	r.pageValid = true
	return nil
}

// FindNextRecord scans forward from start for the beginning of the first
// record at or after start, positions the reader there, and returns that
// LSN. It mirrors the original's xlog_find_next_record: if start lands
// exactly on a page boundary and that page opens with a continuation from
// the previous page, skip past the continuation's remainder; then walk
// records with the reader's own begin_read/read_record machinery (rather
// than re-deriving header offsets against the raw page buffer) until one
// starts at or after start. Reusing ReadRecord means a record header or
// body that crosses a page boundary is handled exactly as it would be
// during ordinary decoding, instead of risking an out-of-bounds slice when
// a header happens to straddle the page's last bytes.
func (r *Reader) FindNextRecord(start LSN) (LSN, error) {
	r.errState.clear()

	p := start
	for {
		base := PageBase(p)
		if err := r.loadPage(base); err != nil {
			return 0, r.errState.set(err)
		}
		if p != base {
			break // not positioned at a page boundary; no continuation to skip
		}
		if !firstIsContRecord(r.pageHdr.Info) {
			p = base + LSN(r.pageHdr.HeaderSize())
			break
		}
		contLen := LSN(r.pageHdr.HeaderSize()) + LSN(MaxAlign(r.pageHdr.RemLen))
		if contLen >= XLogBlockSize {
			p = base + XLogBlockSize // the whole page is continuation data
			continue
		}
		p = base + contLen
		break
	}

	r.BeginRead(p)
	for {
		rec, err := r.ReadRecord()
		if err != nil {
			return 0, err
		}
		if rec == nil {
			return 0, r.errState.set(&RecordError{Reason: "no record found at or after requested start", LSN: start})
		}
		if rec.LSN >= start {
			r.BeginRead(rec.LSN)
			return rec.LSN, nil
		}
	}
}

// ReadRecord decodes and returns the record at the reader's current
// position, advancing past it. It returns (nil, nil) when the next bytes
// are unwritten (end of available WAL), and a non-nil error — also
// retrievable via LastError — for any malformed header, record, or CRC.
func (r *Reader) ReadRecord() (*Record, error) {
	r.errState.clear()
	startLSN := r.nextRecPtr

	pageAddr := PageBase(startLSN)
	if err := r.loadPage(pageAddr); err != nil {
		return nil, r.errState.set(err)
	}

	offset := int(startLSN - pageAddr)
	if offset+XLogRecordHeaderSize > XLogBlockSize {
		return nil, r.errState.set(&RecordError{Reason: "record header crosses page boundary unexpectedly", LSN: startLSN})
	}

	headerBuf := append([]byte(nil), r.pageBuf[offset:offset+XLogRecordHeaderSize]...)
	if isAllZero(headerBuf) {
		return nil, nil // end of available WAL
	}

	rec, err := decodeRecordHeader(headerBuf, startLSN)
	if err != nil {
		return nil, r.errState.set(err)
	}

	if r.prevRecPtr.IsValid() && rec.PrevLSN != r.prevRecPtr {
		return nil, r.errState.set(&RecordError{Reason: "xl_prev does not match previous record's start LSN", LSN: startLSN})
	}

	bodyLen := int(rec.TotalLen) - XLogRecordHeaderSize
	body := make([]byte, 0, bodyLen)

	cur := offset + XLogRecordHeaderSize
	remaining := bodyLen
	curPage := pageAddr

	for remaining > 0 {
		avail := XLogBlockSize - cur
		take := avail
		if take > remaining {
			take = remaining
		}
		body = append(body, r.pageBuf[cur:cur+take]...)
		remaining -= take

		if remaining == 0 {
			cur += take
			break
		}

		// Body continues on the next page; that page must declare itself a
		// continuation and agree on how many bytes remain.
		curPage += XLogBlockSize
		if err := r.loadPage(curPage); err != nil {
			return nil, r.errState.set(err)
		}
		if !firstIsContRecord(r.pageHdr.Info) {
			return nil, r.errState.set(&RecordError{Reason: "continuation page missing XLP_FIRST_IS_CONTRECORD", LSN: startLSN})
		}
		if int(r.pageHdr.RemLen) != remaining {
			return nil, r.errState.set(&RecordError{Reason: "continuation page rem_len does not match bytes remaining", LSN: startLSN})
		}
		cur = r.pageHdr.HeaderSize()
	}

	if err := verifyRecordCRC(rec, headerBuf, body); err != nil {
		return nil, r.errState.set(err)
	}

	if err := decodeRecordPayload(rec, body); err != nil {
		return nil, r.errState.set(err)
	}

	endLSN := curPage + LSN(cur)
	endLSN = LSN(MaxAlign64(uint64(endLSN)))

	r.prevRecPtr = startLSN
	r.nextRecPtr = endLSN

	return rec, nil
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
