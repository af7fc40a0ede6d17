// Package waldump decodes a PostgreSQL-family write-ahead log: it walks
// segmented, page-structured WAL files, reassembles logical records across
// page and segment boundaries, and dispatches each record to a
// resource-manager-specific describer.
//
// # Basic usage
//
//	r, err := waldump.NewReader(waldump.Config{WorkDir: "/var/lib/postgresql/16/main/pg_wal"})
//	if err != nil { ... }
//	start, err := r.FindNextRecord(waldump.MustParseLSN("0/1000000"))
//	for {
//	    rec, err := r.ReadRecord()
//	    if err != nil || rec == nil { break } // rec == nil: end of available WAL
//	    fmt.Println(waldump.FormatRecordLine(rec, false))
//	}
package waldump

import (
	"encoding/binary"
	"fmt"
)

// MaximumAlignOf is PostgreSQL's MAXIMUM_ALIGNOF: all record and sub-header
// lengths are rounded up to this boundary before the next item is placed.
const MaximumAlignOf = 8

// MaxAlign rounds n up to the next multiple of MaximumAlignOf, mirroring
// PostgreSQL's MAXALIGN macro.
func MaxAlign(n uint32) uint32 {
	return (n + MaximumAlignOf - 1) &^ (MaximumAlignOf - 1)
}

// MaxAlign64 is the uint64 form of MaxAlign, used for LSN arithmetic.
func MaxAlign64(n uint64) uint64 {
	return (n + MaximumAlignOf - 1) &^ (MaximumAlignOf - 1)
}

// ParseError reports a short read while decoding a primitive value.
type ParseError struct {
	Field string
	Want  int
	Got   int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("short read decoding %s: want %d bytes, got %d", e.Field, e.Want, e.Got)
}

// cursor walks a little-endian byte slice, advancing as values are decoded.
// It never panics: every read checks remaining length and returns a
// *ParseError on underrun, matching spec's "total function" requirement for
// the primitive codec.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) skip(n int) error {
	if c.remaining() < n {
		return &ParseError{Field: "skip", Want: n, Got: c.remaining()}
	}
	c.pos += n
	return nil
}

func (c *cursor) u8(field string) (uint8, error) {
	if c.remaining() < 1 {
		return 0, &ParseError{Field: field, Want: 1, Got: c.remaining()}
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16(field string) (uint16, error) {
	if c.remaining() < 2 {
		return 0, &ParseError{Field: field, Want: 2, Got: c.remaining()}
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32(field string) (uint32, error) {
	if c.remaining() < 4 {
		return 0, &ParseError{Field: field, Want: 4, Got: c.remaining()}
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) u64(field string) (uint64, error) {
	if c.remaining() < 8 {
		return 0, &ParseError{Field: field, Want: 8, Got: c.remaining()}
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *cursor) bytes(n int, field string) ([]byte, error) {
	if c.remaining() < n {
		return nil, &ParseError{Field: field, Want: n, Got: c.remaining()}
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// putU16 / putU32 / putU64 write little-endian values; used by tests that
// build synthetic headers and pages.
func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
