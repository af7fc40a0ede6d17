package waldump

import "hash/crc32"

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// recordCRC computes the CRC32C PostgreSQL stores in xl_crc: over the
// record body (everything after the header) followed by the header itself
// with the xl_crc field excluded, matching the order records are CRCed on
// write (body first, then header).
func recordCRC(header []byte, body []byte) uint32 {
	crc := crc32.Update(0, castagnoliTable, body)
	crc = crc32.Update(crc, castagnoliTable, header[:XLogRecordHeaderSize-4])
	return crc
}

// verifyRecordCRC reports whether rec's stored CRC matches one computed
// over rawHeader (the 24 header bytes as read from disk, xl_crc included
// but excluded from the computation) and body (everything after the header,
// including all sub-headers and data).
func verifyRecordCRC(rec *Record, rawHeader, body []byte) error {
	computed := recordCRC(rawHeader, body)
	if computed != rec.CRC {
		return &RecordError{Reason: "CRC mismatch", LSN: rec.LSN}
	}
	return nil
}
