package waldump

import "fmt"

// Database (RM_DBASE_ID) sub-operation bits.
const (
	dbaseCreateFileCopy = 0x00
	dbaseCreateWALLog   = 0x10
	dbaseDrop           = 0x20
)

func dbaseIdentify(info uint8) string {
	switch info & 0x70 {
	case dbaseCreateFileCopy, dbaseCreateWALLog:
		return "CREATE"
	case dbaseDrop:
		return "DROP"
	default:
		return genericIdentify(info)
	}
}

// dbaseDescribe renders CREATE DATABASE (file-copy and WAL-log strategies)
// and DROP DATABASE records. Both XlCreatedb variants begin with
// (db_id uint32, tablespace_id uint32); file-copy additionally carries the
// source database/tablespace ids; DROP carries (db_id, tablespace_id) plus
// nothing further.
func dbaseDescribe(rec *Record) string {
	data := rec.MainData
	switch rmgrInfo(rec.Info) {
	case dbaseCreateFileCopy:
		if len(data) < 16 {
			return "malformed CREATE (file copy) record"
		}
		return fmt.Sprintf("copy dir %d/%d to %d/%d",
			leU32(data[8:12]), leU32(data[12:16]), leU32(data[0:4]), leU32(data[4:8]))
	case dbaseCreateWALLog:
		if len(data) < 8 {
			return "malformed CREATE (wal log) record"
		}
		return fmt.Sprintf("create dir %d/%d", leU32(data[4:8]), leU32(data[0:4]))
	case dbaseDrop:
		if len(data) < 8 {
			return "malformed DROP record"
		}
		return fmt.Sprintf("drop dir %d/%d", leU32(data[4:8]), leU32(data[0:4]))
	default:
		return genericDescribe(rec)
	}
}
