package waldump

import (
	"strings"
	"testing"
)

func checkpointBytes(cp *CheckPoint) []byte {
	buf := make([]byte, 72)
	putU64(buf[0:8], uint64(cp.Redo))
	putU32(buf[8:12], uint32(cp.ThisTimeLineID))
	putU32(buf[12:16], uint32(cp.PrevTimeLineID))
	if cp.FullPageWrites {
		buf[16] = 1
	}
	putU64(buf[20:28], cp.NextXID)
	putU32(buf[28:32], cp.NextOID)
	putU32(buf[32:36], cp.NextMultiXactID)
	putU64(buf[36:44], cp.NextMultiOffset)
	putU32(buf[44:48], cp.OldestXID)
	putU32(buf[48:52], cp.OldestXIDDB)
	putU32(buf[52:56], cp.OldestMultiXID)
	putU32(buf[56:60], cp.OldestMultiXIDDB)
	putU32(buf[60:64], cp.OldestCommitTsXID)
	putU32(buf[64:68], cp.NewestCommitTsXID)
	putU32(buf[68:72], cp.OldestActiveXID)
	return buf
}

// TestCheckPointString covers spec scenario 5: a checkpoint-shutdown
// record's describe text, grounded on the original's CheckPoint Display.
func TestCheckPointString(t *testing.T) {
	cp := &CheckPoint{
		Redo:              LSN(0x16D8000),
		ThisTimeLineID:    1,
		PrevTimeLineID:    1,
		FullPageWrites:    true,
		NextXID:           uint64(1)<<32 | 731,
		NextOID:           24576,
		NextMultiXactID:   1,
		NextMultiOffset:   0,
		OldestXID:         3,
		OldestXIDDB:       1,
		OldestMultiXID:    1,
		OldestMultiXIDDB:  1,
		OldestCommitTsXID: 0,
		NewestCommitTsXID: 0,
		OldestActiveXID:   0,
	}

	got := cp.String()
	for _, want := range []string{
		"redo 0/16D8000;", "tli 1;", "prev tli 1;", "fpw true;",
		"xid 1:731;", "oid 24576;", "multi 1;", "offset 0;",
		"oldest xid 3 in DB 1;", "oldest multi 1 in DB 1;",
		"oldest/newest commit timestamp xid 0/0;", "oldest running xid 0;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("CheckPoint.String() = %q, missing %q", got, want)
		}
	}
}

func TestDecodeCheckPointRoundTrip(t *testing.T) {
	cp := &CheckPoint{
		Redo: LSN(100), ThisTimeLineID: 2, PrevTimeLineID: 1,
		FullPageWrites: false, NextXID: 5000, NextOID: 1,
		NextMultiXactID: 0, NextMultiOffset: 0,
		OldestXID: 0, OldestXIDDB: 0, OldestMultiXID: 0, OldestMultiXIDDB: 0,
		OldestCommitTsXID: 0, NewestCommitTsXID: 0, OldestActiveXID: 0,
	}
	buf := checkpointBytes(cp)

	got, err := decodeCheckPoint(buf)
	if err != nil {
		t.Fatalf("decodeCheckPoint: %v", err)
	}
	if got.Redo != cp.Redo || got.ThisTimeLineID != cp.ThisTimeLineID || got.NextXID != cp.NextXID {
		t.Errorf("decodeCheckPoint = %+v, want %+v", got, cp)
	}
}

func TestXlogDescribeCheckpoint(t *testing.T) {
	cp := &CheckPoint{Redo: LSN(1), ThisTimeLineID: 1, PrevTimeLineID: 1, NextXID: 1}
	rec := &Record{RmgrID: RmXLogID, Info: xlogCheckpointShutdown, MainData: checkpointBytes(cp)}

	got := xlogDescribe(rec)
	if !strings.Contains(got, "redo 0/1;") {
		t.Errorf("xlogDescribe(checkpoint) = %q", got)
	}
}

func TestDbaseDescribe(t *testing.T) {
	data := make([]byte, 16)
	putU32(data[0:4], 20000) // db_id (new)
	putU32(data[4:8], 1663)  // tablespace_id
	putU32(data[8:12], 1)    // src_db_id
	putU32(data[12:16], 1663)

	rec := &Record{RmgrID: RmDbaseID, Info: dbaseCreateFileCopy, MainData: data}
	got := dbaseDescribe(rec)
	if !strings.Contains(got, "copy dir") {
		t.Errorf("dbaseDescribe(create file copy) = %q", got)
	}
}

func TestRelmapDescribe(t *testing.T) {
	mapData := make([]byte, 4+4+RelMapMaxMappings*8+4)
	putU32(mapData[0:4], RelMapMagic)
	putU32(mapData[4:8], 1)
	putU32(mapData[8:12], 1259)  // oid
	putU32(mapData[12:16], 5555) // filenode

	main := make([]byte, 12+len(mapData))
	putU32(main[0:4], 16384) // dbid
	putU32(main[4:8], 1663)  // tsid
	putU32(main[8:12], uint32(len(mapData)))
	copy(main[12:], mapData)

	rec := &Record{RmgrID: RmRelMapID, MainData: main}
	got := relmapDescribe(rec)
	if !strings.Contains(got, "1 entries") {
		t.Errorf("relmapDescribe = %q", got)
	}
}

func TestFormatRecordLine(t *testing.T) {
	rec := &Record{
		RmgrID: RmXactID, Info: xactCommit, XID: 731,
		LSN: LSN(0x16D8000), PrevLSN: LSN(0x16D7FC0),
		MainData: make([]byte, 8), TotalLen: 49,
	}
	line := FormatRecordLine(rec, false)
	for _, want := range []string{"rmgr: Transaction", "tx:", "731", "lsn: 0/16D8000", "desc: COMMIT"} {
		if !strings.Contains(line, want) {
			t.Errorf("FormatRecordLine = %q, missing %q", line, want)
		}
	}
}

func TestFormatRecordLineBlockRefs(t *testing.T) {
	rec := &Record{
		RmgrID: RmXactID, Info: xactCommit, XID: 731,
		LSN: LSN(0x16D8000), PrevLSN: LSN(0x16D7FC0),
		MainData: make([]byte, 8), TotalLen: 49,
		Blocks: []BlockReference{
			{
				ID:       0,
				ForkNum:  ForkMain,
				BlockNum: 5,
				Locator:  RelFileLocator{SpcOID: 1663, DbOID: 16384, RelOID: 24576},
			},
			{
				ID:       1,
				ForkNum:  ForkMain,
				BlockNum: 6,
				Locator:  RelFileLocator{SpcOID: 1663, DbOID: 16384, RelOID: 24576},
				Image:    &BlockImage{HoleOffset: 20, HoleLength: 8092, Length: 70, Compress: CompressLZ4},
			},
		},
	}

	plain := FormatRecordLine(rec, false)
	if !strings.Contains(plain, "\tblkref #0: rel 1663/16384/24576 fork main blk 5") {
		t.Errorf("FormatRecordLine missing non-FPW blkref line: %q", plain)
	}
	if !strings.Contains(plain, "\tblkref #1: rel 1663/16384/24576 fork main blk 6 (FPW); hole: offset: 20, length: 8092") {
		t.Errorf("FormatRecordLine missing FPW blkref line: %q", plain)
	}
	if strings.Contains(plain, "compression saved") {
		t.Errorf("FormatRecordLine(bkpDetails=false) should omit compression detail: %q", plain)
	}

	verbose := FormatRecordLine(rec, true)
	if !strings.Contains(verbose, "compression saved: 30, method: lz4") {
		t.Errorf("FormatRecordLine(bkpDetails=true) missing compression detail: %q", verbose)
	}
}
