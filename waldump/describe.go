package waldump

import "fmt"

// MustParseLSN parses s as an LSN, panicking on failure. It exists for
// call sites (flag defaults, tests, examples) where the value is a
// compile-time constant and an error return would only ever be a coding
// mistake.
func MustParseLSN(s string) LSN {
	lsn, err := ParseLSN(s)
	if err != nil {
		panic(err)
	}
	return lsn
}

// FormatRecordLine renders one decoded record the way the CLI prints it: the
// rmgr/len/tx/lsn/desc summary line, followed by one "\tblkref #I: ..." line
// per block reference, unconditionally (every block reference is accounted
// for, not only ones carrying a full-page image). bkpDetails controls only
// whether an image's optional compression-saved/method detail is appended;
// the block's relation, fork, block number, and (when present) hole extent
// are always shown.
//
//	rmgr: <name>     len (rec/tot):     24/    24, tx:        731, lsn: 0/16D8000, prev 0/16D7FC0, desc: <IDENTIFY> <DESCRIBE>
//		blkref #0: rel 1663/16384/24576 fork main blk 5
func FormatRecordLine(rec *Record, bkpDetails bool) string {
	line := fmt.Sprintf(
		"rmgr: %-11s len (rec/tot): %6d/%6d, tx: %10d, lsn: %s, prev %s, desc: %s %s",
		RmgrName(rec.RmgrID),
		rec.TotalLen, rec.TotalLen,
		rec.XID,
		rec.LSN,
		rec.PrevLSN,
		IdentifyOperation(rec),
		DescribeRecord(rec),
	)
	for _, b := range rec.Blocks {
		line += "\n" + formatBlockRef(b, bkpDetails)
	}
	return line
}

func formatBlockRef(b BlockReference, bkpDetails bool) string {
	out := fmt.Sprintf("\tblkref #%d: rel %d/%d/%d fork %s blk %d",
		b.ID, b.Locator.SpcOID, b.Locator.DbOID, b.Locator.RelOID, forkName(b.ForkNum), b.BlockNum)
	if b.Image == nil {
		return out
	}
	out += fmt.Sprintf(" (FPW); hole: offset: %d, length: %d", b.Image.HoleOffset, b.Image.HoleLength)
	if bkpDetails && b.Image.Compress != NoCompression {
		saved := (XLogBlockSize - int(b.Image.HoleLength)) - int(b.Image.Length)
		out += fmt.Sprintf(", compression saved: %d, method: %s", saved, b.Image.Compress)
	}
	return out
}

// Fork numbers, ForkNumber in the original.
const (
	ForkMain = iota
	ForkFSM
	ForkVM
	ForkInit
)

func forkName(fork uint8) string {
	switch fork {
	case ForkMain:
		return "main"
	case ForkFSM:
		return "fsm"
	case ForkVM:
		return "vm"
	case ForkInit:
		return "init"
	default:
		return fmt.Sprintf("unknown_%d", fork)
	}
}
