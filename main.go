// pgwaldump - Decode PostgreSQL write-ahead log segments offline
//
// Usage:
//
//	pgwaldump -p /path/to/pg_wal/                        # decode everything found
//	pgwaldump 000000010000000000000001                   # decode a single segment
//	pgwaldump -s 0/1000028 -e 0/1000400 000000010000000000000001
//	pgwaldump -r Heap -R 1663/16384/16397 -w              # filtered
//	pgwaldump -z                                          # stats mode
//	pgwaldump -r list                                     # list resource managers
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-waldump/pgwaldump/waldump"
)

// builtinRmgrIDs lists the resource managers this reader knows how to name,
// in declaration order, for `-r list`. `-r NAME` filtering compares names
// directly and does not use this list.
var builtinRmgrIDs = []uint8{
	waldump.RmXLogID, waldump.RmXactID, waldump.RmSMgrID, waldump.RmCLogID,
	waldump.RmDbaseID, waldump.RmTblspcID, waldump.RmMultiXactID, waldump.RmRelMapID,
	waldump.RmStandbyID, waldump.RmHeap2ID, waldump.RmHeapID, waldump.RmBtreeID,
	waldump.RmHashID, waldump.RmGinID, waldump.RmGistID, waldump.RmSeqID,
	waldump.RmSpgistID, waldump.RmBrinID, waldump.RmCommitTsID, waldump.RmReplOriginID,
	waldump.RmGenericID, waldump.RmLogicalMsgID,
}

// statsFlag backs -z/--stats, which takes no argument ("-z") or an optional
// "record" value ("-z=record"/"--stats=record") for per-record detail,
// mirroring the optional-bool-flag trick used for the stdlib's -v flags.
type statsFlag struct {
	enabled   bool
	perRecord bool
}

func (s *statsFlag) String() string {
	if !s.enabled {
		return ""
	}
	if s.perRecord {
		return "record"
	}
	return "true"
}

func (s *statsFlag) Set(v string) error {
	s.enabled = true
	s.perRecord = v == "record"
	return nil
}

func (s *statsFlag) IsBoolFlag() bool { return true }

// blockFilter narrows the decoded record stream to ones matching the
// CLI's -R/-B/-F/-w/-x options; a zero-value blockFilter matches everything.
type blockFilter struct {
	rmgr      string
	haveRel   bool
	relocator waldump.RelFileLocator
	haveBlock bool
	blockNum  uint32
	haveFork  bool
	fork      uint8
	fullPage  bool
	haveXID   bool
	xid       uint32
}

func (f *blockFilter) matches(rec *waldump.Record) bool {
	if f.rmgr != "" && !strings.EqualFold(waldump.RmgrName(rec.RmgrID), f.rmgr) {
		return false
	}
	if f.haveXID && rec.XID != f.xid {
		return false
	}
	if !f.haveRel && !f.haveBlock && !f.haveFork && !f.fullPage {
		return true
	}
	for _, blk := range rec.Blocks {
		if f.haveRel && blk.Locator != f.relocator {
			continue
		}
		if f.haveBlock && blk.BlockNum != f.blockNum {
			continue
		}
		if f.haveFork && blk.ForkNum != f.fork {
			continue
		}
		if f.fullPage && blk.Image == nil {
			continue
		}
		return true
	}
	return false
}

func parseRelation(s string) (waldump.RelFileLocator, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return waldump.RelFileLocator{}, fmt.Errorf("invalid relation %q: expected SPC/DB/REL", s)
	}
	vals := make([]uint32, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return waldump.RelFileLocator{}, fmt.Errorf("invalid relation %q: %w", s, err)
		}
		vals[i] = uint32(n)
	}
	return waldump.RelFileLocator{SpcOID: vals[0], DbOID: vals[1], RelOID: vals[2]}, nil
}

func parseFork(name string) (uint8, error) {
	switch name {
	case "main":
		return waldump.ForkMain, nil
	case "fsm":
		return waldump.ForkFSM, nil
	case "vm":
		return waldump.ForkVM, nil
	case "init":
		return waldump.ForkInit, nil
	default:
		return 0, fmt.Errorf("invalid fork %q: expected main, fsm, vm or init", name)
	}
}

func parseTimeline(s string) (waldump.TimelineID, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid timeline %q: %w", s, err)
	}
	return waldump.TimelineID(n), nil
}

func main() {
	var (
		startStr    string
		endStr      string
		timelineStr string
		limit       int
		quiet       bool
		path        string
		rmgrFilter  string
		relation    string
		blockNum    uint
		forkName    string
		fullPage    bool
		xid         uint
		bkpDetails  bool
		follow      bool
	)
	var stats statsFlag

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	fs.StringVar(&startStr, "s", "", "start reading at RECPTR (HEX/HEX)")
	fs.StringVar(&startStr, "start", "", "start reading at RECPTR (HEX/HEX)")
	fs.StringVar(&endStr, "e", "", "stop reading at RECPTR (HEX/HEX)")
	fs.StringVar(&endStr, "end", "", "stop reading at RECPTR (HEX/HEX)")
	fs.StringVar(&timelineStr, "t", "1", "timeline to read, decimal or 0x-hex")
	fs.StringVar(&timelineStr, "timeline", "1", "timeline to read, decimal or 0x-hex")
	fs.IntVar(&limit, "n", 0, "stop after N records (0 means unlimited)")
	fs.IntVar(&limit, "limit", 0, "stop after N records (0 means unlimited)")
	fs.BoolVar(&quiet, "q", false, "suppress per-record output lines")
	fs.BoolVar(&quiet, "quiet", false, "suppress per-record output lines")
	fs.StringVar(&path, "p", "", "WAL directory (overrides auto-discovery)")
	fs.StringVar(&path, "path", "", "WAL directory (overrides auto-discovery)")
	fs.StringVar(&rmgrFilter, "r", "", "filter by resource manager name, or \"list\"")
	fs.StringVar(&rmgrFilter, "rmgr", "", "filter by resource manager name, or \"list\"")
	fs.StringVar(&relation, "R", "", "filter by relation SPC/DB/REL")
	fs.StringVar(&relation, "relation", "", "filter by relation SPC/DB/REL")
	fs.UintVar(&blockNum, "B", 0, "filter by block number")
	fs.UintVar(&blockNum, "block", 0, "filter by block number")
	fs.StringVar(&forkName, "F", "", "filter by fork: main, fsm, vm, init")
	fs.StringVar(&forkName, "fork", "", "filter by fork: main, fsm, vm, init")
	fs.BoolVar(&fullPage, "w", false, "only show records carrying a full-page image")
	fs.BoolVar(&fullPage, "fullpage", false, "only show records carrying a full-page image")
	fs.UintVar(&xid, "x", 0, "filter by transaction id")
	fs.UintVar(&xid, "xid", 0, "filter by transaction id")
	fs.BoolVar(&bkpDetails, "b", false, "append compression-saved/method detail to full-page image blkref lines")
	fs.BoolVar(&bkpDetails, "bkp-details", false, "append compression-saved/method detail to full-page image blkref lines")
	fs.Var(&stats, "z", "print summary statistics instead of (or in addition to) records; \"record\" for per-record detail")
	fs.Var(&stats, "stats", "print summary statistics instead of (or in addition to) records; \"record\" for per-record detail")
	fs.BoolVar(&follow, "f", false, "accepted but has no effect: reading stops at the end of available WAL")
	fs.BoolVar(&follow, "follow", false, "accepted but has no effect: reading stops at the end of available WAL")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `pgwaldump - Decode PostgreSQL write-ahead log segments offline

Usage:
  %s [OPTION]... [STARTSEG [ENDSEG]]

STARTSEG/ENDSEG are WAL segment file names (only the base name is used to
identify the segment); if STARTSEG has a parent directory and -p is not
given, that directory becomes the WAL directory to search.

Options:
`, os.Args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if rmgrFilter == "list" {
		for _, id := range builtinRmgrIDs {
			fmt.Println(waldump.RmgrName(id))
		}
		return
	}

	waldump.SetQuiet(quiet)

	filter := &blockFilter{rmgr: rmgrFilter, fullPage: fullPage}
	if relation != "" {
		loc, err := parseRelation(relation)
		if err != nil {
			fail(err)
		}
		filter.haveRel, filter.relocator = true, loc
	}
	if isFlagSet(fs, "B", "block") {
		filter.haveBlock, filter.blockNum = true, uint32(blockNum)
	}
	if forkName != "" {
		fork, err := parseFork(forkName)
		if err != nil {
			fail(err)
		}
		filter.haveFork, filter.fork = true, fork
	}
	if isFlagSet(fs, "x", "xid") {
		filter.haveXID, filter.xid = true, uint32(xid)
	}

	timeline, err := parseTimeline(timelineStr)
	if err != nil {
		fail(err)
	}

	var startSeg, endSeg string
	switch fs.NArg() {
	case 0:
	case 1:
		startSeg = fs.Arg(0)
	case 2:
		startSeg, endSeg = fs.Arg(0), fs.Arg(1)
	default:
		fail(fmt.Errorf("too many positional arguments"))
	}

	const segSize = waldump.DefaultSegmentSize

	var startLSN waldump.LSN
	haveStart := false
	if startSeg != "" {
		_, segno, err := waldump.ParseSegmentFileName(filepath.Base(startSeg), segSize)
		if err != nil {
			fail(fmt.Errorf("STARTSEG: %w", err))
		}
		startLSN = waldump.LSN(segno * segSize)
		haveStart = true
		if path == "" {
			if dir := filepath.Dir(startSeg); dir != "." {
				path = dir
			}
		}
	}

	var endLSN waldump.LSN
	haveEnd := false
	if endSeg != "" {
		_, segno, err := waldump.ParseSegmentFileName(filepath.Base(endSeg), segSize)
		if err != nil {
			fail(fmt.Errorf("ENDSEG: %w", err))
		}
		endLSN = waldump.LSN((segno + 1) * segSize)
		haveEnd = true
	}

	if startStr != "" {
		lsn, err := waldump.ParseLSN(startStr)
		if err != nil {
			fail(err)
		}
		startLSN, haveStart = lsn, true
	}
	if endStr != "" {
		lsn, err := waldump.ParseLSN(endStr)
		if err != nil {
			fail(err)
		}
		endLSN, haveEnd = lsn, true
	}
	if haveStart && haveEnd && endLSN < startLSN {
		fail(fmt.Errorf("end location %s precedes start location %s", endLSN, startLSN))
	}

	dir, err := waldump.IdentifyTargetDirectory(path, segSize)
	if err != nil {
		fail(err)
	}

	reader, err := waldump.NewReader(waldump.Config{
		WorkDir:     dir,
		Timeline:    timeline,
		SegmentSize: segSize,
	})
	if err != nil {
		fail(err)
	}
	defer reader.Close()

	// startLSN defaults to 0 (the start of segment 0 on the chosen timeline)
	// when neither -s nor STARTSEG was given.
	pos, err := reader.FindNextRecord(startLSN)
	if err != nil {
		fail(err)
	}
	reader.BeginRead(pos)

	var st *waldump.Stats
	if stats.enabled {
		st = waldump.NewStats()
	}

	_ = follow // accepted per spec's non-goal: no retry loop past end-of-WAL

	printed := 0
	for {
		rec, err := reader.ReadRecord()
		if err != nil {
			fail(err)
		}
		if rec == nil {
			break // end of available WAL
		}
		if haveEnd && rec.LSN >= endLSN {
			break
		}

		if !filter.matches(rec) {
			continue
		}
		if st != nil {
			st.Add(rec)
		}
		if !quiet {
			fmt.Println(waldump.FormatRecordLine(rec, bkpDetails))
		}
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}

	if st != nil {
		fmt.Print(st.Summary(stats.perRecord))
	}
}

// isFlagSet reports whether any of the given flag names was explicitly
// passed on the command line, distinguishing "-B 0" from "not given".
func isFlagSet(fs *flag.FlagSet, names ...string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	found := false
	fs.Visit(func(f *flag.Flag) {
		if set[f.Name] {
			found = true
		}
	})
	return found
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "pgwaldump: %v\n", err)
	os.Exit(1)
}
