package waldump

import (
	"fmt"
	"sort"
	"strings"
)

// RmgrStats aggregates record counts and bytes for a single resource
// manager, broken down by operation name.
type RmgrStats struct {
	Rmgr       string
	Records    int
	TotalBytes uint64
	ByOp       map[string]*OpStats
}

// OpStats aggregates a single operation (e.g. "INSERT", "COMMIT") within a
// resource manager.
type OpStats struct {
	Count      int
	TotalBytes uint64
}

// Stats accumulates RmgrStats across a stream of decoded records, mirroring
// the teacher's WALSummary.Operations shape but keyed by rmgr first, since
// the same operation name can recur under multiple rmgrs.
type Stats struct {
	FirstLSN LSN
	LastLSN  LSN
	Records  int
	byRmgr   map[string]*RmgrStats
}

// NewStats returns an empty Stats accumulator.
func NewStats() *Stats {
	return &Stats{byRmgr: make(map[string]*RmgrStats)}
}

// Add folds one decoded record into the accumulator.
func (s *Stats) Add(rec *Record) {
	if s.Records == 0 || rec.LSN < s.FirstLSN {
		s.FirstLSN = rec.LSN
	}
	if rec.LSN > s.LastLSN {
		s.LastLSN = rec.LSN
	}
	s.Records++

	name := RmgrName(rec.RmgrID)
	rs, ok := s.byRmgr[name]
	if !ok {
		rs = &RmgrStats{Rmgr: name, ByOp: make(map[string]*OpStats)}
		s.byRmgr[name] = rs
	}
	rs.Records++
	rs.TotalBytes += uint64(rec.TotalLen)

	op := IdentifyOperation(rec)
	os, ok := rs.ByOp[op]
	if !ok {
		os = &OpStats{}
		rs.ByOp[op] = os
	}
	os.Count++
	os.TotalBytes += uint64(rec.TotalLen)
}

// ByRmgr returns per-rmgr stats sorted by resource manager name.
func (s *Stats) ByRmgr() []*RmgrStats {
	out := make([]*RmgrStats, 0, len(s.byRmgr))
	for _, rs := range s.byRmgr {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rmgr < out[j].Rmgr })
	return out
}

// Summary renders a table matching pg_waldump's --stats output: one row
// per rmgr (or, when perRecord is set, per rmgr/operation pair) with
// record counts and total bytes, plus a grand total line.
func (s *Stats) Summary(perRecord bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type                          N      (%%)          Record size     (%%)\n")

	for _, rs := range s.ByRmgr() {
		if !perRecord {
			fmt.Fprintf(&b, "%-28s %6d (%5.2f%%)  %12d (%5.2f%%)\n",
				rs.Rmgr, rs.Records, pct(rs.Records, s.Records), rs.TotalBytes, pct64(rs.TotalBytes, s.totalBytes()))
			continue
		}
		ops := make([]string, 0, len(rs.ByOp))
		for op := range rs.ByOp {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			os := rs.ByOp[op]
			fmt.Fprintf(&b, "%-20s/%-7s %6d (%5.2f%%)  %12d (%5.2f%%)\n",
				rs.Rmgr, op, os.Count, pct(os.Count, s.Records), os.TotalBytes, pct64(os.TotalBytes, s.totalBytes()))
		}
	}

	fmt.Fprintf(&b, "%-28s %6d %16d\n", "Total", s.Records, s.totalBytes())
	return b.String()
}

func (s *Stats) totalBytes() uint64 {
	var total uint64
	for _, rs := range s.byRmgr {
		total += rs.TotalBytes
	}
	return total
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

func pct64(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
