package waldump

import (
	"strings"
	"testing"
)

func TestStatsAdd(t *testing.T) {
	s := NewStats()
	s.Add(&Record{RmgrID: RmXactID, Info: xactCommit, LSN: LSN(10), TotalLen: 50})
	s.Add(&Record{RmgrID: RmXactID, Info: xactCommit, LSN: LSN(20), TotalLen: 60})
	s.Add(&Record{RmgrID: RmHeapID, Info: heapInsert, LSN: LSN(5), TotalLen: 100})

	if s.Records != 3 {
		t.Fatalf("Records = %d, want 3", s.Records)
	}
	if s.FirstLSN != LSN(5) || s.LastLSN != LSN(20) {
		t.Errorf("FirstLSN/LastLSN = %d/%d, want 5/20", s.FirstLSN, s.LastLSN)
	}

	byRmgr := s.ByRmgr()
	if len(byRmgr) != 2 {
		t.Fatalf("ByRmgr() returned %d entries, want 2", len(byRmgr))
	}

	var xact, heap *RmgrStats
	for _, rs := range byRmgr {
		switch rs.Rmgr {
		case "Transaction":
			xact = rs
		case "Heap":
			heap = rs
		}
	}
	if xact == nil || xact.Records != 2 || xact.TotalBytes != 110 {
		t.Errorf("Transaction stats = %+v", xact)
	}
	if heap == nil || heap.Records != 1 || heap.TotalBytes != 100 {
		t.Errorf("Heap stats = %+v", heap)
	}
}

func TestStatsSummaryContainsTotal(t *testing.T) {
	s := NewStats()
	s.Add(&Record{RmgrID: RmXactID, Info: xactCommit, TotalLen: 50})

	summary := s.Summary(false)
	if summary == "" {
		t.Fatal("Summary() returned empty string")
	}
	if !strings.Contains(summary, "Total") {
		t.Errorf("Summary() = %q, missing Total line", summary)
	}
}
