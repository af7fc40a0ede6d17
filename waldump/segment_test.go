package waldump

import "testing"

func TestLSNString(t *testing.T) {
	tests := []struct {
		lsn  LSN
		want string
	}{
		{0, "0/0"},
		{LSN(0x16D8F8), "0/16D8F8"},
		{LSN(0x100000000), "1/0"},
		{LSN(0x2000000100000001), "20000001/1"},
	}

	for _, tt := range tests {
		if got := tt.lsn.String(); got != tt.want {
			t.Errorf("LSN(%d).String() = %q, want %q", uint64(tt.lsn), got, tt.want)
		}
	}
}

func TestParseLSN(t *testing.T) {
	tests := []struct {
		in      string
		want    LSN
		wantErr bool
	}{
		{"0/16D8F8", LSN(0x16D8F8), false},
		{"1/0", LSN(0x100000000), false},
		{"A/B", LSN(0xA<<32 | 0xB), false},
		{"bogus", 0, true},
		{"1/2/3", 0, true},
		{"zz/00", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLSN(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLSN(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLSN(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSegmentNumberAndOffset(t *testing.T) {
	const segSize = 16 * 1024 * 1024 // 16MiB, PostgreSQL's default

	tests := []struct {
		lsn     LSN
		wantSeg uint64
		wantOff uint32
	}{
		{0, 0, 0},
		{LSN(segSize - 1), 0, segSize - 1},
		{LSN(segSize), 1, 0},
		{LSN(segSize + 100), 1, 100},
		{LSN(2 * segSize), 2, 0},
	}

	for _, tt := range tests {
		seg := SegmentNumber(tt.lsn, segSize)
		off := SegmentOffset(tt.lsn, segSize)
		if seg != tt.wantSeg || off != tt.wantOff {
			t.Errorf("SegmentNumber/Offset(%d, %d) = (%d, %d), want (%d, %d)",
				tt.lsn, segSize, seg, off, tt.wantSeg, tt.wantOff)
		}
	}
}

func TestPageOffsetAndBase(t *testing.T) {
	tests := []struct {
		lsn      LSN
		wantOff  uint32
		wantBase LSN
	}{
		{0, 0, 0},
		{LSN(XLogBlockSize - 1), XLogBlockSize - 1, 0},
		{LSN(XLogBlockSize), 0, LSN(XLogBlockSize)},
		{LSN(XLogBlockSize + 24), 24, LSN(XLogBlockSize)},
	}

	for _, tt := range tests {
		if got := PageOffset(tt.lsn); got != tt.wantOff {
			t.Errorf("PageOffset(%d) = %d, want %d", tt.lsn, got, tt.wantOff)
		}
		if got := PageBase(tt.lsn); got != tt.wantBase {
			t.Errorf("PageBase(%d) = %d, want %d", tt.lsn, got, tt.wantBase)
		}
	}
}

func TestIsValidSegmentSize(t *testing.T) {
	tests := []struct {
		sz   uint32
		want bool
	}{
		{1 << 20, true},
		{16 << 20, true},
		{1 << 30, true},
		{0, false},
		{3 << 20, false}, // not a power of two
		{1 << 19, false}, // below minimum
		{1 << 31, false}, // above maximum
	}

	for _, tt := range tests {
		if got := IsValidSegmentSize(tt.sz); got != tt.want {
			t.Errorf("IsValidSegmentSize(%d) = %v, want %v", tt.sz, got, tt.want)
		}
	}
}

// TestSegmentFileName covers spec scenario 1: format_filename(tli=1, segno=1,
// ws=16MiB) == "000000010000000000000001".
func TestSegmentFileName(t *testing.T) {
	const segSize = 16 * 1024 * 1024

	tests := []struct {
		tli   TimelineID
		segno uint64
		want  string
	}{
		{1, 1, "000000010000000000000001"},
		{1, 0, "000000010000000000000000"},
		{2, 0x101, "000000020000000100000001"},
	}

	for _, tt := range tests {
		if got := SegmentFileName(tt.tli, tt.segno, segSize); got != tt.want {
			t.Errorf("SegmentFileName(%d, %d, %d) = %q, want %q", tt.tli, tt.segno, segSize, got, tt.want)
		}
	}
}

// TestParseSegmentFileName checks the inverse of SegmentFileName: at 16MiB
// segments 256 segments share one log id, so "000000020000000100000001"
// parses to (tli=2, segno=1*256+1=0x101).
func TestParseSegmentFileName(t *testing.T) {
	const segSize = 16 * 1024 * 1024

	tests := []struct {
		name      string
		wantTLI   TimelineID
		wantSegno uint64
		wantErr   bool
	}{
		{"000000020000000100000001", 2, 0x101, false},
		{"000000010000000000000001", 1, 1, false},
		{"not-a-wal-file-name-----", 0, 0, true},
		{"00000001000000000000000", 0, 0, true}, // 23 chars
	}

	for _, tt := range tests {
		tli, segno, err := ParseSegmentFileName(tt.name, segSize)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSegmentFileName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && (tli != tt.wantTLI || segno != tt.wantSegno) {
			t.Errorf("ParseSegmentFileName(%q) = (%d, %d), want (%d, %d)", tt.name, tli, segno, tt.wantTLI, tt.wantSegno)
		}
	}
}

func TestSegmentFileNameRoundTrip(t *testing.T) {
	const segSize = 16 * 1024 * 1024

	tests := []struct {
		tli   TimelineID
		segno uint64
	}{
		{1, 0},
		{1, 1},
		{3, 12345},
		{0xFF, 0x123456},
	}

	for _, tt := range tests {
		name := SegmentFileName(tt.tli, tt.segno, segSize)
		tli, segno, err := ParseSegmentFileName(name, segSize)
		if err != nil {
			t.Fatalf("ParseSegmentFileName(%q) unexpected error: %v", name, err)
		}
		if tli != tt.tli || segno != tt.segno {
			t.Errorf("round trip (%d, %d) -> %q -> (%d, %d)", tt.tli, tt.segno, name, tli, segno)
		}
	}
}

func TestIsXLogFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"000000010000000000000001", true},
		{"00000001000000000000000", false},  // too short
		{"0000000100000000000000011", false}, // too long
		{"00000001000000000000000g", false},  // non-hex
		{"pg_wal.conf", false},
	}

	for _, tt := range tests {
		if got := IsXLogFileName(tt.name); got != tt.want {
			t.Errorf("IsXLogFileName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
