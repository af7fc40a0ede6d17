package waldump

import "fmt"

// XLOG rmgr sub-operation bits (xl_info, already masked to the high nibble).
const (
	xlogCheckpointShutdown  = 0x00
	xlogCheckpointOnline    = 0x10
	xlogNoop                = 0x20
	xlogNextOID             = 0x30
	xlogSwitch              = 0x40
	xlogBackupEnd           = 0x50
	xlogParameterChange     = 0x60
	xlogRestorePoint        = 0x70
	xlogFPWChange           = 0x80
	xlogEndOfRecovery       = 0x90
	xlogFPI                 = 0xA0
	xlogOverwriteContRecord = 0xB0
	xlogFPIForHint          = 0xC0
)

func xlogIdentify(info uint8) string {
	switch info {
	case xlogCheckpointShutdown:
		return "CHECKPOINT_SHUTDOWN"
	case xlogCheckpointOnline:
		return "CHECKPOINT_ONLINE"
	case xlogNoop:
		return "NOOP"
	case xlogNextOID:
		return "NEXTOID"
	case xlogSwitch:
		return "SWITCH"
	case xlogBackupEnd:
		return "BACKUP_END"
	case xlogParameterChange:
		return "PARAMETER_CHANGE"
	case xlogRestorePoint:
		return "RESTORE_POINT"
	case xlogFPWChange:
		return "FPW_CHANGE"
	case xlogEndOfRecovery:
		return "END_OF_RECOVERY"
	case xlogFPI:
		return "FPI"
	case xlogOverwriteContRecord:
		return "OVERWRITE_CONTRECORD"
	case xlogFPIForHint:
		return "FPI_FOR_HINT"
	default:
		return genericIdentify(info)
	}
}

// CheckPoint is pg_control's CheckPoint struct, as it appears verbatim as
// the main data of a CHECKPOINT_SHUTDOWN/CHECKPOINT_ONLINE record.
type CheckPoint struct {
	Redo               LSN
	ThisTimeLineID     TimelineID
	PrevTimeLineID     TimelineID
	FullPageWrites     bool
	NextXID            uint64 // epoch<<32 | xid
	NextOID            uint32
	NextMultiXactID    uint32
	NextMultiOffset    uint64
	OldestXID          uint32
	OldestXIDDB        uint32
	OldestMultiXID     uint32
	OldestMultiXIDDB   uint32
	OldestCommitTsXID  uint32
	NewestCommitTsXID  uint32
	OldestActiveXID    uint32
}

func decodeCheckPoint(data []byte) (*CheckPoint, error) {
	c := newCursor(data)
	redo, err := c.u64("redo")
	if err != nil {
		return nil, err
	}
	tli, err := c.u32("ThisTimeLineID")
	if err != nil {
		return nil, err
	}
	prevTli, err := c.u32("PrevTimeLineID")
	if err != nil {
		return nil, err
	}
	fpw, err := c.u8("fullPageWrites")
	if err != nil {
		return nil, err
	}
	if err := c.skip(3); err != nil { // struct padding
		return nil, err
	}
	nextXID, err := c.u64("nextXid")
	if err != nil {
		return nil, err
	}
	nextOID, err := c.u32("nextOid")
	if err != nil {
		return nil, err
	}
	nextMulti, err := c.u32("nextMulti")
	if err != nil {
		return nil, err
	}
	nextMultiOffset, err := c.u64("nextMultiOffset")
	if err != nil {
		return nil, err
	}
	oldestXID, err := c.u32("oldestXid")
	if err != nil {
		return nil, err
	}
	oldestXIDDB, err := c.u32("oldestXidDB")
	if err != nil {
		return nil, err
	}
	oldestMulti, err := c.u32("oldestMulti")
	if err != nil {
		return nil, err
	}
	oldestMultiDB, err := c.u32("oldestMultiDB")
	if err != nil {
		return nil, err
	}
	oldestCommitTs, err := c.u32("oldestCommitTsXid")
	if err != nil {
		return nil, err
	}
	newestCommitTs, err := c.u32("newestCommitTsXid")
	if err != nil {
		return nil, err
	}
	oldestActive, err := c.u32("oldestActiveXid")
	if err != nil {
		return nil, err
	}

	return &CheckPoint{
		Redo:              LSN(redo),
		ThisTimeLineID:    TimelineID(tli),
		PrevTimeLineID:    TimelineID(prevTli),
		FullPageWrites:    fpw != 0,
		NextXID:           nextXID,
		NextOID:           nextOID,
		NextMultiXactID:   nextMulti,
		NextMultiOffset:   nextMultiOffset,
		OldestXID:         oldestXID,
		OldestXIDDB:       oldestXIDDB,
		OldestMultiXID:    oldestMulti,
		OldestMultiXIDDB:  oldestMultiDB,
		OldestCommitTsXID: oldestCommitTs,
		NewestCommitTsXID: newestCommitTs,
		OldestActiveXID:   oldestActive,
	}, nil
}

// String renders a CheckPoint the way PostgreSQL's pg_waldump does:
// "redo hi/lo; tli N; prev tli N; fpw true/false; xid epoch:xid; oid N;
// multi N; offset N; oldest xid N in DB N; oldest multi N in DB N;
// oldest/newest commit timestamp xid N/N; oldest running xid N; "
func (cp *CheckPoint) String() string {
	epoch := uint32(cp.NextXID >> 32)
	xid := uint32(cp.NextXID)
	return fmt.Sprintf(
		"redo %s; tli %d; prev tli %d; fpw %v; xid %d:%d; oid %d; multi %d; offset %d; "+
			"oldest xid %d in DB %d; oldest multi %d in DB %d; "+
			"oldest/newest commit timestamp xid %d/%d; oldest running xid %d; ",
		cp.Redo, cp.ThisTimeLineID, cp.PrevTimeLineID, cp.FullPageWrites, epoch, xid,
		cp.NextOID, cp.NextMultiXactID, cp.NextMultiOffset,
		cp.OldestXID, cp.OldestXIDDB, cp.OldestMultiXID, cp.OldestMultiXIDDB,
		cp.OldestCommitTsXID, cp.NewestCommitTsXID, cp.OldestActiveXID,
	)
}

func xlogDescribe(rec *Record) string {
	switch rmgrInfo(rec.Info) {
	case xlogCheckpointShutdown, xlogCheckpointOnline:
		cp, err := decodeCheckPoint(rec.MainData)
		if err != nil {
			return fmt.Sprintf("malformed checkpoint: %v", err)
		}
		return cp.String()
	case xlogNextOID:
		if len(rec.MainData) < 4 {
			return "malformed NEXTOID record"
		}
		return fmt.Sprintf("nextOid %d", leU32(rec.MainData))
	case xlogRestorePoint:
		if len(rec.MainData) < 8 {
			return "malformed RESTORE_POINT record"
		}
		return fmt.Sprintf("restore point %q", trimNulString(rec.MainData[8:]))
	case xlogSwitch, xlogNoop, xlogFPWChange:
		return ""
	default:
		return genericDescribe(rec)
	}
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
