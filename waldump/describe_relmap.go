package waldump

import "fmt"

// RelMapMagic is the magic number at the start of a pg_filenode.map file,
// and of the embedded map payload carried by an XLOG_RELMAP record.
const RelMapMagic = 0x592717

// RelMapMaxMappings bounds the number of (oid, filenode) pairs a map file
// holds.
const RelMapMaxMappings = 62

// RelMapping is one catalog OID to filenode mapping.
type RelMapping struct {
	OID      uint32
	Filenode uint32
}

// RelMapPayload is the body of an XLOG_RELMAP record: PostgreSQL's
// xl_relmap_update header (target database and tablespace, and the size of
// the embedded map) followed by the pg_filenode.map bytes it replaces.
type RelMapPayload struct {
	DbOID    uint32
	SpcOID   uint32
	NumBytes uint32
	Magic    uint32
	Mappings []RelMapping
	CRC      uint32
}

// decodeRelMapPayload parses an RM_RELMAP_ID record's main data: the
// xl_relmap_update prefix (dbid, tsid, nbytes) followed by nbytes of
// pg_filenode.map content (magic, mapping count, up to 62 mappings, CRC).
// This is the same on-disk map-file layout the teacher's ParseRelMapFile
// reads from a standalone file, here read out of a record's payload
// instead.
func decodeRelMapPayload(data []byte) (*RelMapPayload, error) {
	c := newCursor(data)

	dbid, err := c.u32("dbid")
	if err != nil {
		return nil, err
	}
	tsid, err := c.u32("tsid")
	if err != nil {
		return nil, err
	}
	nbytes, err := c.u32("nbytes")
	if err != nil {
		return nil, err
	}

	mapBytes, err := c.bytes(int(nbytes), "relmap data")
	if err != nil {
		return nil, err
	}

	p := &RelMapPayload{DbOID: dbid, SpcOID: tsid, NumBytes: nbytes}

	mc := newCursor(mapBytes)
	magic, err := mc.u32("magic")
	if err != nil {
		return p, err
	}
	p.Magic = magic
	if magic != RelMapMagic {
		return p, &RecordError{Reason: fmt.Sprintf("relmap magic 0x%X, want 0x%X", magic, RelMapMagic)}
	}

	numMappings, err := mc.u32("num_mappings")
	if err != nil {
		return p, err
	}
	if numMappings > RelMapMaxMappings {
		return p, &RecordError{Reason: fmt.Sprintf("relmap mapping count %d exceeds maximum %d", numMappings, RelMapMaxMappings)}
	}

	for i := uint32(0); i < numMappings; i++ {
		oid, err := mc.u32("mapping oid")
		if err != nil {
			return p, err
		}
		filenode, err := mc.u32("mapping filenode")
		if err != nil {
			return p, err
		}
		p.Mappings = append(p.Mappings, RelMapping{OID: oid, Filenode: filenode})
	}

	// The map file reserves space for RelMapMaxMappings entries regardless
	// of how many are populated; skip to the fixed CRC offset rather than
	// assuming numMappings consumed the whole body.
	crcOffset := 4 + 4 + RelMapMaxMappings*8
	if crcOffset+4 <= len(mapBytes) {
		p.CRC = leU32(mapBytes[crcOffset : crcOffset+4])
	}

	return p, nil
}

func relmapDescribe(rec *Record) string {
	p, err := decodeRelMapPayload(rec.MainData)
	if err != nil {
		return fmt.Sprintf("malformed relmap update: %v", err)
	}
	return fmt.Sprintf("updated relmap for database %d, tablespace %d: %d entries", p.DbOID, p.SpcOID, len(p.Mappings))
}
