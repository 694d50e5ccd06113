package uapi

import "encoding/binary"

// ErrShortBuffer is returned by Unmarshal helpers when the input is
// smaller than the wire structure.
const ErrShortBuffer = StatusPayloadTooSmall

// MarshalCmdHeader encodes the 12-byte admin header.
func MarshalCmdHeader(h *CmdHeader) []byte {
	buf := make([]byte, CmdHeaderSize)

	binary.LittleEndian.PutUint16(buf[0:2], h.AbiMajor)
	binary.LittleEndian.PutUint16(buf[2:4], h.AbiMinor)
	binary.LittleEndian.PutUint16(buf[4:6], h.Opcode)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)

	return buf
}

// UnmarshalCmdHeader decodes the 12-byte admin header.
func UnmarshalCmdHeader(data []byte, h *CmdHeader) error {
	if len(data) < CmdHeaderSize {
		return ErrShortBuffer
	}

	h.AbiMajor = binary.LittleEndian.Uint16(data[0:2])
	h.AbiMinor = binary.LittleEndian.Uint16(data[2:4])
	h.Opcode = binary.LittleEndian.Uint16(data[4:6])
	h.Flags = binary.LittleEndian.Uint16(data[6:8])
	h.PayloadLen = binary.LittleEndian.Uint32(data[8:12])

	return nil
}

// MarshalIdentify encodes the 120-byte identify response.
func MarshalIdentify(id *Identify) []byte {
	buf := make([]byte, IdentifySize)

	copy(buf[0:40], id.Model[:])
	copy(buf[40:56], id.Firmware[:])
	binary.LittleEndian.PutUint32(buf[56:60], id.LogicalBlockSize)
	binary.LittleEndian.PutUint32(buf[60:64], id.PhysicalBlockSize)
	binary.LittleEndian.PutUint64(buf[64:72], id.CapacitySectors)
	binary.LittleEndian.PutUint64(buf[72:80], id.FeaturesBitmap)
	binary.LittleEndian.PutUint32(buf[80:84], id.QueueCount)
	binary.LittleEndian.PutUint32(buf[84:88], id.QueueDepth)
	binary.LittleEndian.PutUint32(buf[88:92], id.MaxSegments)
	binary.LittleEndian.PutUint32(buf[92:96], id.MaxSegmentSize)
	binary.LittleEndian.PutUint32(buf[96:100], id.DmaAlignment)
	binary.LittleEndian.PutUint32(buf[100:104], id.IoMin)
	binary.LittleEndian.PutUint32(buf[104:108], id.IoOpt)
	binary.LittleEndian.PutUint32(buf[108:112], id.DiscardGranularity)
	binary.LittleEndian.PutUint64(buf[112:120], id.DiscardMaxBytes)

	return buf
}

// UnmarshalIdentify decodes the identify response.
func UnmarshalIdentify(data []byte, id *Identify) error {
	if len(data) < IdentifySize {
		return ErrShortBuffer
	}

	copy(id.Model[:], data[0:40])
	copy(id.Firmware[:], data[40:56])
	id.LogicalBlockSize = binary.LittleEndian.Uint32(data[56:60])
	id.PhysicalBlockSize = binary.LittleEndian.Uint32(data[60:64])
	id.CapacitySectors = binary.LittleEndian.Uint64(data[64:72])
	id.FeaturesBitmap = binary.LittleEndian.Uint64(data[72:80])
	id.QueueCount = binary.LittleEndian.Uint32(data[80:84])
	id.QueueDepth = binary.LittleEndian.Uint32(data[84:88])
	id.MaxSegments = binary.LittleEndian.Uint32(data[88:92])
	id.MaxSegmentSize = binary.LittleEndian.Uint32(data[92:96])
	id.DmaAlignment = binary.LittleEndian.Uint32(data[96:100])
	id.IoMin = binary.LittleEndian.Uint32(data[100:104])
	id.IoOpt = binary.LittleEndian.Uint32(data[104:108])
	id.DiscardGranularity = binary.LittleEndian.Uint32(data[108:112])
	id.DiscardMaxBytes = binary.LittleEndian.Uint64(data[112:120])

	return nil
}

// MarshalLimits encodes the 48-byte limits response.
func MarshalLimits(l *Limits) []byte {
	buf := make([]byte, LimitsSize)

	binary.LittleEndian.PutUint32(buf[0:4], l.MaxHwSectorsKB)
	binary.LittleEndian.PutUint32(buf[4:8], l.MaxSectorsKB)
	binary.LittleEndian.PutUint32(buf[8:12], l.NrHwQueues)
	binary.LittleEndian.PutUint32(buf[12:16], l.QueueDepth)
	binary.LittleEndian.PutUint32(buf[16:20], l.MaxSegments)
	binary.LittleEndian.PutUint32(buf[20:24], l.MaxSegmentSize)
	binary.LittleEndian.PutUint32(buf[24:28], l.DmaAlignment)
	binary.LittleEndian.PutUint32(buf[28:32], l.IoMin)
	binary.LittleEndian.PutUint32(buf[32:36], l.IoOpt)
	binary.LittleEndian.PutUint32(buf[36:40], l.DiscardGranularity)
	binary.LittleEndian.PutUint64(buf[40:48], l.DiscardMaxBytes)

	return buf
}

// UnmarshalLimits decodes the limits response.
func UnmarshalLimits(data []byte, l *Limits) error {
	if len(data) < LimitsSize {
		return ErrShortBuffer
	}

	l.MaxHwSectorsKB = binary.LittleEndian.Uint32(data[0:4])
	l.MaxSectorsKB = binary.LittleEndian.Uint32(data[4:8])
	l.NrHwQueues = binary.LittleEndian.Uint32(data[8:12])
	l.QueueDepth = binary.LittleEndian.Uint32(data[12:16])
	l.MaxSegments = binary.LittleEndian.Uint32(data[16:20])
	l.MaxSegmentSize = binary.LittleEndian.Uint32(data[20:24])
	l.DmaAlignment = binary.LittleEndian.Uint32(data[24:28])
	l.IoMin = binary.LittleEndian.Uint32(data[28:32])
	l.IoOpt = binary.LittleEndian.Uint32(data[32:36])
	l.DiscardGranularity = binary.LittleEndian.Uint32(data[36:40])
	l.DiscardMaxBytes = binary.LittleEndian.Uint64(data[40:48])

	return nil
}

// MarshalGeometry encodes the 20-byte geometry response.
func MarshalGeometry(g *Geometry) []byte {
	buf := make([]byte, GeometrySize)

	binary.LittleEndian.PutUint64(buf[0:8], g.CapacitySectors)
	binary.LittleEndian.PutUint32(buf[8:12], g.LogicalBlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], g.PhysicalBlockSize)
	binary.LittleEndian.PutUint16(buf[16:18], g.Cylinders)
	buf[18] = g.Heads
	buf[19] = g.SectorsPerTrack

	return buf
}

// UnmarshalGeometry decodes the geometry response.
func UnmarshalGeometry(data []byte, g *Geometry) error {
	if len(data) < GeometrySize {
		return ErrShortBuffer
	}

	g.CapacitySectors = binary.LittleEndian.Uint64(data[0:8])
	g.LogicalBlockSize = binary.LittleEndian.Uint32(data[8:12])
	g.PhysicalBlockSize = binary.LittleEndian.Uint32(data[12:16])
	g.Cylinders = binary.LittleEndian.Uint16(data[16:18])
	g.Heads = data[18]
	g.SectorsPerTrack = data[19]

	return nil
}

// MarshalStats encodes the 104-byte stats response.
func MarshalStats(s *Stats) []byte {
	buf := make([]byte, StatsSize)

	binary.LittleEndian.PutUint64(buf[0:8], s.ReadOps)
	binary.LittleEndian.PutUint64(buf[8:16], s.WriteOps)
	binary.LittleEndian.PutUint64(buf[16:24], s.FlushOps)
	binary.LittleEndian.PutUint64(buf[24:32], s.DiscardOps)
	binary.LittleEndian.PutUint64(buf[32:40], s.ReadSectors)
	binary.LittleEndian.PutUint64(buf[40:48], s.WriteSectors)
	binary.LittleEndian.PutUint64(buf[48:56], s.ReadBytes)
	binary.LittleEndian.PutUint64(buf[56:64], s.WriteBytes)
	binary.LittleEndian.PutUint64(buf[64:72], s.QueueFullEvents)
	binary.LittleEndian.PutUint64(buf[72:80], s.MediaErrors)
	binary.LittleEndian.PutUint64(buf[80:88], s.Retries)
	binary.LittleEndian.PutUint32(buf[88:92], s.P50ReadLatUs)
	binary.LittleEndian.PutUint32(buf[92:96], s.P99ReadLatUs)
	binary.LittleEndian.PutUint32(buf[96:100], s.P50WriteLatUs)
	binary.LittleEndian.PutUint32(buf[100:104], s.P99WriteLatUs)

	return buf
}

// UnmarshalStats decodes the stats response.
func UnmarshalStats(data []byte, s *Stats) error {
	if len(data) < StatsSize {
		return ErrShortBuffer
	}

	s.ReadOps = binary.LittleEndian.Uint64(data[0:8])
	s.WriteOps = binary.LittleEndian.Uint64(data[8:16])
	s.FlushOps = binary.LittleEndian.Uint64(data[16:24])
	s.DiscardOps = binary.LittleEndian.Uint64(data[24:32])
	s.ReadSectors = binary.LittleEndian.Uint64(data[32:40])
	s.WriteSectors = binary.LittleEndian.Uint64(data[40:48])
	s.ReadBytes = binary.LittleEndian.Uint64(data[48:56])
	s.WriteBytes = binary.LittleEndian.Uint64(data[56:64])
	s.QueueFullEvents = binary.LittleEndian.Uint64(data[64:72])
	s.MediaErrors = binary.LittleEndian.Uint64(data[72:80])
	s.Retries = binary.LittleEndian.Uint64(data[80:88])
	s.P50ReadLatUs = binary.LittleEndian.Uint32(data[88:92])
	s.P99ReadLatUs = binary.LittleEndian.Uint32(data[92:96])
	s.P50WriteLatUs = binary.LittleEndian.Uint32(data[96:100])
	s.P99WriteLatUs = binary.LittleEndian.Uint32(data[100:104])

	return nil
}
