package mpegts

// Clock rates per ISO/IEC 13818-1: PTS/DTS tick at 90 kHz, PCR at 27 MHz.
const (
	ClockRate90kHz = 90_000
	ClockRate27MHz = 27_000_000

	// TimestampWrap is the modulus of the 33-bit PTS/DTS counter.
	TimestampWrap = int64(1) << 33
)

// ReadTimestamp extracts a 33-bit PTS or DTS from the 5-byte encoded form
// used in PES headers. It reports false when b is too short.
func ReadTimestamp(b []byte) (int64, bool) {
	if len(b) < 5 {
		return 0, false
	}
	v := int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1&0x7F)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1&0x7F)
	return v, true
}

// WriteTimestamp stores a 33-bit PTS or DTS into the 5-byte encoded form.
// prefix is the 4-bit marker: 0x2 for a lone PTS, 0x3 for the PTS of a
// PTS/DTS pair, 0x1 for the DTS. It reports false when b is too short.
func WriteTimestamp(b []byte, prefix byte, v int64) bool {
	if len(b) < 5 {
		return false
	}
	v &= TimestampWrap - 1
	b[0] = prefix<<4 | byte(v>>29)&0x0E | 0x01
	b[1] = byte(v >> 22)
	b[2] = byte(v>>14)&0xFE | 0x01
	b[3] = byte(v >> 7)
	b[4] = byte(v<<1) | 0x01
	return true
}

// PESHeaderInfo describes the timestamps found at the start of a PES packet.
// Offsets are relative to the start of the PES data (the 0x000001 prefix).
type PESHeaderInfo struct {
	StreamID  uint8
	PTS       int64
	DTS       int64
	HasPTS    bool
	HasDTS    bool
	PTSOffset int
	DTSOffset int
	// DataOffset is where the elementary stream payload begins.
	DataOffset int
}

// ParsePESHeader reads the fixed and optional PES headers from b, which must
// begin with the 0x000001 start code prefix. Stream IDs without an optional
// header (padding, private_stream_2, ECM, EMM, DSMCC, H.222.1 E, directory)
// yield DataOffset 6 and no timestamps.
func ParsePESHeader(b []byte) (PESHeaderInfo, bool) {
	if len(b) < 6 || b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		return PESHeaderInfo{}, false
	}
	info := PESHeaderInfo{StreamID: b[3], DataOffset: 6}

	switch info.StreamID {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return info, true
	}
	if len(b) < 9 {
		return PESHeaderInfo{}, false
	}

	flags := b[7] >> 6
	info.DataOffset = 9 + int(b[8])

	switch flags {
	case 2:
		if pts, ok := ReadTimestamp(b[9:]); ok {
			info.PTS, info.HasPTS, info.PTSOffset = pts, true, 9
		}
	case 3:
		if pts, ok := ReadTimestamp(b[9:]); ok {
			info.PTS, info.HasPTS, info.PTSOffset = pts, true, 9
		}
		if len(b) >= 19 {
			if dts, ok := ReadTimestamp(b[14:]); ok {
				info.DTS, info.HasDTS, info.DTSOffset = dts, true, 14
			}
		}
	}
	return info, true
}
