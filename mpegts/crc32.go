package mpegts

// CRC-32/MPEG-2: polynomial 0x04C11DB7, initial value 0xFFFFFFFF, no final
// XOR, not reflected. All PSI section codecs use it.
var crc32Table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crc32Table[i] = crc
	}
}

// CRC32 computes the CRC-32/MPEG-2 checksum of data.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}

// CRC32Valid reports whether data, whose last four bytes hold the big-endian
// CRC-32/MPEG-2 of the preceding bytes, checks out. The residue of the CRC
// over data including its stored checksum is zero.
func CRC32Valid(data []byte) bool {
	return len(data) >= 4 && CRC32(data) == 0
}
