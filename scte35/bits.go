package scte35

// bitReader reads bits MSB-first. Reads past the end return zeros and
// set the truncated flag, checked once after parsing a structure.
type bitReader struct {
	data      []byte
	pos       int
	truncated bool
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) bit() bool {
	if r.pos >= len(r.data)*8 {
		r.truncated = true
		return false
	}
	b := r.data[r.pos/8]>>(7-r.pos%8)&1 == 1
	r.pos++
	return b
}

func (r *bitReader) uint64(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if r.bit() {
			v |= 1
		}
	}
	return v
}

func (r *bitReader) uint32(n int) uint32 { return uint32(r.uint64(n)) }
func (r *bitReader) uint16(n int) uint16 { return uint16(r.uint64(n)) }
func (r *bitReader) uint8(n int) uint8   { return uint8(r.uint64(n)) }

func (r *bitReader) skip(n int) {
	r.pos += n
	if r.pos > len(r.data)*8 {
		r.truncated = true
	}
}

func (r *bitReader) bytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = r.uint8(8)
	}
	return out
}
