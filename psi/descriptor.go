package psi

import "encoding/binary"

// Descriptor tags from ETSI EN 300 468 used across PSI tables.
const (
	DescTagTeletext    uint8 = 0x56
	DescTagSubtitling  uint8 = 0x59
	DescTagAC3         uint8 = 0x6A
	DescTagEnhancedAC3 uint8 = 0x7A
	DescTagDTS         uint8 = 0x7B
	DescTagAAC         uint8 = 0x7C
)

// Descriptor is one TLV element of a descriptor loop. Data excludes the tag
// and length bytes.
type Descriptor struct {
	Tag  uint8
	Data []byte
}

// Size returns the serialized size including the tag and length bytes.
func (d Descriptor) Size() int { return 2 + len(d.Data) }

// DescriptorList is an ordered descriptor loop. Serialization preserves
// insertion order. The zero value is an empty list ready for use.
type DescriptorList struct {
	items []Descriptor
}

// Count returns the number of descriptors.
func (dl *DescriptorList) Count() int { return len(dl.items) }

// At returns the descriptor at index i.
func (dl *DescriptorList) At(i int) Descriptor { return dl.items[i] }

// Append adds one descriptor built from tag and payload. The payload is
// copied and silently truncated to the 255-byte descriptor limit.
func (dl *DescriptorList) Append(tag uint8, data []byte) {
	if len(data) > 0xFF {
		data = data[:0xFF]
	}
	d := Descriptor{Tag: tag, Data: make([]byte, len(data))}
	copy(d.Data, data)
	dl.items = append(dl.items, d)
}

// Add parses consecutive TLV-encoded descriptors from b, appending each to
// the list. A malformed or truncated trailing descriptor is discarded.
func (dl *DescriptorList) Add(b []byte) {
	for len(b) >= 2 {
		n := int(b[1])
		if 2+n > len(b) {
			return
		}
		dl.Append(b[0], b[2:2+n])
		b = b[2+n:]
	}
}

// Search returns the index of the first descriptor with the given tag at or
// after start, or Count() when there is none.
func (dl *DescriptorList) Search(tag uint8, start int) int {
	for i := start; i < len(dl.items); i++ {
		if dl.items[i].Tag == tag {
			return i
		}
	}
	return len(dl.items)
}

// Contains reports whether any descriptor carries the given tag.
func (dl *DescriptorList) Contains(tag uint8) bool {
	return dl.Search(tag, 0) < len(dl.items)
}

// BinarySize returns the serialized size of the whole loop, without a
// length prefix.
func (dl *DescriptorList) BinarySize() int {
	n := 0
	for _, d := range dl.items {
		n += d.Size()
	}
	return n
}

// LengthSerialize writes a 12-bit length prefix (top four bits set to 1)
// followed by as many whole descriptors as fit into buf, starting at list
// index start. It returns the bytes written, prefix included, and the index
// of the first descriptor that did not fit, equal to Count() when all fit.
// A buf shorter than the 2-byte prefix writes nothing.
func (dl *DescriptorList) LengthSerialize(buf []byte, start int) (written, next int) {
	if len(buf) < 2 {
		return 0, start
	}
	length := 0
	next = start
	for next < len(dl.items) {
		d := dl.items[next]
		if 2+length+d.Size() > len(buf) || length+d.Size() > 0x0FFF {
			break
		}
		buf[2+length] = d.Tag
		buf[3+length] = byte(len(d.Data))
		copy(buf[4+length:], d.Data)
		length += d.Size()
		next++
	}
	binary.BigEndian.PutUint16(buf, 0xF000|uint16(length))
	return 2 + length, next
}
