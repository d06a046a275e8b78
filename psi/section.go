package psi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
)

// Section size limits per ISO/IEC 13818-1.
const (
	// MaxSectionSize caps private and long sections alike.
	MaxSectionSize = 1024

	ShortHeaderSize = 3
	LongHeaderSize  = 8
	CRCSize         = 4

	// MaxLongPayload is the payload capacity of a long section: the total
	// size minus the long header and the trailing CRC.
	MaxLongPayload = MaxSectionSize - LongHeaderSize - CRCSize
	// MaxShortPayload is the payload capacity of a short section.
	MaxShortPayload = MaxSectionSize - ShortHeaderSize
)

var (
	ErrShortSection = errors.New("psi: section too short")
	ErrBadCRC       = errors.New("psi: CRC32 mismatch")
	ErrOverflow     = errors.New("psi: section payload overflow")
	ErrTableID      = errors.New("psi: unexpected table id")
)

// Section is one complete PSI section held in wire form. Long sections
// (section_syntax_indicator set) carry the 5 extra header bytes and a
// trailing CRC-32/MPEG-2; short sections are header plus raw payload.
type Section struct {
	data []byte
}

// ParseSection validates data as one complete section and copies it. The
// declared section_length must be covered by data; surplus bytes are
// ignored. Long sections have their CRC verified.
func ParseSection(data []byte) (*Section, error) {
	if len(data) < ShortHeaderSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrShortSection, len(data))
	}
	total := ShortHeaderSize + (int(data[1]&0x0F)<<8 | int(data[2]))
	if total > MaxSectionSize {
		return nil, fmt.Errorf("%w: declared size %d", ErrOverflow, total)
	}
	if len(data) < total {
		return nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrShortSection, total, len(data))
	}
	data = data[:total]

	if data[1]&0x80 != 0 {
		if total < LongHeaderSize+CRCSize {
			return nil, fmt.Errorf("%w: long section of %d bytes", ErrShortSection, total)
		}
		if !mpegts.CRC32Valid(data) {
			return nil, ErrBadCRC
		}
	}

	s := &Section{data: make([]byte, total)}
	copy(s.data, data)
	return s, nil
}

// NewLongSection assembles a long section from its parts and computes the
// CRC. It fails when payload exceeds [MaxLongPayload].
func NewLongSection(tid uint8, private bool, tidExt uint16, version uint8,
	current bool, secNum, lastNum uint8, payload []byte) (*Section, error) {

	if len(payload) > MaxLongPayload {
		return nil, fmt.Errorf("%w: payload %d > %d", ErrOverflow, len(payload), MaxLongPayload)
	}
	total := LongHeaderSize + len(payload) + CRCSize
	b := make([]byte, total)
	b[0] = tid
	sl := total - ShortHeaderSize
	b[1] = 0xB0 | byte(sl>>8)&0x0F // syntax=1, reserved bits set
	if private {
		b[1] |= 0x40
	}
	b[2] = byte(sl)
	binary.BigEndian.PutUint16(b[3:], tidExt)
	b[5] = 0xC0 | version<<1&0x3E
	if current {
		b[5] |= 0x01
	}
	b[6] = secNum
	b[7] = lastNum
	copy(b[LongHeaderSize:], payload)
	binary.BigEndian.PutUint32(b[total-CRCSize:], mpegts.CRC32(b[:total-CRCSize]))
	return &Section{data: b}, nil
}

// Bytes returns the section's wire form. The slice aliases the section.
func (s *Section) Bytes() []byte { return s.data }

// Size returns the total wire size in bytes.
func (s *Section) Size() int { return len(s.data) }

// TableID returns the table_id byte.
func (s *Section) TableID() uint8 { return s.data[0] }

// IsLong reports the section_syntax_indicator bit.
func (s *Section) IsLong() bool { return s.data[1]&0x80 != 0 }

// SectionLength returns the 12-bit section_length field: the byte count
// following the first three bytes, CRC included for long sections.
func (s *Section) SectionLength() int {
	return int(s.data[1]&0x0F)<<8 | int(s.data[2])
}

// TableIDExtension returns table_id_extension, or 0 for short sections.
func (s *Section) TableIDExtension() uint16 {
	if !s.IsLong() {
		return 0
	}
	return binary.BigEndian.Uint16(s.data[3:])
}

// Version returns the 5-bit version_number, or 0 for short sections.
func (s *Section) Version() uint8 {
	if !s.IsLong() {
		return 0
	}
	return s.data[5] >> 1 & 0x1F
}

// IsCurrent reports the current_next_indicator bit; short sections are
// always current.
func (s *Section) IsCurrent() bool {
	return !s.IsLong() || s.data[5]&0x01 != 0
}

// SectionNumber returns section_number, or 0 for short sections.
func (s *Section) SectionNumber() uint8 {
	if !s.IsLong() {
		return 0
	}
	return s.data[6]
}

// LastSectionNumber returns last_section_number, or 0 for short sections.
func (s *Section) LastSectionNumber() uint8 {
	if !s.IsLong() {
		return 0
	}
	return s.data[7]
}

// Payload returns the section payload: after the long header and before the
// CRC for long sections, everything after the short header otherwise. The
// slice aliases the section.
func (s *Section) Payload() []byte {
	if s.IsLong() {
		return s.data[LongHeaderSize : len(s.data)-CRCSize]
	}
	return s.data[ShortHeaderSize:]
}

// CRC returns the stored CRC-32 of a long section, 0 otherwise.
func (s *Section) CRC() uint32 {
	if !s.IsLong() {
		return 0
	}
	return binary.BigEndian.Uint32(s.data[len(s.data)-CRCSize:])
}
