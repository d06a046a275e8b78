package mpegts

import (
	"errors"
	"fmt"
)

const (
	// PacketSize is the fixed size of a transport stream packet.
	PacketSize = 188
	// SyncByte is the first byte of every valid packet.
	SyncByte = 0x47
)

// Well-known PIDs per ISO/IEC 13818-1 and ETSI EN 300 468.
const (
	PIDPAT  uint16 = 0x0000
	PIDCAT  uint16 = 0x0001
	PIDNull uint16 = 0x1FFF

	// PIDMax is the size of the 13-bit PID space.
	PIDMax = 0x2000
)

// ErrBadSync reports a packet that does not start with [SyncByte].
var ErrBadSync = errors.New("mpegts: invalid sync byte")

// Packet is one 188-byte transport stream packet.
type Packet [PacketSize]byte

// Null is the DVB null packet: PID 0x1FFF, payload only, stuffed with 0xFF.
var Null = nullPacket()

func nullPacket() Packet {
	var p Packet
	p[0] = SyncByte
	p[1] = 0x1F
	p[2] = 0xFF
	p[3] = 0x10
	for i := 4; i < PacketSize; i++ {
		p[i] = 0xFF
	}
	return p
}

// SyncValid reports whether the packet starts with the 0x47 sync byte.
func (p *Packet) SyncValid() bool {
	return p[0] == SyncByte
}

// TransportError reports the transport_error_indicator bit.
func (p *Packet) TransportError() bool {
	return p[1]&0x80 != 0
}

// PayloadUnitStart reports the payload_unit_start_indicator bit.
func (p *Packet) PayloadUnitStart() bool {
	return p[1]&0x40 != 0
}

// SetPayloadUnitStart sets or clears the payload_unit_start_indicator bit.
func (p *Packet) SetPayloadUnitStart(on bool) {
	if on {
		p[1] |= 0x40
	} else {
		p[1] &^= 0x40
	}
}

// PID returns the 13-bit packet identifier.
func (p *Packet) PID() uint16 {
	return uint16(p[1]&0x1F)<<8 | uint16(p[2])
}

// SetPID overwrites the 13-bit packet identifier in place.
func (p *Packet) SetPID(pid uint16) {
	p[1] = p[1]&0xE0 | byte(pid>>8)&0x1F
	p[2] = byte(pid)
}

// IsNull reports whether the packet carries the null PID 0x1FFF.
func (p *Packet) IsNull() bool {
	return p.PID() == PIDNull
}

// ContinuityCounter returns the 4-bit continuity counter.
func (p *Packet) ContinuityCounter() uint8 {
	return p[3] & 0x0F
}

// SetContinuityCounter overwrites the 4-bit continuity counter.
func (p *Packet) SetContinuityCounter(cc uint8) {
	p[3] = p[3]&0xF0 | cc&0x0F
}

// HasAdaptationField reports the adaptation_field_control high bit.
func (p *Packet) HasAdaptationField() bool {
	return p[3]&0x20 != 0
}

// HasPayload reports the adaptation_field_control low bit.
func (p *Packet) HasPayload() bool {
	return p[3]&0x10 != 0
}

// AdaptationFieldLength returns the adaptation field length byte, or 0
// when the packet has no adaptation field.
func (p *Packet) AdaptationFieldLength() int {
	if !p.HasAdaptationField() {
		return 0
	}
	return int(p[4])
}

// PayloadOffset returns the byte offset of the payload, clamped to
// PacketSize. It returns PacketSize when the packet has no payload.
func (p *Packet) PayloadOffset() int {
	if !p.HasPayload() {
		return PacketSize
	}
	off := 4
	if p.HasAdaptationField() {
		off += 1 + int(p[4])
	}
	if off > PacketSize {
		off = PacketSize
	}
	return off
}

// Payload returns the payload bytes. The slice aliases the packet and is
// empty when there is no payload.
func (p *Packet) Payload() []byte {
	return p[p.PayloadOffset():]
}

// Validate checks the sync byte and that a declared adaptation field fits
// inside the packet.
func (p *Packet) Validate() error {
	if !p.SyncValid() {
		return fmt.Errorf("%w 0x%02X", ErrBadSync, p[0])
	}
	if p.HasAdaptationField() && p.HasPayload() && 4+1+int(p[4]) > PacketSize {
		return fmt.Errorf("mpegts: adaptation field length %d overruns packet", p[4])
	}
	return nil
}

// HasPCR reports whether the adaptation field carries a program clock
// reference.
func (p *Packet) HasPCR() bool {
	return p.HasAdaptationField() && p[4] >= 7 && p[5]&0x10 != 0
}

// PCR returns the program clock reference in 27 MHz units
// (base*300 + extension) and whether one is present.
func (p *Packet) PCR() (int64, bool) {
	if !p.HasPCR() {
		return 0, false
	}
	base := int64(p[6])<<25 | int64(p[7])<<17 | int64(p[8])<<9 | int64(p[9])<<1 | int64(p[10])>>7
	ext := int64(p[10]&0x01)<<8 | int64(p[11])
	return base*300 + ext, true
}

// SetPCR rewrites the program clock reference in place. It reports false
// when the packet carries no PCR field to rewrite. pcr is in 27 MHz units.
func (p *Packet) SetPCR(pcr int64) bool {
	if !p.HasPCR() {
		return false
	}
	base := pcr / 300
	ext := pcr % 300
	p[6] = byte(base >> 25)
	p[7] = byte(base >> 17)
	p[8] = byte(base >> 9)
	p[9] = byte(base >> 1)
	p[10] = byte(base<<7) | 0x7E | byte(ext>>8)&0x01
	p[11] = byte(ext)
	return true
}
