package psi

import "github.com/zsiec/tspipe/mpegts"

// Assembler reconstructs complete sections from the transport packets of a
// single PID. It tracks continuity counters, follows pointer_field
// boundaries, and handles sections spanning multiple packets as well as
// several back-to-back sections inside one packet. Sections failing their
// CRC check are silently discarded.
type Assembler struct {
	pid     uint16
	buf     []byte
	lastCC  uint8
	hasCC   bool
	started bool
}

// NewAssembler returns an assembler for the given PID.
func NewAssembler(pid uint16) *Assembler {
	return &Assembler{pid: pid}
}

// PID returns the PID this assembler follows.
func (a *Assembler) PID() uint16 { return a.pid }

// Push feeds one packet and returns the sections it completed, usually nil
// or one. Packets of other PIDs, without payload, or flagged with transport
// errors are ignored; duplicate packets (repeated continuity counter) are
// dropped; an unsignalled continuity jump discards the partial section.
func (a *Assembler) Push(pkt *mpegts.Packet) []*Section {
	if pkt.PID() != a.pid || !pkt.HasPayload() {
		return nil
	}
	if pkt.TransportError() {
		a.reset()
		return nil
	}

	cc := pkt.ContinuityCounter()
	discontinuity := a.hasCC && cc != (a.lastCC+1)&0x0F
	if a.hasCC && cc == a.lastCC {
		return nil // duplicate packet
	}
	a.lastCC, a.hasCC = cc, true

	payload := pkt.Payload()

	if pkt.PayloadUnitStart() {
		if len(payload) < 1 {
			a.reset()
			return nil
		}
		ptr := int(payload[0])
		if 1+ptr > len(payload) {
			a.reset()
			return nil
		}

		var out []*Section
		if a.started && !discontinuity && ptr > 0 {
			// Bytes before the pointer close the pending section.
			a.buf = append(a.buf, payload[1:1+ptr]...)
			out = a.extract(out)
		}
		a.buf = append(a.buf[:0], payload[1+ptr:]...)
		a.started = true
		return a.extract(out)
	}

	if !a.started || discontinuity {
		a.reset()
		return nil
	}
	a.buf = append(a.buf, payload...)
	return a.extract(nil)
}

// extract pops every complete section off the front of the buffer.
func (a *Assembler) extract(out []*Section) []*Section {
	for len(a.buf) > 0 {
		if a.buf[0] == 0xFF {
			// Stuffing runs to the end of the packet payload.
			a.buf = a.buf[:0]
			return out
		}
		if len(a.buf) < ShortHeaderSize {
			return out
		}
		total := ShortHeaderSize + (int(a.buf[1]&0x0F)<<8 | int(a.buf[2]))
		if total > MaxSectionSize {
			a.reset()
			return out
		}
		if len(a.buf) < total {
			return out
		}
		if sec, err := ParseSection(a.buf[:total]); err == nil {
			out = append(out, sec)
		}
		a.buf = append(a.buf[:0], a.buf[total:]...)
	}
	return out
}

func (a *Assembler) reset() {
	a.buf = a.buf[:0]
	a.started = false
}
