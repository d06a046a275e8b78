package psi

import "github.com/zsiec/tspipe/mpegts"

// Packetizer turns the sections of one table into a cyclic stream of
// transport packets on a fixed PID. Each section starts at the top of a
// fresh packet (payload_unit_start with a zero pointer_field) and the last
// packet of a section is stuffed with 0xFF; after the last section the
// first one repeats. Callers supply the continuity counter per packet,
// typically copied from the packet being replaced so the PID's counter
// sequence stays coherent.
type Packetizer struct {
	pid      uint16
	sections [][]byte
	secIdx   int
	off      int
}

// NewPacketizer returns a packetizer for the given PID with no table bound.
func NewPacketizer(pid uint16) *Packetizer {
	return &Packetizer{pid: pid}
}

// SetTable replaces the cyclic content with the sections of t, restarting
// at the first section. Section bytes are copied. A nil table clears the
// packetizer.
func (pz *Packetizer) SetTable(t *Table) {
	pz.sections = pz.sections[:0]
	pz.secIdx, pz.off = 0, 0
	if t == nil {
		return
	}
	for i := 0; i < t.SectionCount(); i++ {
		if sec := t.SectionAt(i); sec != nil {
			b := make([]byte, sec.Size())
			copy(b, sec.Bytes())
			pz.sections = append(pz.sections, b)
		}
	}
}

// Ready reports whether a table is bound.
func (pz *Packetizer) Ready() bool { return len(pz.sections) > 0 }

// NextPacket overwrites pkt with the next packet of the cyclic section
// stream, using the given continuity counter. It reports false, leaving
// pkt untouched, when no table is bound.
func (pz *Packetizer) NextPacket(pkt *mpegts.Packet, cc uint8) bool {
	if !pz.Ready() {
		return false
	}

	for i := range pkt {
		pkt[i] = 0xFF
	}
	pkt[0] = mpegts.SyncByte
	pkt[1] = 0
	pkt[3] = 0x10 // payload only
	pkt.SetPID(pz.pid)
	pkt.SetContinuityCounter(cc)

	sec := pz.sections[pz.secIdx]
	payload := pkt[4:]
	pos := 0
	if pz.off == 0 {
		pkt.SetPayloadUnitStart(true)
		payload[0] = 0 // pointer_field: section starts immediately
		pos = 1
	}

	n := copy(payload[pos:], sec[pz.off:])
	pz.off += n
	if pz.off >= len(sec) {
		// Remaining payload bytes already hold 0xFF stuffing.
		pz.secIdx = (pz.secIdx + 1) % len(pz.sections)
		pz.off = 0
	}
	return true
}
