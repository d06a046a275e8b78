package mpegts

import "testing"

func FuzzPacketAccessors(f *testing.F) {
	// Seed: valid payload-only packet.
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	pkt[1] = 0x40 // PUSI=1, PID=0
	pkt[3] = 0x10
	f.Add(pkt)

	// Seed: packet with adaptation field and PCR.
	af := make([]byte, PacketSize)
	af[0] = SyncByte
	af[1] = 0x01
	af[3] = 0x30
	af[4] = 0x07
	af[5] = 0x10
	f.Add(af)

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) != PacketSize {
			return
		}
		var p Packet
		copy(p[:], data)
		// None of these may panic, whatever the bytes say.
		p.Validate()
		p.PID()
		p.PayloadOffset()
		p.Payload()
		p.AdaptationFieldLength()
		if pcr, ok := p.PCR(); ok {
			p.SetPCR(pcr)
		}
	})
}

func FuzzParsePESHeader(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0xC0, 0x0A})
	f.Add([]byte{0x00, 0x00, 0x01, 0xBF, 0x00, 0x02})
	f.Fuzz(func(t *testing.T, data []byte) {
		ParsePESHeader(data) // must not panic
	})
}
