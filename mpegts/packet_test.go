package mpegts

import "testing"

func TestNullPacket(t *testing.T) {
	t.Parallel()
	p := Null
	if !p.SyncValid() {
		t.Error("null packet sync byte invalid")
	}
	if !p.IsNull() {
		t.Errorf("null packet PID = 0x%04X, want 0x1FFF", p.PID())
	}
	if !p.HasPayload() || p.HasAdaptationField() {
		t.Error("null packet should be payload-only")
	}
	for i := 4; i < PacketSize; i++ {
		if p[i] != 0xFF {
			t.Fatalf("null packet byte %d = 0x%02X, want 0xFF", i, p[i])
		}
	}
}

func TestPacketPIDRoundTrip(t *testing.T) {
	t.Parallel()
	p := Null
	for _, pid := range []uint16{0, 1, 0x0100, 0x1234, 0x1FFF} {
		p.SetPID(pid)
		if got := p.PID(); got != pid {
			t.Errorf("PID round trip: got 0x%04X, want 0x%04X", got, pid)
		}
	}
	// SetPID must not clobber the PUSI bit.
	p.SetPayloadUnitStart(true)
	p.SetPID(0x0042)
	if !p.PayloadUnitStart() {
		t.Error("SetPID cleared payload_unit_start_indicator")
	}
}

func TestPacketContinuityCounter(t *testing.T) {
	t.Parallel()
	p := Null
	for cc := uint8(0); cc < 16; cc++ {
		p.SetContinuityCounter(cc)
		if got := p.ContinuityCounter(); got != cc {
			t.Errorf("cc round trip: got %d, want %d", got, cc)
		}
		if !p.HasPayload() {
			t.Error("SetContinuityCounter clobbered adaptation_field_control")
		}
	}
}

func TestPacketPayloadOffset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		ctrl  byte
		afLen byte
		want  int
	}{
		{"payload only", 0x10, 0, 4},
		{"adaptation plus payload", 0x30, 7, 12},
		{"adaptation only", 0x20, 183, PacketSize},
		{"zero-length adaptation", 0x30, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Packet
			p[0] = SyncByte
			p[3] = tt.ctrl
			p[4] = tt.afLen
			if got := p.PayloadOffset(); got != tt.want {
				t.Errorf("payload offset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPacketValidate(t *testing.T) {
	t.Parallel()
	p := Null
	if err := p.Validate(); err != nil {
		t.Errorf("null packet should validate: %v", err)
	}

	bad := Null
	bad[0] = 0x00
	if err := bad.Validate(); err == nil {
		t.Error("expected sync byte error")
	}

	var overrun Packet
	overrun[0] = SyncByte
	overrun[3] = 0x30
	overrun[4] = 184 // 4+1+184 > 188
	if err := overrun.Validate(); err == nil {
		t.Error("expected adaptation field overrun error")
	}
}

func TestPacketPCRRoundTrip(t *testing.T) {
	t.Parallel()
	var p Packet
	p[0] = SyncByte
	p[3] = 0x30 // adaptation + payload
	p[4] = 7    // adaptation field length
	p[5] = 0x10 // PCR flag

	if _, ok := Null.PCR(); ok {
		t.Error("null packet should not report a PCR")
	}
	if !p.HasPCR() {
		t.Fatal("packet should report a PCR field")
	}

	const oneSecond = int64(ClockRate27MHz)
	if !p.SetPCR(oneSecond) {
		t.Fatal("SetPCR failed")
	}
	got, ok := p.PCR()
	if !ok || got != oneSecond {
		t.Errorf("PCR round trip: got %d (ok=%v), want %d", got, ok, oneSecond)
	}

	// Pin the wire layout: base=90000, extension=0.
	want := [6]byte{0x00, 0x00, 0xAF, 0xC8, 0x7E, 0x00}
	for i, b := range want {
		if p[6+i] != b {
			t.Fatalf("PCR byte %d = 0x%02X, want 0x%02X", i, p[6+i], b)
		}
	}

	const withExt = int64(90000*300 + 137)
	p.SetPCR(withExt)
	if got, _ := p.PCR(); got != withExt {
		t.Errorf("PCR with extension: got %d, want %d", got, withExt)
	}
}

func TestStreamTypeClassification(t *testing.T) {
	t.Parallel()
	for _, st := range []uint8{StreamTypeMPEG2Video, StreamTypeH264, StreamTypeH265} {
		if !IsVideoType(st) {
			t.Errorf("stream type 0x%02X should be video", st)
		}
		if IsAudioType(st) {
			t.Errorf("stream type 0x%02X should not be audio", st)
		}
	}
	for _, st := range []uint8{StreamTypeMPEG1Audio, StreamTypeADTSAAC, StreamTypeATSCAC3} {
		if !IsAudioType(st) {
			t.Errorf("stream type 0x%02X should be audio", st)
		}
	}
	if IsVideoType(StreamTypePrivateData) || IsAudioType(StreamTypePrivateData) {
		t.Error("private data stream type classified by type alone")
	}
}
