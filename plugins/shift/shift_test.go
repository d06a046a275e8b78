package shift

import (
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

// pcrPacket builds a packet whose adaptation field carries the given PCR.
func pcrPacket(t *testing.T, pcr int64) mpegts.Packet {
	t.Helper()
	var pkt mpegts.Packet
	pkt[0] = mpegts.SyncByte
	pkt[3] = 0x20 // adaptation field only
	pkt[4] = 183
	pkt[5] = 0x10 // PCR flag
	pkt.SetPID(0x100)
	if !pkt.SetPCR(pcr) {
		t.Fatal("SetPCR refused a packet with a PCR field")
	}
	return pkt
}

// pesPacket builds a payload_unit_start packet opening a PES packet with
// the given PTS and DTS.
func pesPacket(t *testing.T, pts, dts int64) mpegts.Packet {
	t.Helper()
	var pkt mpegts.Packet
	pkt[0] = mpegts.SyncByte
	pkt[3] = 0x10
	pkt.SetPID(0x101)
	pkt.SetPayloadUnitStart(true)

	pes := pkt[4:]
	pes[2] = 0x01 // 00 00 01 start code
	pes[3] = 0xE0 // video stream
	pes[6] = 0x80
	pes[7] = 0xC0 // PTS and DTS present
	pes[8] = 10
	mpegts.WriteTimestamp(pes[9:], 0x3, pts)
	mpegts.WriteTimestamp(pes[14:], 0x1, dts)
	return pkt
}

func TestShiftPCR(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--milliseconds", "100"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pkt := pcrPacket(t, 1_000_000)
	if _, err := p.Process(&pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, ok := pkt.PCR()
	if !ok {
		t.Fatal("PCR lost after shifting")
	}
	if want := int64(1_000_000 + 100*27_000); got != want {
		t.Errorf("PCR = %d, want %d", got, want)
	}
}

func TestShiftPTSDTS(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--milliseconds", "100"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pkt := pesPacket(t, 900_000, 896_400)
	if _, err := p.Process(&pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	info, ok := mpegts.ParsePESHeader(pkt.Payload())
	if !ok {
		t.Fatal("PES header unparsable after shifting")
	}
	if want := int64(900_000 + 100*90); info.PTS != want {
		t.Errorf("PTS = %d, want %d", info.PTS, want)
	}
	if want := int64(896_400 + 100*90); info.DTS != want {
		t.Errorf("DTS = %d, want %d", info.DTS, want)
	}
}

func TestShiftNegativeWraps(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--milliseconds", "-1"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pkt := pesPacket(t, 0, 0)
	if _, err := p.Process(&pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	info, ok := mpegts.ParsePESHeader(pkt.Payload())
	if !ok {
		t.Fatal("PES header unparsable after shifting")
	}
	if want := mpegts.TimestampWrap - 90; info.PTS != want {
		t.Errorf("PTS = %d, want %d", info.PTS, want)
	}
}

func TestShiftLeavesOtherPacketsAlone(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--milliseconds", "100"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pkt := mpegts.Null
	before := pkt
	if _, err := p.Process(&pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pkt != before {
		t.Error("packet without timestamps was modified")
	}
}

func TestShiftRejectsZeroOffset(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, nil); err == nil {
		t.Error("Start accepted a zero offset")
	}
}
