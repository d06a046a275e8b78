package pmt

import (
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
	"github.com/zsiec/tspipe/psi"
)

// pmtPackets packetizes a PMT onto the given PID.
func pmtPackets(t *testing.T, table *psi.PMT, pid uint16) []mpegts.Packet {
	t.Helper()
	tbl, err := table.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	pz := psi.NewPacketizer(pid)
	pz.SetTable(tbl)
	total := 0
	for i := 0; i < tbl.SectionCount(); i++ {
		total += (tbl.SectionAt(i).Size() + 1 + 183) / 184
	}
	pkts := make([]mpegts.Packet, total)
	for i := range pkts {
		if !pz.NextPacket(&pkts[i], uint8(i)&0x0F) {
			t.Fatal("NextPacket refused with a table bound")
		}
	}
	return pkts
}

// recoverPMT reassembles and parses the PMT carried in pkts.
func recoverPMT(t *testing.T, pkts []mpegts.Packet, pid uint16) *psi.PMT {
	t.Helper()
	asm := psi.NewAssembler(pid)
	tbl := &psi.Table{}
	for i := range pkts {
		for _, sec := range asm.Push(&pkts[i]) {
			if err := tbl.AddSection(sec); err != nil {
				t.Fatalf("AddSection: %v", err)
			}
		}
	}
	if !tbl.IsComplete() {
		t.Fatal("no complete table recovered")
	}
	parsed, err := psi.ParsePMT(tbl)
	if err != nil {
		t.Fatalf("ParsePMT: %v", err)
	}
	return parsed
}

func TestPMTRewrite(t *testing.T) {
	t.Parallel()
	orig := psi.NewPMT(5, 0x0001)
	orig.PCRPID = 0x0100
	orig.AddStream(0x0100, mpegts.StreamTypeH264)
	orig.AddStream(0x0101, mpegts.StreamTypeADTSAAC)
	orig.AddStream(0x0102, mpegts.StreamTypePrivateData)

	p := &processor{}
	err := p.Start(&plugintest.TSP{}, []string{
		"--pid", "0x40",
		"--pcr-pid", "0x101",
		"--remove-stream", "0x102",
		"--increment-version",
		"--service-id", "7",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	in := pmtPackets(t, orig, 0x40)
	out := make([]mpegts.Packet, len(in))
	for i := range in {
		out[i] = in[i]
		if _, err := p.Process(&out[i]); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	got := recoverPMT(t, out, 0x40)
	if got.PCRPID != 0x101 {
		t.Errorf("PCR PID = 0x%X, want 0x101", got.PCRPID)
	}
	if got.ServiceID != 7 {
		t.Errorf("service id = %d, want 7", got.ServiceID)
	}
	if got.Version != 6 {
		t.Errorf("version = %d, want 6", got.Version)
	}
	if _, ok := got.Streams[0x0102]; ok {
		t.Error("removed stream 0x102 still present")
	}
	if len(got.Streams) != 2 {
		t.Errorf("stream count = %d, want 2", len(got.Streams))
	}
}

func TestPMTSetVersion(t *testing.T) {
	t.Parallel()
	orig := psi.NewPMT(5, 0x0001)
	orig.PCRPID = 0x0100
	orig.AddStream(0x0100, mpegts.StreamTypeH264)

	p := &processor{}
	err := p.Start(&plugintest.TSP{}, []string{"--pid", "0x40", "--set-version", "12"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	pkts := pmtPackets(t, orig, 0x40)
	for i := range pkts {
		if _, err := p.Process(&pkts[i]); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	got := recoverPMT(t, pkts, 0x40)
	if got.Version != 12 {
		t.Errorf("version = %d, want 12", got.Version)
	}
}

func TestPMTIgnoresOtherPIDs(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--pid", "0x40"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pkt := mpegts.Null
	before := pkt
	if _, err := p.Process(&pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pkt != before {
		t.Error("packet on another PID was modified")
	}
}

func TestPMTStartValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
	}{
		{"missing pid", nil},
		{"bad pid", []string{"--pid", "0x2000"}},
		{"version out of range", []string{"--pid", "0x40", "--set-version", "32"}},
		{"exclusive version flags", []string{"--pid", "0x40", "--set-version", "1", "--increment-version"}},
		{"service id out of range", []string{"--pid", "0x40", "--service-id", "70000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &processor{}
			if err := p.Start(&plugintest.TSP{}, tt.args); err == nil {
				t.Error("Start accepted invalid arguments")
			}
		})
	}
}
