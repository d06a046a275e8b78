package filter

import (
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

func pidPacket(pid uint16) mpegts.Packet {
	var pkt mpegts.Packet
	pkt[0] = mpegts.SyncByte
	pkt[3] = 0x10
	pkt.SetPID(pid)
	return pkt
}

func TestFilterVerdicts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		pid  uint16
		want plugin.Verdict
	}{
		{"listed pid passes", []string{"--pid", "0x100"}, 0x100, plugin.VerdictOK},
		{"other pid dropped", []string{"--pid", "0x100"}, 0x200, plugin.VerdictDrop},
		{"stuffing replaces", []string{"--pid", "0x100", "--stuffing"}, 0x200, plugin.VerdictNull},
		{"negate inverts keep", []string{"--pid", "0x100", "--negate"}, 0x100, plugin.VerdictDrop},
		{"negate inverts drop", []string{"--pid", "0x100", "--negate"}, 0x200, plugin.VerdictOK},
		{"comma separated list", []string{"--pid", "0x100,257"}, 257, plugin.VerdictOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &processor{}
			if err := p.Start(&plugintest.TSP{}, tt.args); err != nil {
				t.Fatalf("Start: %v", err)
			}
			pkt := pidPacket(tt.pid)
			got, err := p.Process(&pkt)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got != tt.want {
				t.Errorf("verdict %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterRequiresPID(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, nil); err == nil {
		t.Error("Start accepted an empty PID list")
	}
}

func TestFilterRejectsBadPID(t *testing.T) {
	t.Parallel()
	for _, bad := range []string{"0x2000", "notanumber", "-1"} {
		p := &processor{}
		if err := p.Start(&plugintest.TSP{}, []string{"--pid", bad}); err == nil {
			t.Errorf("Start accepted --pid %s", bad)
		}
	}
}
