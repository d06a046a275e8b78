package count

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

func TestCountPerPID(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	tsp := &plugintest.TSP{Handler: slog.NewTextHandler(&logs, nil)}
	p := &processor{}
	if err := p.Start(tsp, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, pid := range []uint16{0x100, 0x101, 0x100, 0x100} {
		var pkt mpegts.Packet
		pkt[0] = mpegts.SyncByte
		pkt.SetPID(pid)
		v, err := p.Process(&pkt)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if v != plugin.VerdictOK {
			t.Fatalf("verdict %v, want %v", v, plugin.VerdictOK)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	out := logs.String()
	for _, want := range []string{"total=4", "pid=256 packets=3", "pid=257 packets=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestCountInterval(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	h := slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: plugin.LevelVerbose})
	tsp := &plugintest.TSP{Handler: h}
	p := &processor{}
	if err := p.Start(tsp, []string{"--interval", "2"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var pkt mpegts.Packet
	pkt[0] = mpegts.SyncByte
	pkt.SetPID(0x100)
	for i := 0; i < 5; i++ {
		if _, err := p.Process(&pkt); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if got := strings.Count(logs.String(), "running count"); got != 2 {
		t.Errorf("interval logged %d times, want 2:\n%s", got, logs.String())
	}
}
