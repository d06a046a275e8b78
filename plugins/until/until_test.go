package until

import (
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

func TestUntilEndsAfterLimit(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, []string{"--packets", "3"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var pkt mpegts.Packet
	for i := 0; i < 2; i++ {
		if got, _ := p.Process(&pkt); got != plugin.VerdictOK {
			t.Fatalf("packet %d: verdict %v, want %v", i+1, got, plugin.VerdictOK)
		}
	}
	// The limit packet itself still passes; End drains the stage after it.
	if got, _ := p.Process(&pkt); got != plugin.VerdictEnd {
		t.Errorf("limit packet: verdict %v, want %v", got, plugin.VerdictEnd)
	}
}

func TestUntilJointTermination(t *testing.T) {
	t.Parallel()
	tsp := &plugintest.TSP{}
	p := &processor{}
	err := p.Start(tsp, []string{"--packets", "2", "--joint-termination"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !tsp.JointUser {
		t.Fatal("stage did not opt into joint termination")
	}

	var pkt mpegts.Packet
	for i := 0; i < 5; i++ {
		got, _ := p.Process(&pkt)
		if got != plugin.VerdictOK {
			t.Fatalf("packet %d: verdict %v, want %v", i+1, got, plugin.VerdictOK)
		}
	}
	if tsp.JointCalls != 1 {
		t.Errorf("JointTerminate called %d times, want 1", tsp.JointCalls)
	}
}

func TestUntilRejectsZeroPackets(t *testing.T) {
	t.Parallel()
	p := &processor{}
	if err := p.Start(&plugintest.TSP{}, nil); err == nil {
		t.Error("Start accepted --packets 0")
	}
}
