package drop

import (
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

func TestDropCountsPackets(t *testing.T) {
	t.Parallel()
	o := &output{}
	if err := o.Start(&plugintest.TSP{}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Send(make([]mpegts.Packet, 7)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := o.Send(make([]mpegts.Packet, 3)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if o.sent != 10 {
		t.Errorf("sent = %d, want 10", o.sent)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
