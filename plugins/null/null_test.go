package null

import (
	"errors"
	"io"
	"testing"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugins/internal/plugintest"
)

func TestNullGeneratesNullPackets(t *testing.T) {
	t.Parallel()
	in := &input{}
	if err := in.Start(&plugintest.TSP{}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	buf := make([]mpegts.Packet, 16)
	n, err := in.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("got %d packets, want %d", n, len(buf))
	}
	for i := range buf[:n] {
		if !buf[i].IsNull() {
			t.Fatalf("packet %d is not a null packet", i)
		}
	}
}

func TestNullCountEndsWithEOF(t *testing.T) {
	t.Parallel()
	in := &input{}
	if err := in.Start(&plugintest.TSP{}, []string{"--count", "10"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	buf := make([]mpegts.Packet, 8)

	n, err := in.Receive(buf)
	if n != 8 || err != nil {
		t.Fatalf("first Receive = %d, %v, want 8, nil", n, err)
	}
	n, err = in.Receive(buf)
	if n != 2 || err != nil {
		t.Fatalf("second Receive = %d, %v, want 2, nil", n, err)
	}
	n, err = in.Receive(buf)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("third Receive = %d, %v, want 0, io.EOF", n, err)
	}
}

func TestNullJointKeepsGenerating(t *testing.T) {
	t.Parallel()
	tsp := &plugintest.TSP{}
	in := &input{}
	err := in.Start(tsp, []string{"--count", "5", "--joint-termination"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !tsp.JointUser {
		t.Fatal("stage did not opt into joint termination")
	}

	buf := make([]mpegts.Packet, 8)
	for i := 0; i < 4; i++ {
		n, err := in.Receive(buf)
		if n != len(buf) || err != nil {
			t.Fatalf("Receive %d = %d, %v, want %d, nil", i, n, err, len(buf))
		}
	}
	if tsp.JointCalls != 1 {
		t.Errorf("JointTerminate called %d times, want 1", tsp.JointCalls)
	}
}
