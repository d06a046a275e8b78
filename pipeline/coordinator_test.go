package pipeline

import "testing"

func TestJointCutoffRendezvous(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(false)
	var a, b jtState
	c.Use(&a, true)
	c.Use(&b, true)

	if got := c.CutoffPacket(); got != NoCutoff {
		t.Fatalf("cutoff before any terminate = %d, want NoCutoff", got)
	}

	c.Terminate(&a, 1000)
	if got := c.CutoffPacket(); got != NoCutoff {
		t.Fatalf("cutoff with one user remaining = %d, want NoCutoff", got)
	}

	c.Terminate(&b, 1500)
	if got := c.CutoffPacket(); got != 1500 {
		t.Fatalf("cutoff = %d, want the highest total 1500", got)
	}

	// Order independence of the maximum: repeat terminations are ignored.
	c.Terminate(&a, 9999)
	if got := c.CutoffPacket(); got != 1500 {
		t.Errorf("cutoff after repeated terminate = %d, want 1500", got)
	}
}

func TestJointTerminationNeverOptedIn(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(false)
	var st jtState

	// A stage that never opted in does not participate: its terminate is
	// ignored and no cutoff ever forms.
	c.Terminate(&st, 500)
	if got := c.CutoffPacket(); got != NoCutoff {
		t.Errorf("cutoff = %d, want NoCutoff with zero users", got)
	}
}

func TestJointTerminationToggle(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(false)
	var a, b jtState
	c.Use(&a, true)
	c.Use(&b, true)

	// Leaving removes the stage from the rendezvous, so the remaining
	// user alone completes it.
	c.Use(&b, false)
	c.Terminate(&a, 700)
	if got := c.CutoffPacket(); got != 700 {
		t.Errorf("cutoff = %d, want 700 after the second user left", got)
	}

	// Re-toggling an already opted-in stage must not double count.
	c2 := NewCoordinator(false)
	var st jtState
	c2.Use(&st, true)
	c2.Use(&st, true)
	c2.Terminate(&st, 10)
	if got := c2.CutoffPacket(); got != 10 {
		t.Errorf("cutoff = %d, want 10 (opt-in must be idempotent)", got)
	}
}

func TestJointTerminationToggleAfterTerminate(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(false)
	var a, b jtState
	c.Use(&a, true)
	c.Use(&b, true)

	// A terminated stage's contribution is settled: opting it out must
	// not complete the rendezvous while another user is still pending.
	c.Terminate(&a, 1000)
	c.Use(&a, false)
	if got := c.CutoffPacket(); got != NoCutoff {
		t.Fatalf("cutoff with a user still pending = %d, want NoCutoff", got)
	}

	c.Terminate(&b, 1500)
	if got := c.CutoffPacket(); got != 1500 {
		t.Fatalf("cutoff = %d, want 1500", got)
	}

	// Symmetrically, re-opting a terminated stage in must not reopen the
	// completed rendezvous.
	c.Use(&a, true)
	if got := c.CutoffPacket(); got != 1500 {
		t.Errorf("cutoff after re-opt-in = %d, want 1500", got)
	}
}

func TestJointTerminationIgnored(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(true)
	var st jtState
	c.Use(&st, true)
	c.Terminate(&st, 100)
	if got := c.CutoffPacket(); got != NoCutoff {
		t.Errorf("cutoff = %d, want NoCutoff when joint termination is ignored", got)
	}
}
