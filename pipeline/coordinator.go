package pipeline

import (
	"math"
	"sync"
)

// NoCutoff is returned by [Coordinator.CutoffPacket] while the joint
// termination rendezvous is incomplete.
const NoCutoff = uint64(math.MaxUint64)

// jtState is one stage's joint-termination membership. It is owned by the
// stage but only ever read or written under the coordinator's mutex.
type jtState struct {
	use       bool
	completed bool
}

// Coordinator implements the joint termination rendezvous. Stages opt in
// with Use; each opted-in stage later declares readiness with Terminate,
// carrying its packet total. Once every opted-in stage has terminated,
// the cutoff is the highest total observed, and the pipeline ends all
// joint users at that packet index.
//
// One Coordinator exists per pipeline, owned by the controller; every
// stage holds a reference. All counters live behind a single mutex.
type Coordinator struct {
	mu     sync.Mutex
	ignore bool

	users     int    // stages currently opted in
	remaining int    // opted in but not yet terminated
	highest   uint64 // highest packet total among terminated stages
}

// NewCoordinator returns a coordinator. With ignore set, joint
// termination requests degrade to individual stage termination.
func NewCoordinator(ignore bool) *Coordinator {
	return &Coordinator{ignore: ignore}
}

// Ignored reports whether joint termination is globally disabled.
func (c *Coordinator) Ignored() bool { return c.ignore }

// Use opts the stage in or out. Toggling is allowed until the stage has
// terminated; after that its contribution is settled and further toggles
// are ignored. No-op when joint termination is ignored.
func (c *Coordinator) Use(st *jtState, on bool) {
	if c.ignore {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.completed {
		return
	}
	if on && !st.use {
		c.users++
		c.remaining++
	} else if !on && st.use {
		c.users--
		c.remaining--
	}
	st.use = on
}

// Terminate records the stage's readiness and packet total. Repeated
// calls and calls from stages that never opted in are ignored.
func (c *Coordinator) Terminate(st *jtState, totalPackets uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !st.use || st.completed {
		return
	}
	st.completed = true
	c.remaining--
	if totalPackets > c.highest {
		c.highest = totalPackets
	}
}

// CutoffPacket returns the packet index at which joint users must stop:
// the highest total observed once every opted-in stage has terminated,
// [NoCutoff] before that or when nothing opted in.
func (c *Coordinator) CutoffPacket() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ignore || c.users == 0 || c.remaining > 0 {
		return NoCutoff
	}
	return c.highest
}
