package pipeline

import (
	"sync"

	"github.com/zsiec/tspipe/mpegts"
)

// Ring is the fixed-capacity packet buffer shared by all pipeline stages.
//
// Positions are monotonic uint64 sequence numbers; a position maps to the
// backing array at position mod capacity. Stage 0 (the input) owns cursor
// pos[0] and fills forward; every later stage i consumes the range
// [pos[i], pos[i-1]) left behind by its upstream. The cursors are totally
// ordered, pos[0] >= pos[1] >= ... >= pos[n-1], and the input never
// advances more than capacity past the last stage, so a slot is reused
// only once every stage has released it.
//
// One condition variable per stage: conds[i] is signalled whenever pos[i]
// advances or stage i is marked done. Stage i+1 waits on its nearest live
// upstream's condition; the input waits on conds[n-1] for free space.
type Ring struct {
	mu    sync.Mutex
	conds []*sync.Cond

	pkts   []mpegts.Packet
	filler []bool
	mask   uint64

	pos      []uint64
	done     []bool
	shutdown bool
}

// NewRing allocates a ring of the given capacity shared by stages
// workers. capacity is rounded down to a power of two, with a floor of 4;
// stages must be at least 2.
func NewRing(capacity, stages int) *Ring {
	c := 4
	for c*2 <= capacity {
		c *= 2
	}
	r := &Ring{
		pkts:   make([]mpegts.Packet, c),
		filler: make([]bool, c),
		mask:   uint64(c - 1),
		pos:    make([]uint64, stages),
		done:   make([]bool, stages),
		conds:  make([]*sync.Cond, stages),
	}
	for i := range r.conds {
		r.conds[i] = sync.NewCond(&r.mu)
	}
	return r
}

// Capacity returns the rounded slot count.
func (r *Ring) Capacity() int { return len(r.pkts) }

// Packet returns the packet stored at pos. Valid only while the caller
// holds the range through reserve/acquire.
func (r *Ring) Packet(pos uint64) *mpegts.Packet {
	return &r.pkts[pos&r.mask]
}

// Window returns the contiguous packet slice for [base, base+count).
// Reserve and acquire never hand out ranges crossing the wrap point, so
// the slice is always contiguous.
func (r *Ring) Window(base uint64, count int) []mpegts.Packet {
	i := base & r.mask
	return r.pkts[i : i+uint64(count)]
}

// IsFiller reports whether the slot at pos was stuffed or dropped by an
// upstream stage.
func (r *Ring) IsFiller(pos uint64) bool {
	return r.filler[pos&r.mask]
}

// SetFiller marks or clears the filler bit of the slot at pos.
func (r *Ring) SetFiller(pos uint64, on bool) {
	r.filler[pos&r.mask] = on
}

// ReserveInput blocks until at least one slot is free for the input
// stage, then returns a contiguous range of up to n slots starting at the
// input cursor. The reservation never reaches slots the last stage has
// not released. A zero count means the ring is shut down or the output
// stage has exited.
func (r *Ring) ReserveInput(n int) (base uint64, count int) {
	last := len(r.pos) - 1

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.shutdown || r.done[last] {
			return 0, 0
		}
		free := r.pos[last] + uint64(len(r.pkts)) - r.pos[0]
		if free > 0 {
			return r.pos[0], r.clamp(r.pos[0], free, n)
		}
		r.conds[last].Wait()
	}
}

// Acquire blocks until at least one slot upstream of stage i is
// available, then returns a contiguous range of up to n slots starting at
// the stage's cursor. A zero count means the upstream has drained and
// finished, or the ring is shut down.
func (r *Ring) Acquire(i, n int) (base uint64, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		up := r.upstream(i)
		if avail := r.pos[up] - r.pos[i]; avail > 0 {
			return r.pos[i], r.clamp(r.pos[i], avail, n)
		}
		if r.shutdown || r.done[up] {
			return 0, 0
		}
		r.conds[up].Wait()
	}
}

// upstream returns the nearest stage above i that has not finished, so
// stages downstream of an individually terminated one keep draining from
// the live part of the chain. Stage 0 is the final upstream even when
// done; its frozen cursor then drains the tail.
func (r *Ring) upstream(i int) int {
	up := i - 1
	for up > 0 && r.done[up] {
		up--
	}
	return up
}

// clamp bounds a count by the request, the wrap point, and the available
// range.
func (r *Ring) clamp(base, avail uint64, n int) int {
	k := uint64(n)
	if k > avail {
		k = avail
	}
	if contig := uint64(len(r.pkts)) - base&r.mask; k > contig {
		k = contig
	}
	return int(k)
}

// Release advances stage i's cursor by count slots and wakes the stage
// waiting on it. The input stage releases the slots it filled; later
// stages release after processing.
func (r *Ring) Release(i, count int) {
	if count == 0 {
		return
	}
	r.mu.Lock()
	r.pos[i] += uint64(count)
	r.mu.Unlock()
	r.conds[i].Broadcast()
}

// MarkDone declares stage i finished. Downstream stages drain what the
// stage already released and then see empty acquires. When the last stage
// finishes, the whole ring shuts down since nothing can drain it anymore.
func (r *Ring) MarkDone(i int) {
	r.mu.Lock()
	r.done[i] = true
	last := i == len(r.pos)-1
	if last {
		r.shutdown = true
	}
	r.mu.Unlock()
	if last {
		r.broadcastAll()
		return
	}
	r.conds[i].Broadcast()
}

// Shutdown releases every waiter. Stages finish their current window and
// exit on their next reserve or acquire. Idempotent.
func (r *Ring) Shutdown() {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
	r.broadcastAll()
}

func (r *Ring) broadcastAll() {
	for _, c := range r.conds {
		c.Broadcast()
	}
}

// Cursor returns stage i's current position.
func (r *Ring) Cursor(i int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos[i]
}
