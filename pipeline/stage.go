package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

// stage is one plugin worker bound to a ring cursor. It implements
// [plugin.TSP], so the value handed to the plugin at Start is the stage
// itself.
type stage struct {
	index int
	name  string
	role  plugin.Role
	plug  plugin.Plugin
	args  []string
	log   *slog.Logger

	ring   *Ring
	coord  *Coordinator
	window int

	jt       jtState
	total    atomic.Uint64
	dropped  atomic.Uint64
	aborting *atomic.Bool
	endReq   atomic.Bool

	// cleanEOF is set by the input stage when the source drained
	// normally (EOF or joint cutoff) rather than being aborted.
	cleanEOF bool
}

var _ plugin.TSP = (*stage)(nil)

func (s *stage) Logger() *slog.Logger { return s.log }

func (s *stage) UseJointTermination(on bool) {
	s.coord.Use(&s.jt, on)
}

func (s *stage) JointTerminate() {
	if s.coord.Ignored() {
		// Joint termination globally ignored: degrade to an individual
		// end of this stage alone.
		s.endReq.Store(true)
		return
	}
	s.coord.Terminate(&s.jt, s.total.Load())
}

func (s *stage) TotalPackets() uint64 { return s.total.Load() }

func (s *stage) Aborting() bool { return s.aborting.Load() }

// run executes the stage loop for the plugin's role. It returns an error
// only for fatal conditions (plugin error or panic); normal termination,
// individual or joint, returns nil. The ring cursor is marked done on
// every exit path so downstream stages drain and finish.
func (s *stage) run() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline: %s %q panicked: %v", s.role, s.name, p)
		}
		s.ring.MarkDone(s.index)
		s.log.Debug("stage exited", "packets", s.total.Load(), "dropped", s.dropped.Load())
	}()

	switch s.role {
	case plugin.RoleInput:
		return s.runInput()
	case plugin.RoleProcessor:
		return s.runProcessor()
	default:
		return s.runOutput()
	}
}

func (s *stage) runInput() error {
	in := s.plug.(plugin.Input)
	for {
		n := s.window
		if cutoff := s.coord.CutoffPacket(); cutoff != NoCutoff {
			// A joint cutoff bounds the input even when it did not opt
			// in: nothing past the cutoff will be consumed.
			total := s.total.Load()
			if total >= cutoff {
				s.cleanEOF = true
				return nil
			}
			if left := cutoff - total; uint64(n) > left {
				n = int(left)
			}
		}

		base, k := s.ring.ReserveInput(n)
		if k == 0 {
			return nil // shutdown or output exited
		}
		got, rerr := in.Receive(s.ring.Window(base, k))
		if got < 0 || got > k {
			return fmt.Errorf("pipeline: input %q returned count %d for a window of %d", s.name, got, k)
		}
		for j := 0; j < got; j++ {
			s.ring.SetFiller(base+uint64(j), false)
		}
		s.total.Add(uint64(got))
		s.ring.Release(s.index, got)

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				s.cleanEOF = true
				return nil
			}
			return fmt.Errorf("pipeline: input %q: %w", s.name, rerr)
		}
		if got == 0 || s.endReq.Load() {
			s.cleanEOF = true
			return nil
		}
	}
}

func (s *stage) runProcessor() error {
	proc := s.plug.(plugin.Processor)
	for {
		base, k := s.ring.Acquire(s.index, s.window)
		if k == 0 {
			return nil // upstream drained or shutdown
		}

		ended := false
		for j := 0; j < k && !ended; j++ {
			pos := base + uint64(j)
			if s.skipSlot(pos) {
				continue
			}
			if s.jointCutoffReached() {
				ended = true
				break
			}

			// Counted before the call so a JointTerminate from inside
			// Process records a cutoff that includes this packet.
			s.total.Add(1)
			v, perr := proc.Process(s.ring.Packet(pos))
			switch v {
			case plugin.VerdictNull:
				*s.ring.Packet(pos) = mpegts.Null
				s.ring.SetFiller(pos, true)
			case plugin.VerdictDrop:
				// Invalidate the sync byte in-band; downstream stages and
				// the output skip the slot.
				s.ring.Packet(pos)[0] = 0
				s.ring.SetFiller(pos, true)
				s.dropped.Add(1)
			case plugin.VerdictEnd:
				ended = true
			}
			if perr != nil {
				s.ring.Release(s.index, k)
				return fmt.Errorf("pipeline: processor %q: %w", s.name, perr)
			}
			if s.endReq.Load() {
				ended = true
			}
		}

		// The whole window is released even on an early end: remaining
		// packets pass through unprocessed while the stage drains.
		s.ring.Release(s.index, k)
		if ended {
			return nil
		}
	}
}

func (s *stage) runOutput() error {
	out := s.plug.(plugin.Output)
	for {
		base, k := s.ring.Acquire(s.index, s.window)
		if k == 0 {
			return nil
		}

		// Bound the window by the joint cutoff so the output stops at
		// the exact rendezvous packet even when the input raced ahead.
		ended := false
		if cutoff := s.coord.CutoffPacket(); cutoff != NoCutoff {
			left := cutoff - min(s.total.Load(), cutoff)
			if uint64(k) >= left {
				k = int(left)
				ended = true
			}
			if k == 0 {
				return nil
			}
		}

		// Send maximal contiguous runs, skipping dropped slots.
		win := s.ring.Window(base, k)
		run := -1
		for j := 0; j <= k; j++ {
			if j < k && !s.skipSlot(base+uint64(j)) {
				if run < 0 {
					run = j
				}
				continue
			}
			if run >= 0 {
				if serr := out.Send(win[run:j]); serr != nil {
					s.ring.Release(s.index, k)
					return fmt.Errorf("pipeline: output %q: %w", s.name, serr)
				}
				s.total.Add(uint64(j - run))
				run = -1
			}
		}

		s.ring.Release(s.index, k)
		if ended || s.endReq.Load() {
			return nil
		}
	}
}

// skipSlot reports whether the slot holds a packet dropped upstream:
// filler with its sync byte invalidated. Null-stuffed filler slots are
// valid packets and still flow.
func (s *stage) skipSlot(pos uint64) bool {
	return s.ring.IsFiller(pos) && !s.ring.Packet(pos).SyncValid()
}

// jointCutoffReached reports whether the rendezvous completed and this
// stage has passed the cutoff. Every stage honours the cutoff, opted in
// or not, so the whole pipeline ends at the same packet index.
func (s *stage) jointCutoffReached() bool {
	cutoff := s.coord.CutoffPacket()
	return cutoff != NoCutoff && s.total.Load() >= cutoff
}
