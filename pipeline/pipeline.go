package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

// Defaults for [Options].
const (
	DefaultBufferSize = 16 << 20 // bytes of packet buffer
	DefaultMaxWindow  = 512      // packets per reserve/acquire
)

// Spec names one stage of the chain and carries its argument list. The
// first spec must resolve to an input, the last to an output, and
// everything between to processors.
type Spec struct {
	Name string
	Args []string
}

// Options configures a pipeline. The zero value picks the defaults, the
// default registry, and slog.Default().
type Options struct {
	// BufferSize is the ring budget in bytes; the slot count is the
	// packet count rounded down to a power of two.
	BufferSize int
	// MaxWindow bounds how many packets a stage handles per window.
	MaxWindow int
	// IgnoreJointTermination turns joint termination requests into
	// individual stage ends.
	IgnoreJointTermination bool
	Registry               *plugin.Registry
	Logger                 *slog.Logger
}

// Status is the aggregate outcome of a pipeline run.
type Status int

const (
	// StatusEOF: the input drained cleanly and every stage exited.
	StatusEOF Status = iota
	// StatusJointTerminated: the joint termination rendezvous completed
	// and the pipeline ended at the cutoff packet.
	StatusJointTerminated
	// StatusAborted: Abort was called or the context was cancelled
	// before the input finished.
	StatusAborted
	// StatusFatal: a stage failed with a plugin error or panic.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusEOF:
		return "end of input"
	case StatusJointTerminated:
		return "joint termination"
	case StatusAborted:
		return "aborted"
	case StatusFatal:
		return "fatal error"
	}
	return "unknown"
}

// Pipeline owns the ring, the coordinator, and one stage per chain spec.
// Build with [New], run once with [Run].
type Pipeline struct {
	log      *slog.Logger
	ring     *Ring
	coord    *Coordinator
	stages   []*stage
	aborting atomic.Bool
}

// New resolves the chain against the registry and allocates all plugins.
// No plugin is started yet; Run does that.
func New(specs []Spec, opts Options) (*Pipeline, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = DefaultMaxWindow
	}
	if opts.Registry == nil {
		opts.Registry = plugin.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(specs) < 2 {
		return nil, fmt.Errorf("pipeline: need an input and an output, got %d stages", len(specs))
	}

	p := &Pipeline{
		log:   opts.Logger.With("component", "pipeline"),
		ring:  NewRing(opts.BufferSize/mpegts.PacketSize, len(specs)),
		coord: NewCoordinator(opts.IgnoreJointTermination),
	}

	for i, spec := range specs {
		var (
			role plugin.Role
			plug plugin.Plugin
			err  error
		)
		switch i {
		case 0:
			role = plugin.RoleInput
			var f plugin.InputFactory
			if f, err = opts.Registry.GetInput(spec.Name); err == nil {
				plug = f()
			}
		case len(specs) - 1:
			role = plugin.RoleOutput
			var f plugin.OutputFactory
			if f, err = opts.Registry.GetOutput(spec.Name); err == nil {
				plug = f()
			}
		default:
			role = plugin.RoleProcessor
			var f plugin.ProcessorFactory
			if f, err = opts.Registry.GetProcessor(spec.Name); err == nil {
				plug = f()
			}
		}
		if err != nil {
			return nil, err
		}

		p.stages = append(p.stages, &stage{
			index:    i,
			name:     spec.Name,
			role:     role,
			plug:     plug,
			args:     spec.Args,
			log:      opts.Logger.With("plugin", spec.Name, "stage", i),
			ring:     p.ring,
			coord:    p.coord,
			window:   opts.MaxWindow,
			aborting: &p.aborting,
		})
	}

	p.log.Debug("pipeline built",
		"stages", len(p.stages), "ring_packets", p.ring.Capacity())
	return p, nil
}

// Run starts the plugins in chain order, drives one goroutine per stage,
// and blocks until every stage has exited. Cancelling ctx aborts the
// pipeline. The returned error is the first fatal stage error, nil
// otherwise.
func (p *Pipeline) Run(ctx context.Context) (Status, error) {
	for i, st := range p.stages {
		if err := st.plug.Start(st, st.args); err != nil {
			for j := i - 1; j >= 0; j-- {
				p.stopPlugin(p.stages[j])
			}
			return StatusFatal, fmt.Errorf("pipeline: starting plugin %q: %w", st.name, err)
		}
	}

	unhook := context.AfterFunc(ctx, p.Abort)

	g := new(errgroup.Group)
	for _, st := range p.stages {
		g.Go(func() error {
			if err := st.run(); err != nil {
				// A fatal stage takes the whole pipeline down; unblock
				// everyone else.
				p.log.Error("stage failed", "plugin", st.name, "error", err)
				p.Abort()
				return err
			}
			return nil
		})
	}
	fatal := g.Wait()
	unhook()

	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stopPlugin(p.stages[i])
	}

	status := p.status(fatal)
	p.log.Info("pipeline finished",
		"status", status.String(),
		"packets", p.stages[len(p.stages)-1].total.Load())
	return status, fatal
}

func (p *Pipeline) status(fatal error) Status {
	switch {
	case fatal != nil:
		return StatusFatal
	case p.coord.CutoffPacket() != NoCutoff:
		// The rendezvous completed: the pipeline ended at the cutoff
		// even if the input was still mid-flight when it did.
		return StatusJointTerminated
	case !p.stages[0].cleanEOF:
		return StatusAborted
	default:
		return StatusEOF
	}
}

func (p *Pipeline) stopPlugin(st *stage) {
	if err := st.plug.Stop(); err != nil {
		p.log.Warn("stopping plugin", "plugin", st.name, "error", err)
	}
}

// Abort signals shutdown: every ring waiter is released, stages exit
// after their current window, and plugins blocked in I/O are interrupted.
// Safe to call concurrently and repeatedly.
func (p *Pipeline) Abort() {
	if p.aborting.CompareAndSwap(false, true) {
		p.log.Info("aborting pipeline")
	}
	p.ring.Shutdown()
	for _, st := range p.stages {
		if in, ok := st.plug.(plugin.Interrupter); ok {
			in.Interrupt()
		}
	}
}
