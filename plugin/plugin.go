package plugin

import (
	"log/slog"

	"github.com/zsiec/tspipe/mpegts"
)

// LevelVerbose sits between info and debug. Plugins use it for per-event
// chatter that would drown info but is too coarse for debug.
const LevelVerbose = slog.Level(-2)

// Role identifies a plugin's position in the pipeline chain.
type Role int

// The three plugin roles. A pipeline has exactly one Input, any number of
// Processors, and exactly one Output.
const (
	RoleInput Role = iota
	RoleProcessor
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleProcessor:
		return "processor"
	case RoleOutput:
		return "output"
	}
	return "unknown"
}

// Verdict is a processor's per-packet decision.
type Verdict int

const (
	// VerdictOK forwards the packet unmodified.
	VerdictOK Verdict = iota
	// VerdictNull replaces the packet with a DVB null packet. The slot
	// still flows downstream, preserving the mux rate.
	VerdictNull
	// VerdictDrop removes the packet from the stream. Downstream stages
	// and the output skip the slot.
	VerdictDrop
	// VerdictEnd terminates the stage after the current window drains.
	VerdictEnd
)

// TSP is the stage handle given to every plugin at Start. It is the
// plugin's only view of the pipeline.
type TSP interface {
	// Logger returns a logger tagged with the plugin name and stage index.
	Logger() *slog.Logger

	// UseJointTermination opts the stage in or out of the joint
	// termination rendezvous. May be toggled at any time before the
	// stage exits.
	UseJointTermination(on bool)

	// JointTerminate declares this stage ready to terminate. Once every
	// opted-in stage has called it, the whole pipeline ends at the
	// highest packet index observed among those calls. When joint
	// termination is globally ignored, the call ends this stage alone.
	JointTerminate()

	// TotalPackets returns the number of packets this stage has passed.
	TotalPackets() uint64

	// Aborting reports whether the pipeline is shutting down. Blocking
	// plugin I/O should poll it or arrange to be unblocked by Stop.
	Aborting() bool
}

// Plugin is the lifecycle shared by all three roles. Factories return
// unstarted instances; all wiring arrives through Start's argument list,
// parsed with a flag.FlagSet named after the plugin.
type Plugin interface {
	Start(tsp TSP, args []string) error
	Stop() error
}

// Input produces packets. Receive fills up to len(buf) packets and returns
// how many were filled; it returns io.EOF (possibly with a short count)
// when the source is exhausted.
type Input interface {
	Plugin
	Receive(buf []mpegts.Packet) (int, error)
}

// Processor transforms one packet at a time. A non-nil error is fatal for
// the pipeline; use verdicts for normal flow control.
type Processor interface {
	Plugin
	Process(pkt *mpegts.Packet) (Verdict, error)
}

// Output consumes packets. Send must either write every packet in pkts or
// return an error.
type Output interface {
	Plugin
	Send(pkts []mpegts.Packet) error
}

// Interrupter is implemented by plugins whose Receive or Send can block
// in I/O the pipeline cannot unblock itself. Interrupt makes any pending
// or future call return promptly, typically by closing the underlying
// connection; it may be called from any goroutine, repeatedly, and before
// Start.
type Interrupter interface {
	Interrupt()
}

// Factories allocate unstarted plugin instances.
type (
	InputFactory     func() Input
	ProcessorFactory func() Processor
	OutputFactory    func() Output
)
