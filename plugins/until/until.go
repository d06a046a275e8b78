// Package until provides the packet-count termination processor.
package until

import (
	"flag"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

func init() {
	plugin.RegisterProcessor("until", "pass a fixed number of packets, then terminate",
		func() plugin.Processor { return &processor{} })
}

type processor struct {
	tsp       plugin.TSP
	packets   uint64
	joint     bool
	seen      uint64
	requested bool
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("until", flag.ContinueOnError)
	fs.Uint64Var(&p.packets, "packets", 0, "number of packets to pass")
	fs.BoolVar(&p.joint, "joint-termination", false,
		"request joint termination at the limit instead of ending the stage")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if p.packets == 0 {
		return fmt.Errorf("until: --packets must be positive")
	}
	p.tsp = tsp
	if p.joint {
		tsp.UseJointTermination(true)
	}
	return nil
}

func (p *processor) Stop() error { return nil }

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	p.seen++
	if p.seen < p.packets {
		return plugin.VerdictOK, nil
	}
	if p.joint {
		if !p.requested {
			// Packets keep flowing through this stage until every joint
			// user has reached its own limit.
			p.tsp.JointTerminate()
			p.requested = true
		}
		return plugin.VerdictOK, nil
	}
	// The limit packet itself still passes; the stage ends after it.
	return plugin.VerdictEnd, nil
}
