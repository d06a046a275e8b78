// Package filter provides the PID filter processor.
package filter

import (
	"flag"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/pids"
)

func init() {
	plugin.RegisterProcessor("filter", "keep packets matching a PID list",
		func() plugin.Processor { return &processor{} })
}

type processor struct {
	mask     map[uint16]bool
	negate   bool
	stuffing bool
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("filter", flag.ContinueOnError)
	var list pids.List
	fs.Var(&list, "pid", "PID to keep (repeatable, decimal or 0x hex)")
	fs.BoolVar(&p.negate, "negate", false, "keep the PIDs not listed instead")
	fs.BoolVar(&p.stuffing, "stuffing", false,
		"replace removed packets with null packets instead of dropping them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if list.Empty() {
		return fmt.Errorf("filter: at least one --pid is required")
	}
	p.mask = list.Mask()
	return nil
}

func (p *processor) Stop() error { return nil }

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	if p.mask[pkt.PID()] != p.negate {
		return plugin.VerdictOK, nil
	}
	if p.stuffing {
		return plugin.VerdictNull, nil
	}
	return plugin.VerdictDrop, nil
}
