// Package count provides the per-PID packet counting processor.
package count

import (
	"context"
	"flag"
	"sort"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

func init() {
	plugin.RegisterProcessor("count", "count packets per PID",
		func() plugin.Processor { return &processor{} })
}

type processor struct {
	tsp      plugin.TSP
	interval uint64
	total    uint64
	perPID   map[uint16]uint64
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	fs.Uint64Var(&p.interval, "interval", 0,
		"log running totals every N packets (0 = only at stop)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p.tsp = tsp
	p.perPID = make(map[uint16]uint64)
	return nil
}

func (p *processor) Stop() error {
	log := p.tsp.Logger()
	log.Info("packet count", "total", p.total, "pids", len(p.perPID))
	for _, pid := range p.sortedPIDs() {
		log.Info("pid count", "pid", pid, "packets", p.perPID[pid])
	}
	return nil
}

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	p.total++
	p.perPID[pkt.PID()]++
	if p.interval > 0 && p.total%p.interval == 0 {
		p.tsp.Logger().Log(context.Background(), plugin.LevelVerbose, "running count",
			"total", p.total, "pids", len(p.perPID))
	}
	return plugin.VerdictOK, nil
}

func (p *processor) sortedPIDs() []uint16 {
	pids := make([]uint16, 0, len(p.perPID))
	for pid := range p.perPID {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}
