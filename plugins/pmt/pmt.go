// Package pmt provides the PMT rewriting processor. It reassembles the
// PMT carried on a PID, applies the requested edits, and substitutes the
// rewritten table packet-for-packet on the same PID.
package pmt

import (
	"flag"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/pids"
	"github.com/zsiec/tspipe/psi"
)

func init() {
	plugin.RegisterProcessor("pmt", "rewrite the PMT carried on a PID",
		func() plugin.Processor { return &processor{} })
}

type processor struct {
	tsp plugin.TSP
	pid uint16

	pcrPID     int
	remove     map[uint16]bool
	setVersion int
	increment  bool
	serviceID  int

	asm *psi.Assembler
	pz  *psi.Packetizer
	cur *psi.Table
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("pmt", flag.ContinueOnError)
	pid := fs.String("pid", "", "PID carrying the PMT to rewrite")
	pcrPID := fs.String("pcr-pid", "", "new PCR PID")
	var remove pids.List
	fs.Var(&remove, "remove-stream", "elementary PID to remove (repeatable)")
	fs.IntVar(&p.setVersion, "set-version", -1, "force the table version (0..31)")
	fs.BoolVar(&p.increment, "increment-version", false, "bump the table version by one")
	fs.IntVar(&p.serviceID, "service-id", -1, "new service id (program_number)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == "" {
		return fmt.Errorf("pmt: --pid is required")
	}
	v, err := pids.Parse(*pid)
	if err != nil {
		return fmt.Errorf("pmt: %w", err)
	}
	p.pid = v

	p.pcrPID = -1
	if *pcrPID != "" {
		pv, err := pids.Parse(*pcrPID)
		if err != nil {
			return fmt.Errorf("pmt: %w", err)
		}
		p.pcrPID = int(pv)
	}
	if p.setVersion > 31 {
		return fmt.Errorf("pmt: --set-version %d out of range (0..31)", p.setVersion)
	}
	if p.setVersion >= 0 && p.increment {
		return fmt.Errorf("pmt: --set-version and --increment-version are exclusive")
	}
	if p.serviceID > 0xFFFF {
		return fmt.Errorf("pmt: --service-id %d out of range", p.serviceID)
	}

	p.tsp = tsp
	p.remove = remove.Mask()
	p.asm = psi.NewAssembler(v)
	p.pz = psi.NewPacketizer(v)
	return nil
}

func (p *processor) Stop() error { return nil }

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	if pkt.PID() != p.pid {
		return plugin.VerdictOK, nil
	}
	cc := pkt.ContinuityCounter()

	for _, sec := range p.asm.Push(pkt) {
		if sec.TableID() != psi.TableIDPMT {
			continue
		}
		p.collect(sec)
	}

	// Substitute the rewritten table; until the first table completes,
	// packets pass through unchanged.
	p.pz.NextPacket(pkt, cc)
	return plugin.VerdictOK, nil
}

// collect accumulates sections into the current table instance and
// rewrites it once complete. A section from a new version starts a fresh
// table.
func (p *processor) collect(sec *psi.Section) {
	if p.cur == nil {
		p.cur = &psi.Table{}
	}
	if err := p.cur.AddSection(sec); err != nil {
		p.cur = &psi.Table{}
		if err := p.cur.AddSection(sec); err != nil {
			p.tsp.Logger().Warn("pmt section rejected", "error", err)
			p.cur = nil
			return
		}
	}
	if !p.cur.IsComplete() {
		return
	}
	table := p.cur
	p.cur = nil
	if err := p.rewrite(table); err != nil {
		p.tsp.Logger().Warn("pmt rewrite failed", "error", err)
	}
}

func (p *processor) rewrite(table *psi.Table) error {
	parsed, err := psi.ParsePMT(table)
	if err != nil {
		return err
	}

	if p.pcrPID >= 0 {
		parsed.PCRPID = uint16(p.pcrPID)
	}
	for pid := range p.remove {
		delete(parsed.Streams, pid)
	}
	if p.serviceID >= 0 {
		parsed.ServiceID = uint16(p.serviceID)
	}
	switch {
	case p.setVersion >= 0:
		parsed.Version = uint8(p.setVersion)
	case p.increment:
		parsed.Version = (parsed.Version + 1) & 0x1F
	}

	rewritten, err := parsed.Serialize()
	if err != nil {
		return err
	}
	p.pz.SetTable(rewritten)
	p.tsp.Logger().Debug("pmt rewritten",
		"service_id", parsed.ServiceID, "version", parsed.Version,
		"streams", len(parsed.Streams), "pcr_pid", parsed.PCRPID)
	return nil
}
