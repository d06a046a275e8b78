// Package splice provides the SCTE-35 monitoring processor: it parses
// splice_info sections on a chosen PID and logs the signalled events.
// Packets pass through unmodified.
package splice

import (
	"flag"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/pids"
	"github.com/zsiec/tspipe/psi"
	"github.com/zsiec/tspipe/scte35"
)

func init() {
	plugin.RegisterProcessor("splice", "log SCTE-35 splice events from a PID",
		func() plugin.Processor { return &processor{} })
}

type processor struct {
	tsp plugin.TSP
	pid uint16
	asm *psi.Assembler
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("splice", flag.ContinueOnError)
	pid := fs.String("pid", "", "PID carrying splice_info sections")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == "" {
		return fmt.Errorf("splice: --pid is required")
	}
	v, err := pids.Parse(*pid)
	if err != nil {
		return fmt.Errorf("splice: %w", err)
	}
	p.tsp = tsp
	p.pid = v
	p.asm = psi.NewAssembler(v)
	return nil
}

func (p *processor) Stop() error { return nil }

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	if pkt.PID() != p.pid {
		return plugin.VerdictOK, nil
	}
	for _, sec := range p.asm.Push(pkt) {
		info, err := scte35.Parse(sec)
		if err != nil {
			p.tsp.Logger().Warn("splice section rejected", "error", err)
			continue
		}
		p.logEvent(info)
	}
	return plugin.VerdictOK, nil
}

func (p *processor) logEvent(info *scte35.SpliceInfo) {
	log := p.tsp.Logger()
	switch info.Command {
	case scte35.CommandSpliceInsert:
		ins := info.Insert
		args := []any{"event_id", ins.EventID, "out_of_network", ins.OutOfNetwork}
		if ins.Cancel {
			args = append(args, "cancelled", true)
		}
		if ins.Immediate {
			args = append(args, "immediate", true)
		}
		if ins.SpliceTime != nil {
			args = append(args, "pts", adjustedPTS(*ins.SpliceTime, info.PTSAdjustment))
		}
		if ins.Duration != nil {
			args = append(args, "duration_s", ins.Duration.Seconds(),
				"auto_return", ins.Duration.AutoReturn)
		}
		log.Info("splice_insert", args...)
	case scte35.CommandTimeSignal:
		args := []any{}
		if info.Signal.PTS != nil {
			args = append(args, "pts", adjustedPTS(*info.Signal.PTS, info.PTSAdjustment))
		}
		log.Info("time_signal", args...)
	default:
		log.Debug(info.Command.String())
	}

	for _, sd := range info.Segmentations {
		args := []any{"type", sd.TypeName(), "event_id", sd.EventID,
			"segment", fmt.Sprintf("%d/%d", sd.SegmentNum, sd.SegmentsExpected)}
		if sd.Cancel {
			args = append(args, "cancelled", true)
		}
		if sd.Duration != nil {
			args = append(args, "duration_s",
				float64(*sd.Duration)/scte35.TicksPerSecond)
		}
		log.Info("segmentation", args...)
	}
}

// adjustedPTS applies pts_adjustment modulo the 33-bit clock.
func adjustedPTS(pts, adj uint64) uint64 {
	return (pts + adj) & (uint64(mpegts.TimestampWrap) - 1)
}
