// Package shift provides the timestamp shifting processor, adding a
// fixed offset to every PCR, PTS, and DTS in the stream.
package shift

import (
	"flag"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

func init() {
	plugin.RegisterProcessor("shift", "add a fixed offset to PCR, PTS, and DTS",
		func() plugin.Processor { return &processor{} })
}

// pcrWrap is the modulus of the 42-bit-equivalent PCR counter: the
// 33-bit base times the 300-tick extension.
const pcrWrap = mpegts.TimestampWrap * 300

type processor struct {
	ptsDelta int64 // 90 kHz ticks
	pcrDelta int64 // 27 MHz ticks
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("shift", flag.ContinueOnError)
	ms := fs.Int64("milliseconds", 0, "offset to add, may be negative")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ms == 0 {
		return fmt.Errorf("shift: --milliseconds must be non-zero")
	}
	p.ptsDelta = *ms * (mpegts.ClockRate90kHz / 1000)
	p.pcrDelta = *ms * (mpegts.ClockRate27MHz / 1000)
	return nil
}

func (p *processor) Stop() error { return nil }

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	if pcr, ok := pkt.PCR(); ok {
		pkt.SetPCR(wrap(pcr+p.pcrDelta, pcrWrap))
	}
	if pkt.PayloadUnitStart() {
		p.shiftPES(pkt)
	}
	return plugin.VerdictOK, nil
}

// shiftPES patches the PTS and DTS of a PES header starting in this
// packet. Headers whose timestamp fields straddle a packet boundary are
// left alone; PES headers in practice fit the first packet.
func (p *processor) shiftPES(pkt *mpegts.Packet) {
	payload := pkt.Payload()
	info, ok := mpegts.ParsePESHeader(payload)
	if !ok {
		return
	}
	if info.HasPTS {
		prefix := byte(0x2)
		if info.HasDTS {
			prefix = 0x3
		}
		mpegts.WriteTimestamp(payload[info.PTSOffset:], prefix,
			wrap(info.PTS+p.ptsDelta, mpegts.TimestampWrap))
	}
	if info.HasDTS {
		mpegts.WriteTimestamp(payload[info.DTSOffset:], 0x1,
			wrap(info.DTS+p.ptsDelta, mpegts.TimestampWrap))
	}
}

// wrap reduces v into [0, mod), handling negative offsets.
func wrap(v, mod int64) int64 {
	return ((v % mod) + mod) % mod
}
