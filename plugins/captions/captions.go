// Package captions provides the caption monitoring processor: it
// extracts CEA-608 and CEA-708 captions from H.264 SEI NALUs on a chosen
// video PID and logs the decoded text. Packets pass through unmodified.
package captions

import (
	"bytes"
	"flag"
	"fmt"

	"github.com/zsiec/ccx"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/pids"
)

func init() {
	plugin.RegisterProcessor("captions", "log CEA-608/708 captions from an H.264 PID",
		func() plugin.Processor { return &processor{} })
}

const naluTypeSEI = 6

type processor struct {
	tsp plugin.TSP
	pid uint16

	pes      []byte
	accesses uint64 // PES units seen, for control-pair dedup

	cea608 map[int]*ccx.CEA608Decoder
	cea708 map[int]*ccx.CEA708Service

	// CEA-608 control pairs are transmitted twice for robustness; the
	// repeat within two access units is discarded.
	lastCtrl     [2][2]byte
	lastWasCtrl  [2]bool
	lastCtrlUnit [2]uint64

	dtvccBuf []byte
}

func (p *processor) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("captions", flag.ContinueOnError)
	pid := fs.String("pid", "", "H.264 video PID to extract captions from")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid == "" {
		return fmt.Errorf("captions: --pid is required")
	}
	v, err := pids.Parse(*pid)
	if err != nil {
		return fmt.Errorf("captions: %w", err)
	}
	p.tsp = tsp
	p.pid = v
	p.cea608 = map[int]*ccx.CEA608Decoder{
		1: ccx.NewCEA608Decoder(),
		2: ccx.NewCEA608Decoder(),
		3: ccx.NewCEA608Decoder(),
		4: ccx.NewCEA608Decoder(),
	}
	p.cea708 = map[int]*ccx.CEA708Service{
		1: ccx.NewCEA708Service(),
		2: ccx.NewCEA708Service(),
		3: ccx.NewCEA708Service(),
		4: ccx.NewCEA708Service(),
		5: ccx.NewCEA708Service(),
		6: ccx.NewCEA708Service(),
	}
	return nil
}

func (p *processor) Stop() error {
	p.flushPES()
	return nil
}

func (p *processor) Process(pkt *mpegts.Packet) (plugin.Verdict, error) {
	if pkt.PID() != p.pid {
		return plugin.VerdictOK, nil
	}
	if pkt.PayloadUnitStart() {
		p.flushPES()
	}
	p.pes = append(p.pes, pkt.Payload()...)
	return plugin.VerdictOK, nil
}

// flushPES decodes the buffered PES packet and resets the buffer.
func (p *processor) flushPES() {
	buf := p.pes
	p.pes = p.pes[:0]
	if len(buf) == 0 {
		return
	}
	info, ok := mpegts.ParsePESHeader(buf)
	if !ok || info.DataOffset >= len(buf) {
		return
	}
	p.accesses++

	var pts int64
	if info.HasPTS {
		pts = info.PTS
	}
	for _, sei := range seiNALUs(buf[info.DataOffset:]) {
		p.handleSEI(sei, pts)
	}
}

func (p *processor) handleSEI(sei []byte, pts int64) {
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return
	}

	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]
		if p.isRepeatedControl(int(pair.Field), cc1, cc2) {
			continue
		}
		dec := p.cea608[pair.Channel]
		if dec == nil {
			continue
		}
		if text := dec.Decode(cc1, cc2); text != "" {
			p.tsp.Logger().Info("caption",
				"standard", "cea608", "channel", pair.Channel, "pts", pts, "text", text)
		}
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			p.drainDTVCC(pts)
			p.dtvccBuf = p.dtvccBuf[:0]
		}
		p.dtvccBuf = append(p.dtvccBuf, t.Data[0], t.Data[1])
	}
}

func (p *processor) isRepeatedControl(field int, cc1, cc2 byte) bool {
	isCtrl := cc1 >= 0x10 && cc1 <= 0x1F
	if !isCtrl {
		p.lastWasCtrl[field] = false
		return false
	}
	cp := [2]byte{cc1, cc2}
	gap := p.accesses - p.lastCtrlUnit[field]
	if p.lastWasCtrl[field] && p.lastCtrl[field] == cp && gap <= 2 {
		p.lastWasCtrl[field] = false
		return true
	}
	p.lastCtrl[field] = cp
	p.lastWasCtrl[field] = true
	p.lastCtrlUnit[field] = p.accesses
	return false
}

func (p *processor) drainDTVCC(pts int64) {
	if len(p.dtvccBuf) < 1 {
		return
	}
	size := ccx.DTVCCPacketSize(p.dtvccBuf[0])
	if len(p.dtvccBuf) < size {
		return
	}
	for _, block := range ccx.ParseDTVCCPacket(p.dtvccBuf[:size]) {
		svc := p.cea708[block.ServiceNum]
		if svc == nil {
			continue
		}
		if svc.ProcessBlock(block.Data) {
			if text := svc.DisplayText(); text != "" {
				p.tsp.Logger().Info("caption",
					"standard", "cea708", "service", block.ServiceNum, "pts", pts, "text", text)
			}
		}
	}
	p.dtvccBuf = p.dtvccBuf[size:]
}

var naluStartCode = []byte{0x00, 0x00, 0x01}

// seiNALUs returns the SEI NALUs of an Annex-B elementary stream chunk,
// without their start codes.
func seiNALUs(es []byte) [][]byte {
	var out [][]byte
	for {
		i := bytes.Index(es, naluStartCode)
		if i < 0 {
			return out
		}
		es = es[i+len(naluStartCode):]
		if len(es) == 0 {
			return out
		}
		end := bytes.Index(es, naluStartCode)
		nal := es
		if end >= 0 {
			nal = es[:end]
			// A 4-byte start code leaves its leading zero on this NALU.
			if len(nal) > 0 && nal[len(nal)-1] == 0x00 {
				nal = nal[:len(nal)-1]
			}
		}
		if len(nal) > 0 && nal[0]&0x1F == naluTypeSEI {
			out = append(out, nal)
		}
		if end < 0 {
			return out
		}
		es = es[end:]
	}
}
