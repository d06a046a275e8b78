// Package scte35 parses SCTE-35 splice information sections for
// monitoring. It decodes the splice_null, splice_insert, and time_signal
// commands with their splice times and break durations, plus the
// segmentation descriptor, which covers the signalling seen in broadcast
// ad-insertion workflows. Encoding is out of scope.
package scte35

import (
	"errors"
	"fmt"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/psi"
)

// TableID of splice_info sections per ANSI/SCTE 35.
const TableID uint8 = 0xFC

// TicksPerSecond is the 90 kHz clock all splice times tick at.
const TicksPerSecond = 90_000

var (
	ErrTableID   = errors.New("scte35: not a splice_info section")
	ErrBadCRC    = errors.New("scte35: CRC32 mismatch")
	ErrTruncated = errors.New("scte35: section truncated")
	ErrEncrypted = errors.New("scte35: encrypted section")
)

// CommandType identifies the splice command of a section.
type CommandType uint8

const (
	CommandSpliceNull   CommandType = 0x00
	CommandSpliceInsert CommandType = 0x05
	CommandTimeSignal   CommandType = 0x06
)

func (c CommandType) String() string {
	switch c {
	case CommandSpliceNull:
		return "splice_null"
	case CommandSpliceInsert:
		return "splice_insert"
	case CommandTimeSignal:
		return "time_signal"
	}
	return fmt.Sprintf("command_0x%02X", uint8(c))
}

// BreakDuration is the planned length of a commercial break.
type BreakDuration struct {
	AutoReturn bool
	Ticks      uint64 // 90 kHz
}

// Seconds converts the break duration to seconds.
func (b BreakDuration) Seconds() float64 {
	return float64(b.Ticks) / TicksPerSecond
}

// SpliceInsert is the decoded splice_insert command. SpliceTime is the
// program splice PTS when one was specified and the splice is not
// immediate.
type SpliceInsert struct {
	EventID         uint32
	Cancel          bool
	OutOfNetwork    bool
	Immediate       bool
	SpliceTime      *uint64 // 90 kHz
	Duration        *BreakDuration
	UniqueProgramID uint16
	AvailNum        uint8
	AvailsExpected  uint8
}

// TimeSignal is the decoded time_signal command.
type TimeSignal struct {
	PTS *uint64 // 90 kHz, nil when no time was specified
}

// SpliceInfo is one parsed splice_info section. Exactly one of Insert
// and Signal is set for the corresponding command types; both are nil
// for splice_null and unrecognized commands.
type SpliceInfo struct {
	Command       CommandType
	PTSAdjustment uint64 // 90 kHz, added to all embedded splice times
	Tier          uint16
	Insert        *SpliceInsert
	Signal        *TimeSignal
	Segmentations []SegmentationDescriptor
}

// Parse decodes the splice_info section. The section must carry table_id
// 0xFC and a valid CRC-32/MPEG-2 (SCTE-35 sections check their CRC even
// though the section syntax indicator is clear). Encrypted sections are
// rejected.
func Parse(sec *psi.Section) (*SpliceInfo, error) {
	if sec.TableID() != TableID {
		return nil, fmt.Errorf("%w: table id 0x%02X", ErrTableID, sec.TableID())
	}
	if !mpegts.CRC32Valid(sec.Bytes()) {
		return nil, ErrBadCRC
	}

	body := sec.Payload()
	if len(body) < psi.CRCSize {
		return nil, ErrTruncated
	}
	body = body[:len(body)-psi.CRCSize]

	r := newBitReader(body)
	r.skip(8) // protocol_version
	if r.bit() {
		return nil, ErrEncrypted
	}
	r.skip(6) // encryption_algorithm

	info := &SpliceInfo{}
	info.PTSAdjustment = r.uint64(33)
	r.skip(8) // cw_index
	info.Tier = r.uint16(12)

	cmdLen := int(r.uint32(12))
	info.Command = CommandType(r.uint8(8))
	if r.truncated || cmdLen > (len(body)*8-r.pos)/8 {
		return nil, ErrTruncated
	}
	cmd := r.bytes(cmdLen)

	switch info.Command {
	case CommandSpliceInsert:
		ins, err := parseSpliceInsert(cmd)
		if err != nil {
			return nil, err
		}
		info.Insert = ins
	case CommandTimeSignal:
		cr := newBitReader(cmd)
		ts := &TimeSignal{PTS: readSpliceTime(cr)}
		if cr.truncated {
			return nil, ErrTruncated
		}
		info.Signal = ts
	}

	loopLen := int(r.uint16(16))
	if r.truncated || loopLen > (len(body)*8-r.pos)/8 {
		return nil, ErrTruncated
	}
	info.Segmentations = parseDescriptorLoop(r.bytes(loopLen))

	return info, nil
}

func parseSpliceInsert(data []byte) (*SpliceInsert, error) {
	r := newBitReader(data)
	ins := &SpliceInsert{}
	ins.EventID = r.uint32(32)
	ins.Cancel = r.bit()
	r.skip(7)

	if !ins.Cancel {
		ins.OutOfNetwork = r.bit()
		programSplice := r.bit()
		durationFlag := r.bit()
		ins.Immediate = r.bit()
		r.skip(4)

		if programSplice {
			if !ins.Immediate {
				ins.SpliceTime = readSpliceTime(r)
			}
		} else {
			// Component mode: skip the per-component splice times, they
			// are not used by program-level monitoring.
			count := int(r.uint8(8))
			for i := 0; i < count; i++ {
				r.skip(8)
				if !ins.Immediate {
					readSpliceTime(r)
				}
			}
		}

		if durationFlag {
			bd := &BreakDuration{}
			bd.AutoReturn = r.bit()
			r.skip(6)
			bd.Ticks = r.uint64(33)
			ins.Duration = bd
		}
	}

	ins.UniqueProgramID = r.uint16(16)
	ins.AvailNum = r.uint8(8)
	ins.AvailsExpected = r.uint8(8)
	if r.truncated {
		return nil, ErrTruncated
	}
	return ins, nil
}

// readSpliceTime decodes one splice_time(): a time_specified flag
// followed by a 33-bit PTS, or 7 reserved bits.
func readSpliceTime(r *bitReader) *uint64 {
	if r.bit() {
		r.skip(6)
		pts := r.uint64(33)
		return &pts
	}
	r.skip(7)
	return nil
}
