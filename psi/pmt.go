package psi

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zsiec/tspipe/mpegts"
)

// PMTStream is one elementary stream entry of a Program Map Table.
type PMTStream struct {
	Type        uint8
	Descriptors DescriptorList
}

// IsVideo reports whether the stream carries video, by stream type.
func (s *PMTStream) IsVideo() bool {
	return mpegts.IsVideoType(s.Type)
}

// IsAudio reports whether the stream carries audio: either the stream type
// says so, or the descriptor loop holds a DTS, AC-3, Enhanced-AC-3, or AAC
// descriptor (audio in private data streams).
func (s *PMTStream) IsAudio() bool {
	if mpegts.IsAudioType(s.Type) {
		return true
	}
	return s.Descriptors.Contains(DescTagDTS) ||
		s.Descriptors.Contains(DescTagAC3) ||
		s.Descriptors.Contains(DescTagEnhancedAC3) ||
		s.Descriptors.Contains(DescTagAAC)
}

// IsSubtitles reports whether the stream carries subtitles: a subtitling
// descriptor, or a teletext descriptor with at least one language entry
// whose teletext_type is subtitle page (2) or subtitle page for hearing
// impaired (5).
func (s *PMTStream) IsSubtitles() bool {
	if s.Descriptors.Contains(DescTagSubtitling) {
		return true
	}
	count := s.Descriptors.Count()
	for i := s.Descriptors.Search(DescTagTeletext, 0); i < count; i = s.Descriptors.Search(DescTagTeletext, i+1) {
		data := s.Descriptors.At(i).Data
		// 5-byte entries: ISO-639 language (3), teletext_type + magazine (1),
		// page number (1).
		for off := 0; off+5 <= len(data); off += 5 {
			if tt := data[off+3] >> 3; tt == 2 || tt == 5 {
				return true
			}
		}
	}
	return false
}

// PMT is a Program Map Table. Streams maps elementary PIDs to their
// entries; serialization orders the map by ascending PID.
type PMT struct {
	Version     uint8
	IsCurrent   bool
	ServiceID   uint16
	PCRPID      uint16
	Descriptors DescriptorList
	Streams     map[uint16]*PMTStream
}

// NewPMT returns an empty current PMT for the given service, with no PCR
// (PID 0x1FFF).
func NewPMT(version uint8, serviceID uint16) *PMT {
	return &PMT{
		Version:   version,
		IsCurrent: true,
		ServiceID: serviceID,
		PCRPID:    mpegts.PIDNull,
		Streams:   make(map[uint16]*PMTStream),
	}
}

// AddStream inserts an elementary stream entry and returns it for
// descriptor population. An existing entry at the PID is replaced.
func (p *PMT) AddStream(pid uint16, streamType uint8) *PMTStream {
	s := &PMTStream{Type: streamType}
	p.Streams[pid] = s
	return s
}

// SortedPIDs returns the elementary PIDs in ascending order, the order
// Serialize writes them.
func (p *PMT) SortedPIDs() []uint16 {
	pids := make([]int, 0, len(p.Streams))
	for pid := range p.Streams {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)
	out := make([]uint16, len(pids))
	for i, pid := range pids {
		out[i] = uint16(pid)
	}
	return out
}

// ParsePMT extracts a PMT from a complete table with table_id 0x02. Stream
// entries repeated on the same PID keep the last occurrence. Declared
// descriptor loop lengths are clamped to the bytes actually present.
func ParsePMT(t *Table) (*PMT, error) {
	if t.TableID() != TableIDPMT {
		return nil, fmt.Errorf("%w: 0x%02X, want 0x%02X", ErrTableID, t.TableID(), TableIDPMT)
	}
	if !t.IsComplete() {
		return nil, fmt.Errorf("psi: incomplete PMT table")
	}

	pmt := &PMT{
		Version:   t.Version(),
		ServiceID: t.TableIDExtension(),
		Streams:   make(map[uint16]*PMTStream),
	}

	for i := 0; i < t.SectionCount(); i++ {
		sec := t.SectionAt(i)
		pmt.IsCurrent = sec.IsCurrent()

		b := sec.Payload()
		if len(b) < 4 {
			return nil, fmt.Errorf("%w: PMT payload of %d bytes", ErrShortSection, len(b))
		}
		pmt.PCRPID = binary.BigEndian.Uint16(b) & 0x1FFF

		infoLen := int(binary.BigEndian.Uint16(b[2:])) & 0x0FFF
		b = b[4:]
		if infoLen > len(b) {
			infoLen = len(b)
		}
		pmt.Descriptors.Add(b[:infoLen])
		b = b[infoLen:]

		for len(b) >= 5 {
			stream := &PMTStream{Type: b[0]}
			pid := binary.BigEndian.Uint16(b[1:]) & 0x1FFF
			esLen := int(binary.BigEndian.Uint16(b[3:])) & 0x0FFF
			b = b[5:]
			if esLen > len(b) {
				esLen = len(b)
			}
			stream.Descriptors.Add(b[:esLen])
			b = b[esLen:]
			// Last occurrence of a duplicated PID wins.
			pmt.Streams[pid] = stream
		}
	}
	return pmt, nil
}

// Serialize builds the PMT's single long section (single-section by
// standard) wrapped in a Table. It fails with [ErrOverflow] when the
// program does not fit in one section; callers must then restructure it.
func (p *PMT) Serialize() (*Table, error) {
	buf := make([]byte, MaxLongPayload)
	binary.BigEndian.PutUint16(buf, 0xE000|p.PCRPID&0x1FFF)

	n, next := p.Descriptors.LengthSerialize(buf[2:], 0)
	if next < p.Descriptors.Count() {
		return nil, fmt.Errorf("%w: program descriptors", ErrOverflow)
	}
	off := 2 + n

	for _, pid := range p.SortedPIDs() {
		s := p.Streams[pid]
		if off+5 > len(buf) {
			return nil, fmt.Errorf("%w: stream loop at PID 0x%04X", ErrOverflow, pid)
		}
		buf[off] = s.Type
		binary.BigEndian.PutUint16(buf[off+1:], 0xE000|pid&0x1FFF)
		n, next := s.Descriptors.LengthSerialize(buf[off+3:], 0)
		if next < s.Descriptors.Count() {
			return nil, fmt.Errorf("%w: descriptors of PID 0x%04X", ErrOverflow, pid)
		}
		off += 3 + n
	}

	sec, err := NewLongSection(TableIDPMT, false, p.ServiceID, p.Version, p.IsCurrent, 0, 0, buf[:off])
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if err := t.AddSection(sec); err != nil {
		return nil, err
	}
	return t, nil
}
