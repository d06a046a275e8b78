package scte35

import "fmt"

// Splice descriptor framing.
const (
	segmentationDescriptorTag = 0x02
	cueIdentifier             = 0x43554549 // "CUEI"
)

// Segmentation type ids per SCTE-35 table 22, the subset commonly seen
// in ad-insertion signalling.
const (
	SegTypeNotIndicated          uint8 = 0x00
	SegTypeContentIdentification uint8 = 0x01
	SegTypeProgramStart          uint8 = 0x10
	SegTypeProgramEnd            uint8 = 0x11
	SegTypeChapterStart          uint8 = 0x20
	SegTypeChapterEnd            uint8 = 0x21
	SegTypeBreakStart            uint8 = 0x22
	SegTypeBreakEnd              uint8 = 0x23
	SegTypeProviderAdStart       uint8 = 0x30
	SegTypeProviderAdEnd         uint8 = 0x31
	SegTypeDistributorAdStart    uint8 = 0x32
	SegTypeDistributorAdEnd      uint8 = 0x33
	SegTypeProviderPOStart       uint8 = 0x34
	SegTypeProviderPOEnd         uint8 = 0x35
	SegTypeDistributorPOStart    uint8 = 0x36
	SegTypeDistributorPOEnd      uint8 = 0x37
	SegTypeUnscheduledEventStart uint8 = 0x40
	SegTypeUnscheduledEventEnd   uint8 = 0x41
	SegTypeNetworkStart          uint8 = 0x50
	SegTypeNetworkEnd            uint8 = 0x51
)

var segTypeNames = map[uint8]string{
	SegTypeNotIndicated:          "Not Indicated",
	SegTypeContentIdentification: "Content Identification",
	SegTypeProgramStart:          "Program Start",
	SegTypeProgramEnd:            "Program End",
	SegTypeChapterStart:          "Chapter Start",
	SegTypeChapterEnd:            "Chapter End",
	SegTypeBreakStart:            "Break Start",
	SegTypeBreakEnd:              "Break End",
	SegTypeProviderAdStart:       "Provider Advertisement Start",
	SegTypeProviderAdEnd:         "Provider Advertisement End",
	SegTypeDistributorAdStart:    "Distributor Advertisement Start",
	SegTypeDistributorAdEnd:      "Distributor Advertisement End",
	SegTypeProviderPOStart:       "Provider Placement Opportunity Start",
	SegTypeProviderPOEnd:         "Provider Placement Opportunity End",
	SegTypeDistributorPOStart:    "Distributor Placement Opportunity Start",
	SegTypeDistributorPOEnd:      "Distributor Placement Opportunity End",
	SegTypeUnscheduledEventStart: "Unscheduled Event Start",
	SegTypeUnscheduledEventEnd:   "Unscheduled Event End",
	SegTypeNetworkStart:          "Network Start",
	SegTypeNetworkEnd:            "Network End",
}

// SegmentationDescriptor is one segmentation_descriptor from the
// section's descriptor loop.
type SegmentationDescriptor struct {
	EventID          uint32
	Cancel           bool
	TypeID           uint8
	Duration         *uint64 // 90 kHz, nil when unbounded
	SegmentNum       uint8
	SegmentsExpected uint8
}

// TypeName returns the human-readable name of the segmentation type.
func (sd SegmentationDescriptor) TypeName() string {
	if name, ok := segTypeNames[sd.TypeID]; ok {
		return name
	}
	return fmt.Sprintf("Segmentation Type 0x%02X", sd.TypeID)
}

// parseDescriptorLoop walks the splice descriptor loop and decodes the
// CUEI segmentation descriptors, skipping everything else. Malformed
// trailing descriptors are discarded.
func parseDescriptorLoop(loop []byte) []SegmentationDescriptor {
	var out []SegmentationDescriptor
	for len(loop) >= 2 {
		tag, length := loop[0], int(loop[1])
		if 2+length > len(loop) {
			break
		}
		body := loop[2 : 2+length]
		loop = loop[2+length:]

		if tag != segmentationDescriptorTag || len(body) < 4 {
			continue
		}
		r := newBitReader(body)
		if r.uint32(32) != cueIdentifier {
			continue
		}
		if sd, ok := parseSegmentation(r); ok {
			out = append(out, sd)
		}
	}
	return out
}

func parseSegmentation(r *bitReader) (SegmentationDescriptor, bool) {
	var sd SegmentationDescriptor
	sd.EventID = r.uint32(32)
	sd.Cancel = r.bit()
	r.skip(7)

	if !sd.Cancel {
		programSeg := r.bit()
		durationFlag := r.bit()
		r.skip(1) // delivery_not_restricted_flag
		r.skip(5) // restriction flags, or reserved
		if !programSeg {
			count := int(r.uint8(8))
			r.skip(count * 48) // component_tag + pts_offset per component
		}
		if durationFlag {
			d := r.uint64(40)
			sd.Duration = &d
		}
		r.skip(8) // upid_type
		upidLen := int(r.uint8(8))
		r.skip(upidLen * 8)
		sd.TypeID = r.uint8(8)
		sd.SegmentNum = r.uint8(8)
		sd.SegmentsExpected = r.uint8(8)
	}
	return sd, !r.truncated
}
