package mpegts

// Elementary stream type values from ISO/IEC 13818-1 table 2-29 and the
// ATSC/SCTE registrations seen in broadcast streams.
const (
	StreamTypeMPEG1Video      uint8 = 0x01
	StreamTypeMPEG2Video      uint8 = 0x02
	StreamTypeMPEG1Audio      uint8 = 0x03
	StreamTypeMPEG2Audio      uint8 = 0x04
	StreamTypePrivateSections uint8 = 0x05
	StreamTypePrivateData     uint8 = 0x06
	StreamTypeADTSAAC         uint8 = 0x0F
	StreamTypeMPEG4Video      uint8 = 0x10
	StreamTypeLATMAAC         uint8 = 0x11
	StreamTypeH264            uint8 = 0x1B
	StreamTypeH265            uint8 = 0x24
	StreamTypeATSCAC3         uint8 = 0x81
	StreamTypeSCTE35          uint8 = 0x86
	StreamTypeATSCEAC3        uint8 = 0x87
)

// IsVideoType reports whether st identifies a video elementary stream.
func IsVideoType(st uint8) bool {
	switch st {
	case StreamTypeMPEG1Video, StreamTypeMPEG2Video, StreamTypeMPEG4Video,
		StreamTypeH264, StreamTypeH265:
		return true
	}
	return false
}

// IsAudioType reports whether st identifies an audio elementary stream by
// stream type alone. Audio carried as private data (DVB AC-3 and friends)
// is identified by descriptors instead.
func IsAudioType(st uint8) bool {
	switch st {
	case StreamTypeMPEG1Audio, StreamTypeMPEG2Audio, StreamTypeADTSAAC,
		StreamTypeLATMAAC, StreamTypeATSCAC3, StreamTypeATSCEAC3:
		return true
	}
	return false
}
