// Package mpegts implements the MPEG-2 transport stream packet layer:
// the fixed 188-byte packet codec with header and adaptation field
// accessors, PCR/PTS/DTS timestamp arithmetic, elementary stream type
// classification, and the CRC-32/MPEG-2 checksum shared by the PSI
// section codecs.
//
// [Packet] is a value type so that packet buffers are single contiguous
// allocations; all accessors take pointer receivers and operate in place.
package mpegts
