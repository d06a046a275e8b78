// Package tsio provides byte-stream framing shared by the network and
// file plugins: recovering 188-byte packet alignment from arbitrary byte
// streams and grouping packets into the 1316-byte chunks used on UDP and
// SRT links.
package tsio

import (
	"bytes"

	"github.com/zsiec/tspipe/mpegts"
)

// ChunkPackets is the number of packets per network chunk. 7 packets fill
// 1316 bytes, the conventional payload size for TS over UDP and SRT.
const ChunkPackets = 7

// ChunkBytes is the byte size of a full network chunk.
const ChunkBytes = ChunkPackets * mpegts.PacketSize

// Reframer converts an arbitrary byte stream into aligned transport
// packets. Alignment requires a 0x47 sync byte at the current position
// and, when enough bytes are buffered, at the next packet boundary; on
// lost sync it discards bytes up to the next plausible sync position.
type Reframer struct {
	buf     []byte
	off     int
	resyncs int
}

// Push appends raw bytes to the reframer.
func (r *Reframer) Push(p []byte) {
	if r.off > 0 && r.off == len(r.buf) {
		r.buf = r.buf[:0]
		r.off = 0
	}
	r.buf = append(r.buf, p...)
}

// Next extracts the next aligned packet into pkt. It reports false when
// fewer than a packet's worth of aligned bytes remain buffered.
func (r *Reframer) Next(pkt *mpegts.Packet) bool {
	for {
		avail := r.buf[r.off:]
		if len(avail) < mpegts.PacketSize {
			r.compact()
			return false
		}
		if avail[0] == mpegts.SyncByte &&
			(len(avail) < mpegts.PacketSize+1 || avail[mpegts.PacketSize] == mpegts.SyncByte) {
			copy(pkt[:], avail[:mpegts.PacketSize])
			r.off += mpegts.PacketSize
			return true
		}
		// Lost sync: skip to the next candidate sync byte.
		r.resyncs++
		i := bytes.IndexByte(avail[1:], mpegts.SyncByte)
		if i < 0 {
			r.buf = r.buf[:0]
			r.off = 0
			return false
		}
		r.off += 1 + i
	}
}

// Resyncs returns how many times alignment was lost and re-acquired.
func (r *Reframer) Resyncs() int { return r.resyncs }

// compact drops consumed bytes once the prefix dominates the buffer, so
// the buffer does not grow without bound across partial reads.
func (r *Reframer) compact() {
	if r.off > len(r.buf)/2 {
		r.buf = append(r.buf[:0], r.buf[r.off:]...)
		r.off = 0
	}
}

// CopyChunk copies up to ChunkPackets packets from pkts into buf, which
// must hold at least ChunkBytes, and returns the byte length written and
// the number of packets consumed.
func CopyChunk(buf []byte, pkts []mpegts.Packet) (n, consumed int) {
	consumed = min(len(pkts), ChunkPackets)
	for i := 0; i < consumed; i++ {
		n += copy(buf[n:], pkts[i][:])
	}
	return n, consumed
}
