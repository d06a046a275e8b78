package mpegts

import (
	"bytes"
	"testing"
)

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()
	values := []int64{0, 1, 90000, 1234567890, TimestampWrap - 1}
	buf := make([]byte, 5)
	for _, v := range values {
		for _, prefix := range []byte{0x1, 0x2, 0x3} {
			if !WriteTimestamp(buf, prefix, v) {
				t.Fatalf("WriteTimestamp(%d) failed", v)
			}
			got, ok := ReadTimestamp(buf)
			if !ok || got != v%TimestampWrap {
				t.Errorf("timestamp round trip prefix %X: got %d, want %d", prefix, got, v)
			}
		}
	}
}

func TestTimestampWireFormat(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 5)
	WriteTimestamp(buf, 0x2, 0)
	if want := []byte{0x21, 0x00, 0x01, 0x00, 0x01}; !bytes.Equal(buf, want) {
		t.Errorf("PTS(0) = % X, want % X", buf, want)
	}
	WriteTimestamp(buf, 0x3, 90000)
	if want := []byte{0x31, 0x00, 0x05, 0xBF, 0x21}; !bytes.Equal(buf, want) {
		t.Errorf("PTS(90000) = % X, want % X", buf, want)
	}
	if _, ok := ReadTimestamp(buf[:4]); ok {
		t.Error("short read should fail")
	}
}

func buildPESHeader(pts, dts int64, hasDTS bool) []byte {
	headerLen := 5
	flags := byte(0x80)
	if hasDTS {
		headerLen = 10
		flags = 0xC0
	}
	b := make([]byte, 9+headerLen+4)
	b[2] = 0x01
	b[3] = 0xE0 // video stream id
	b[6] = 0x80
	b[7] = flags
	b[8] = byte(headerLen)
	if hasDTS {
		WriteTimestamp(b[9:], 0x3, pts)
		WriteTimestamp(b[14:], 0x1, dts)
	} else {
		WriteTimestamp(b[9:], 0x2, pts)
	}
	return b
}

func TestParsePESHeader(t *testing.T) {
	t.Parallel()
	b := buildPESHeader(90000, 87000, true)
	info, ok := ParsePESHeader(b)
	if !ok {
		t.Fatal("ParsePESHeader failed")
	}
	if info.StreamID != 0xE0 {
		t.Errorf("stream id = 0x%02X, want 0xE0", info.StreamID)
	}
	if !info.HasPTS || info.PTS != 90000 || info.PTSOffset != 9 {
		t.Errorf("PTS = %d at %d (has=%v), want 90000 at 9", info.PTS, info.PTSOffset, info.HasPTS)
	}
	if !info.HasDTS || info.DTS != 87000 || info.DTSOffset != 14 {
		t.Errorf("DTS = %d at %d (has=%v), want 87000 at 14", info.DTS, info.DTSOffset, info.HasDTS)
	}
	if info.DataOffset != 19 {
		t.Errorf("data offset = %d, want 19", info.DataOffset)
	}
}

func TestParsePESHeaderPTSOnly(t *testing.T) {
	t.Parallel()
	info, ok := ParsePESHeader(buildPESHeader(12345, 0, false))
	if !ok || !info.HasPTS || info.HasDTS {
		t.Fatalf("unexpected parse: %+v ok=%v", info, ok)
	}
	if info.PTS != 12345 || info.DataOffset != 14 {
		t.Errorf("PTS = %d, data offset = %d; want 12345, 14", info.PTS, info.DataOffset)
	}
}

func TestParsePESHeaderNoOptional(t *testing.T) {
	t.Parallel()
	b := []byte{0x00, 0x00, 0x01, 0xBF, 0x00, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	info, ok := ParsePESHeader(b)
	if !ok {
		t.Fatal("ParsePESHeader failed")
	}
	if info.HasPTS || info.DataOffset != 6 {
		t.Errorf("private_stream_2: %+v, want no PTS and data offset 6", info)
	}

	if _, ok := ParsePESHeader([]byte{0x47, 0x00, 0x00}); ok {
		t.Error("bad start code should fail")
	}
}
