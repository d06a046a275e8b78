// Package mjd converts between Modified Julian Date fields and UTC time.
//
// DVB service information encodes timestamps as a 16-bit MJD day count
// (days since 1858-11-17), optionally followed by two or three bytes of
// BCD time of day, per ETSI EN 300 468 annex C.
package mjd

import (
	"errors"
	"fmt"
	"time"
)

// Encoded sizes accepted by [Decode]. [Encode] accepts DateSize and
// DateTimeSize only; the 4-byte middle form occurs in the wild and is
// decode-only.
const (
	DateSize     = 2
	DateHMSize   = 4
	DateTimeSize = 5
)

var (
	ErrBadSize   = errors.New("mjd: invalid encoded size")
	ErrBadBCD    = errors.New("mjd: invalid BCD digit")
	ErrDateRange = errors.New("mjd: date precedes 1900-03-01")
)

// Decode converts a 2, 4, or 5 byte MJD field to a UTC timestamp. Bytes 0-1
// are the big-endian day count; bytes 2-4, when present, are BCD hours,
// minutes, and seconds.
func Decode(b []byte) (time.Time, error) {
	switch len(b) {
	case DateSize, DateHMSize, DateTimeSize:
	default:
		return time.Time{}, fmt.Errorf("%w: %d bytes", ErrBadSize, len(b))
	}

	// Day count to Y/M/D per EN 300 468 annex C.
	mjd := float64(int(b[0])<<8 | int(b[1]))
	yp := int((mjd - 15078.2) / 365.25)
	mp := int((mjd - 14956.1 - float64(int(float64(yp)*365.25))) / 30.6001)
	day := int(mjd) - 14956 - int(float64(yp)*365.25) - int(float64(mp)*30.6001)
	k := 0
	if mp == 14 || mp == 15 {
		k = 1
	}
	year := 1900 + yp + k
	month := mp - 1 - 12*k

	var clock [3]int
	for i, bcd := range b[2:] {
		v, ok := fromBCD(bcd)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: 0x%02X", ErrBadBCD, bcd)
		}
		clock[i] = v
	}

	return time.Date(year, time.Month(month), day, clock[0], clock[1], clock[2], 0, time.UTC), nil
}

// Encode converts a UTC timestamp to its MJD field. size must be DateSize or
// DateTimeSize. Encoding fails for dates before 1900-03-01, where the day
// count formula is undefined, and for DateSize when the time of day is not
// midnight (the field cannot represent it).
func Encode(t time.Time, size int) ([]byte, error) {
	switch size {
	case DateSize, DateTimeSize:
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, size)
	}

	t = t.UTC()
	year, month, day := t.Date()
	if year < 1900 || (year == 1900 && month < time.March) {
		return nil, fmt.Errorf("%w: %s", ErrDateRange, t.Format("2006-01-02"))
	}
	if size == DateSize && (t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0) {
		return nil, fmt.Errorf("mjd: date-only field cannot hold %02d:%02d:%02d",
			t.Hour(), t.Minute(), t.Second())
	}

	l := 0
	if month == time.January || month == time.February {
		l = 1
	}
	mjd := 14956 + day +
		int(float64(year-1900-l)*365.25) +
		int(float64(int(month)+1+12*l)*30.6001)

	b := make([]byte, size)
	b[0] = byte(mjd >> 8)
	b[1] = byte(mjd)
	if size == DateTimeSize {
		b[2] = toBCD(t.Hour())
		b[3] = toBCD(t.Minute())
		b[4] = toBCD(t.Second())
	}
	return b, nil
}

func toBCD(v int) byte {
	return byte(v/10<<4 | v%10)
}

func fromBCD(b byte) (int, bool) {
	hi, lo := int(b>>4), int(b&0x0F)
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}
