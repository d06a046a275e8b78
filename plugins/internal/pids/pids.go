// Package pids provides a repeatable PID flag shared by the plugins that
// select packets by PID.
package pids

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/zsiec/tspipe/mpegts"
)

// List is a repeatable flag.Value collecting 13-bit PIDs. Values parse
// as decimal or 0x-prefixed hex; one flag occurrence may carry several
// PIDs separated by commas.
type List struct {
	pids []uint16
}

var _ flag.Value = (*List)(nil)

func (l *List) String() string {
	parts := make([]string, len(l.pids))
	for i, pid := range l.pids {
		parts[i] = strconv.FormatUint(uint64(pid), 10)
	}
	return strings.Join(parts, ",")
}

func (l *List) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		pid, err := Parse(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		l.pids = append(l.pids, pid)
	}
	return nil
}

// PIDs returns the collected PIDs in flag order.
func (l *List) PIDs() []uint16 { return l.pids }

// Empty reports whether no PID was given.
func (l *List) Empty() bool { return len(l.pids) == 0 }

// Mask returns a membership lookup over the collected PIDs.
func (l *List) Mask() map[uint16]bool {
	m := make(map[uint16]bool, len(l.pids))
	for _, pid := range l.pids {
		m[pid] = true
	}
	return m
}

// Parse converts one decimal or 0x-prefixed hex PID value.
func Parse(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v >= uint64(mpegts.PIDMax) {
		return 0, fmt.Errorf("invalid PID %q (0..%d, decimal or 0x hex)", s, mpegts.PIDMax-1)
	}
	return uint16(v), nil
}
