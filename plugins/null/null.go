// Package null provides the null packet generator input.
package null

import (
	"flag"
	"io"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

func init() {
	plugin.RegisterInput("null", "generate DVB null packets",
		func() plugin.Input { return &input{} })
}

type input struct {
	tsp       plugin.TSP
	count     uint64
	joint     bool
	generated uint64
	requested bool
}

func (i *input) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("null", flag.ContinueOnError)
	fs.Uint64Var(&i.count, "count", 0, "end after this many packets (0 = unlimited)")
	fs.BoolVar(&i.joint, "joint-termination", false,
		"request joint termination at --count instead of ending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	i.tsp = tsp
	if i.joint {
		tsp.UseJointTermination(true)
	}
	return nil
}

func (i *input) Stop() error { return nil }

func (i *input) Receive(buf []mpegts.Packet) (int, error) {
	n := len(buf)
	if i.count > 0 {
		left := i.count - min(i.generated, i.count)
		if i.joint {
			if left == 0 && !i.requested {
				// Keep generating after the request; the joint cutoff
				// decides where the stream actually ends.
				i.tsp.JointTerminate()
				i.requested = true
			}
		} else {
			if left == 0 {
				return 0, io.EOF
			}
			if uint64(n) > left {
				n = int(left)
			}
		}
	}
	for j := 0; j < n; j++ {
		buf[j] = mpegts.Null
	}
	i.generated += uint64(n)
	return n, nil
}
