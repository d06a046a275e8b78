// Package drop provides the discarding output.
package drop

import (
	"flag"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
)

func init() {
	plugin.RegisterOutput("drop", "discard all packets",
		func() plugin.Output { return &output{} })
}

type output struct {
	tsp  plugin.TSP
	sent uint64
}

func (o *output) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	o.tsp = tsp
	return nil
}

func (o *output) Stop() error {
	o.tsp.Logger().Debug("discarded", "packets", o.sent)
	return nil
}

func (o *output) Send(pkts []mpegts.Packet) error {
	o.sent += uint64(len(pkts))
	return nil
}
