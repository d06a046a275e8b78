// Package udp provides the UDP input and output. Datagrams carry whole
// 188-byte packets, conventionally seven per datagram; RTP encapsulation
// is not handled.
package udp

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/tsio"
)

func init() {
	plugin.RegisterInput("udp", "receive packets from UDP datagrams",
		func() plugin.Input { return &input{} })
	plugin.RegisterOutput("udp", "send packets as UDP datagrams",
		func() plugin.Output { return &output{} })
}

type input struct {
	tsp     plugin.TSP
	conn    *net.UDPConn
	bufSize int
	rf      tsio.Reframer
	scratch []byte
}

func (i *input) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("udp", flag.ContinueOnError)
	fs.IntVar(&i.bufSize, "buffer-size", 0, "socket receive buffer size (SO_RCVBUF) in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	i.tsp = tsp

	addr, err := net.ResolveUDPAddr("udp", fs.Arg(0))
	if err != nil {
		return fmt.Errorf("udp: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: %w", err)
	}
	if i.bufSize > 0 {
		if err := conn.SetReadBuffer(i.bufSize); err != nil {
			tsp.Logger().Warn("setting receive buffer", "bytes", i.bufSize, "error", err)
		}
	}
	i.conn = conn
	i.scratch = make([]byte, 64<<10)
	tsp.Logger().Info("listening", "addr", conn.LocalAddr())
	return nil
}

func (i *input) Stop() error {
	if n := i.rf.Resyncs(); n > 0 {
		i.tsp.Logger().Warn("datagrams carried misaligned packets", "resyncs", n)
	}
	return i.closeConn()
}

func (i *input) Interrupt() { i.closeConn() }

func (i *input) closeConn() error {
	if i.conn == nil {
		return nil
	}
	return i.conn.Close()
}

func (i *input) Receive(buf []mpegts.Packet) (int, error) {
	for {
		got := 0
		for got < len(buf) && i.rf.Next(&buf[got]) {
			got++
		}
		if got > 0 {
			return got, nil
		}
		n, _, err := i.conn.ReadFromUDP(i.scratch)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("udp: %w", err)
		}
		i.rf.Push(i.scratch[:n])
	}
}

type output struct {
	conn  *net.UDPConn
	chunk [tsio.ChunkBytes]byte
}

func (o *output) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("udp", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := net.ResolveUDPAddr("udp", fs.Arg(0))
	if err != nil {
		return fmt.Errorf("udp: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("udp: %w", err)
	}
	o.conn = conn
	tsp.Logger().Info("sending", "addr", addr)
	return nil
}

func (o *output) Stop() error {
	if o.conn == nil {
		return nil
	}
	return o.conn.Close()
}

func (o *output) Send(pkts []mpegts.Packet) error {
	for len(pkts) > 0 {
		n, consumed := tsio.CopyChunk(o.chunk[:], pkts)
		if _, err := o.conn.Write(o.chunk[:n]); err != nil {
			return fmt.Errorf("udp: %w", err)
		}
		pkts = pkts[consumed:]
	}
	return nil
}
