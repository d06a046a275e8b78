// Package srt provides the SRT input and output. The input accepts one
// connection in listener mode or dials out in caller mode; the output is
// caller-only. Payloads are 1316-byte chunks of whole transport packets.
package srt

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/tsio"
)

func init() {
	plugin.RegisterInput("srt", "receive a transport stream over SRT",
		func() plugin.Input { return &input{} })
	plugin.RegisterOutput("srt", "send the transport stream over SRT (caller)",
		func() plugin.Output { return &output{} })
}

const defaultLatency = 120 * time.Millisecond

type input struct {
	tsp      plugin.TSP
	listener string
	caller   string
	streamID string
	latency  time.Duration

	mu   sync.Mutex
	l    *srtgo.Listener
	conn *srtgo.Conn

	rf      tsio.Reframer
	scratch []byte
}

func (i *input) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("srt", flag.ContinueOnError)
	fs.StringVar(&i.listener, "listener", "", "listen address (listener mode)")
	fs.StringVar(&i.caller, "caller", "", "remote address (caller mode)")
	fs.StringVar(&i.streamID, "stream-id", "", "SRT stream id to send or require")
	fs.DurationVar(&i.latency, "latency", defaultLatency, "SRT latency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (i.listener == "") == (i.caller == "") {
		return fmt.Errorf("srt: exactly one of --listener and --caller is required")
	}
	i.tsp = tsp
	i.scratch = make([]byte, tsio.ChunkBytes*10)

	cfg := srtgo.DefaultConfig()
	cfg.Latency = i.latency

	if i.caller != "" {
		cfg.StreamID = i.streamID
		conn, err := srtgo.Dial(i.caller, cfg)
		if err != nil {
			return fmt.Errorf("srt: dialing %s: %w", i.caller, err)
		}
		i.setConn(conn)
		tsp.Logger().Info("connected", "remote", i.caller)
		return nil
	}

	l, err := srtgo.Listen(i.listener, cfg)
	if err != nil {
		return fmt.Errorf("srt: listening on %s: %w", i.listener, err)
	}
	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if i.streamID != "" && req.StreamID != i.streamID {
			return srtgo.RejPeer
		}
		return 0
	})
	i.mu.Lock()
	i.l = l
	i.mu.Unlock()
	tsp.Logger().Info("listening", "addr", i.listener)
	return nil
}

func (i *input) Stop() error {
	i.Interrupt()
	return nil
}

func (i *input) Interrupt() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.l != nil {
		i.l.Close()
		i.l = nil
	}
	if i.conn != nil {
		i.conn.Close()
		i.conn = nil
	}
}

func (i *input) setConn(conn *srtgo.Conn) {
	i.mu.Lock()
	i.conn = conn
	i.mu.Unlock()
}

func (i *input) accept() (*srtgo.Conn, error) {
	i.mu.Lock()
	conn, l := i.conn, i.l
	i.mu.Unlock()
	if conn != nil {
		return conn, nil
	}
	if l == nil {
		return nil, io.EOF // interrupted before a connection arrived
	}
	conn, err := l.Accept()
	if err != nil {
		if i.tsp.Aborting() {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("srt: accept: %w", err)
	}
	i.setConn(conn)
	i.tsp.Logger().Info("publisher connected",
		"remote", conn.RemoteAddr(), "stream_id", conn.StreamID())
	return conn, nil
}

func (i *input) Receive(buf []mpegts.Packet) (int, error) {
	conn, err := i.accept()
	if err != nil {
		return 0, err
	}
	for {
		got := 0
		for got < len(buf) && i.rf.Next(&buf[got]) {
			got++
		}
		if got > 0 {
			return got, nil
		}
		n, rerr := conn.Read(i.scratch)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || i.tsp.Aborting() {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("srt: read: %w", rerr)
		}
		i.rf.Push(i.scratch[:n])
	}
}

type output struct {
	mu    sync.Mutex
	conn  *srtgo.Conn
	chunk [tsio.ChunkBytes]byte
}

func (o *output) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("srt", flag.ContinueOnError)
	caller := fs.String("caller", "", "remote address to dial")
	streamID := fs.String("stream-id", "", "SRT stream id to announce")
	latency := fs.Duration("latency", defaultLatency, "SRT latency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *caller == "" {
		return fmt.Errorf("srt: --caller is required")
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = *latency
	cfg.StreamID = *streamID

	conn, err := srtgo.Dial(*caller, cfg)
	if err != nil {
		return fmt.Errorf("srt: dialing %s: %w", *caller, err)
	}
	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()
	tsp.Logger().Info("connected", "remote", *caller)
	return nil
}

func (o *output) Stop() error {
	o.Interrupt()
	return nil
}

func (o *output) Interrupt() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
}

func (o *output) Send(pkts []mpegts.Packet) error {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("srt: connection closed")
	}
	for len(pkts) > 0 {
		n, consumed := tsio.CopyChunk(o.chunk[:], pkts)
		if _, err := conn.Write(o.chunk[:n]); err != nil {
			return fmt.Errorf("srt: write: %w", err)
		}
		pkts = pkts[consumed:]
	}
	return nil
}
