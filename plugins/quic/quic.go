// Package quic provides the QUIC input and output. The transport stream
// rides a single unidirectional stream; the server side presents an
// ephemeral self-signed certificate that clients pin by SHA-256
// fingerprint.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/tspipe/certs"
	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/tsio"
)

func init() {
	plugin.RegisterInput("quic", "receive a transport stream over QUIC",
		func() plugin.Input { return &input{} })
	plugin.RegisterOutput("quic", "send the transport stream over QUIC",
		func() plugin.Output { return &output{} })
}

// alpn is the application protocol negotiated on every connection.
const alpn = "tspipe"

const (
	dialTimeout = 10 * time.Second
	idleTimeout = 30 * time.Second
)

type input struct {
	tsp    plugin.TSP
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener *quic.Listener

	stream  quic.ReceiveStream
	rf      tsio.Reframer
	scratch []byte
}

func (i *input) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("quic", flag.ContinueOnError)
	listen := fs.String("listen", "", "UDP address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return fmt.Errorf("quic: --listen is required")
	}
	i.tsp = tsp
	i.ctx, i.cancel = context.WithCancel(context.Background())
	i.scratch = make([]byte, 64<<10)

	cert, err := certs.Generate(0)
	if err != nil {
		return fmt.Errorf("quic: %w", err)
	}
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert.TLSCert},
		NextProtos:   []string{alpn},
	}
	l, err := quic.ListenAddr(*listen, tlsConf, &quic.Config{MaxIdleTimeout: idleTimeout})
	if err != nil {
		return fmt.Errorf("quic: listening on %s: %w", *listen, err)
	}
	i.mu.Lock()
	i.listener = l
	i.mu.Unlock()
	tsp.Logger().Info("listening",
		"addr", l.Addr(), "cert_sha256", cert.FingerprintHex())
	return nil
}

func (i *input) Stop() error {
	i.Interrupt()
	return nil
}

func (i *input) Interrupt() {
	if i.cancel != nil {
		i.cancel()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener != nil {
		i.listener.Close()
		i.listener = nil
	}
}

// accept waits for the first connection and its unidirectional stream.
func (i *input) accept() error {
	if i.stream != nil {
		return nil
	}
	i.mu.Lock()
	l := i.listener
	i.mu.Unlock()
	if l == nil {
		return io.EOF
	}
	conn, err := l.Accept(i.ctx)
	if err != nil {
		if i.ctx.Err() != nil {
			return io.EOF
		}
		return fmt.Errorf("quic: accept: %w", err)
	}
	stream, err := conn.AcceptUniStream(i.ctx)
	if err != nil {
		if i.ctx.Err() != nil {
			return io.EOF
		}
		return fmt.Errorf("quic: accepting stream: %w", err)
	}
	i.stream = stream
	i.tsp.Logger().Info("sender connected", "remote", conn.RemoteAddr())
	return nil
}

func (i *input) Receive(buf []mpegts.Packet) (int, error) {
	if err := i.accept(); err != nil {
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
		n, err := i.stream.Read(i.scratch)
		if n > 0 {
			i.rf.Push(i.scratch[:n])
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || i.ctx.Err() != nil {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("quic: read: %w", err)
		}
	}
}

type output struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   quic.Connection
	stream quic.SendStream
	buf    []byte
}

func (o *output) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("quic", flag.ContinueOnError)
	dial := fs.String("dial", "", "server address to dial")
	insecure := fs.Bool("insecure", false, "skip server certificate verification")
	certHash := fs.String("cert-hash", "", "pin the server certificate by SHA-256 hex fingerprint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dial == "" {
		return fmt.Errorf("quic: --dial is required")
	}
	if *insecure && *certHash != "" {
		return fmt.Errorf("quic: --insecure and --cert-hash are exclusive")
	}

	tlsConf := &tls.Config{NextProtos: []string{alpn}}
	switch {
	case *certHash != "":
		verify, err := certs.VerifyFingerprint(*certHash)
		if err != nil {
			return fmt.Errorf("quic: %w", err)
		}
		tlsConf.InsecureSkipVerify = true
		tlsConf.VerifyPeerCertificate = verify
	case *insecure:
		tlsConf.InsecureSkipVerify = true
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())
	dialCtx, dialCancel := context.WithTimeout(o.ctx, dialTimeout)
	defer dialCancel()

	conn, err := quic.DialAddr(dialCtx, *dial, tlsConf, &quic.Config{MaxIdleTimeout: idleTimeout})
	if err != nil {
		return fmt.Errorf("quic: dialing %s: %w", *dial, err)
	}
	stream, err := conn.OpenUniStreamSync(dialCtx)
	if err != nil {
		conn.CloseWithError(0, "stream setup failed")
		return fmt.Errorf("quic: opening stream: %w", err)
	}

	o.mu.Lock()
	o.conn, o.stream = conn, stream
	o.mu.Unlock()
	tsp.Logger().Info("connected", "remote", *dial)
	return nil
}

func (o *output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stream != nil {
		o.stream.Close()
		o.stream = nil
	}
	if o.conn != nil {
		o.conn.CloseWithError(0, "end of stream")
		o.conn = nil
	}
	if o.cancel != nil {
		o.cancel()
	}
	return nil
}

func (o *output) Interrupt() {
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stream != nil {
		o.stream.CancelWrite(0)
	}
}

func (o *output) Send(pkts []mpegts.Packet) error {
	o.mu.Lock()
	stream := o.stream
	o.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("quic: stream closed")
	}
	o.buf = o.buf[:0]
	for i := range pkts {
		o.buf = append(o.buf, pkts[i][:]...)
	}
	if _, err := stream.Write(o.buf); err != nil {
		return fmt.Errorf("quic: write: %w", err)
	}
	return nil
}
