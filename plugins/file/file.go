// Package file provides the file input and output, reading and writing
// raw transport streams on regular files, pipes, and stdio.
package file

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/zsiec/tspipe/mpegts"
	"github.com/zsiec/tspipe/plugin"
	"github.com/zsiec/tspipe/plugins/internal/tsio"
)

func init() {
	plugin.RegisterInput("file", "read packets from a file or stdin (-)",
		func() plugin.Input { return &input{} })
	plugin.RegisterOutput("file", "write packets to a file or stdout (-)",
		func() plugin.Output { return &output{} })
}

const readBufferSize = 64 << 10

type input struct {
	tsp      plugin.TSP
	f        *os.File
	path     string
	repeat   int
	pass     int
	seekable bool
	rf       tsio.Reframer
	readBuf  []byte
}

func (i *input) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("file", flag.ContinueOnError)
	fs.IntVar(&i.repeat, "repeat", 1, "number of passes over a regular file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	i.tsp = tsp
	i.readBuf = make([]byte, readBufferSize)

	i.path = fs.Arg(0)
	if i.path == "" || i.path == "-" {
		i.f, i.path = os.Stdin, "stdin"
		return nil
	}
	f, err := os.Open(i.path)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if st, err := f.Stat(); err == nil {
		i.seekable = st.Mode().IsRegular()
	}
	if i.repeat > 1 && !i.seekable {
		f.Close()
		return fmt.Errorf("file: --repeat requires a regular file, %s is not", i.path)
	}
	i.f = f
	return nil
}

func (i *input) Stop() error {
	if n := i.rf.Resyncs(); n > 0 {
		i.tsp.Logger().Warn("sync byte lost, stream resynchronized", "times", n)
	}
	if i.f == os.Stdin || i.f == nil {
		return nil
	}
	return i.f.Close()
}

func (i *input) Receive(buf []mpegts.Packet) (int, error) {
	got := 0
	for got < len(buf) {
		if i.rf.Next(&buf[got]) {
			got++
			continue
		}
		if got > 0 {
			// Deliver what is framed before touching the file again, so
			// slow sources do not stall packets already read.
			return got, nil
		}
		n, err := i.f.Read(i.readBuf)
		if n > 0 {
			i.rf.Push(i.readBuf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i.pass+1 < i.repeat && i.seekable {
					if _, serr := i.f.Seek(0, io.SeekStart); serr != nil {
						return got, fmt.Errorf("file: rewinding %s: %w", i.path, serr)
					}
					i.pass++
					continue
				}
				return got, io.EOF
			}
			return got, fmt.Errorf("file: reading %s: %w", i.path, err)
		}
	}
	return got, nil
}

type output struct {
	tsp        plugin.TSP
	f          *os.File
	path       string
	appendMode bool
	ignorePipe bool
	broken     bool
	buf        []byte
}

func (o *output) Start(tsp plugin.TSP, args []string) error {
	fs := flag.NewFlagSet("file", flag.ContinueOnError)
	fs.BoolVar(&o.appendMode, "append", false, "append to an existing file")
	fs.BoolVar(&o.ignorePipe, "ignore-broken-pipe", false,
		"treat a closed downstream pipe as a clean end instead of an error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	o.tsp = tsp

	o.path = fs.Arg(0)
	if o.path == "" || o.path == "-" {
		o.f, o.path = os.Stdout, "stdout"
		return nil
	}
	mode := os.O_WRONLY | os.O_CREATE
	if o.appendMode {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}
	f, err := os.OpenFile(o.path, mode, 0o644)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}
	o.f = f
	return nil
}

func (o *output) Stop() error {
	if o.f == os.Stdout || o.f == nil {
		return nil
	}
	return o.f.Close()
}

func (o *output) Send(pkts []mpegts.Packet) error {
	if o.broken {
		return nil
	}
	o.buf = o.buf[:0]
	for i := range pkts {
		o.buf = append(o.buf, pkts[i][:]...)
	}
	if _, err := o.f.Write(o.buf); err != nil {
		if o.ignorePipe && errors.Is(err, syscall.EPIPE) {
			o.tsp.Logger().Info("downstream pipe closed, discarding remaining packets")
			o.broken = true
			return nil
		}
		return fmt.Errorf("file: writing %s: %w", o.path, err)
	}
	return nil
}
