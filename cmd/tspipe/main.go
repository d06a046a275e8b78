// Command tspipe runs a transport stream processing pipeline: one input
// plugin, any number of packet processors, and one output plugin chained
// over a shared packet buffer.
//
// Usage:
//
//	tspipe [global flags] -I <input> [args...] [-P <processor> [args...]]... -O <output> [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/zsiec/tspipe/pipeline"
	"github.com/zsiec/tspipe/plugin"

	_ "github.com/zsiec/tspipe/plugins/captions"
	_ "github.com/zsiec/tspipe/plugins/count"
	_ "github.com/zsiec/tspipe/plugins/drop"
	_ "github.com/zsiec/tspipe/plugins/file"
	_ "github.com/zsiec/tspipe/plugins/filter"
	_ "github.com/zsiec/tspipe/plugins/null"
	_ "github.com/zsiec/tspipe/plugins/pmt"
	_ "github.com/zsiec/tspipe/plugins/quic"
	_ "github.com/zsiec/tspipe/plugins/shift"
	_ "github.com/zsiec/tspipe/plugins/splice"
	_ "github.com/zsiec/tspipe/plugins/srt"
	_ "github.com/zsiec/tspipe/plugins/udp"
	_ "github.com/zsiec/tspipe/plugins/until"
)

var version = "dev"

// Exit codes: 0 clean end (EOF or joint termination), 1 fatal error,
// 2 usage error, 130 interrupted.
const (
	exitOK        = 0
	exitFatal     = 1
	exitUsage     = 2
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	global, chain, err := splitChain(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tspipe:", err)
		return exitUsage
	}

	fs := flag.NewFlagSet("tspipe", flag.ContinueOnError)
	bufferSize := fs.Int("buffer-size",
		envInt("TSPIPE_BUFFER_SIZE", pipeline.DefaultBufferSize), "packet buffer size in bytes")
	maxWindow := fs.Int("max-window", pipeline.DefaultMaxWindow,
		"maximum packets handled per stage window")
	ignoreJT := fs.Bool("ignore-joint-termination", false,
		"turn joint termination requests into individual stage ends")
	logLevel := fs.String("log-level", envOr("TSPIPE_LOG_LEVEL", "info"),
		"error, warn, info, verbose, or debug")
	listPlugins := fs.Bool("list-plugins", false, "print the plugin inventory and exit")
	dynamic := fs.Bool("plugins", false, "allow loading shared library plugins")
	pluginPath := fs.String("plugin-path", "",
		"directories searched for shared library plugins")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(global); err != nil {
		return exitUsage
	}
	if *showVersion {
		fmt.Println("tspipe", version)
		return exitOK
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tspipe:", err)
		return exitUsage
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	plugin.Default.SetSharedLibraryAllowed(*dynamic)
	if *pluginPath != "" {
		plugin.Default.SetSearchPath(filepath.SplitList(*pluginPath))
	}

	if *listPlugins {
		fmt.Print(plugin.Default.List(*dynamic))
		return exitOK
	}

	specs := make([]pipeline.Spec, len(chain))
	for i, g := range chain {
		specs[i] = g.spec
	}
	p, err := pipeline.New(specs, pipeline.Options{
		BufferSize:             *bufferSize,
		MaxWindow:              *maxWindow,
		IgnoreJointTermination: *ignoreJT,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "tspipe:", err)
		return exitUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, aborting", "signal", sig)
		interrupted.Store(true)
		p.Abort()
		<-sigCh
		os.Exit(exitInterrupt) // second signal: give up on a clean drain
	}()

	status, err := p.Run(ctx)
	switch {
	case err != nil || status == pipeline.StatusFatal:
		return exitFatal
	case status == pipeline.StatusAborted && interrupted.Load():
		return exitInterrupt
	case status == pipeline.StatusAborted:
		return exitFatal
	default:
		return exitOK
	}
}

type chainGroup struct {
	marker string
	spec   pipeline.Spec
}

// splitChain separates the global flags from the plugin chain. Everything
// before the first -I/-P/-O marker is global; each marker starts a group
// of one plugin name followed by its arguments.
func splitChain(args []string) (global []string, chain []chainGroup, err error) {
	i := 0
	for i < len(args) && !isMarker(args[i]) {
		global = append(global, args[i])
		i++
	}
	for i < len(args) {
		marker := args[i]
		i++
		if i >= len(args) || isMarker(args[i]) {
			return nil, nil, fmt.Errorf("%s requires a plugin name", marker)
		}
		g := chainGroup{marker: marker, spec: pipeline.Spec{Name: args[i]}}
		i++
		for i < len(args) && !isMarker(args[i]) {
			g.spec.Args = append(g.spec.Args, args[i])
			i++
		}
		chain = append(chain, g)
	}
	if len(chain) == 0 {
		return global, chain, nil // maybe --list-plugins or --version
	}
	if len(chain) < 2 {
		return nil, nil, fmt.Errorf("a pipeline needs at least -I and -O")
	}
	if chain[0].marker != "-I" {
		return nil, nil, fmt.Errorf("the chain must start with -I, got %s", chain[0].marker)
	}
	if last := chain[len(chain)-1]; last.marker != "-O" {
		return nil, nil, fmt.Errorf("the chain must end with -O, got %s", last.marker)
	}
	for _, g := range chain[1 : len(chain)-1] {
		if g.marker != "-P" {
			return nil, nil, fmt.Errorf("%s %s: only -P groups may appear between -I and -O",
				g.marker, g.spec.Name)
		}
	}
	return global, chain, nil
}

func isMarker(s string) bool {
	return s == "-I" || s == "-P" || s == "-O"
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "verbose":
		return plugin.LevelVerbose, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
