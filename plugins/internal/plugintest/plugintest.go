// Package plugintest provides a stub stage handle for exercising plugins
// outside a running pipeline.
package plugintest

import (
	"io"
	"log/slog"
)

// TSP records the calls a plugin makes against its stage handle. The zero
// value is ready to use; its logger discards everything.
type TSP struct {
	Handler slog.Handler

	JointUser  bool
	JointCalls int
	Total      uint64
	Abort      bool
}

func (t *TSP) Logger() *slog.Logger {
	h := t.Handler
	if h == nil {
		h = slog.NewTextHandler(io.Discard, nil)
	}
	return slog.New(h)
}

func (t *TSP) UseJointTermination(on bool) { t.JointUser = on }
func (t *TSP) JointTerminate()             { t.JointCalls++ }
func (t *TSP) TotalPackets() uint64        { return t.Total }
func (t *TSP) Aborting() bool              { return t.Abort }
