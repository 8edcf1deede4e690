package search

import (
	"fmt"
	"io"

	"github.com/paynt-synth/synthcore/pkg/family"
)

// SearchPosition exposes the refinement loop's current state to a Tracer
// without coupling the loop to any specific reporting format (CLI/progress
// formatting is an explicit non-goal of the core).
type SearchPosition interface {
	Family() *family.DesignSpace
	FrontierSize() int
	Statistics() Statistics
}

// Tracer observes the loop's progress, one call per family popped off the
// frontier. DefaultTracer discards everything; LoggingTracer writes a line
// per call. A caller wiring this into a CLI or a metrics exporter attaches
// its own implementation here instead.
type Tracer interface {
	Trace(p SearchPosition)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(SearchPosition) {}

// LoggingTracer writes one line per traced position to Writer, the way the
// teacher's resolver search tracer renders assumptions and conflicts for
// debugging a stuck solve.
type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	stats := p.Statistics()
	fmt.Fprintf(t.Writer, "family depth=%d size=%d frontier=%d explored=%d discarded=%d\n",
		p.Family().RefinementDepth, p.Family().Holes.Size(), p.FrontierSize(), stats.Explored, stats.Discarded)
}

type searchPosition struct {
	family       *family.DesignSpace
	frontierSize int
	stats        Statistics
}

func (p searchPosition) Family() *family.DesignSpace { return p.family }
func (p searchPosition) FrontierSize() int           { return p.frontierSize }
func (p searchPosition) Statistics() Statistics      { return p.stats }
