package search

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Statistics is the §6 "statistics()" result, supplemented per
// SPEC_FULL.md §D.1 with the original's running-average sub-MDP size: the
// loop maintains one mutable instance and callers read a snapshot.
type Statistics struct {
	RootSize int64

	Explored  int64
	Discarded int64

	IterationsMDP  int
	IterationsDTMC int

	// averageSubMDPSize is a running mean of sub-MDP state counts observed
	// across MDP-regime iterations (paynt's statistic.py tracks the same
	// figure to gauge how aggressively families are shrinking).
	averageSubMDPSize float64

	Elapsed time.Duration

	started time.Time
}

// ExploredFraction and DiscardedFraction report the §6 "explored
// fraction"/"discarded fraction" against the root family's size.
func (s Statistics) ExploredFraction() float64 {
	if s.RootSize == 0 {
		return 0
	}
	return float64(s.Explored) / float64(s.RootSize)
}

func (s Statistics) DiscardedFraction() float64 {
	if s.RootSize == 0 {
		return 0
	}
	return float64(s.Discarded) / float64(s.RootSize)
}

// AverageSubMDPSize is the running mean sub-MDP size across MDP-regime
// iterations (zero if none occurred).
func (s Statistics) AverageSubMDPSize() float64 {
	return s.averageSubMDPSize
}

func (s *Statistics) start() {
	s.started = time.Now()
}

func (s *Statistics) explore(volume int64) {
	s.Explored += volume
}

func (s *Statistics) discard(volume int64) {
	s.Discarded += volume
}

func (s *Statistics) recordMDPIteration(subMDPStates int) {
	s.IterationsMDP++
	n := float64(s.IterationsMDP)
	s.averageSubMDPSize += (float64(subMDPStates) - s.averageSubMDPSize) / n
}

func (s *Statistics) recordDTMCIteration() {
	s.IterationsDTMC++
}

func (s *Statistics) finish() {
	s.Elapsed = time.Since(s.started)
}

// Reporter is handed a Statistics snapshot periodically during the loop
// (every reportEvery iterations, see WithReporter) so long-running searches surface
// progress without the core touching a CLI (spec.md's explicit
// user-facing-progress-formatting non-goal). NoopReporter discards
// everything; LogReporter writes a structured Debug line via a
// logrus.FieldLogger, the way paynt's statistic.py periodically prints an
// "elapsed time / percent rejected" status line.
type Reporter interface {
	Report(Statistics)
}

type NoopReporter struct{}

func (NoopReporter) Report(Statistics) {}

// LogReporter logs a structured progress line through Logger.
type LogReporter struct {
	Logger logrus.FieldLogger
}

func (r LogReporter) Report(s Statistics) {
	r.Logger.WithFields(logrus.Fields{
		"explored_fraction":  s.ExploredFraction(),
		"discarded_fraction": s.DiscardedFraction(),
		"iterations_mdp":     s.IterationsMDP,
		"iterations_dtmc":    s.IterationsDTMC,
		"avg_submdp_size":    s.AverageSubMDPSize(),
	}).Debug("synthesis in progress")
}
