package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks application loop timings and command counts.
type Metrics struct {
	// Input polling
	tickCount   atomic.Uint64
	tickTotalNs atomic.Int64
	tickMaxNs   atomic.Int64

	// Playback progress polling
	posTickCount atomic.Uint64

	// Console commands
	commandCount  atomic.Uint64
	commandErrors atomic.Uint64

	// Playback runs observed to finish
	runCount atomic.Uint64

	// Configuration reloads
	reloadCount  atomic.Uint64
	reloadErrors atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordTick records the duration of one input poll.
func (m *Metrics) RecordTick(duration time.Duration) {
	ns := duration.Nanoseconds()
	m.tickCount.Add(1)
	m.tickTotalNs.Add(ns)

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.tickMaxNs.Load()
		if ns <= old {
			break
		}
		if m.tickMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordPosTick records one progress poll.
func (m *Metrics) RecordPosTick() {
	m.posTickCount.Add(1)
}

// RecordCommand records a console command and whether it failed.
func (m *Metrics) RecordCommand(err error) {
	m.commandCount.Add(1)
	if err != nil {
		m.commandErrors.Add(1)
	}
}

// RecordRun records a finished playback run.
func (m *Metrics) RecordRun() {
	m.runCount.Add(1)
}

// RecordReload records a configuration reload and whether it failed.
func (m *Metrics) RecordReload(err error) {
	m.reloadCount.Add(1)
	if err != nil {
		m.reloadErrors.Add(1)
	}
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	ticks := m.tickCount.Load()

	var avgTickNs int64
	if ticks > 0 {
		avgTickNs = m.tickTotalNs.Load() / int64(ticks)
	}

	return MetricsSnapshot{
		Uptime:        time.Since(m.startTime),
		TickCount:     ticks,
		AvgTickNs:     avgTickNs,
		MaxTickNs:     m.tickMaxNs.Load(),
		PosTickCount:  m.posTickCount.Load(),
		CommandCount:  m.commandCount.Load(),
		CommandErrors: m.commandErrors.Load(),
		RunCount:      m.runCount.Load(),
		ReloadCount:   m.reloadCount.Load(),
		ReloadErrors:  m.reloadErrors.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime        time.Duration
	TickCount     uint64
	AvgTickNs     int64
	MaxTickNs     int64
	PosTickCount  uint64
	CommandCount  uint64
	CommandErrors uint64
	RunCount      uint64
	ReloadCount   uint64
	ReloadErrors  uint64
}

// AvgTick returns the average input poll duration.
func (s MetricsSnapshot) AvgTick() time.Duration {
	return time.Duration(s.AvgTickNs)
}

// ErrorRate returns the percentage of failed commands.
func (s MetricsSnapshot) ErrorRate() float64 {
	if s.CommandCount == 0 {
		return 0
	}
	return float64(s.CommandErrors) / float64(s.CommandCount) * 100
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
