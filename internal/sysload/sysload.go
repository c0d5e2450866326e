// Package sysload samples the system load average so the scheduler can
// defer job execution on an overloaded host. Samples are cached
// briefly; the scheduler polls every tick and /proc reads need not
// happen more often than that.
package sysload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/load"
)

// cacheTTL bounds how stale a served sample may be.
const cacheTTL = 10 * time.Second

// Guard answers "is the host too loaded to start jobs right now".
// A zero threshold disables the guard.
type Guard struct {
	threshold float64
	logger    *slog.Logger

	mu        sync.Mutex
	sampled   time.Time
	lastLoad1 float64
}

// NewGuard creates a load guard with the given 1-minute load average
// threshold. Zero or negative disables it.
func NewGuard(threshold float64, logger *slog.Logger) *Guard {
	return &Guard{
		threshold: threshold,
		logger:    logger.With(slog.String("component", "sysload")),
	}
}

// Enabled reports whether the guard has a threshold to enforce.
func (g *Guard) Enabled() bool {
	return g.threshold > 0
}

// TooLoaded reports whether the 1-minute load average exceeds the
// threshold. Sampling errors fail open: jobs keep running when the
// load cannot be read.
func (g *Guard) TooLoaded(ctx context.Context) bool {
	if !g.Enabled() {
		return false
	}

	load1, err := g.sample(ctx)
	if err != nil {
		g.logger.Warn("failed to read load average",
			slog.String("error", err.Error()),
		)
		return false
	}

	if load1 > g.threshold {
		g.logger.Info("load above threshold, deferring jobs",
			slog.Float64("load1", load1),
			slog.Float64("threshold", g.threshold),
		)
		return true
	}
	return false
}

func (g *Guard) sample(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if time.Since(g.sampled) < cacheTTL {
		return g.lastLoad1, nil
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}

	g.sampled = time.Now()
	g.lastLoad1 = avg.Load1
	return g.lastLoad1, nil
}
