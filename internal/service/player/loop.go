package player

import (
	"context"
	"time"

	"github.com/oshokin/nursery-speaker/internal/logger"
	"github.com/oshokin/nursery-speaker/internal/service/merger"
	"github.com/oshokin/nursery-speaker/internal/service/sentinel"
)

// SentinelChecker reports stop and restart requests once per tick.
type SentinelChecker interface {
	Check(ctx context.Context) sentinel.Signal
}

// Loop is the main tick loop: one merged event, then the sentinel check.
type Loop struct {
	// machine consumes the events.
	machine *Machine
	// merger produces at most one event per tick.
	merger *merger.Merger
	// sentinels ends the loop on request.
	sentinels SentinelChecker
	// interval is the tick period.
	interval time.Duration
	// now is the clock handed to the merger.
	now func() time.Time
}

// NewLoop creates a loop ticking every interval.
func NewLoop(machine *Machine, m *merger.Merger, sentinels SentinelChecker, interval time.Duration) *Loop {
	return &Loop{
		machine:   machine,
		merger:    m,
		sentinels: sentinels,
		interval:  interval,
		now:       time.Now,
	}
}

// Run ticks until ctx is canceled or a sentinel asks to stop. It returns the
// signal that ended the loop, SignalNone on cancellation.
func (l *Loop) Run(ctx context.Context) sentinel.Signal {
	logger.InfoKV(ctx, "Starting event loop", "tick", l.interval.String())

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return sentinel.SignalNone
		case <-ticker.C:
			if signal := l.tick(ctx); signal != sentinel.SignalNone {
				return signal
			}
		}
	}
}

// tick applies the next event, if any, and checks the sentinels.
func (l *Loop) tick(ctx context.Context) sentinel.Signal {
	if ev, ok := l.merger.Next(l.now()); ok {
		l.machine.Apply(ctx, ev)
	}

	return l.sentinels.Check(ctx)
}
