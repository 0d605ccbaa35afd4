package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
	"github.com/oshokin/nursery-speaker/internal/logger"
	"github.com/oshokin/nursery-speaker/internal/queue"
)

// Fetcher returns the latest pending command, or nil when there is none.
type Fetcher interface {
	FetchCommand(ctx context.Context) (*nursery.Command, error)
}

// Outcome describes what a single poll cycle did.
type Outcome int

const (
	// OutcomeIdle means the command source had nothing new.
	OutcomeIdle Outcome = iota
	// OutcomeQueued means a command was pushed to the queue.
	OutcomeQueued
	// OutcomeStale means a command was dropped for being too old.
	OutcomeStale
	// OutcomeFailed means the fetch failed or the cycle panicked.
	OutcomeFailed
)

// Poller periodically moves commands from the command source to the queue.
type Poller struct {
	// fetcher talks to the command source.
	fetcher Fetcher
	// queue receives accepted commands.
	queue *queue.Queue

	// interval is the pause between cycles.
	interval time.Duration
	// staleAfter is the maximum accepted command age.
	staleAfter time.Duration

	// now is the clock used for staleness checks.
	now func() time.Time
	// health is told whether the last cycle reached the command source.
	health func(serving bool)
}

// Option configures the poller.
type Option func(*Poller)

// WithInterval sets the pause between cycles.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithStaleAfter sets the staleness window.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithHealth registers a callback receiving the reachability of the command source after every cycle.
func WithHealth(report func(serving bool)) Option {
	return func(p *Poller) {
		p.health = report
	}
}

// New creates a poller pushing commands from fetcher into q.
func New(fetcher Fetcher, q *queue.Queue, opts ...Option) *Poller {
	p := &Poller{
		fetcher:    fetcher,
		queue:      q,
		interval:   config.DefaultPollInterval,
		staleAfter: config.DefaultStaleAfter,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run polls immediately and then once per interval until ctx is canceled.
// A failing cycle never ends the loop.
func (p *Poller) Run(ctx context.Context) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "poller")

	logger.InfoKV(ctx, "Polling command source",
		"interval", p.interval.String(),
		"stale_after", p.staleAfter.String())

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs a single cycle: fetch, filter and enqueue.
func (p *Poller) Poll(ctx context.Context) (outcome Outcome) {
	// A panic in one cycle must not kill the loop.
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Poll cycle panicked", "panic", fmt.Sprint(r))

			outcome = OutcomeFailed
		}

		p.report(outcome != OutcomeFailed)
	}()

	cmd, err := p.fetcher.FetchCommand(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Fetch command failed", "error", err)
		return OutcomeFailed
	}

	if cmd == nil {
		return OutcomeIdle
	}

	now := p.now()
	if cmd.IsStale(now, p.staleAfter) {
		logger.InfoKV(ctx, "Skipping stale command",
			"mode", cmd.String(),
			"created", humanize.RelTime(cmd.CreatedAt, now, "ago", "from now"))

		return OutcomeStale
	}

	if evicted, dropped := p.queue.Push(*cmd); dropped {
		logger.WarnKV(ctx, "Command queue full, dropped oldest command", "mode", evicted.String())
	}

	logger.InfoKV(ctx, "Queued command", "mode", cmd.String())

	return OutcomeQueued
}

// report forwards the cycle result to the health callback.
func (p *Poller) report(serving bool) {
	if p.health != nil {
		p.health(serving)
	}
}
