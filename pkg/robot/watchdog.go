package robot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
)

// Watchdog defaults.
const (
	DefaultWatchdogTimeout = 500 * time.Millisecond
	DefaultWatchdogRate    = 50 * time.Millisecond
)

// Watchdog stops the motors once when no pose has been fed for longer than
// the timeout. Feeding again re-arms it.
type Watchdog struct {
	sink    MotorSink
	timeout time.Duration
	rate    time.Duration

	mu       sync.Mutex
	lastFeed time.Time
	tripped  bool

	stop     chan struct{}
	stopOnce sync.Once

	ticks   atomic.Uint64
	trips   atomic.Uint64
	errors  atomic.Uint64
	lastErr time.Time
}

// WatchdogStats is a snapshot of watchdog counters.
type WatchdogStats struct {
	Ticks   uint64 `json:"ticks"`
	Trips   uint64 `json:"trips"`
	Errors  uint64 `json:"errors"`
	Tripped bool   `json:"tripped"`
}

// NewWatchdog creates a watchdog over sink. Non-positive durations fall
// back to the defaults.
func NewWatchdog(sink MotorSink, timeout, rate time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	if rate <= 0 {
		rate = DefaultWatchdogRate
	}
	return &Watchdog{
		sink:    sink,
		timeout: timeout,
		rate:    rate,
		stop:    make(chan struct{}),
	}
}

// Feed records pose activity.
func (w *Watchdog) Feed() {
	w.mu.Lock()
	w.lastFeed = time.Now()
	w.tripped = false
	w.mu.Unlock()
}

// Tripped reports whether the watchdog has stopped the motors since the last Feed.
func (w *Watchdog) Tripped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tripped
}

// Run checks the feed at the configured rate until ctx is done or Stop is
// called.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case now := <-ticker.C:
			w.tick(now)
		}
	}
}

// tick runs one check against now.
func (w *Watchdog) tick(now time.Time) {
	w.ticks.Add(1)

	w.mu.Lock()
	if w.lastFeed.IsZero() || w.tripped || now.Sub(w.lastFeed) <= w.timeout {
		w.mu.Unlock()
		return
	}
	w.tripped = true
	since := now.Sub(w.lastFeed)
	w.mu.Unlock()

	w.trips.Add(1)
	log.Warn("pose stream stalled, stopping motors", "since", since)

	if err := w.sink.SendMotor(0, 0); err != nil {
		w.errors.Add(1)
		// Don't spam: at most once per 5 seconds
		if w.lastErr.IsZero() || now.Sub(w.lastErr) > 5*time.Second {
			log.Error("watchdog stop failed", "error", err, "errors", w.errors.Load())
			w.lastErr = now
		}
	}
}

// Stop halts the watchdog loop. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Stats returns current counters.
func (w *Watchdog) Stats() WatchdogStats {
	return WatchdogStats{
		Ticks:   w.ticks.Load(),
		Trips:   w.trips.Load(),
		Errors:  w.errors.Load(),
		Tripped: w.Tripped(),
	}
}
