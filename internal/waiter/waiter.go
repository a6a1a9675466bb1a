// Package waiter provides the delays and polls a scenario uses to let
// asynchronous compositor effects become observable.
package waiter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/wfharness/wst/internal/ipc"
)

// DefaultSettle is the base settle duration. Millisecond waits are scaled
// by the ratio of the configured settle duration to this value.
const DefaultSettle = 100 * time.Millisecond

// Sleeper blocks the calling flow.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// RealClock sleeps on the wall clock.
var RealClock Sleeper = SleeperFunc(time.Sleep)

// ViewLister is the part of the control channel used for polling.
type ViewLister interface {
	ListViews() ([]ipc.View, error)
}

// Options configures a Waiter.
type Options struct {
	// Settle is the base settle duration. Zero means DefaultSettle.
	Settle time.Duration
	// EarlyExit makes WaitForClientCount return at the first matching poll.
	EarlyExit bool
	Clock     Sleeper
	Logger    *slog.Logger
}

// Waiter implements settle and poll primitives for one test run.
type Waiter struct {
	settle    time.Duration
	earlyExit bool
	clock     Sleeper
	logger    *slog.Logger
}

// New creates a Waiter.
func New(opts Options) *Waiter {
	w := &Waiter{
		settle:    opts.Settle,
		earlyExit: opts.EarlyExit,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if w.settle <= 0 {
		w.settle = DefaultSettle
	}
	if w.clock == nil {
		w.clock = RealClock
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "waiter")
	return w
}

// SettleDuration returns the configured base settle duration.
func (w *Waiter) SettleDuration() time.Duration {
	return w.settle
}

// Settle blocks for n settle durations. n below 1 is treated as 1.
func (w *Waiter) Settle(n int) {
	if n < 1 {
		n = 1
	}
	w.clock.Sleep(time.Duration(n) * w.settle)
}

// SettleMillis blocks for ms milliseconds scaled by settle/DefaultSettle.
func (w *Waiter) SettleMillis(ms int) {
	if ms <= 0 {
		return
	}
	d := time.Duration(ms) * time.Millisecond * w.settle / DefaultSettle
	w.clock.Sleep(d)
}

// WaitForClientCount polls lister until it reports expected views.
// It sleeps interval between polls; interval is not scaled by the settle duration.
// A failed poll is returned as an error.
func (w *Waiter) WaitForClientCount(lister ViewLister, expected, attempts int, interval time.Duration) (bool, error) {
	if attempts < 1 {
		attempts = 1
	}

	count := func() (int, error) {
		views, err := lister.ListViews()
		if err != nil {
			return 0, fmt.Errorf("polling view count: %w", err)
		}
		return len(views), nil
	}

	last := -1
	for i := 0; i < attempts; i++ {
		n, err := count()
		if err != nil {
			return false, err
		}
		last = n
		if n == expected {
			if w.earlyExit {
				w.logger.Debug("client count reached", "expected", expected, "polls", i+1)
				return true, nil
			}
			continue
		}
		if w.earlyExit && i == attempts-1 {
			break
		}
		w.clock.Sleep(interval)
	}

	if w.earlyExit {
		w.logger.Debug("client count not reached", "expected", expected, "observed", last, "attempts", attempts)
		return false, nil
	}

	// Legacy behaviour: the loop never exits early, the final check decides.
	n, err := count()
	if err != nil {
		return false, err
	}
	return n == expected, nil
}
