package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type sessionPurger interface {
	PurgeExpired() error
}

// purgeTicker abstracts time.Ticker so tests can drive sweeps by hand.
type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type intervalTicker struct {
	ticker *time.Ticker
}

func (t intervalTicker) C() <-chan time.Time { return t.ticker.C }

func (t intervalTicker) Stop() { t.ticker.Stop() }

type tickerFactory func(time.Duration) purgeTicker

// startSessionPurgeWorker sweeps expired auth sessions out of the
// store on an interval. The returned stop function cancels the worker
// and blocks until it has exited; calling it more than once is safe.
func startSessionPurgeWorker(ctx context.Context, logger *slog.Logger, sessions sessionPurger, interval time.Duration) func() {
	return startSessionPurgeWorkerWithTicker(ctx, logger, sessions, interval, func(d time.Duration) purgeTicker {
		return intervalTicker{ticker: time.NewTicker(d)}
	})
}

func startSessionPurgeWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	sessions sessionPurger,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	// Nothing to sweep, or sweeping disabled.
	if sessions == nil || interval <= 0 {
		return func() {}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				// A failed sweep leaves expired rows for the next
				// tick; sessions stay unusable either way because
				// validation checks expiry.
				if err := sessions.PurgeExpired(); err != nil && logger != nil {
					logger.Warn("session purge sweep failed", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
