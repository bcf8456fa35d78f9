package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type purgeRecorder struct {
	calls chan struct{}
	err   error
}

func newPurgeRecorder() *purgeRecorder {
	return &purgeRecorder{calls: make(chan struct{}, 1)}
}

func (p *purgeRecorder) PurgeExpired() error {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	return p.err
}

// handTicker only fires when the test calls Tick.
type handTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newHandTicker() *handTicker {
	return &handTicker{
		c:       make(chan time.Time, 1),
		stopped: make(chan struct{}),
	}
}

func (h *handTicker) C() <-chan time.Time { return h.c }

func (h *handTicker) Stop() {
	h.once.Do(func() { close(h.stopped) })
}

func (h *handTicker) Tick() {
	select {
	case h.c <- time.Now():
	default:
	}
}

func (h *handTicker) factory(time.Duration) purgeTicker { return h }

func TestSessionPurgeWorkerSweepsOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := newHandTicker()
	sessions := newPurgeRecorder()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	stop := startSessionPurgeWorkerWithTicker(ctx, logger, sessions, time.Minute, ticker.factory)

	ticker.Tick()
	select {
	case <-sessions.calls:
	case <-time.After(time.Second):
		t.Fatal("expected a sweep after the tick")
	}

	cancel()
	stop()

	select {
	case <-ticker.stopped:
	case <-time.After(time.Second):
		t.Fatal("expected ticker released after stop")
	}
}

func TestSessionPurgeWorkerLogsFailedSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := newHandTicker()
	sessions := newPurgeRecorder()
	sessions.err = errors.New("store offline")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	stop := startSessionPurgeWorkerWithTicker(ctx, logger, sessions, time.Minute, ticker.factory)

	ticker.Tick()
	select {
	case <-sessions.calls:
	case <-time.After(time.Second):
		t.Fatal("expected a sweep after the tick")
	}
	stop()

	if !strings.Contains(buf.String(), "session purge sweep failed") {
		t.Fatalf("expected the failed sweep to be logged, got %q", buf.String())
	}
}

func TestSessionPurgeWorkerNoopWithoutSessions(t *testing.T) {
	fired := false
	stop := startSessionPurgeWorkerWithTicker(context.Background(), nil, nil, time.Minute, func(time.Duration) purgeTicker {
		fired = true
		return newHandTicker()
	})
	stop()
	stop()
	if fired {
		t.Fatal("expected no ticker without a session store")
	}

	sessions := newPurgeRecorder()
	stop = startSessionPurgeWorkerWithTicker(context.Background(), nil, sessions, 0, func(time.Duration) purgeTicker {
		fired = true
		return newHandTicker()
	})
	stop()
	if fired {
		t.Fatal("expected no ticker with a non-positive interval")
	}
}
