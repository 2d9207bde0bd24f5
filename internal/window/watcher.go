package window

import (
	"context"
	"time"
)

// Watcher re-evaluates a record's windows on a fixed cadence and
// delivers each Snapshot on a channel. It is the one scheduling
// abstraction for countdown updates; consumers (the SSE stream
// handler today) must not roll their own tickers.
type Watcher struct {
	cfg      Config
	interval time.Duration
	now      func() time.Time
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithInterval overrides the 1 second re-evaluation cadence.
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithNow injects the time source. Tests use this to drive the clock.
func WithNow(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWatcher builds a watcher with a 1 second cadence by default.
func NewWatcher(cfg Config, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		cfg:      cfg.withDefaults(),
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch emits an immediate Snapshot followed by one per interval. The
// channel closes when ctx is cancelled or right after a locked
// snapshot is delivered; either way the underlying ticker is stopped,
// so a cancelled consumer never leaves a timer running.
func (w *Watcher) Watch(ctx context.Context, createdAt time.Time) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		if done := w.emit(ctx, out, createdAt); done {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if done := w.emit(ctx, out, createdAt); done {
					return
				}
			}
		}
	}()

	return out
}

// emit delivers one snapshot and reports whether the watch is over.
func (w *Watcher) emit(ctx context.Context, out chan<- Snapshot, createdAt time.Time) bool {
	snap := w.cfg.Evaluate(createdAt, w.now())
	select {
	case <-ctx.Done():
		return true
	case out <- snap:
	}
	return snap.Locked()
}
