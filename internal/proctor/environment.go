package proctor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Environment is the test-taker's browser as seen by the monitor.
type Environment interface {
	// RequestFullscreen asks for exclusive full-screen presentation and returns nil once granted.
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen() error
	IsFullscreen() bool
	// ViewportWidth returns the last known viewport width in CSS pixels, or 0 if unknown.
	ViewportWidth() int
	// Subscribe attaches handler to environment signals. The returned func detaches it and
	// must be safe to call more than once.
	Subscribe(handler func(Signal)) (unsubscribe func())
}

// Reporter delivers violations to the server. Report must not block.
type Reporter interface {
	Report(v Violation)
}

type ReporterFunc func(v Violation)

func (f ReporterFunc) Report(v Violation) { f(v) }

// Notifier surfaces a transient warning to the test-taker.
type Notifier interface {
	Warn(v Violation)
}

type NotifierFunc func(v Violation)

func (f NotifierFunc) Warn(v Violation) { f(v) }

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

type systemTicker struct{ t *time.Ticker }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{t: time.NewTicker(d)} }

func (s systemTicker) C() <-chan time.Time { return s.t.C }

func (s systemTicker) Stop() { s.t.Stop() }

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

// every calls fn on each tick until the returned stop func is called.
func every(clock Clock, d time.Duration, fn func()) (stop func()) {
	t := clock.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-t.C():
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

var errReporterClosed = errors.New("reporter closed")

// AsyncReporter queues violations and sends them from a single worker, so Report never blocks
// the session. A full queue or a failed send is logged and dropped.
type AsyncReporter struct {
	send   func(ctx context.Context, v Violation) error
	logger *slog.Logger
	queue  chan Violation

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncReporter(send func(ctx context.Context, v Violation) error, buffer int, logger *slog.Logger) *AsyncReporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &AsyncReporter{
		send:   send,
		logger: logger,
		queue:  make(chan Violation, buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *AsyncReporter) run() {
	defer r.wg.Done()
	for v := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.send(ctx, v); err != nil {
			r.logger.Warn("Failed to report violation", "code", v.Code, "count", v.Count, "error", err)
		}
		cancel()
	}
}

func (r *AsyncReporter) Report(v Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Warn("Dropping violation report", "code", v.Code, "error", errReporterClosed)
		return
	}
	select {
	case r.queue <- v:
	default:
		r.logger.Warn("Dropping violation report, queue full", "code", v.Code, "count", v.Count)
	}
}

// Close stops accepting reports and waits until queued ones are sent.
func (r *AsyncReporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
