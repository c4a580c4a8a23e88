package proctor

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeEnv struct {
	mu          sync.Mutex
	denyErr     error
	fullscreen  bool
	width       int
	handlers    map[int]func(Signal)
	nextID      int
	requests    int
	exits       int
	unsubscribe int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{width: 1280, handlers: make(map[int]func(Signal))}
}

func (e *fakeEnv) RequestFullscreen(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	if e.denyErr != nil {
		return e.denyErr
	}
	e.fullscreen = true
	return nil
}

func (e *fakeEnv) ExitFullscreen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exits++
	e.fullscreen = false
	return nil
}

func (e *fakeEnv) IsFullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

func (e *fakeEnv) ViewportWidth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width
}

func (e *fakeEnv) Subscribe(handler func(Signal)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.unsubscribe++
			e.mu.Unlock()
		})
	}
}

// emit delivers sig to every attached handler and reports how many received it.
func (e *fakeEnv) emit(sig Signal) int {
	e.mu.Lock()
	hs := make([]func(Signal), 0, len(e.handlers))
	for _, h := range e.handlers {
		hs = append(hs, h)
	}
	e.mu.Unlock()
	for _, h := range hs {
		h(sig)
	}
	return len(hs)
}

func (e *fakeEnv) set(fullscreen bool, width int) {
	e.mu.Lock()
	e.fullscreen = fullscreen
	e.width = width
	e.mu.Unlock()
}

func (e *fakeEnv) listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// manualClock never ticks on its own; tests drive Tick and CheckLiveness directly.
type manualClock struct {
	now time.Time
}

type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }

func (t idleTicker) Stop() {}

func (c manualClock) Now() time.Time { return c.now }

func (c manualClock) NewTicker(time.Duration) Ticker { return idleTicker{c: make(chan time.Time)} }

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

var errDenied = errors.New("user rejected full-screen")

type recordingReporter struct {
	mu   sync.Mutex
	seen []Violation
}

func (r *recordingReporter) Report(v Violation) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
}

func (r *recordingReporter) all() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Violation(nil), r.seen...)
}

type fakeAdmitter struct {
	mu        sync.Mutex
	calls     int
	admission *Admission
	err       error
}

func (a *fakeAdmitter) Admit(ctx context.Context) (*Admission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.admission, nil
}

func (a *fakeAdmitter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []Submission
	err  error
}

func (s *fakeSubmitter) Submit(ctx context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return s.err
}

func (s *fakeSubmitter) all() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.subs...)
}

func testConfig() Config {
	return Config{MaxViolations: 3, MinViewportWidth: 1024}
}
