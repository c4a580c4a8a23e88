package livesession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
)

var (
	errFullscreenRefused = errors.New("client refused full-screen")
	errFullscreenTimeout = errors.New("client did not confirm full-screen in time")
)

// connEnvironment is the browser on the other end of the socket. State is whatever the
// client last reported.
type connEnvironment struct {
	send func(ServerMessage) error
	wait time.Duration

	acks chan bool

	mu         sync.Mutex
	fullscreen bool
	width      int
	nextID     int
	handlers   map[int]func(proctor.Signal)
}

func newConnEnvironment(send func(ServerMessage) error, wait time.Duration) *connEnvironment {
	return &connEnvironment{
		send:     send,
		wait:     wait,
		acks:     make(chan bool, 1),
		handlers: make(map[int]func(proctor.Signal)),
	}
}

func (e *connEnvironment) RequestFullscreen(ctx context.Context) error {
	// drop a stale answer to an earlier request
	select {
	case <-e.acks:
	default:
	}

	if err := e.send(ServerMessage{Type: MsgRequestFullscreen}); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if e.wait > 0 {
		t := time.NewTimer(e.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case ok := <-e.acks:
		if !ok {
			return errFullscreenRefused
		}
		e.mu.Lock()
		e.fullscreen = true
		e.mu.Unlock()
		return nil
	case <-timeout:
		return errFullscreenTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *connEnvironment) ExitFullscreen() error {
	e.mu.Lock()
	e.fullscreen = false
	e.mu.Unlock()
	return e.send(ServerMessage{Type: MsgExitFullscreen})
}

func (e *connEnvironment) IsFullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

func (e *connEnvironment) ViewportWidth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width
}

func (e *connEnvironment) Subscribe(handler func(proctor.Signal)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.mu.Unlock()
		})
	}
}

func (e *connEnvironment) ack(ok bool) {
	select {
	case e.acks <- ok:
	default:
	}
}

func (e *connEnvironment) setState(fullscreen *bool, width int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fullscreen != nil {
		e.fullscreen = *fullscreen
	}
	if width > 0 {
		e.width = width
	}
}

func (e *connEnvironment) dispatch(sig proctor.Signal) {
	if sig.Kind == proctor.SignalFullscreenExit {
		e.mu.Lock()
		e.fullscreen = false
		e.mu.Unlock()
	}

	e.mu.Lock()
	handlers := make([]func(proctor.Signal), 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(sig)
	}
}
