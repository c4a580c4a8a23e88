package proctor

import "sync"

type SessionState int

const (
	SessionRunning SessionState = iota
	SessionSubmitting
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// SubmitGuard makes submission single-winner: the first Begin wins, every later one is a no-op.
type SubmitGuard struct {
	mu    sync.Mutex
	state SessionState
}

// Begin moves Running to Submitting and reports whether this caller won.
func (g *SubmitGuard) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != SessionRunning {
		return false
	}
	g.state = SessionSubmitting
	return true
}

func (g *SubmitGuard) Finish() {
	g.mu.Lock()
	g.state = SessionClosed
	g.mu.Unlock()
}

func (g *SubmitGuard) State() SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
