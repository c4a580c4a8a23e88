package proctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateInactive State = iota
	StateArmed
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateArmed:
		return "armed"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrFullscreenDenied  = errors.New("full-screen presentation denied")
	ErrInvalidTransition = errors.New("invalid monitor state transition")
)

type Config struct {
	MaxViolations    int
	LivenessInterval time.Duration
	MinViewportWidth int
}

func DefaultConfig() Config {
	return Config{
		MaxViolations:    3,
		LivenessInterval: 3 * time.Second,
		MinViewportWidth: 1024,
	}
}

type MonitorOption func(*Monitor)

func WithReporter(r Reporter) MonitorOption {
	return func(m *Monitor) { m.reporter = r }
}

func WithNotifier(n Notifier) MonitorOption {
	return func(m *Monitor) { m.notifier = n }
}

func WithClock(c Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// WithEscalation sets the forced-submission callback. It runs at most once per monitor.
func WithEscalation(fn func()) MonitorOption {
	return func(m *Monitor) { m.onEscalate = fn }
}

// Monitor owns the violation counter and log of one session.
type Monitor struct {
	cfg        Config
	env        Environment
	reporter   Reporter
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger
	onEscalate func()

	mu          sync.Mutex
	state       State
	count       int
	log         []Violation
	escalated   bool
	unsubscribe func()
	stopTicker  func()
}

func NewMonitor(env Environment, cfg Config, opts ...MonitorOption) *Monitor {
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = DefaultConfig().MaxViolations
	}
	m := &Monitor{
		cfg:        cfg,
		env:        env,
		reporter:   ReporterFunc(func(Violation) {}),
		notifier:   NotifierFunc(func(Violation) {}),
		clock:      SystemClock(),
		logger:     slog.Default(),
		onEscalate: func() {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Arm requests full-screen. On failure the monitor stays Inactive and the session must not start.
func (m *Monitor) Arm(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInactive {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: arm from %s", ErrInvalidTransition, st)
	}
	m.mu.Unlock()

	if err := m.env.RequestFullscreen(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrFullscreenDenied, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInactive {
		// stopped while the request was in flight
		_ = m.env.ExitFullscreen()
		return fmt.Errorf("%w: arm from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateArmed
	return nil
}

// Start attaches listeners and the liveness check.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.state != StateArmed {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st)
	}
	m.state = StateActive
	m.mu.Unlock()

	unsubscribe := m.env.Subscribe(func(sig Signal) { m.HandleSignal(sig) })
	var stopTicker func()
	if m.cfg.LivenessInterval > 0 {
		stopTicker = every(m.clock, m.cfg.LivenessInterval, m.CheckLiveness)
	}

	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		unsubscribe()
		if stopTicker != nil {
			stopTicker()
		}
		return nil
	}
	m.unsubscribe = unsubscribe
	m.stopTicker = stopTicker
	m.mu.Unlock()
	return nil
}

// HandleSignal classifies one environment signal and records it when it is a violation.
// Signals are ignored unless the monitor is Active.
func (m *Monitor) HandleSignal(sig Signal) Reaction {
	code, reaction := Classify(sig)
	if m.State() != StateActive {
		return ReactionAllow
	}
	if reaction == ReactionViolation {
		m.record(code)
	}
	return reaction
}

// CheckLiveness re-verifies full-screen and viewport width, for signals the event stream missed.
func (m *Monitor) CheckLiveness() {
	if m.State() != StateActive {
		return
	}
	if !m.env.IsFullscreen() {
		m.record(ViolationExitFullscreen)
		return
	}
	if w := m.env.ViewportWidth(); m.cfg.MinViewportWidth > 0 && w > 0 && w < m.cfg.MinViewportWidth {
		m.record(ViolationSmallViewport)
	}
}

func (m *Monitor) record(code ViolationCode) {
	m.mu.Lock()
	if m.state != StateActive || m.escalated {
		m.mu.Unlock()
		return
	}
	m.count++
	v := NewViolation(code, m.count, m.clock.Now())
	m.log = append(m.log, v)
	escalate := m.count >= m.cfg.MaxViolations
	if escalate {
		m.escalated = true
	}
	m.mu.Unlock()

	m.logger.Info("Integrity violation", "code", v.Code, "count", v.Count)
	m.reporter.Report(v)
	m.notifier.Warn(v)

	if escalate {
		m.logger.Warn("Violation limit reached, forcing submission", "count", v.Count, "max", m.cfg.MaxViolations)
		m.onEscalate()
		m.Stop()
	}
}

// Stop detaches every listener, stops the liveness check and releases full-screen.
// It is idempotent and safe to call from any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = StateStopped
	unsubscribe, stopTicker := m.unsubscribe, m.stopTicker
	m.unsubscribe, m.stopTicker = nil, nil
	m.mu.Unlock()

	if stopTicker != nil {
		stopTicker()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if prev == StateArmed || prev == StateActive {
		if err := m.env.ExitFullscreen(); err != nil {
			m.logger.Warn("Failed to release full-screen", "error", err)
		}
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Violations returns a copy of the violation log.
func (m *Monitor) Violations() []Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Violation, len(m.log))
	copy(out, m.log)
	return out
}
