package proctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/skill-assessment-service/internal/scoring"
)

var (
	ErrNotStarted      = errors.New("session not started")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrSessionClosed   = errors.New("session closed")
	ErrUnknownQuestion = errors.New("question is not part of this session")
	ErrInvalidAnswer   = errors.New("invalid answer index")
)

type SubmitReason string

const (
	ReasonManual     SubmitReason = "manual"
	ReasonTimeout    SubmitReason = "timeout"
	ReasonViolations SubmitReason = "violations"
)

// Admission is what the runtime needs from a successful admission. Payload is passed
// through untouched for the transport.
type Admission struct {
	SessionID        string
	QuestionIDs      []uint
	TimeLimitSeconds int
	Payload          any
}

type Submission struct {
	SessionID      string
	Answers        []scoring.Answer
	ElapsedSeconds int
	Reason         SubmitReason
	Violations     int
}

type Admitter interface {
	Admit(ctx context.Context) (*Admission, error)
}

type Submitter interface {
	Submit(ctx context.Context, s Submission) error
}

type RuntimeOptions struct {
	Monitor  Config
	Reporter Reporter
	Notifier Notifier
	Clock    Clock
	Logger   *slog.Logger
	// OnTick receives the remaining seconds after every countdown tick.
	OnTick func(remaining int)
	// ManualTicks disables the internal one-second ticker; the owner calls Tick instead.
	ManualTicks bool
}

// Runtime drives one proctored session: arm full-screen, admit, run the countdown and the
// monitor, and submit exactly once whichever trigger fires first.
type Runtime struct {
	env       Environment
	admitter  Admitter
	submitter Submitter
	opts      RuntimeOptions
	logger    *slog.Logger

	guard   SubmitGuard
	monitor *Monitor
	done    chan struct{}

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	admission  *Admission
	questions  map[uint]bool
	selections map[uint]int
	countdown  *Countdown
	submitErr  error
	closeOnce  sync.Once
}

func NewRuntime(env Environment, admitter Admitter, submitter Submitter, opts RuntimeOptions) *Runtime {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Runtime{
		env:        env,
		admitter:   admitter,
		submitter:  submitter,
		opts:       opts,
		logger:     opts.Logger,
		done:       make(chan struct{}),
		selections: make(map[uint]int),
	}

	monitorOpts := []MonitorOption{
		WithClock(opts.Clock),
		WithLogger(opts.Logger),
		WithEscalation(func() { r.submit(ReasonViolations) }),
	}
	if opts.Reporter != nil {
		monitorOpts = append(monitorOpts, WithReporter(opts.Reporter))
	}
	if opts.Notifier != nil {
		monitorOpts = append(monitorOpts, WithNotifier(opts.Notifier))
	}
	r.monitor = NewMonitor(env, opts.Monitor, monitorOpts...)
	return r
}

// Start arms full-screen before admitting, so a denied full-screen never consumes an attempt.
// If admission fails the monitor is stopped and full-screen released.
func (r *Runtime) Start(ctx context.Context) (*Admission, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	r.started = true
	r.ctx = ctx
	r.mu.Unlock()

	if err := r.monitor.Arm(ctx); err != nil {
		r.abandon()
		return nil, err
	}

	adm, err := r.admitter.Admit(ctx)
	if err != nil {
		r.abandon()
		return nil, err
	}

	countdown := NewCountdown(adm.TimeLimitSeconds, func() { r.submit(ReasonTimeout) })
	countdown.OnTick(r.opts.OnTick)

	questions := make(map[uint]bool, len(adm.QuestionIDs))
	for _, id := range adm.QuestionIDs {
		questions[id] = true
	}

	r.mu.Lock()
	r.admission = adm
	r.questions = questions
	r.countdown = countdown
	r.mu.Unlock()

	if err := r.monitor.Start(); err != nil {
		r.abandon()
		return nil, err
	}
	if !r.opts.ManualTicks {
		countdown.Start(r.opts.Clock)
	}

	r.logger.Info("Proctored session started",
		"session_id", adm.SessionID,
		"questions", len(adm.QuestionIDs),
		"time_limit_seconds", adm.TimeLimitSeconds)
	return adm, nil
}

// Answer records a selection. Answers are only accepted while the session is running.
func (r *Runtime) Answer(questionID uint, selected int) error {
	if r.guard.State() != SessionRunning {
		return ErrSessionClosed
	}
	if selected < scoring.Unanswered {
		return fmt.Errorf("%w: %d", ErrInvalidAnswer, selected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admission == nil {
		return ErrNotStarted
	}
	if !r.questions[questionID] {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	r.selections[questionID] = selected
	return nil
}

// Submit is the manual submission. It reports false when another trigger already won.
func (r *Runtime) Submit() (bool, error) {
	r.mu.Lock()
	started := r.admission != nil
	r.mu.Unlock()
	if !started {
		return false, ErrNotStarted
	}
	return r.submit(ReasonManual)
}

// Tick advances the countdown by one second. Only needed with ManualTicks.
func (r *Runtime) Tick() int {
	r.mu.Lock()
	c := r.countdown
	r.mu.Unlock()
	if c == nil {
		return 0
	}
	return c.Tick()
}

func (r *Runtime) submit(reason SubmitReason) (bool, error) {
	if !r.guard.Begin() {
		return false, nil
	}
	defer r.monitor.Stop()

	r.mu.Lock()
	adm := r.admission
	countdown := r.countdown
	selections := make(map[uint]int, len(r.selections))
	for k, v := range r.selections {
		selections[k] = v
	}
	ctx := r.ctx
	r.mu.Unlock()

	countdown.Stop()

	sub := Submission{
		SessionID:      adm.SessionID,
		Answers:        scoring.FillUnanswered(adm.QuestionIDs, selections),
		ElapsedSeconds: countdown.Elapsed(),
		Reason:         reason,
		Violations:     r.monitor.Count(),
	}
	r.logger.Info("Submitting session", "session_id", adm.SessionID, "reason", reason, "answered", len(selections))

	err := r.submitter.Submit(ctx, sub)
	if err != nil {
		r.logger.Error("Session submission failed", "session_id", adm.SessionID, "reason", reason, "error", err)
	}

	r.mu.Lock()
	r.submitErr = err
	r.mu.Unlock()
	r.guard.Finish()
	r.closeDone()
	return true, err
}

// Close tears the session down without submitting. The consumed attempt is not returned.
func (r *Runtime) Close() {
	if r.guard.Begin() {
		r.abandon()
		return
	}
	r.monitor.Stop()
}

func (r *Runtime) abandon() {
	r.monitor.Stop()
	r.mu.Lock()
	countdown := r.countdown
	r.mu.Unlock()
	if countdown != nil {
		countdown.Stop()
	}
	r.guard.Begin()
	r.guard.Finish()
	r.closeDone()
}

func (r *Runtime) closeDone() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Done is closed once the session is submitted or abandoned.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Err returns the submission error, if any, after Done is closed.
func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitErr
}

func (r *Runtime) State() SessionState {
	return r.guard.State()
}

func (r *Runtime) Monitor() *Monitor {
	return r.monitor
}

func (r *Runtime) Remaining() int {
	r.mu.Lock()
	c := r.countdown
	r.mu.Unlock()
	if c == nil {
		return 0
	}
	return c.Remaining()
}
