// Package livesession hosts a proctored session over a websocket: the browser streams its
// environment signals and answers, the server drives the monitor and the countdown.
package livesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
)

const (
	writeTimeout  = 5 * time.Second
	submitTimeout = 15 * time.Second
	reportBuffer  = 32
)

type Config struct {
	Monitor        proctor.Config
	FullscreenWait time.Duration
	AllowedOrigins []string
}

type Bridge struct {
	admission  services.AdmissionService
	submission services.SubmissionService
	violations services.ViolationService
	cfg        Config
	logger     *slog.Logger
}

func NewBridge(
	admission services.AdmissionService,
	submission services.SubmissionService,
	violations services.ViolationService,
	cfg Config,
	logger *slog.Logger,
) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		admission:  admission,
		submission: submission,
		violations: violations,
		cfg:        cfg,
		logger:     logger,
	}
}

// Handle upgrades the request and serves one session until it is submitted or the client leaves.
func (b *Bridge) Handle(w http.ResponseWriter, r *http.Request, assessmentID uint, userID string) error {
	opts := &websocket.AcceptOptions{}
	if patterns := originPatterns(b.cfg.AllowedOrigins); len(patterns) > 0 {
		opts.OriginPatterns = patterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return fmt.Errorf("failed to accept websocket: %w", err)
	}
	b.Serve(r.Context(), conn, assessmentID, userID)
	return nil
}

// Serve runs the session on an accepted connection and closes it on return.
func (b *Bridge) Serve(ctx context.Context, conn *websocket.Conn, assessmentID uint, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &liveSession{
		bridge:       b,
		conn:         conn,
		ctx:          ctx,
		assessmentID: assessmentID,
		userID:       userID,
		logger:       b.logger.With("assessment_id", assessmentID, "user_id", userID),
	}
	s.env = newConnEnvironment(s.send, b.cfg.FullscreenWait)
	reporter := proctor.NewAsyncReporter(s.reportViolation, reportBuffer, s.logger)
	s.runtime = proctor.NewRuntime(s.env, s, s, proctor.RuntimeOptions{
		Monitor:  b.cfg.Monitor,
		Reporter: reporter,
		Notifier: proctor.NotifierFunc(s.warn),
		Logger:   s.logger,
		OnTick:   s.tick,
	})

	readErr := make(chan error, 1)
	go func() {
		err := s.readLoop(ctx)
		cancel()
		readErr <- err
	}()

	if _, err := s.runtime.Start(ctx); err != nil {
		s.deny(err)
		reporter.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "denied")
		return
	}

	stopProbe := s.probe()
	defer stopProbe()

	select {
	case <-s.runtime.Done():
	case err := <-readErr:
		s.logger.Info("Live session client left before submitting", "error", err)
		s.runtime.Close()
	case <-ctx.Done():
		s.runtime.Close()
	}

	reporter.Close()
	_ = conn.Close(websocket.StatusNormalClosure, "session closed")
}

// originPatterns turns configured origins such as https://exam.example.com into the host
// patterns the websocket origin check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

// liveSession is the state of one connection. It is both the Admitter and the Submitter of
// its runtime.
type liveSession struct {
	bridge       *Bridge
	conn         *websocket.Conn
	ctx          context.Context
	env          *connEnvironment
	runtime      *proctor.Runtime
	assessmentID uint
	userID       string
	logger       *slog.Logger

	mu        sync.Mutex
	sessionID string
}

func (s *liveSession) send(msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, msg)
}

func (s *liveSession) readLoop(ctx context.Context) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			return err
		}

		switch msg.Type {
		case MsgFullscreen:
			s.env.ack(msg.OK)
		case MsgState:
			s.env.setState(msg.Fullscreen, msg.ViewportWidth)
		case MsgSignal:
			s.env.dispatch(proctor.Signal{Kind: msg.Kind, Key: msg.Key})
		case MsgAnswer:
			if err := s.runtime.Answer(msg.QuestionID, msg.Selected); err != nil {
				s.sendError(err.Error())
			}
		case MsgSubmit:
			_, err := s.runtime.Submit()
			switch {
			case errors.Is(err, proctor.ErrNotStarted):
				s.sendError(err.Error())
			case err != nil:
				s.logger.Warn("Manual submission failed", "error", err)
			}
		default:
			s.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (s *liveSession) sendError(message string) {
	if err := s.send(ServerMessage{Type: MsgError, Message: message}); err != nil {
		s.logger.Debug("Failed to send error message", "error", err)
	}
}

// Admit implements proctor.Admitter. The admitted message goes out before the countdown
// starts ticking.
func (s *liveSession) Admit(ctx context.Context) (*proctor.Admission, error) {
	resp, err := s.bridge.admission.Admit(ctx, s.assessmentID, s.userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessionID = resp.SessionID
	s.mu.Unlock()

	if err := s.send(ServerMessage{Type: MsgAdmitted, Session: resp}); err != nil {
		s.logger.Warn("Failed to send admission", "session_id", resp.SessionID, "error", err)
	}
	return &proctor.Admission{
		SessionID:        resp.SessionID,
		QuestionIDs:      resp.QuestionIDs(),
		TimeLimitSeconds: resp.TimeLimitSeconds,
		Payload:          resp,
	}, nil
}

// Submit implements proctor.Submitter. It outlives the connection so a forced submission
// still lands after the client drops.
func (s *liveSession) Submit(ctx context.Context, sub proctor.Submission) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()

	answers := make([]services.AnswerInput, len(sub.Answers))
	for i, a := range sub.Answers {
		answers[i] = services.AnswerInput{QuestionID: a.QuestionID, SelectedIndex: a.Selected}
	}

	resp, err := s.bridge.submission.Submit(ctx, s.assessmentID, s.userID, &services.SubmitRequest{
		SessionID:      sub.SessionID,
		Answers:        answers,
		ElapsedSeconds: sub.ElapsedSeconds,
		Reason:         string(sub.Reason),
	})
	if err != nil {
		s.sendError("submission failed")
		return err
	}

	if err := s.send(ServerMessage{Type: MsgSubmitted, Result: resp}); err != nil {
		s.logger.Warn("Failed to deliver result", "result_id", resp.ResultID, "error", err)
	}
	return nil
}

func (s *liveSession) reportViolation(ctx context.Context, v proctor.Violation) error {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	return s.bridge.violations.Record(ctx, s.assessmentID, s.userID, &services.ViolationReportRequest{
		SessionID:  sessionID,
		Code:       string(v.Code),
		Message:    v.Message,
		OccurredAt: v.At,
		Count:      v.Count,
	})
}

func (s *liveSession) warn(v proctor.Violation) {
	if err := s.send(ServerMessage{Type: MsgWarning, Violation: &v}); err != nil {
		s.logger.Debug("Failed to send warning", "code", v.Code, "error", err)
	}
}

func (s *liveSession) tick(remaining int) {
	_ = s.send(ServerMessage{Type: MsgTick, Remaining: &remaining})
}

// probe asks the client for a fresh state report ahead of every liveness check.
func (s *liveSession) probe() func() {
	interval := s.bridge.cfg.Monitor.LivenessInterval
	if interval <= 0 {
		return func() {}
	}
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-s.ctx.Done():
				return
			case <-t.C:
				_ = s.send(ServerMessage{Type: MsgProbe})
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

func (s *liveSession) deny(err error) {
	msg := ServerMessage{Type: MsgDenied}

	var quota *services.QuotaExhaustedError
	switch {
	case errors.Is(err, proctor.ErrFullscreenDenied):
		msg.Reason = DenyFullscreen
	case errors.As(err, &quota):
		msg.Reason = DenyQuotaExhausted
		remaining := quota.Remaining
		msg.RemainingAttempts = &remaining
	case errors.Is(err, services.ErrQuotaExhausted):
		msg.Reason = DenyQuotaExhausted
	case errors.Is(err, services.ErrAssessmentNotFound):
		msg.Reason = DenyNotFound
	case errors.Is(err, services.ErrPaymentRequired):
		msg.Reason = DenyPaymentRequired
	case errors.Is(err, services.ErrPurchaseRequired):
		msg.Reason = DenyPurchaseRequired
	case errors.Is(err, services.ErrNoQuestionsAvailable):
		msg.Reason = DenyNoQuestions
	case errors.Is(err, services.ErrRateLimited):
		msg.Reason = DenyRateLimited
	default:
		s.logger.Error("Live session admission failed", "error", err)
		s.sendError("admission failed")
		return
	}

	s.logger.Info("Live session denied", "reason", msg.Reason)
	if sendErr := s.send(msg); sendErr != nil {
		s.logger.Debug("Failed to send denial", "reason", msg.Reason, "error", sendErr)
	}
}
