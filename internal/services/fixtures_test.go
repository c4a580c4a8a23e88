package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/skill-assessment-service/internal/certificate"
	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/sampler"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

const (
	freeAssessmentID    uint = 1
	premiumAssessmentID uint = 2
	testUser                 = "student-1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() ServiceManagerConfig {
	cfg := DefaultServiceManagerConfig()
	cfg.RepairSchedule = ""
	return cfg
}

type fakePayments struct {
	mu   sync.Mutex
	paid map[string]bool
	err  error
}

func newFakePayments() *fakePayments {
	return &fakePayments{paid: map[string]bool{}}
}

func (f *fakePayments) markPaid(userID string, assessmentID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[paymentKey(userID, assessmentID)] = true
}

func (f *fakePayments) HasPaid(ctx context.Context, userID string, assessmentID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.paid[paymentKey(userID, assessmentID)], nil
}

func paymentKey(userID string, assessmentID uint) string {
	return fmt.Sprintf("%s/%d", userID, assessmentID)
}

// testEnv wires every service against the in-memory repository and a local certificate store
type testEnv struct {
	repo         *mockRepository
	payments     *fakePayments
	publisher    *events.MockEventPublisher
	store        *certificate.LocalStore
	certDir      string
	admission    *admissionService
	submission   *submissionService
	certificates *certificateService
	grants       *grantService
	violations   *violationService
	export       *exportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMockRepository()
	repo.addAssessment(models.Assessment{ID: freeAssessmentID, Title: "Go Basics", NumQuestions: 5, TimeLimit: 10})
	repo.addAssessment(models.Assessment{ID: premiumAssessmentID, Title: "Go Concurrency", IsPremium: true, NumQuestions: 5, TimeLimit: 10})
	repo.addQuestions(freeAssessmentID, 9)
	repo.addQuestions(premiumAssessmentID, 9)
	repo.addUser(models.User{ID: testUser, FullName: "Ada Lovelace"})

	dir := t.TempDir()
	store, err := certificate.NewLocalStore(dir, "http://files.test")
	require.NoError(t, err)
	renderer, err := certificate.NewImageRenderer("")
	require.NoError(t, err)

	logger := testLogger()
	v := validator.New()
	cfg := testConfig()
	payments := newFakePayments()
	publisher := events.NewMockEventPublisher(logger)

	certs := NewCertificateService(repo, certificate.NewIssuer(store, renderer, logger), publisher, logger).(*certificateService)
	env := &testEnv{
		repo:         repo,
		payments:     payments,
		publisher:    publisher,
		store:        store,
		certDir:      dir,
		certificates: certs,
		admission:    NewAdmissionService(repo, payments, sampler.NewWithSource(rand.NewSource(7)), nil, publisher, logger, cfg).(*admissionService),
		submission:   NewSubmissionService(repo, certs, publisher, logger, v, cfg).(*submissionService),
		grants:       NewGrantService(repo, logger, v).(*grantService),
		violations:   NewViolationService(repo, publisher, logger, v).(*violationService),
		export:       NewExportService(repo, logger).(*exportService),
	}
	return env
}

// setClock pins "now" for every service in the environment
func (e *testEnv) setClock(now time.Time) {
	clock := func() time.Time { return now }
	e.admission.now = clock
	e.submission.now = clock
	e.grants.now = clock
	e.violations.now = clock
}

// correctAnswers answers every question of a session correctly
func (e *testEnv) correctAnswers(t *testing.T, resp *AdmissionResponse) []AnswerInput {
	t.Helper()
	qs, err := e.repo.Question().GetByIDs(context.Background(), resp.QuestionIDs())
	require.NoError(t, err)
	answers := make([]AnswerInput, len(qs))
	for i, q := range qs {
		answers[i] = AnswerInput{QuestionID: q.ID, SelectedIndex: q.CorrectIndex}
	}
	return answers
}
