package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

const (
	studentToken = "student-token"
	teacherToken = "teacher-token"
	adminToken   = "admin-token"
)

type fakeParser struct{}

func (fakeParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	switch token {
	case studentToken:
		return &casdoorsdk.Claims{User: casdoorsdk.User{Id: "student-1", DisplayName: "Ada", Type: "student"}}, nil
	case teacherToken:
		return &casdoorsdk.Claims{User: casdoorsdk.User{Id: "teacher-1", Type: "teacher"}}, nil
	case adminToken:
		return &casdoorsdk.Claims{User: casdoorsdk.User{Id: "admin-1", IsAdmin: true}}, nil
	}
	return nil, fmt.Errorf("bad signature")
}

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

type fakeAdmission struct {
	err error
}

func (f *fakeAdmission) Admit(ctx context.Context, assessmentID uint, userID string) (*services.AdmissionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.AdmissionResponse{
		SessionID:        "0b7a9a52-5d52-4c1e-9a0c-6f0d9f1d2a11",
		Assessment:       services.AssessmentSnapshot{ID: assessmentID, Title: "Go basics"},
		TimeLimitSeconds: 600,
	}, nil
}

func (f *fakeAdmission) Quota(ctx context.Context, assessmentID uint, userID string) (*services.QuotaResponse, error) {
	return &services.QuotaResponse{AssessmentID: assessmentID, IsPremium: true, HasAccess: true, AttemptsUsed: 1, MaxAttempts: 3, Remaining: 2}, nil
}

type fakeSubmission struct {
	last *services.SubmitRequest
}

func (f *fakeSubmission) Submit(ctx context.Context, assessmentID uint, userID string, req *services.SubmitRequest) (*services.SubmissionResponse, error) {
	f.last = req
	return &services.SubmissionResponse{ResultID: 9, SessionID: req.SessionID, Score: 3, TotalQuestions: 5, Status: models.ResultPass}, nil
}

func (f *fakeSubmission) GetResult(ctx context.Context, resultID uint, userID string) (*services.SubmissionResponse, error) {
	if resultID != 9 {
		return nil, services.ErrResultNotFound
	}
	if userID != "student-1" {
		return nil, services.NewPermissionError(userID, "result", "read", "not the owner")
	}
	return &services.SubmissionResponse{ResultID: 9}, nil
}

func (f *fakeSubmission) ListMyResults(ctx context.Context, assessmentID uint, userID string) ([]*services.SubmissionResponse, error) {
	return []*services.SubmissionResponse{{ResultID: 9}}, nil
}

type fakeViolations struct {
	recorded []services.ViolationReportRequest
}

func (f *fakeViolations) Record(ctx context.Context, assessmentID uint, userID string, req *services.ViolationReportRequest) error {
	if req.Code == "" {
		return services.ValidationErrors{{Field: "code", Message: "is required"}}
	}
	f.recorded = append(f.recorded, *req)
	return nil
}

func (f *fakeViolations) ListBySession(ctx context.Context, sessionID, userID string) ([]*models.ViolationRecord, error) {
	if sessionID == "missing" {
		return nil, services.ErrSessionNotFound
	}
	return []*models.ViolationRecord{{Code: "window_blur", Count: 1}}, nil
}

type fakeCertificates struct {
	getErr      error
	existingURL string
}

func (f *fakeCertificates) IssueForResult(ctx context.Context, result *models.Result, existingURL string) (*services.CertificateResponse, error) {
	return nil, services.ErrCertificateNotEligible
}

func (f *fakeCertificates) Regenerate(ctx context.Context, resultID uint, userID, existingURL string) (*services.CertificateResponse, error) {
	f.existingURL = existingURL
	return &services.CertificateResponse{ResultID: resultID, URL: "http://files.test/cert.png", Serial: "serial", IssuedAt: time.Unix(0, 0).UTC()}, nil
}

func (f *fakeCertificates) Get(ctx context.Context, resultID uint, userID string) (*services.CertificateFile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &services.CertificateFile{Body: []byte("\x89PNG fake"), ContentType: "image/png", FileName: "cert.png"}, nil
}

func (f *fakeCertificates) RepairMissing(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

type fakeGrants struct{}

func (fakeGrants) GrantAccess(ctx context.Context, req *services.GrantAccessRequest) (*models.AttemptGrant, error) {
	if req.UserID == "" {
		return nil, services.ValidationErrors{{Field: "user_id", Message: "is required"}}
	}
	if req.AssessmentID == 1 {
		return nil, services.NewBusinessRuleError("premium_only", "Access grants apply to premium assessments only",
			map[string]interface{}{"assessment_id": req.AssessmentID})
	}
	return &models.AttemptGrant{UserID: req.UserID, AssessmentID: req.AssessmentID, HasAccess: true, MaxAttempts: models.DefaultMaxAttempts}, nil
}

func (fakeGrants) HandlePaymentCompleted(ctx context.Context, orderID, userID string, assessmentID uint, paidAt time.Time) error {
	return nil
}

type fakeExports struct{}

func (fakeExports) ExportResults(ctx context.Context, assessmentID uint, w io.Writer) error {
	if assessmentID != 1 {
		return services.ErrAssessmentNotFound
	}
	_, err := w.Write([]byte("PK results"))
	return err
}

func (fakeExports) ExportViolations(ctx context.Context, assessmentID uint, w io.Writer) error {
	_, err := w.Write([]byte("PK violations"))
	return err
}

type fakeServiceManager struct {
	admission    *fakeAdmission
	submission   *fakeSubmission
	violations   *fakeViolations
	certificates *fakeCertificates
}

func (m *fakeServiceManager) Admission() services.AdmissionService     { return m.admission }
func (m *fakeServiceManager) Submission() services.SubmissionService   { return m.submission }
func (m *fakeServiceManager) Grant() services.GrantService             { return fakeGrants{} }
func (m *fakeServiceManager) Violation() services.ViolationService     { return m.violations }
func (m *fakeServiceManager) Certificate() services.CertificateService { return m.certificates }
func (m *fakeServiceManager) Export() services.ExportService           { return fakeExports{} }
func (m *fakeServiceManager) Initialize(ctx context.Context) error     { return nil }
func (m *fakeServiceManager) HealthCheck(ctx context.Context) error    { return nil }
func (m *fakeServiceManager) Shutdown(ctx context.Context) error       { return nil }

type fakeLive struct {
	calls  int
	userID string
}

func (f *fakeLive) Handle(w http.ResponseWriter, r *http.Request, assessmentID uint, userID string) error {
	f.calls++
	f.userID = userID
	w.WriteHeader(http.StatusOK)
	return nil
}

type testServer struct {
	router   *gin.Engine
	services *fakeServiceManager
	live     *fakeLive
}

func newTestServer(checks ...HealthCheck) *testServer {
	gin.SetMode(gin.TestMode)
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	sm := &fakeServiceManager{
		admission:    &fakeAdmission{},
		submission:   &fakeSubmission{},
		violations:   &fakeViolations{},
		certificates: &fakeCertificates{},
	}
	users := &fakeUsers{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Grace Hopper", Role: models.RoleTeacher},
	}}
	live := &fakeLive{}
	auth := NewAuthMiddlewareWithParser(fakeParser{}, users, logger)

	router := gin.New()
	SetupMiddleware(router, logger, nil)
	NewHandlerManager(sm, live, auth, users, logger, checks...).SetupRoutes(router)

	return &testServer{router: router, services: sm, live: live}
}
