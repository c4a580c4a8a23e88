package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
)

func (s *testServer) do(method, path, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer forged", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + studentToken, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestUsersMe_FallsBackToClaims(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/users/me", studentToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var user map[string]any
	decode(t, w, &user)
	assert.Equal(t, "student-1", user["id"])
	assert.Equal(t, "Ada", user["full_name"])
	assert.Equal(t, "student", user["role"])

	w = s.do(http.MethodGet, "/api/v1/users/me", adminToken, "")
	decode(t, w, &user)
	assert.Equal(t, "admin", user["role"])
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{name: "student cannot export", method: http.MethodGet, path: "/api/v1/assessments/1/results/export", token: studentToken, want: http.StatusForbidden},
		{name: "teacher exports", method: http.MethodGet, path: "/api/v1/assessments/1/results/export", token: teacherToken, want: http.StatusOK},
		{name: "admin exports", method: http.MethodGet, path: "/api/v1/assessments/1/violations/export", token: adminToken, want: http.StatusOK},
		{name: "teacher cannot grant", method: http.MethodPost, path: "/api/v1/grants", token: teacherToken, body: `{"user_id":"u","assessment_id":2}`, want: http.StatusForbidden},
		{name: "admin grants", method: http.MethodPost, path: "/api/v1/grants", token: adminToken, body: `{"user_id":"u","assessment_id":2}`, want: http.StatusOK},
		{name: "grant on free assessment", method: http.MethodPost, path: "/api/v1/grants", token: adminToken, body: `{"user_id":"u","assessment_id":1}`, want: http.StatusUnprocessableEntity},
		{name: "student cannot look up users", method: http.MethodGet, path: "/api/v1/users/teacher-1", token: studentToken, want: http.StatusForbidden},
		{name: "teacher looks up users", method: http.MethodGet, path: "/api/v1/users/teacher-1", token: teacherToken, want: http.StatusOK},
		{name: "unknown user", method: http.MethodGet, path: "/api/v1/users/nobody", token: teacherToken, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAdmit(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/assessments/1/sessions", studentToken, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp services.AdmissionResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 600, resp.TimeLimitSeconds)

	w = s.do(http.MethodPost, "/api/v1/assessments/abc/sessions", studentToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/assessments/0/sessions", studentToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantCode string
	}{
		{name: "not found", err: services.ErrAssessmentNotFound, want: http.StatusNotFound, wantCode: "not_found"},
		{name: "payment", err: services.ErrPaymentRequired, want: http.StatusPaymentRequired, wantCode: "payment_required"},
		{name: "purchase", err: services.ErrPurchaseRequired, want: http.StatusForbidden, wantCode: "purchase_required"},
		{name: "quota", err: &services.QuotaExhaustedError{Remaining: 0}, want: http.StatusConflict, wantCode: "quota_exhausted"},
		{name: "business rule", err: services.NewBusinessRuleError("premium_only", "Access grants apply to premium assessments only", nil), want: http.StatusUnprocessableEntity, wantCode: "premium_only"},
		{name: "empty pool", err: services.ErrNoQuestionsAvailable, want: http.StatusUnprocessableEntity, wantCode: "no_questions"},
		{name: "rate limited", err: &services.RateLimitError{RetryAfter: 1500 * time.Millisecond}, want: http.StatusTooManyRequests, wantCode: "rate_limited"},
		{name: "wrapped", err: errors.Join(errors.New("context"), services.ErrPaymentRequired), want: http.StatusPaymentRequired, wantCode: "payment_required"},
		{name: "unexpected", err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.services.admission.err = tt.err

			w := s.do(http.MethodPost, "/api/v1/assessments/1/sessions", studentToken, "")
			assert.Equal(t, tt.want, w.Code)

			var body ErrorResponse
			decode(t, w, &body)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestAdmit_RateLimitSetsRetryAfter(t *testing.T) {
	s := newTestServer()
	s.services.admission.err = &services.RateLimitError{RetryAfter: 1500 * time.Millisecond}

	w := s.do(http.MethodPost, "/api/v1/assessments/1/sessions", studentToken, "")
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestAdmit_QuotaDetails(t *testing.T) {
	s := newTestServer()
	s.services.admission.err = &services.QuotaExhaustedError{Remaining: 0}

	w := s.do(http.MethodPost, "/api/v1/assessments/1/sessions", studentToken, "")
	var body struct {
		Details struct {
			RemainingAttempts int `json:"remaining_attempts"`
		} `json:"details"`
	}
	decode(t, w, &body)
	assert.Equal(t, 0, body.Details.RemainingAttempts)
}

func TestQuota(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/assessments/2/quota", studentToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp services.QuotaResponse
	decode(t, w, &resp)
	assert.Equal(t, uint(2), resp.AssessmentID)
	assert.Equal(t, 2, resp.Remaining)
}

func TestSubmit(t *testing.T) {
	s := newTestServer()

	body := `{"session_id":"0b7a9a52-5d52-4c1e-9a0c-6f0d9f1d2a11","answers":[{"question_id":4,"selected_index":2}],"reason":"manual"}`
	w := s.do(http.MethodPost, "/api/v1/assessments/1/submit", studentToken, body)
	require.Equal(t, http.StatusOK, w.Code)

	last := s.services.submission.last
	require.NotNil(t, last)
	require.Len(t, last.Answers, 1)
	assert.Equal(t, uint(4), last.Answers[0].QuestionID)
	assert.Equal(t, 2, last.Answers[0].SelectedIndex)

	w = s.do(http.MethodPost, "/api/v1/assessments/1/submit", studentToken, `{"answers":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportViolation(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/assessments/1/violations", studentToken, `{"code":"window_blur","count":1,"timestamp":"2026-03-01T09:00:00Z"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, s.services.violations.recorded, 1)
	assert.True(t, s.services.violations.recorded[0].OccurredAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	w = s.do(http.MethodPost, "/api/v1/assessments/1/violations", studentToken, `{"count":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, "validation_failed", body.Code)
}

func TestSessionViolations(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/sessions/abc/violations", studentToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/sessions/missing/violations", studentToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResults(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/results/9", studentToken, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/results/9", teacherToken, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/results/10", studentToken, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/assessments/1/results/me", studentToken, "").Code)
}

func TestCertificateEndpoints(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/results/9/certificate", studentToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cert.png")

	s.services.certificates.getErr = services.ErrCertificatePending
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodGet, "/api/v1/results/9/certificate", studentToken, "").Code)

	s.services.certificates.getErr = services.ErrCertificateMissing
	w = s.do(http.MethodGet, "/api/v1/results/9/certificate", studentToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, "certificate_missing", body.Code)

	// regenerate without a body
	w = s.do(http.MethodPost, "/api/v1/results/9/certificate", studentToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.services.certificates.existingURL)

	w = s.do(http.MethodPost, "/api/v1/results/9/certificate", studentToken, `{"existing_url":"http://files.test/old.png"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://files.test/old.png", s.services.certificates.existingURL)
}

func TestExportHeaders(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/assessments/1/results/export", teacherToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "assessment-1-results.xlsx")

	w = s.do(http.MethodGet, "/api/v1/assessments/5/results/export", teacherToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestLive_AccessTokenOnlyOnUpgrade(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/1/live?access_token="+studentToken, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.live.calls)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/assessments/1/live?access_token="+studentToken, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.live.calls)
	assert.Equal(t, "student-1", s.live.userID)
}

func TestHealth(t *testing.T) {
	s := newTestServer(
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }},
	)
	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s = newTestServer(HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }})
	w = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/assessments/1/sessions", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	mw := CORSMiddleware([]string{"https://exam.example.com"})

	tests := []struct {
		origin string
		want   string
	}{
		{origin: "https://exam.example.com", want: "https://exam.example.com"},
		{origin: "https://evil.example.com", want: ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Origin", tt.origin)
		mw(c)
		assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
	}
}
