package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
)

func TestRecordViolation(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC)
	env.setClock(now)
	admitted := admitFree(t, env)

	err := env.violations.Record(context.Background(), freeAssessmentID, testUser, &ViolationReportRequest{
		SessionID: admitted.SessionID,
		Code:      string(proctor.ViolationWindowBlur),
		Count:     1,
	})
	require.NoError(t, err)

	at := now.Add(30 * time.Second)
	err = env.violations.Record(context.Background(), freeAssessmentID, testUser, &ViolationReportRequest{
		SessionID:  admitted.SessionID,
		Code:       string(proctor.ViolationExitFullscreen),
		Message:    "left fullscreen",
		OccurredAt: at,
		Count:      2,
	})
	require.NoError(t, err)

	records, err := env.violations.ListBySession(context.Background(), admitted.SessionID, testUser)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "window_blur", records[0].Code)
	assert.Equal(t, proctor.ViolationWindowBlur.Message(), records[0].Message)
	assert.True(t, records[0].OccurredAt.Equal(now))
	assert.Equal(t, "left fullscreen", records[1].Message)
	assert.True(t, records[1].OccurredAt.Equal(at))
	assert.Equal(t, 2, records[1].Count)

	assert.Contains(t, env.publisher.GetTopics(), events.TopicViolations)
}

func TestRecordViolation_Rejections(t *testing.T) {
	env := newTestEnv(t)
	admitted := admitFree(t, env)

	tests := []struct {
		name    string
		userID  string
		req     ViolationReportRequest
		wantErr error
	}{
		{
			name:   "unknown code",
			userID: testUser,
			req:    ViolationReportRequest{Code: "telepathy", Count: 1},
		},
		{
			name:   "zero count",
			userID: testUser,
			req:    ViolationReportRequest{Code: "window_blur"},
		},
		{
			name:    "session of another user",
			userID:  "intruder",
			req:     ViolationReportRequest{SessionID: admitted.SessionID, Code: "window_blur", Count: 1},
			wantErr: ErrSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.violations.Record(context.Background(), freeAssessmentID, tt.userID, &tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var verrs ValidationErrors
			assert.True(t, errors.As(err, &verrs))
		})
	}
}

func TestRecordViolation_WithoutSession(t *testing.T) {
	env := newTestEnv(t)
	err := env.violations.Record(context.Background(), freeAssessmentID, testUser, &ViolationReportRequest{Code: "devtools_open", Count: 1})
	require.NoError(t, err)

	records, err := env.repo.Violation().ListByAssessment(context.Background(), freeAssessmentID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].SessionID)
}

func TestListViolations_Ownership(t *testing.T) {
	env := newTestEnv(t)
	admitted := admitFree(t, env)

	_, err := env.violations.ListBySession(context.Background(), admitted.SessionID, "intruder")
	var perr *PermissionError
	assert.True(t, errors.As(err, &perr))

	_, err = env.violations.ListBySession(context.Background(), "missing", testUser)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExportResults(t *testing.T) {
	env := newTestEnv(t)
	admitted := admitFree(t, env)
	_, err := env.submission.Submit(context.Background(), freeAssessmentID, testUser, &SubmitRequest{
		SessionID: admitted.SessionID,
		Answers:   env.correctAnswers(t, admitted),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.export.ExportResults(context.Background(), freeAssessmentID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "result_id", rows[0][0])
	assert.Equal(t, testUser, rows[1][1])
	assert.Equal(t, "Ada Lovelace", rows[1][2])
	assert.Equal(t, "pass", rows[1][7])

	err = env.export.ExportResults(context.Background(), 404, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestExportViolations(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.violations.Record(context.Background(), freeAssessmentID, testUser, &ViolationReportRequest{Code: "print_screen", Count: 1}))
	require.NoError(t, env.violations.Record(context.Background(), freeAssessmentID, testUser, &ViolationReportRequest{Code: "copy_event", Count: 2}))

	var buf bytes.Buffer
	require.NoError(t, env.export.ExportViolations(context.Background(), freeAssessmentID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Violations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "print_screen", rows[1][3])
	assert.Equal(t, "copy_event", rows[2][3])
}
