package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/skill-assessment-service/internal/certificate"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

var completedAt = time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC)

func seedResult(t *testing.T, env *testEnv, status models.ResultStatus) *models.Result {
	t.Helper()
	issuedAt := completedAt
	res := &models.Result{
		UserID:         testUser,
		AssessmentID:   freeAssessmentID,
		Score:          4,
		TotalQuestions: 5,
		Percentage:     80,
		Status:         status,
		AttemptNumber:  1,
		CompletedAt:    completedAt,
	}
	if status == models.ResultPass {
		res.CertificateIssuedAt = &issuedAt
	}
	require.NoError(t, env.repo.Result().Create(context.Background(), res))
	return res
}

func (e *testEnv) artifactPath(res *models.Result) string {
	id := certificate.NewIdentity(res.UserID, res.AssessmentID, *res.CertificateIssuedAt)
	return filepath.Join(e.certDir, id.Key())
}

func TestIssueForResult_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultPass)

	first, err := env.certificates.IssueForResult(context.Background(), res, "")
	require.NoError(t, err)
	assert.True(t, first.Rendered)

	again, err := env.certificates.IssueForResult(context.Background(), res, "")
	require.NoError(t, err)
	assert.False(t, again.Rendered)
	assert.Equal(t, first.URL, again.URL)
	assert.Equal(t, first.Serial, again.Serial)

	stored, err := env.repo.Result().GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CertificateURL)
	assert.Equal(t, first.URL, *stored.CertificateURL)
	assert.True(t, stored.CertificateIssuedAt.Equal(completedAt))
}

func TestIssueForResult_FailedResultNotEligible(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultFail)

	_, err := env.certificates.IssueForResult(context.Background(), res, "")
	assert.ErrorIs(t, err, ErrCertificateNotEligible)
}

func TestGetCertificate(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultPass)

	_, err := env.certificates.Get(context.Background(), res.ID, testUser)
	require.ErrorIs(t, err, ErrCertificatePending)

	issued, err := env.certificates.IssueForResult(context.Background(), res, "")
	require.NoError(t, err)

	file, err := env.certificates.Get(context.Background(), res.ID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("\x89PNG")))
	assert.Equal(t, filepath.Base(issued.URL), file.FileName)

	_, err = env.certificates.Get(context.Background(), res.ID, "intruder")
	var perr *PermissionError
	assert.True(t, errors.As(err, &perr))
}

func TestRegenerate_RestoresMissingArtifactUnderSameIdentity(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultPass)
	issued, err := env.certificates.IssueForResult(context.Background(), res, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(env.artifactPath(res)))
	_, err = env.certificates.Get(context.Background(), res.ID, testUser)
	require.ErrorIs(t, err, ErrCertificateMissing)

	regenerated, err := env.certificates.Regenerate(context.Background(), res.ID, testUser, "")
	require.NoError(t, err)
	assert.True(t, regenerated.Rendered)
	assert.Equal(t, issued.URL, regenerated.URL)
	assert.Equal(t, issued.Serial, regenerated.Serial)

	_, err = env.certificates.Get(context.Background(), res.ID, testUser)
	assert.NoError(t, err)
}

func TestRegenerate_ReplacesCorruptArtifact(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultPass)
	issued, err := env.certificates.IssueForResult(context.Background(), res, "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(env.artifactPath(res), []byte("<html>oops</html>"), 0o644))
	_, err = env.certificates.Get(context.Background(), res.ID, testUser)
	require.ErrorIs(t, err, ErrCertificateMissing)

	regenerated, err := env.certificates.Regenerate(context.Background(), res.ID, testUser, "")
	require.NoError(t, err)
	assert.Equal(t, issued.URL, regenerated.URL)

	file, err := env.certificates.Get(context.Background(), res.ID, testUser)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("\x89PNG")))
}

func TestRegenerate_HonoursExistingURL(t *testing.T) {
	env := newTestEnv(t)
	res := seedResult(t, env, models.ResultPass)
	// a result from before the identity was stored on the row
	res.CertificateIssuedAt = nil
	env.repo.store.mu.Lock()
	env.repo.store.results[res.ID] = *res
	env.repo.store.mu.Unlock()

	earlier := certificate.NewIdentity(testUser, freeAssessmentID, completedAt.Add(-time.Hour))
	url := env.store.URL(earlier.Key())

	regenerated, err := env.certificates.Regenerate(context.Background(), res.ID, testUser, url)
	require.NoError(t, err)
	assert.Equal(t, url, regenerated.URL)
	assert.Equal(t, earlier.Serial(), regenerated.Serial)
}

func TestRepairMissing(t *testing.T) {
	env := newTestEnv(t)
	seedResult(t, env, models.ResultPass)
	seedResult(t, env, models.ResultPass)
	seedResult(t, env, models.ResultFail)

	repaired, err := env.certificates.RepairMissing(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	missing, err := env.repo.Result().ListMissingCertificates(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCertificateRepairJob_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewCertificateRepairJob(env.certificates, "not a schedule", 10, testLogger())
	assert.Error(t, err)

	job, err := NewCertificateRepairJob(env.certificates, "@every 1h", 10, testLogger())
	require.NoError(t, err)
	job.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)
}
