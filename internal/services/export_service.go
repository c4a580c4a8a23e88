package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

const exportTimeLayout = "2006-01-02 15:04:05"

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) ExportResults(ctx context.Context, assessmentID uint, w io.Writer) error {
	if _, err := s.repo.Assessment().GetByID(ctx, assessmentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	results, err := s.repo.Result().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.UserID)
	}
	names := s.userNames(ctx, ids)

	headers := []string{"result_id", "user_id", "full_name", "attempt", "score", "total", "percentage", "status", "time_taken", "late", "reason", "certificate_url", "completed_at"}
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		certURL := ""
		if r.CertificateURL != nil {
			certURL = *r.CertificateURL
		}
		rows = append(rows, []any{
			r.ID,
			r.UserID,
			names[r.UserID],
			r.AttemptNumber,
			r.Score,
			r.TotalQuestions,
			r.Percentage,
			string(r.Status),
			r.TimeTaken,
			r.SubmittedLate,
			r.SubmitReason,
			certURL,
			r.CompletedAt.Format(exportTimeLayout),
		})
	}

	s.logger.Info("Exporting results", "assessment_id", assessmentID, "rows", len(rows))
	return writeWorkbook(w, "Results", headers, rows)
}

func (s *exportService) ExportViolations(ctx context.Context, assessmentID uint, w io.Writer) error {
	records, err := s.repo.Violation().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to list violations: %w", err)
	}

	headers := []string{"id", "session_id", "user_id", "code", "message", "count", "occurred_at"}
	rows := make([][]any, 0, len(records))
	for _, v := range records {
		rows = append(rows, []any{
			v.ID,
			derefString(v.SessionID),
			v.UserID,
			v.Code,
			v.Message,
			v.Count,
			v.OccurredAt.Format(exportTimeLayout),
		})
	}

	s.logger.Info("Exporting violations", "assessment_id", assessmentID, "rows", len(rows))
	return writeWorkbook(w, "Violations", headers, rows)
}

// userNames is best effort; an unreachable identity provider leaves names blank
func (s *exportService) userNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	users, err := s.repo.User().GetByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		s.logger.Warn("Failed to resolve user names for export", "error", err)
		return names
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names
}

func writeWorkbook(w io.Writer, sheetName string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for i, values := range rows {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheetName, "A", lastCol, 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
