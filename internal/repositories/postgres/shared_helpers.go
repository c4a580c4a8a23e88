package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

// notFoundOr maps gorm's not-found to repositories.ErrNotFound and wraps anything else
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// applyLimit caps list queries; a non-positive limit means no cap
func applyLimit(query *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	return query
}
