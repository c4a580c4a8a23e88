package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func AssessmentKey(assessmentID uint) string {
	return fmt.Sprintf("id:%d", assessmentID)
}

func PoolKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d", assessmentID)
}

// InvalidateAssessmentCache drops the cached definition and question pool of one assessment
func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Assessment, AssessmentKey(assessmentID))
	SafeDelete(ctx, cm.Pool, PoolKey(assessmentID))
}

// InvalidateUserCache drops every cached entry for a user
func InvalidateUserCache(ctx context.Context, cm *CacheManager, userID string) {
	SafeInvalidatePattern(ctx, cm.User, userID+"*")
}
