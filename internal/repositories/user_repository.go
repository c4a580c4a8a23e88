package repositories

import (
	"context"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

// UserRepository is read-only; users are owned by the identity provider
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}
