package repositories

import "context"

// Repository aggregates every repository the service uses
type Repository interface {
	// Assessment domain (read-mostly, authored elsewhere)
	Assessment() AssessmentRepository
	Question() QuestionRepository

	// Quota ledger and payment lookups
	Grant() GrantRepository
	PaymentOrder() PaymentOrderRepository

	// Session lifecycle
	Session() SessionRepository
	Result() ResultRepository
	Violation() ViolationRepository

	// User domain (read-only, backed by Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
