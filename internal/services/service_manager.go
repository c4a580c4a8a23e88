package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skill-assessment-service/internal/certificate"
	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/sampler"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Proctoring defaults handed out at admission
	MaxViolations    int
	MinViewportWidth int

	// Submissions later than deadline + LateGrace are flagged as late
	LateGrace time.Duration

	// Certificate repair sweep; an empty schedule disables it
	RepairSchedule string
	RepairBatch    int
}

// DefaultServiceManagerConfig returns the configuration used when nothing is set
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		MaxViolations:    3,
		MinViewportWidth: 1024,
		LateGrace:        30 * time.Second,
		RepairSchedule:   "@every 10m",
		RepairBatch:      50,
	}
}

// Validate validates the service manager configuration
func (c ServiceManagerConfig) Validate() error {
	var errs []string
	if c.MaxViolations < 1 {
		errs = append(errs, "max violations must be positive")
	}
	if c.MinViewportWidth < 0 {
		errs = append(errs, "min viewport width cannot be negative")
	}
	if c.LateGrace < 0 {
		errs = append(errs, "late grace cannot be negative")
	}
	if c.RepairSchedule != "" && c.RepairBatch < 1 {
		errs = append(errs, "repair batch must be positive when a repair schedule is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// ServiceDependencies are the collaborators shared by the services
type ServiceDependencies struct {
	Repo      repositories.Repository
	Payments  PaymentChecker
	Sampler   *sampler.Sampler
	Limiter   *cache.RateLimiter // optional
	Publisher events.EventPublisher
	Issuer    *certificate.Issuer
	Logger    *slog.Logger
	Validator *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDependencies
	config ServiceManagerConfig

	admissionService   AdmissionService
	submissionService  SubmissionService
	grantService       GrantService
	violationService   ViolationService
	certificateService CertificateService
	exportService      ExportService

	repairJob *CertificateRepairJob

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Sampler == nil {
		deps.Sampler = sampler.New()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &serviceManager{deps: deps, config: config}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if err := sm.config.Validate(); err != nil {
		return err
	}

	sm.deps.Logger.Info("Initializing service manager")
	d := sm.deps

	sm.certificateService = NewCertificateService(d.Repo, d.Issuer, d.Publisher, d.Logger)
	sm.admissionService = NewAdmissionService(d.Repo, d.Payments, d.Sampler, d.Limiter, d.Publisher, d.Logger, sm.config)
	sm.submissionService = NewSubmissionService(d.Repo, sm.certificateService, d.Publisher, d.Logger, d.Validator, sm.config)
	sm.grantService = NewGrantService(d.Repo, d.Logger, d.Validator)
	sm.violationService = NewViolationService(d.Repo, d.Publisher, d.Logger, d.Validator)
	sm.exportService = NewExportService(d.Repo, d.Logger)

	if sm.config.RepairSchedule != "" {
		job, err := NewCertificateRepairJob(sm.certificateService, sm.config.RepairSchedule, sm.config.RepairBatch, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		sm.repairJob = job
		sm.repairJob.Start()
	}

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")
	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Admission() AdmissionService {
	sm.mustBeInitialized()
	return sm.admissionService
}

func (sm *serviceManager) Submission() SubmissionService {
	sm.mustBeInitialized()
	return sm.submissionService
}

func (sm *serviceManager) Grant() GrantService {
	sm.mustBeInitialized()
	return sm.grantService
}

func (sm *serviceManager) Violation() ViolationService {
	sm.mustBeInitialized()
	return sm.violationService
}

func (sm *serviceManager) Certificate() CertificateService {
	sm.mustBeInitialized()
	return sm.certificateService
}

func (sm *serviceManager) Export() ExportService {
	sm.mustBeInitialized()
	return sm.exportService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// ===== HEALTH AND LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.deps.Logger.Info("Shutting down service manager")

	if sm.repairJob != nil {
		sm.repairJob.Stop(ctx)
	}
	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
