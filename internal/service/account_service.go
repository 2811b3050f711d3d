package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/backend"
	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/locking"
	"github.com/spec-kit/account-service/internal/notify"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/tasks"
	"github.com/spec-kit/account-service/internal/validate"
)

// creationLockName serializes every directory-mutating creation across the
// cluster: uid allocation and provisioning must never race.
const creationLockName = "account-creation"

// ErrInvalidPolicy rejects requests carrying an unknown warning policy.
var ErrInvalidPolicy = errors.New("service: invalid warning policy")

// SubmitResult is what a submission settles to. When Status is ACCEPTED a
// creation task is running and Task carries its handle.
type SubmitResult struct {
	Status domain.SubmitStatus
	Issues []domain.Issue
	Task   *tasks.Task
}

// AccountService coordinates the request validation, queueing and creation
// pipeline.
type AccountService struct {
	requests   repository.AccountRequestRepository
	dir        directory.Client
	validator  *validate.Validator
	locker     locking.Locker
	creds      backend.CredentialBackend
	fs         backend.Provisioner
	notifier   notify.Notifier
	dispatcher events.Dispatcher
	tasks      *tasks.Registry
	lockWait   time.Duration
	lockTTL    time.Duration
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	RequestRepo repository.AccountRequestRepository
	Directory   directory.Client
	Validator   *validate.Validator
	Locker      locking.Locker
	Credentials backend.CredentialBackend
	Provisioner backend.Provisioner
	Notifier    notify.Notifier
	Dispatcher  events.Dispatcher
	Tasks       *tasks.Registry
	LockWait    time.Duration
	LockTTL     time.Duration
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	if deps.LockWait <= 0 {
		deps.LockWait = 5 * time.Minute
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Minute
	}
	return &AccountService{
		requests:   deps.RequestRepo,
		dir:        deps.Directory,
		validator:  deps.Validator,
		locker:     deps.Locker,
		creds:      deps.Credentials,
		fs:         deps.Provisioner,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		tasks:      deps.Tasks,
		lockWait:   deps.LockWait,
		lockTTL:    deps.LockTTL,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Submit validates a request and routes it: immediate rejection, warning
// report, staff queue, or a creation task. The returned error is reserved
// for infrastructure failures.
func (s *AccountService) Submit(ctx context.Context, req *domain.NewAccountRequest) (*SubmitResult, error) {
	if !req.Policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, req.Policy)
	}

	errs, warnings, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(errs) > 0 {
		issues := append(errs, warnings...)
		s.rejected(ctx, req, issues)
		return &SubmitResult{Status: domain.StatusRejected, Issues: issues}, nil
	}

	if len(warnings) > 0 && req.Policy != domain.PolicyCreate {
		if req.Policy == domain.PolicyWarn {
			s.metrics.RecordSubmission(string(domain.StatusFlagged))
			return &SubmitResult{Status: domain.StatusFlagged, Issues: warnings}, nil
		}
		return s.queue(ctx, req, warnings)
	}

	task := s.startCreation(req)
	s.logger.Info("creation task launched",
		zap.String("identifier", req.Identifier),
		zap.String("task_id", task.ID))
	return &SubmitResult{Status: domain.StatusAccepted, Issues: warnings, Task: task}, nil
}

// queue persists the request for staff review. A duplicate-key hit means
// someone queued it first; that still settles at PENDING.
func (s *AccountService) queue(ctx context.Context, req *domain.NewAccountRequest, warnings []domain.Issue) (*SubmitResult, error) {
	stored := &domain.StoredRequest{
		NewAccountRequest: *req,
		Reason:            domain.JoinIssues(warnings),
	}
	if err := s.requests.Insert(ctx, stored); err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			s.metrics.RecordSubmission(string(domain.StatusPending))
			return &SubmitResult{Status: domain.StatusPending, Issues: warnings}, nil
		}
		return nil, err
	}

	s.publish(ctx, events.EventAccountSubmitted, req, nil)
	s.metrics.RecordSubmission(string(domain.StatusPending))
	s.logger.Info("request queued for review",
		zap.String("identifier", req.Identifier),
		zap.String("reason", stored.Reason))
	return &SubmitResult{Status: domain.StatusPending, Issues: warnings}, nil
}

// Approve pops a queued request and resumes the creation path. Approval
// overrides warnings, never fatal checks: the request is re-validated inside
// the creation lock. A second approve for the same identifier is a no-op.
func (s *AccountService) Approve(ctx context.Context, identifier string) (*tasks.Task, error) {
	stored, err := s.requests.PopByIdentifier(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	req := stored.NewAccountRequest
	req.Policy = domain.PolicyCreate

	s.publish(ctx, events.EventAccountApproved, &req, nil)
	task := s.startCreation(&req)
	s.logger.Info("queued request approved",
		zap.String("identifier", identifier),
		zap.String("task_id", task.ID))
	return task, nil
}

// Reject pops a queued request and notifies the requester with the stored
// reason. A second reject for the same identifier is a no-op.
func (s *AccountService) Reject(ctx context.Context, identifier string) error {
	stored, err := s.requests.PopByIdentifier(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	req := stored.NewAccountRequest
	reasons := []string{stored.Reason}
	if err := s.notifier.AccountRejected(ctx, &req, reasons); err != nil {
		s.logger.Warn("rejection notification failed",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
	s.publish(ctx, events.EventAccountRejected, &req, reasons)
	s.metrics.RecordSubmission(string(domain.StatusRejected))
	s.logger.Info("queued request rejected", zap.String("identifier", identifier))
	return nil
}

// ListPending returns the queued requests awaiting staff review.
func (s *AccountService) ListPending(ctx context.Context) ([]domain.StoredRequest, error) {
	return s.requests.ListPending(ctx)
}

// Task looks up a creation task handle.
func (s *AccountService) Task(id string) (*tasks.Task, bool) {
	return s.tasks.Get(id)
}

func (s *AccountService) rejected(ctx context.Context, req *domain.NewAccountRequest, issues []domain.Issue) {
	reasons := domain.IssueMessages(issues)
	if err := s.notifier.AccountRejected(ctx, req, reasons); err != nil {
		s.logger.Warn("rejection notification failed",
			zap.String("identifier", req.Identifier),
			zap.Error(err))
	}
	s.publish(ctx, events.EventAccountRejected, req, reasons)
	s.metrics.RecordSubmission(string(domain.StatusRejected))
}

func (s *AccountService) publish(ctx context.Context, eventType events.EventType, req *domain.NewAccountRequest, reasons []string) {
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Identifier: req.Identifier,
		Timestamp:  time.Now(),
		Payload:    events.NewAccountEvent(req, reasons),
	})
	if err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
