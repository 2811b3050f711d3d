package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/locking"
	"github.com/spec-kit/account-service/internal/tasks"
)

// CreationError reports a creation that stopped partway. CompletedSteps
// names what already happened, so an operator can remediate by hand; a
// partial creation is never reported as CREATED.
type CreationError struct {
	Step           string
	CompletedSteps []string
	Err            error
}

func (e *CreationError) Error() string {
	if len(e.CompletedSteps) == 0 {
		return fmt.Sprintf("creation failed at %q: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("creation failed at %q (already done: %s): %v",
		e.Step, strings.Join(e.CompletedSteps, ", "), e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// startCreation launches the slow creation path as an independently
// schedulable task so callers are never blocked on it.
func (s *AccountService) startCreation(req *domain.NewAccountRequest) *tasks.Task {
	r := *req
	return s.tasks.Run("create "+r.Identifier, func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		started := time.Now()
		outcome, err := s.create(ctx, &r, report)
		s.metrics.CreationSeconds.Observe(time.Since(started).Seconds())
		if err == nil && outcome != nil {
			s.metrics.RecordSubmission(string(outcome.Status))
		}
		return outcome, err
	})
}

// create performs the locked, non-idempotent account creation. The lock is
// released on every path out; inside it the request is validated again,
// because conditions may have changed since the caller's initial check.
func (s *AccountService) create(ctx context.Context, req *domain.NewAccountRequest, report func(string)) (*domain.CreationOutcome, error) {
	report("waiting for creation lock")
	lockStart := time.Now()
	lock, err := s.locker.Acquire(ctx, creationLockName, s.lockWait, s.lockTTL)
	s.metrics.LockWaitSeconds.Observe(time.Since(lockStart).Seconds())
	if errors.Is(err, locking.ErrTimeout) {
		// Contention, not a user error: report it and let the caller retry
		// later.
		return nil, fmt.Errorf("creation lock not acquired within %s: %w", s.lockWait, err)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.logger.Error("creation lock release failed", zap.Error(err))
		}
	}()
	report("creation lock acquired")

	report("re-validating request")
	errs, _, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		// The world changed since the initial check; staff approval is not
		// a bypass of fatal checks.
		s.rejected(ctx, req, errs)
		return &domain.CreationOutcome{Status: domain.StatusRejected, Issues: errs}, nil
	}

	var completed []string
	fail := func(step string, err error) (*domain.CreationOutcome, error) {
		report(fmt.Sprintf("%s failed: %v", step, err))
		return nil, &CreationError{Step: step, CompletedSteps: completed, Err: err}
	}
	done := func(step string) {
		completed = append(completed, step)
		report(step + " done")
	}

	report("allocating numeric id")
	uid, err := s.dir.NextAvailableUID(ctx)
	if err != nil {
		return fail("allocate numeric id", err)
	}

	report(fmt.Sprintf("creating directory entry (uid %d)", uid))
	if err := s.dir.CreateEntry(ctx, req.Identifier, directoryEntry(req, uid)); err != nil {
		return fail("create directory entry", err)
	}
	done("directory entry")

	report("creating credential principal")
	if err := s.creds.CreatePrincipal(ctx, req.Identifier, req.EncryptedSecret); err != nil {
		return fail("create credential principal", err)
	}
	done("credential principal")

	report("provisioning home directory")
	if err := s.fs.CreateHome(ctx, req.Identifier); err != nil {
		return fail("provision home directory", err)
	}
	done("home directory")

	report("provisioning web directory")
	if err := s.fs.CreateWebDir(ctx, req.Identifier); err != nil {
		return fail("provision web directory", err)
	}
	done("web directory")

	if err := s.notifier.AccountCreated(ctx, req); err != nil {
		s.logger.Warn("creation notification failed",
			zap.String("identifier", req.Identifier),
			zap.Error(err))
	}
	s.publish(ctx, events.EventAccountCreated, req, nil)
	report("account created")

	s.logger.Info("account created",
		zap.String("identifier", req.Identifier),
		zap.Int("uid", uid))
	return &domain.CreationOutcome{Status: domain.StatusCreated, CompletedSteps: completed}, nil
}

// directoryEntry assembles the attributes for a new account entry.
func directoryEntry(req *domain.NewAccountRequest, uid int) directory.Attributes {
	attrs := directory.Attributes{
		directory.AttrObjectClass: {"account", "posixAccount"},
		directory.AttrIdentifier:  {req.Identifier},
		directory.AttrCommonName:  {req.FullName},
		directory.AttrUIDNumber:   {strconv.Itoa(uid)},
		directory.AttrGIDNumber:   {strconv.Itoa(uid)},
		directory.AttrHomeDir:     {"/home/" + req.Identifier[:1] + "/" + req.Identifier},
		directory.AttrMail:        {req.ContactEmail},
	}
	if req.IsGroup {
		if req.OrgRef != 0 {
			attrs[directory.AttrOrgRef] = []string{strconv.Itoa(req.OrgRef)}
		}
	} else {
		attrs[directory.AttrPersonRef] = []string{strconv.Itoa(req.PersonalRef)}
	}
	return attrs
}
