package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/locking"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/tasks"
	"github.com/spec-kit/account-service/internal/validate"
)

type stubDirectory struct {
	mu           sync.Mutex
	entriesByRef map[int]directory.Attributes
	entriesByID  map[string]directory.Attributes
	affiliations map[int][]string
	nextUID      int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		entriesByRef: make(map[int]directory.Attributes),
		entriesByID:  make(map[string]directory.Attributes),
		affiliations: make(map[int][]string),
		nextUID:      1000,
	}
}

func (d *stubDirectory) LookupByExternalRef(_ context.Context, ref int) (directory.Attributes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if attrs, ok := d.entriesByRef[ref]; ok {
		return attrs, nil
	}
	return nil, directory.ErrNotFound
}

func (d *stubDirectory) LookupByIdentifier(_ context.Context, identifier string) (directory.Attributes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if attrs, ok := d.entriesByID[identifier]; ok {
		return attrs, nil
	}
	return nil, directory.ErrNotFound
}

func (d *stubDirectory) Affiliations(_ context.Context, ref int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tags, ok := d.affiliations[ref]; ok {
		return tags, nil
	}
	return nil, directory.ErrNotFound
}

func (d *stubDirectory) NextAvailableUID(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUID++
	return d.nextUID, nil
}

func (d *stubDirectory) CreateEntry(_ context.Context, identifier string, attrs directory.Attributes) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entriesByID[identifier]; ok {
		return fmt.Errorf("entry %q already exists", identifier)
	}
	d.entriesByID[identifier] = attrs
	return nil
}

func (d *stubDirectory) entryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entriesByID)
}

// memRepo is an in-memory AccountRequestRepository. With staleReads set the
// existence checks always answer "no", mimicking the window between a
// validation read and a conflicting insert.
type memRepo struct {
	mu         sync.Mutex
	rows       map[string]*domain.StoredRequest
	nextID     int64
	staleReads bool
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*domain.StoredRequest)}
}

func (r *memRepo) ExistsByIdentifier(_ context.Context, identifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleReads {
		return false, nil
	}
	_, ok := r.rows[identifier]
	return ok, nil
}

func (r *memRepo) ExistsPendingForIdentity(_ context.Context, req *domain.NewAccountRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleReads {
		return false, nil
	}
	for _, row := range r.rows {
		if req.IsGroup {
			if row.IsGroup && req.OrgRef != 0 && row.OrgRef == req.OrgRef {
				return true, nil
			}
		} else if !row.IsGroup && row.PersonalRef == req.PersonalRef {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Insert(_ context.Context, req *domain.StoredRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[req.Identifier]; ok {
		return repository.ErrDuplicateRequest
	}
	r.nextID++
	req.ID = r.nextID
	req.CreatedAt = time.Now()
	stored := *req
	r.rows[req.Identifier] = &stored
	return nil
}

func (r *memRepo) PopByIdentifier(_ context.Context, identifier string) (*domain.StoredRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[identifier]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.rows, identifier)
	return row, nil
}

func (r *memRepo) ListPending(context.Context) ([]domain.StoredRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StoredRequest, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type stubCredentials struct {
	mu      sync.Mutex
	created []string
}

func (c *stubCredentials) CreatePrincipal(_ context.Context, identifier string, secret []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, identifier)
	return nil
}

func (c *stubCredentials) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created)
}

type stubProvisioner struct {
	mu    sync.Mutex
	homes []string
	webs  []string
}

func (p *stubProvisioner) CreateHome(_ context.Context, identifier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.homes = append(p.homes, identifier)
	return nil
}

func (p *stubProvisioner) CreateWebDir(_ context.Context, identifier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.webs = append(p.webs, identifier)
	return nil
}

type stubNotifier struct {
	mu       sync.Mutex
	created  []string
	rejected []string
	reasons  [][]string
}

func (n *stubNotifier) AccountCreated(_ context.Context, req *domain.NewAccountRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, req.Identifier)
	return nil
}

func (n *stubNotifier) AccountRejected(_ context.Context, req *domain.NewAccountRequest, reasons []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, req.Identifier)
	n.reasons = append(n.reasons, reasons)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) typesSeen() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		types = append(types, e.Type)
	}
	return types
}

type serviceFixture struct {
	svc        *AccountService
	dir        *stubDirectory
	repo       *memRepo
	creds      *stubCredentials
	fs         *stubProvisioner
	notifier   *stubNotifier
	dispatcher *recordingDispatcher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := zap.NewNop()
	dir := newStubDirectory()
	repo := newMemRepo()
	creds := &stubCredentials{}
	fs := &stubProvisioner{}
	notifier := &stubNotifier{}
	dispatcher := &recordingDispatcher{}

	svc := NewAccountService(AccountDependencies{
		RequestRepo: repo,
		Directory:   dir,
		Validator:   validate.New(dir, repo, nil, logger),
		Locker:      locking.NewMemoryLocker(),
		Credentials: creds,
		Provisioner: fs,
		Notifier:    notifier,
		Dispatcher:  dispatcher,
		Tasks:       tasks.NewRegistry(30*time.Second, time.Minute, logger),
		LockWait:    10 * time.Second,
		LockTTL:     time.Minute,
		Metrics:     observability.NewMetrics(),
		Logger:      logger,
	})

	return &serviceFixture{
		svc:        svc,
		dir:        dir,
		repo:       repo,
		creds:      creds,
		fs:         fs,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

func cleanRequest() *domain.NewAccountRequest {
	return &domain.NewAccountRequest{
		Identifier:      "jsmith",
		FullName:        "John Smith",
		PersonalRef:     42,
		ContactEmail:    "jsmith@example.org",
		EncryptedSecret: []byte("opaque"),
		Policy:          domain.PolicyWarn,
	}
}

func TestSubmitRejectsUnknownPolicy(t *testing.T) {
	f := newServiceFixture(t)
	req := cleanRequest()
	req.Policy = "MAYBE"

	_, err := f.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestSubmitRejectionLeavesNoTrace(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED", "STUDENT-STATUS-EXPIRED"}

	result, err := f.svc.Submit(context.Background(), cleanRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, result.Status)
	require.NotEmpty(t, result.Issues)

	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.creds.count())
	assert.Zero(t, f.dir.entryCount())
	assert.Equal(t, []string{"jsmith"}, f.notifier.rejected)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventAccountRejected)
}

func TestSubmitWarnPolicyFlags(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFlagged, result.Status)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, domain.IssueNameMismatch, result.Issues[0].Code)

	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.dir.entryCount())
	assert.Empty(t, f.dispatcher.typesSeen())
}

func TestSubmitRestrictedIdentifierFlagged(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "rejectme"
	req.FullName = "Reject Me"

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFlagged, result.Status)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, domain.IssueRestrictedWord, result.Issues[0].Code)

	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.dir.entryCount())
}

func TestSubmitQueuesForReview(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"
	req.Policy = domain.PolicySubmit

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, result.Status)

	pending, err := f.svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "grapefruit", pending[0].Identifier)
	assert.NotEmpty(t, pending[0].Reason)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventAccountSubmitted)
}

func TestSubmitDuplicateInsertCollapsesToPending(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}
	f.dir.affiliations[43] = []string{"STUDENT-TYPE-REGISTERED"}

	// Stale existence reads mimic two racing submissions that both validated
	// before either inserted.
	f.repo.staleReads = true

	first := cleanRequest()
	first.Identifier = "grapefruit"
	first.Policy = domain.PolicySubmit

	result, err := f.svc.Submit(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, result.Status)

	second := cleanRequest()
	second.Identifier = "grapefruit"
	second.PersonalRef = 43
	second.Policy = domain.PolicySubmit

	result, err = f.svc.Submit(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, result.Status)

	// The original row survives untouched.
	f.repo.staleReads = false
	pending, err := f.svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 42, pending[0].PersonalRef)
}

func TestSubmitCleanRequestCreatesAccount(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	result, err := f.svc.Submit(context.Background(), cleanRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, result.Status)
	require.NotNil(t, result.Task)

	outcome, err := result.Task.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, domain.StatusCreated, outcome.Status)
	assert.Equal(t, []string{"directory entry", "credential principal", "home directory", "web directory"}, outcome.CompletedSteps)

	attrs, err := f.dir.LookupByIdentifier(context.Background(), "jsmith")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", attrs.First(directory.AttrCommonName))
	assert.Equal(t, "42", attrs.First(directory.AttrPersonRef))
	uid, ok := attrs.Int(directory.AttrUIDNumber)
	require.True(t, ok)
	assert.Greater(t, uid, 1000)

	assert.Equal(t, []string{"jsmith"}, f.creds.created)
	assert.Equal(t, []string{"jsmith"}, f.fs.homes)
	assert.Equal(t, []string{"jsmith"}, f.fs.webs)
	assert.Equal(t, []string{"jsmith"}, f.notifier.created)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventAccountCreated)
}

func TestSubmitCreatePolicyOverridesWarnings(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"
	req.Policy = domain.PolicyCreate

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, result.Status)
	require.NotNil(t, result.Task)

	outcome, err := result.Task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, outcome.Status)
}

func TestConcurrentSubmissionsCreateExactlyOne(t *testing.T) {
	f := newServiceFixture(t)
	for ref := 50; ref < 54; ref++ {
		f.dir.affiliations[ref] = []string{"STUDENT-TYPE-REGISTERED"}
	}

	var wg sync.WaitGroup
	outcomes := make(chan domain.SubmitStatus, 4)
	for i := 0; i < 4; i++ {
		ref := 50 + i
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := cleanRequest()
			req.PersonalRef = ref

			result, err := f.svc.Submit(context.Background(), req)
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			if result.Task == nil {
				outcomes <- result.Status
				return
			}
			outcome, err := result.Task.Wait(context.Background())
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			outcomes <- outcome.Status
		}()
	}
	wg.Wait()
	close(outcomes)

	created := 0
	for status := range outcomes {
		if status == domain.StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, f.creds.count())
	assert.Equal(t, 1, f.dir.entryCount())
}

func TestApproveResumesCreation(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"
	req.Policy = domain.PolicySubmit

	result, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, result.Status)

	task, err := f.svc.Approve(context.Background(), "grapefruit")
	require.NoError(t, err)
	require.NotNil(t, task)

	outcome, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, outcome.Status)
	assert.Zero(t, f.repo.count())
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventAccountApproved)

	// A second approve finds nothing to do.
	task, err = f.svc.Approve(context.Background(), "grapefruit")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestApproveReValidatesUnderLock(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"
	req.Policy = domain.PolicySubmit

	_, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	// The identifier gets taken while the request sits in the queue.
	require.NoError(t, f.dir.CreateEntry(context.Background(), "grapefruit", directory.Attributes{}))

	task, err := f.svc.Approve(context.Background(), "grapefruit")
	require.NoError(t, err)
	require.NotNil(t, task)

	outcome, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Zero(t, f.creds.count())
}

func TestRejectNotifiesWithStoredReason(t *testing.T) {
	f := newServiceFixture(t)
	f.dir.affiliations[42] = []string{"STUDENT-TYPE-REGISTERED"}

	req := cleanRequest()
	req.Identifier = "grapefruit"
	req.Policy = domain.PolicySubmit

	_, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reject(context.Background(), "grapefruit"))
	assert.Zero(t, f.repo.count())
	require.Len(t, f.notifier.reasons, 1)
	assert.Contains(t, f.notifier.reasons[0][0], "grapefruit")
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventAccountRejected)

	// Rejecting again is a no-op.
	require.NoError(t, f.svc.Reject(context.Background(), "grapefruit"))
	assert.Len(t, f.notifier.rejected, 1)
}

func TestCreationErrorReportsCompletedSteps(t *testing.T) {
	err := &CreationError{
		Step:           "provision home directory",
		CompletedSteps: []string{"directory entry", "credential principal"},
		Err:            errors.New("disk full"),
	}
	assert.Contains(t, err.Error(), "provision home directory")
	assert.Contains(t, err.Error(), "credential principal")
	assert.ErrorContains(t, err, "disk full")
}
