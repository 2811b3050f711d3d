package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
)

type memStaffRepo struct {
	byID    map[string]*domain.StaffMember
	byEmail map[string]*domain.StaffMember
	nextID  int
}

func newMemStaffRepo() *memStaffRepo {
	return &memStaffRepo{
		byID:    make(map[string]*domain.StaffMember),
		byEmail: make(map[string]*domain.StaffMember),
	}
}

func (r *memStaffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	r.nextID++
	staff.ID = "staff-" + strconv.Itoa(r.nextID)
	copied := *staff
	r.byID[staff.ID] = &copied
	r.byEmail[staff.Email] = &copied
	return nil
}

func (r *memStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	if staff, ok := r.byID[id]; ok {
		copied := *staff
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memStaffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	if staff, ok := r.byEmail[email]; ok {
		copied := *staff
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}
}

func TestLoginStaff(t *testing.T) {
	repo := newMemStaffRepo()
	svc := NewAuthService(testAuthConfig(), repo)
	ctx := context.Background()

	created, err := svc.RegisterStaff(ctx, "Ada", "ada@example.org", "hunter2", domain.StaffRoleReviewer)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	staff, token, _, err := svc.LoginStaff(ctx, "ada@example.org", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, staff.ID)
	require.NotEmpty(t, token)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.StaffID)
	assert.Equal(t, domain.StaffRoleReviewer, claims.Role)
}

func TestLoginStaffWrongPassword(t *testing.T) {
	repo := newMemStaffRepo()
	svc := NewAuthService(testAuthConfig(), repo)
	ctx := context.Background()

	_, err := svc.RegisterStaff(ctx, "Ada", "ada@example.org", "hunter2", domain.StaffRoleReviewer)
	require.NoError(t, err)

	_, _, _, err = svc.LoginStaff(ctx, "ada@example.org", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStaffUnknownEmail(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newMemStaffRepo())

	_, _, _, err := svc.LoginStaff(context.Background(), "nobody@example.org", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStaffInactive(t *testing.T) {
	repo := newMemStaffRepo()
	svc := NewAuthService(testAuthConfig(), repo)
	ctx := context.Background()

	created, err := svc.RegisterStaff(ctx, "Ada", "ada@example.org", "hunter2", domain.StaffRoleAdmin)
	require.NoError(t, err)
	repo.byEmail[created.Email].Active = false

	_, _, _, err = svc.LoginStaff(ctx, "ada@example.org", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
