package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// uniqueViolation is the postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// AccountRequestRepository is the persisted queue of requests awaiting staff
// review.
type AccountRequestRepository interface {
	ExistsByIdentifier(ctx context.Context, identifier string) (bool, error)
	// ExistsPendingForIdentity reports whether a stored request already
	// belongs to the same person (individuals) or the same non-zero
	// organization (groups). The zero organizational reference never
	// matches.
	ExistsPendingForIdentity(ctx context.Context, req *domain.NewAccountRequest) (bool, error)
	// Insert persists a request; ErrDuplicateRequest if the identifier is
	// already queued.
	Insert(ctx context.Context, req *domain.StoredRequest) error
	// PopByIdentifier atomically fetches and deletes a stored request, so
	// concurrent approve/reject calls resolve it exactly once.
	PopByIdentifier(ctx context.Context, identifier string) (*domain.StoredRequest, error)
	ListPending(ctx context.Context) ([]domain.StoredRequest, error)
}

type accountRequestRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRequestRepository instantiates the repository.
func NewAccountRequestRepository(pool *pgxpool.Pool) AccountRequestRepository {
	return &accountRequestRepository{pool: pool}
}

func (r *accountRequestRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM account_requests WHERE identifier=$1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, identifier).Scan(&exists)
	return exists, err
}

func (r *accountRequestRepository) ExistsPendingForIdentity(ctx context.Context, req *domain.NewAccountRequest) (bool, error) {
	if req.IsGroup {
		if req.OrgRef == 0 {
			return false, nil
		}
		const query = `SELECT EXISTS(SELECT 1 FROM account_requests WHERE is_group AND org_ref=$1)`
		var exists bool
		err := r.pool.QueryRow(ctx, query, req.OrgRef).Scan(&exists)
		return exists, err
	}
	const query = `SELECT EXISTS(SELECT 1 FROM account_requests WHERE NOT is_group AND personal_ref=$1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, req.PersonalRef).Scan(&exists)
	return exists, err
}

func (r *accountRequestRepository) Insert(ctx context.Context, req *domain.StoredRequest) error {
	const query = `
        INSERT INTO account_requests (identifier, full_name, is_group, personal_ref, org_ref, contact_email, encrypted_secret, policy, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		req.Identifier,
		req.FullName,
		req.IsGroup,
		req.PersonalRef,
		req.OrgRef,
		req.ContactEmail,
		req.EncryptedSecret,
		req.Policy,
		req.Reason,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

func (r *accountRequestRepository) PopByIdentifier(ctx context.Context, identifier string) (*domain.StoredRequest, error) {
	const query = `
        DELETE FROM account_requests WHERE identifier=$1
        RETURNING id, identifier, full_name, is_group, personal_ref, org_ref, contact_email, encrypted_secret, policy, reason, created_at`
	req, err := scanStoredRequest(r.pool.QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *accountRequestRepository) ListPending(ctx context.Context) ([]domain.StoredRequest, error) {
	const query = `
        SELECT id, identifier, full_name, is_group, personal_ref, org_ref, contact_email, encrypted_secret, policy, reason, created_at
        FROM account_requests ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StoredRequest
	for rows.Next() {
		req, err := scanStoredRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func scanStoredRequest(row pgx.Row) (*domain.StoredRequest, error) {
	var req domain.StoredRequest
	if err := row.Scan(
		&req.ID,
		&req.Identifier,
		&req.FullName,
		&req.IsGroup,
		&req.PersonalRef,
		&req.OrgRef,
		&req.ContactEmail,
		&req.EncryptedSecret,
		&req.Policy,
		&req.Reason,
		&req.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
