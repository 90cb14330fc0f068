package partner

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"partnerd/pkg/db"
)

// pgTokenStore is the Postgres-backed TokenStore.
type pgTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenStore returns a TokenStore backed by the given pool.
func NewPostgresTokenStore(pool *pgxpool.Pool) TokenStore {
	return &pgTokenStore{pool: pool}
}

func (s *pgTokenStore) Insert(ctx context.Context, t ApprovalToken) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO approval_tokens (id, application_id, token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.ApplicationID, t.Token, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert approval token: %w", err)
	}
	return nil
}

func (s *pgTokenStore) FindByToken(ctx context.Context, token string) (ApprovalToken, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var t ApprovalToken
	err := pgxscan.Get(ctx, s.pool, &t, `
		SELECT id, application_id, token, issued_at, expires_at, accepted_at, acceptance_origin
		FROM approval_tokens
		WHERE token = $1`, token)
	if err != nil {
		if pgxscan.NotFound(err) {
			return ApprovalToken{}, ErrTokenNotFound
		}
		return ApprovalToken{}, fmt.Errorf("find approval token: %w", err)
	}
	return t, nil
}

func (s *pgTokenStore) Consume(ctx context.Context, token string, acceptedAt time.Time, origin *string) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_tokens
		SET accepted_at = $2, acceptance_origin = $3
		WHERE token = $1 AND accepted_at IS NULL`,
		token, acceptedAt, origin)
	if err != nil {
		return 0, fmt.Errorf("consume approval token: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgTokenStore) ExpireOutstanding(ctx context.Context, applicationID uuid.UUID, cutoff time.Time) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_tokens
		SET expires_at = $2
		WHERE application_id = $1 AND accepted_at IS NULL AND expires_at > $2`,
		applicationID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire outstanding tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgTokenStore) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]ApprovalToken, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var out []ApprovalToken
	err := pgxscan.Select(ctx, s.pool, &out, `
		SELECT id, application_id, token, issued_at, expires_at, accepted_at, acceptance_origin
		FROM approval_tokens
		WHERE application_id = $1
		ORDER BY issued_at DESC`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list tokens by application: %w", err)
	}
	return out, nil
}

func (s *pgTokenStore) ListAccepted(ctx context.Context) ([]ApprovalToken, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var out []ApprovalToken
	err := pgxscan.Select(ctx, s.pool, &out, `
		SELECT id, application_id, token, issued_at, expires_at, accepted_at, acceptance_origin
		FROM approval_tokens
		WHERE accepted_at IS NOT NULL
		ORDER BY accepted_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accepted tokens: %w", err)
	}
	return out, nil
}
