package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenStore persists approval tokens. Implementations must enforce the
// uniqueness of the token string and make Consume an atomic conditional
// write so that concurrent acceptances resolve to exactly one winner.
type TokenStore interface {
	// Insert stores a new token row, failing with ErrDuplicateToken when the
	// token string already exists.
	Insert(ctx context.Context, t ApprovalToken) error
	// FindByToken returns the row for the exact token string, or
	// ErrTokenNotFound.
	FindByToken(ctx context.Context, token string) (ApprovalToken, error)
	// Consume marks the token accepted if and only if it has not been
	// accepted before, returning the number of rows updated (0 or 1).
	Consume(ctx context.Context, token string, acceptedAt time.Time, origin *string) (int64, error)
	// ExpireOutstanding force-expires every unconsumed token for an
	// application whose deadline is still in the future, returning the
	// number of rows touched.
	ExpireOutstanding(ctx context.Context, applicationID uuid.UUID, cutoff time.Time) (int64, error)
	// ListByApplication returns every token ever issued for an application,
	// newest first.
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]ApprovalToken, error)
	// ListAccepted returns all consumed tokens, oldest acceptance first.
	ListAccepted(ctx context.Context) ([]ApprovalToken, error)
}
