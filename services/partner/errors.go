package partner

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrTokenNotFound means the token string has no matching record.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired means the token is past its expiry deadline.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenConsumed means the token was already accepted; the original
	// acceptance stands.
	ErrTokenConsumed = errors.New("token already consumed")
	// ErrDuplicateToken means an insert collided with an existing token
	// string. Callers must not hand out a token that was never persisted.
	ErrDuplicateToken = errors.New("duplicate token")
	// ErrApplicationNotFound means no application exists for the given id.
	ErrApplicationNotFound = errors.New("application not found")
)

// IsInvalidToken reports whether err is one of the terminal token states that
// the gate presents uniformly as "invalid or expired".
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenConsumed)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
