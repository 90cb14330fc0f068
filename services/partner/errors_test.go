package partner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other pg error", &pgconn.PgError{Code: "23503"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Fatalf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsInvalidToken(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrTokenNotFound, true},
		{ErrTokenExpired, true},
		{ErrTokenConsumed, true},
		{fmt.Errorf("gate: %w", ErrTokenExpired), true},
		{ErrDuplicateToken, false},
		{errors.New("boom"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsInvalidToken(tt.err); got != tt.want {
			t.Fatalf("IsInvalidToken(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
