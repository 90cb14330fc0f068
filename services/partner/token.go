package partner

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalToken is a single-use bearer credential gating the acceptance of
// the contractor terms for one application. Rows are never deleted; consumed
// tokens remain as the audit trail of the acceptance.
type ApprovalToken struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	ApplicationID    uuid.UUID  `json:"application_id" db:"application_id"`
	Token            string     `json:"token" db:"token"`
	IssuedAt         time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt       *time.Time `json:"accepted_at" db:"accepted_at"`
	AcceptanceOrigin *string    `json:"acceptance_origin" db:"acceptance_origin"`
}

// Usable reports whether the token is still eligible for acceptance at the
// given instant: not consumed and not past its expiry.
func (t ApprovalToken) Usable(now time.Time) bool {
	return t.AcceptedAt == nil && !now.After(t.ExpiresAt)
}
