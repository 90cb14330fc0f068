package partner

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	tokenPrefix     = "partner_"
	tokenSegmentLen = 10

	// DefaultValidityDays is the token lifetime applied when the caller does
	// not override it at approval time.
	DefaultValidityDays = 30
)

// Tokens issues, validates and consumes approval tokens. The zero value is
// not usable; construct with NewTokens.
type Tokens struct {
	store TokenStore
	now   func() time.Time

	defaultValidity      time.Duration
	revokePriorOnReissue bool
}

// TokensConfig tunes a Tokens service. Zero fields fall back to defaults.
type TokensConfig struct {
	// ValidityDays is the default token lifetime in days.
	ValidityDays int
	// RevokePriorOnReissue force-expires outstanding unconsumed tokens for an
	// application whenever a fresh one is issued.
	RevokePriorOnReissue bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewTokens builds a Tokens service on top of the given store.
func NewTokens(store TokenStore, cfg TokensConfig) (*Tokens, error) {
	if store == nil {
		return nil, fmt.Errorf("partner: token store is required")
	}
	days := cfg.ValidityDays
	if days <= 0 {
		days = DefaultValidityDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		store:                store,
		now:                  now,
		defaultValidity:      time.Duration(days) * 24 * time.Hour,
		revokePriorOnReissue: cfg.RevokePriorOnReissue,
	}, nil
}

// DefaultValidity returns the lifetime applied when Issue is called with a
// zero validity.
func (t *Tokens) DefaultValidity() time.Duration { return t.defaultValidity }

// newTokenString builds an opaque token: a fixed prefix, the issue instant in
// unix milliseconds, and two random base58 segments. The timestamp makes
// tokens trivially sortable by issue time when eyeballing rows; the random
// segments carry the entropy.
func newTokenString(now time.Time) (string, error) {
	seg1, err := randSegment()
	if err != nil {
		return "", err
	}
	seg2, err := randSegment()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d_%s_%s", tokenPrefix, now.UnixMilli(), seg1, seg2), nil
}

func randSegment() (string, error) {
	buf := make([]byte, tokenSegmentLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return base58.Encode(buf), nil
}

// Issue creates and persists a fresh token for the application. A zero
// validity selects the configured default. Issue never retries a colliding
// insert; a collision surfaces as ErrDuplicateToken and the caller may call
// again.
func (t *Tokens) Issue(ctx context.Context, applicationID uuid.UUID, validity time.Duration) (ApprovalToken, error) {
	now := t.now().UTC()
	if validity <= 0 {
		validity = t.defaultValidity
	}

	if t.revokePriorOnReissue {
		if _, err := t.store.ExpireOutstanding(ctx, applicationID, now); err != nil {
			return ApprovalToken{}, fmt.Errorf("revoke prior tokens: %w", err)
		}
	}

	raw, err := newTokenString(now)
	if err != nil {
		return ApprovalToken{}, err
	}
	tok := ApprovalToken{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Token:         raw,
		IssuedAt:      now,
		ExpiresAt:     now.Add(validity),
	}
	if err := t.store.Insert(ctx, tok); err != nil {
		return ApprovalToken{}, err
	}
	return tok, nil
}

// Validate resolves a raw token string to its record and checks that it is
// still usable. It returns ErrTokenNotFound, ErrTokenExpired or
// ErrTokenConsumed for the terminal states. The read is idempotent, so a
// transient store failure gets one retry before surfacing.
func (t *Tokens) Validate(ctx context.Context, raw string) (ApprovalToken, error) {
	var tok ApprovalToken
	backoff := retry.WithMaxRetries(1, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		tok, err = t.store.FindByToken(ctx, raw)
		if err == nil || IsInvalidToken(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return ApprovalToken{}, err
	}

	now := t.now().UTC()
	if now.After(tok.ExpiresAt) {
		return tok, ErrTokenExpired
	}
	if tok.AcceptedAt != nil {
		return tok, ErrTokenConsumed
	}
	return tok, nil
}

// Accept consumes the token exactly once. It re-validates first so stale
// links get the precise terminal error, then performs a single conditional
// write. Losing the write race reports ErrTokenConsumed; the winner's
// acceptance is the only one recorded. The write is never retried.
func (t *Tokens) Accept(ctx context.Context, raw string, origin *string) (ApprovalToken, error) {
	if _, err := t.Validate(ctx, raw); err != nil {
		return ApprovalToken{}, err
	}

	acceptedAt := t.now().UTC()
	n, err := t.store.Consume(ctx, raw, acceptedAt, origin)
	if err != nil {
		return ApprovalToken{}, fmt.Errorf("record acceptance: %w", err)
	}
	if n == 0 {
		return ApprovalToken{}, ErrTokenConsumed
	}

	tok, err := t.store.FindByToken(ctx, raw)
	if err != nil {
		return ApprovalToken{}, fmt.Errorf("reload accepted token: %w", err)
	}
	return tok, nil
}
