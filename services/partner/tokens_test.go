package partner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTokens(t *testing.T, cfg TokensConfig) (*Tokens, TokenStore) {
	t.Helper()
	store := NewMemoryTokenStore()
	tokens, err := NewTokens(store, cfg)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens, store
}

func TestTokenStringFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := newTokenString(now)
	if err != nil {
		t.Fatalf("newTokenString: %v", err)
	}
	if !strings.HasPrefix(raw, "partner_") {
		t.Fatalf("token %q missing prefix", raw)
	}
	parts := strings.Split(strings.TrimPrefix(raw, "partner_"), "_")
	if len(parts) != 3 {
		t.Fatalf("token %q has %d parts, want 3", raw, len(parts))
	}
	if parts[0] != "1772366400000" {
		t.Fatalf("timestamp part = %q", parts[0])
	}
	for _, seg := range parts[1:] {
		if len(seg) < 10 {
			t.Fatalf("random segment %q too short", seg)
		}
	}
}

func TestTokenStringUniqueness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping uniqueness sweep in short mode")
	}
	now := time.Now()
	seen := make(map[string]struct{}, 100000)
	for i := 0; i < 100000; i++ {
		raw, err := newTokenString(now)
		if err != nil {
			t.Fatalf("newTokenString: %v", err)
		}
		if _, dup := seen[raw]; dup {
			t.Fatalf("duplicate token after %d generations: %q", i, raw)
		}
		seen[raw] = struct{}{}
	}
}

func TestIssueDefaults(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{Now: clk.Now})

	tok, err := tokens.Issue(context.Background(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	wantExpiry := clk.Now().Add(30 * 24 * time.Hour)
	if !tok.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("ExpiresAt = %v, want %v", tok.ExpiresAt, wantExpiry)
	}
	if tok.AcceptedAt != nil {
		t.Fatalf("fresh token already accepted")
	}
}

func TestValidateLifecycle(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{ValidityDays: 7, Now: clk.Now})
	ctx := context.Background()
	appID := uuid.New()

	tok, err := tokens.Issue(ctx, appID, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Validate(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Validate fresh token: %v", err)
	}
	if got.ApplicationID != appID {
		t.Fatalf("ApplicationID = %v, want %v", got.ApplicationID, appID)
	}

	if _, err := tokens.Validate(ctx, "partner_0_bogus_bogus"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("unknown token error = %v, want ErrTokenNotFound", err)
	}

	accepted, err := tokens.Accept(ctx, tok.Token, nil)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.AcceptedAt == nil {
		t.Fatalf("accepted token has nil AcceptedAt")
	}

	if _, err := tokens.Validate(ctx, tok.Token); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("validate consumed token error = %v, want ErrTokenConsumed", err)
	}
	if _, err := tokens.Accept(ctx, tok.Token, nil); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("re-accept error = %v, want ErrTokenConsumed", err)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{ValidityDays: 7, Now: clk.Now})
	ctx := context.Background()

	tok, err := tokens.Issue(ctx, uuid.New(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Exactly at the deadline the token is still usable.
	clk.Advance(7 * 24 * time.Hour)
	if _, err := tokens.Validate(ctx, tok.Token); err != nil {
		t.Fatalf("validate at deadline: %v", err)
	}

	clk.Advance(time.Second)
	if _, err := tokens.Validate(ctx, tok.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("validate past deadline error = %v, want ErrTokenExpired", err)
	}
	if _, err := tokens.Accept(ctx, tok.Token, nil); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("accept past deadline error = %v, want ErrTokenExpired", err)
	}
}

func TestExpiryIsTerminal(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{ValidityDays: 1, Now: clk.Now})
	ctx := context.Background()

	tok, err := tokens.Issue(ctx, uuid.New(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(48 * time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := tokens.Validate(ctx, tok.Token); !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("validate %d error = %v, want ErrTokenExpired", i, err)
		}
	}
}

func TestAcceptRace(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{Now: clk.Now})
	ctx := context.Background()

	tok, err := tokens.Issue(ctx, uuid.New(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const racers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		consumed int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := tokens.Accept(ctx, tok.Token, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrTokenConsumed):
				consumed++
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
	if consumed != racers-1 {
		t.Fatalf("consumed rejections = %d, want %d", consumed, racers-1)
	}
}

func TestRevokePriorOnReissue(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{RevokePriorOnReissue: true, Now: clk.Now})
	ctx := context.Background()
	appID := uuid.New()

	first, err := tokens.Issue(ctx, appID, 0)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	clk.Advance(time.Hour)
	second, err := tokens.Issue(ctx, appID, 0)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	// The revoked deadline is the reissue instant, so step past it.
	clk.Advance(time.Second)
	if _, err := tokens.Validate(ctx, first.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("first token error = %v, want ErrTokenExpired", err)
	}
	if _, err := tokens.Validate(ctx, second.Token); err != nil {
		t.Fatalf("second token should remain valid: %v", err)
	}
}

func TestReissueKeepsPriorByDefault(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens, _ := newTestTokens(t, TokensConfig{Now: clk.Now})
	ctx := context.Background()
	appID := uuid.New()

	first, err := tokens.Issue(ctx, appID, 0)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := tokens.Issue(ctx, appID, 0)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	for _, tok := range []ApprovalToken{first, second} {
		if _, err := tokens.Validate(ctx, tok.Token); err != nil {
			t.Fatalf("token %s invalid: %v", tok.ID, err)
		}
	}
}

// flakyTokenStore fails reads a configured number of times before delegating.
type flakyTokenStore struct {
	TokenStore
	mu       sync.Mutex
	failures int
}

func (s *flakyTokenStore) FindByToken(ctx context.Context, token string) (ApprovalToken, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return ApprovalToken{}, errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.TokenStore.FindByToken(ctx, token)
}

func TestValidateRetriesTransientReadFailure(t *testing.T) {
	clk := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	inner := NewMemoryTokenStore()
	flaky := &flakyTokenStore{TokenStore: inner, failures: 1}
	tokens, err := NewTokens(flaky, TokensConfig{Now: clk.Now})
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	ctx := context.Background()

	tok, err := tokens.Issue(ctx, uuid.New(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := tokens.Validate(ctx, tok.Token); err != nil {
		t.Fatalf("Validate with one transient failure: %v", err)
	}

	flaky.mu.Lock()
	flaky.failures = 2
	flaky.mu.Unlock()
	if _, err := tokens.Validate(ctx, tok.Token); err == nil {
		t.Fatalf("Validate with persistent failure should error")
	}
}

// collidingTokenStore rejects every insert as a uniqueness violation.
type collidingTokenStore struct {
	TokenStore
}

func (s *collidingTokenStore) Insert(context.Context, ApprovalToken) error {
	return ErrDuplicateToken
}

func TestIssueCollisionLeavesNoRecord(t *testing.T) {
	inner := NewMemoryTokenStore()
	tokens, err := NewTokens(&collidingTokenStore{TokenStore: inner}, TokensConfig{})
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	ctx := context.Background()

	tok, err := tokens.Issue(ctx, uuid.New(), 0)
	if !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("Issue error = %v, want ErrDuplicateToken", err)
	}
	if tok.Token != "" {
		t.Fatalf("failed issue leaked token %q", tok.Token)
	}

	all, err := inner.ListAccepted(ctx)
	if err != nil {
		t.Fatalf("ListAccepted: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("store not empty after failed issue")
	}
}

func TestInsertDuplicateToken(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	tok := ApprovalToken{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Token:         "partner_1_aa_bb",
		IssuedAt:      time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	if err := store.Insert(ctx, tok); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	tok.ID = uuid.New()
	if err := store.Insert(ctx, tok); !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("duplicate insert error = %v, want ErrDuplicateToken", err)
	}
}
