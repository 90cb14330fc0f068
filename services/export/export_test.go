package export

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"partnerd/services/partner"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &Signer{privateKey: priv, publicKey: pub}
}

func seedAcceptance(t *testing.T, tokens partner.TokenStore, apps partner.ApplicationStore) partner.Application {
	t.Helper()
	ctx := context.Background()

	app := partner.Application{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
	}
	if err := apps.Create(ctx, &app); err != nil {
		t.Fatalf("create application: %v", err)
	}

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := partner.ApprovalToken{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		Token:         "partner_1_seed_seed",
		IssuedAt:      issued,
		ExpiresAt:     issued.Add(30 * 24 * time.Hour),
	}
	if err := tokens.Insert(ctx, tok); err != nil {
		t.Fatalf("insert token: %v", err)
	}
	origin := "https://partners.example.com"
	if _, err := tokens.Consume(ctx, tok.Token, issued.Add(time.Hour), &origin); err != nil {
		t.Fatalf("consume token: %v", err)
	}
	return app
}

func TestBuildAndVerifyRoundTrip(t *testing.T) {
	tokens := partner.NewMemoryTokenStore()
	apps := partner.NewMemoryApplicationStore()
	seedAcceptance(t, tokens, apps)

	signer := newTestSigner(t)
	output := filepath.Join(t.TempDir(), "ledger.tar.zst")

	manifest, err := Build(context.Background(), BuildConfig{
		Tokens:       tokens,
		Applications: apps,
		Output:       output,
		Signer:       signer,
		Now:          func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) },
		Stdout:       io.Discard,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if manifest.RecordCount != 1 {
		t.Fatalf("RecordCount = %d, want 1", manifest.RecordCount)
	}
	if manifest.Signature == "" {
		t.Fatalf("manifest missing signature")
	}

	verified, err := Verify(context.Background(), output, signer)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.LedgerSHA256 != manifest.LedgerSHA256 {
		t.Fatalf("digest mismatch: %s vs %s", verified.LedgerSHA256, manifest.LedgerSHA256)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	tokens := partner.NewMemoryTokenStore()
	apps := partner.NewMemoryApplicationStore()
	seedAcceptance(t, tokens, apps)

	output := filepath.Join(t.TempDir(), "ledger.tar.zst")
	if _, err := Build(context.Background(), BuildConfig{
		Tokens:       tokens,
		Applications: apps,
		Output:       output,
		Signer:       newTestSigner(t),
		Stdout:       io.Discard,
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// A verifier pinned to a different key must reject the embedded one.
	if _, err := Verify(context.Background(), output, newTestSigner(t)); err == nil {
		t.Fatalf("expected verification failure with mismatched key")
	}
}

func TestBuildWithoutAcceptances(t *testing.T) {
	output := filepath.Join(t.TempDir(), "empty.tar.zst")
	manifest, err := Build(context.Background(), BuildConfig{
		Tokens:       partner.NewMemoryTokenStore(),
		Applications: partner.NewMemoryApplicationStore(),
		Output:       output,
		Signer:       newTestSigner(t),
		Stdout:       io.Discard,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if manifest.RecordCount != 0 {
		t.Fatalf("RecordCount = %d, want 0", manifest.RecordCount)
	}
}

func TestSigningBytesExcludeSignature(t *testing.T) {
	m := Manifest{
		Version:      manifestVersion,
		CreatedAt:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		RecordCount:  3,
		LedgerSHA256: "abc",
		LedgerSize:   42,
	}
	unsigned, err := m.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}

	m.Signature = "deadbeef"
	signed, err := m.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes with signature: %v", err)
	}
	if string(unsigned) != string(signed) {
		t.Fatalf("signing bytes changed when signature was set")
	}
}
