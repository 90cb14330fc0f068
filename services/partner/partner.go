// Package partner implements the partner onboarding service: application
// intake, approval token issuance, the terms acceptance gate, and the
// notifications and events around them.
package partner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"partnerd/pkg/bus"
	"partnerd/pkg/mail"
	"partnerd/pkg/s3"
)

// Sender delivers a rendered email. *mail.Mailer satisfies it; tests swap in
// a recorder.
type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Store bundles the persistence and side-effect dependencies of the API.
// S3, Bus and Mail may be nil; the corresponding side effects are then
// skipped.
type Store struct {
	Applications ApplicationStore
	Tokens       TokenStore
	S3           *s3.Client
	Bus          *bus.Bus
	Mail         Sender
}

// Config carries the service-level settings of the API.
type Config struct {
	// PublicBaseURL is the externally reachable origin used to build terms
	// links, e.g. "https://partners.example.com".
	PublicBaseURL string
	// CVBucket is the object storage bucket for uploaded CV documents.
	CVBucket string
	// ValidityDays is the default approval token lifetime.
	ValidityDays int
	// RevokePriorOnReissue expires outstanding tokens when a new one is
	// issued for the same application.
	RevokePriorOnReissue bool
	// CORSOrigins lists the browser origins allowed to call the API. Empty
	// means same-origin only.
	CORSOrigins []string
	// Logger receives structured request and side-effect logs.
	Logger zerolog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// API is the HTTP-facing service. Build it with New and mount Router.
type API struct {
	apps   ApplicationStore
	tokens *Tokens
	s3     *s3.Client
	bus    *bus.Bus
	mailer Sender
	render *mail.Renderer
	log    zerolog.Logger

	publicBaseURL string
	cvBucket      string
	corsOrigins   []string
	now           func() time.Time
}

// New wires an API from its dependencies. Applications and Tokens stores are
// required; everything else degrades gracefully when absent.
func New(store Store, cfg Config) (*API, error) {
	if store.Applications == nil {
		return nil, fmt.Errorf("partner: application store is required")
	}
	if store.Tokens == nil {
		return nil, fmt.Errorf("partner: token store is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("partner: public base URL is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	tokens, err := NewTokens(store.Tokens, TokensConfig{
		ValidityDays:         cfg.ValidityDays,
		RevokePriorOnReissue: cfg.RevokePriorOnReissue,
		Now:                  now,
	})
	if err != nil {
		return nil, err
	}

	render, err := mail.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("partner: load mail templates: %w", err)
	}

	return &API{
		apps:          store.Applications,
		tokens:        tokens,
		s3:            store.S3,
		bus:           store.Bus,
		mailer:        store.Mail,
		render:        render,
		log:           cfg.Logger,
		publicBaseURL: cfg.PublicBaseURL,
		cvBucket:      cfg.CVBucket,
		corsOrigins:   cfg.CORSOrigins,
		now:           now,
	}, nil
}

// Tokens exposes the token service, for the CLI and for tests.
func (a *API) Tokens() *Tokens { return a.tokens }

// termsURL builds the link emailed to an approved applicant.
func (a *API) termsURL(token string) string {
	return fmt.Sprintf("%s/partner-terms?token=%s", a.publicBaseURL, token)
}
