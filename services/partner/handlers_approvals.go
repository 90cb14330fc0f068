package partner

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type approveApplicationRequest struct {
	ValidityDays int `json:"validity_days"`
}

type approveApplicationResponse struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
	TermsURL      string    `json:"terms_url"`
}

// handleApproveApplication approves an application: it issues a fresh
// token, emails the applicant their terms link, and emits the approval
// event. The token is only handed out once its row is durably persisted.
func (a *API) handleApproveApplication(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	var req approveApplicationRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.ValidityDays < 0 {
		respondError(w, http.StatusBadRequest, "validity_days must be positive")
		return
	}

	app, err := a.apps.GetByID(r.Context(), id)
	if errors.Is(err, ErrApplicationNotFound) {
		respondError(w, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("application_id", id.String()).Msg("get application")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	validity := time.Duration(req.ValidityDays) * 24 * time.Hour
	tok, err := a.tokens.Issue(r.Context(), app.ID, validity)
	if errors.Is(err, ErrDuplicateToken) {
		// Vanishingly rare with two random segments. The caller retries.
		a.log.Warn().Str("application_id", id.String()).Msg("token collision on issue")
		respondError(w, http.StatusConflict, "token collision, retry")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("application_id", id.String()).Msg("issue token")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metricTokensIssued.Inc()
	a.log.Info().
		Str("application_id", app.ID.String()).
		Time("expires_at", tok.ExpiresAt).
		Msg("application approved, token issued")

	a.publishJSON(r.Context(), subjectApplicationApproved, map[string]any{
		"application_id": app.ID,
		"expires_at":     tok.ExpiresAt,
	})
	a.notifyTermsLink(app, tok)

	respondJSON(w, http.StatusCreated, approveApplicationResponse{
		ApplicationID: app.ID,
		Token:         tok.Token,
		ExpiresAt:     tok.ExpiresAt,
		TermsURL:      a.termsURL(tok.Token),
	})
}
