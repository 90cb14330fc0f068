package partner

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// invalidTokenMessage is the uniform response for every terminal token
// state. Callers learn that the link is unusable, never why.
const invalidTokenMessage = "invalid or expired"

type validateTermsResponse struct {
	Valid         bool       `json:"valid"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// handleValidateTerms is the read-only gate behind the terms page. The
// precise failure reason goes to the log; the response stays uniform.
func (a *API) handleValidateTerms(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	tok, err := a.tokens.Validate(r.Context(), raw)
	metricValidations.WithLabelValues(validationResult(err)).Inc()
	if IsInvalidToken(err) {
		a.log.Info().Err(err).Msg("terms token rejected")
		respondJSON(w, http.StatusOK, validateTermsResponse{Valid: false, Error: invalidTokenMessage})
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("validate terms token")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, validateTermsResponse{
		Valid:         true,
		ApplicationID: &tok.ApplicationID,
		ExpiresAt:     &tok.ExpiresAt,
	})
}

type acceptTermsRequest struct {
	Token  string `json:"token"`
	Origin string `json:"origin"`
}

type acceptTermsResponse struct {
	Accepted      bool      `json:"accepted"`
	ApplicationID uuid.UUID `json:"application_id"`
	AcceptedAt    time.Time `json:"accepted_at"`
}

// handleAcceptTerms consumes the token exactly once and records the
// acceptance. A replay or a lost race reports the same uniform message as
// any other unusable token.
func (a *API) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	var req acceptTermsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	// The origin marker is best effort: an explicit value from the client,
	// else the requester's address. Absence never blocks the acceptance.
	var origin *string
	if req.Origin != "" {
		origin = &req.Origin
	} else if r.RemoteAddr != "" {
		addr := r.RemoteAddr
		origin = &addr
	}

	tok, err := a.tokens.Accept(r.Context(), req.Token, origin)
	if IsInvalidToken(err) {
		a.log.Info().Err(err).Msg("terms acceptance rejected")
		respondError(w, http.StatusConflict, invalidTokenMessage)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("accept terms")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metricAcceptances.Inc()
	a.log.Info().
		Str("application_id", tok.ApplicationID.String()).
		Time("accepted_at", *tok.AcceptedAt).
		Msg("terms accepted")

	a.publishJSON(r.Context(), subjectTermsAccepted, map[string]any{
		"application_id": tok.ApplicationID,
		"accepted_at":    tok.AcceptedAt,
	})

	app, err := a.apps.GetByID(r.Context(), tok.ApplicationID)
	if err != nil {
		if !errors.Is(err, ErrApplicationNotFound) {
			a.log.Error().Err(err).Str("application_id", tok.ApplicationID.String()).Msg("load application for confirmation email")
		}
	} else {
		a.notifyTermsAccepted(app)
	}

	respondJSON(w, http.StatusOK, acceptTermsResponse{
		Accepted:      true,
		ApplicationID: tok.ApplicationID,
		AcceptedAt:    *tok.AcceptedAt,
	})
}
