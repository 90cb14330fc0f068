package partner

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const cvUploadTTL = 15 * time.Minute

type createApplicationRequest struct {
	FullName   string         `json:"full_name"`
	Email      string         `json:"email"`
	Answers    map[string]any `json:"answers"`
	CVFileName string         `json:"cv_file_name"`
}

type createApplicationResponse struct {
	Application Application `json:"application"`
	CVUploadURL string      `json:"cv_upload_url,omitempty"`
}

func (a *API) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FullName == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "full_name and email are required")
		return
	}

	app := Application{
		ID:       uuid.New(),
		FullName: req.FullName,
		Email:    req.Email,
		Answers:  req.Answers,
	}

	var uploadURL string
	if req.CVFileName != "" {
		key, err := a.cvObjectKey(req.CVFileName)
		if err != nil {
			a.log.Error().Err(err).Msg("build cv object key")
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		app.CVKey = key
		app.CVFileName = path.Base(req.CVFileName)

		if a.s3 != nil && a.cvBucket != "" {
			uploadURL, err = a.s3.PresignPut(r.Context(), a.cvBucket, key, cvUploadTTL)
			if err != nil {
				a.log.Error().Err(err).Str("key", key).Msg("presign cv upload")
				respondError(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
	}

	if err := a.apps.Create(r.Context(), &app); err != nil {
		a.log.Error().Err(err).Msg("create application")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metricApplicationsSubmitted.Inc()
	a.log.Info().Str("application_id", app.ID.String()).Str("email", app.Email).Msg("application submitted")
	a.publishJSON(r.Context(), subjectApplicationSubmitted, app)
	a.notifyApplicationReceived(app)

	respondJSON(w, http.StatusCreated, createApplicationResponse{
		Application: app,
		CVUploadURL: uploadURL,
	})
}

// cvObjectKey namespaces an uploaded document under applications/ with a
// timestamp and a random segment so concurrent uploads of the same filename
// never collide.
func (a *API) cvObjectKey(filename string) (string, error) {
	seg, err := randSegment()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("applications/%d-%s-%s", a.now().UnixMilli(), seg, path.Base(filename)), nil
}

func (a *API) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
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
	respondJSON(w, http.StatusOK, app)
}

func (a *API) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := a.apps.List(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("list applications")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (a *API) handleListApplicationTokens(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}
	if _, err := a.apps.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			respondError(w, http.StatusNotFound, "application not found")
			return
		}
		a.log.Error().Err(err).Str("application_id", id.String()).Msg("get application")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	toks, err := a.tokens.store.ListByApplication(r.Context(), id)
	if err != nil {
		a.log.Error().Err(err).Str("application_id", id.String()).Msg("list tokens")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tokens": toks})
}
