package partner

import "context"

const (
	subjectApplicationSubmitted = "partnerd.applications.submitted"
	subjectApplicationApproved  = "partnerd.applications.approved"
	subjectTermsAccepted        = "partnerd.terms.accepted"
)

// publishJSON emits a domain event. Event delivery is best effort; a failed
// publish is logged and never surfaces to the request path.
func (a *API) publishJSON(ctx context.Context, subj string, v any) {
	if a.bus == nil {
		return
	}
	if err := a.bus.Publish(ctx, subj, v); err != nil {
		a.log.Warn().Err(err).Str("subject", subj).Msg("publish event failed")
	}
}
