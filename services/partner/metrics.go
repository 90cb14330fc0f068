package partner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricApplicationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partnerd_applications_submitted_total",
		Help: "Partner applications received.",
	})
	metricTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partnerd_tokens_issued_total",
		Help: "Approval tokens issued.",
	})
	metricValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partnerd_token_validations_total",
		Help: "Token validation checks by outcome.",
	}, []string{"result"})
	metricAcceptances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partnerd_terms_accepted_total",
		Help: "Terms acceptances recorded.",
	})
)

func validationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case IsInvalidToken(err):
		return "invalid"
	default:
		return "error"
	}
}
