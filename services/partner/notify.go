package partner

import (
	"context"
	"time"

	"partnerd/pkg/mail"
)

// notifyTimeout bounds a single outbound email attempt. Notifications run
// detached from the request so a slow SMTP server cannot stall the caller.
const notifyTimeout = 15 * time.Second

// sendAsync renders the named template and delivers it in the background.
// Failures are logged and never propagated; the state change that triggered
// the email has already been committed.
func (a *API) sendAsync(template, to, subject string, data any) {
	if a.mailer == nil {
		return
	}
	body, err := a.render.Render(template, data)
	if err != nil {
		a.log.Error().Err(err).Str("template", template).Msg("render email failed")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := a.mailer.Send(ctx, mail.Message{To: to, Subject: subject, HTMLBody: body})
		if err != nil {
			a.log.Error().Err(err).Str("template", template).Str("to", to).Msg("send email failed")
			return
		}
		a.log.Info().Str("template", template).Str("to", to).Msg("email sent")
	}()
}

func (a *API) notifyApplicationReceived(app Application) {
	a.sendAsync("application_received", app.Email,
		"We received your Global Partner application",
		map[string]any{"FullName": app.FullName})
}

func (a *API) notifyTermsLink(app Application, tok ApprovalToken) {
	days := int(tok.ExpiresAt.Sub(tok.IssuedAt).Hours() / 24)
	a.sendAsync("terms_link", app.Email,
		"Your Global Partner application has been approved",
		map[string]any{
			"FullName":     app.FullName,
			"TermsURL":     a.termsURL(tok.Token),
			"ValidityDays": days,
		})
}

func (a *API) notifyTermsAccepted(app Application) {
	a.sendAsync("terms_accepted", app.Email,
		"Global Partner terms accepted",
		map[string]any{"FullName": app.FullName})
}
