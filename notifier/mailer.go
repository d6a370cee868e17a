package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"
	"listing_hunter/config"
)

// ResendMailer sends transactional email through Resend. Sends stay
// sequential; the limiter only spaces them out.
type ResendMailer struct {
	client  *resend.Client
	from    string
	limiter *rate.Limiter
}

// NewResendMailer returns nil when no API key is configured.
func NewResendMailer(cfg *config.DigestConfig) *ResendMailer {
	if cfg.ResendAPIKey == "" {
		return nil
	}
	from := cfg.FromEmail
	if from == "" {
		from = config.DefaultFromEmail
	}
	rps := cfg.SendRPS
	if rps <= 0 {
		rps = 2
	}
	return &ResendMailer{
		client:  resend.NewClient(cfg.ResendAPIKey),
		from:    from,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend: empty response for %s", MaskEmail(to))
	}
	return nil
}

// MaskEmail keeps the first character of the local part for logs.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
