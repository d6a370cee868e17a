package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"listing_hunter/models"
	"listing_hunter/notifier"
)

// ErrMailerNotConfigured is returned when there is a digest to send but no
// email provider key.
var ErrMailerNotConfigured = errors.New("RESEND_API_KEY not configured")

const (
	msgNoListings   = "Brak nowych ofert do wysłania"
	msgNoRecipients = "Brak adresów w alert_rules"
)

// DigestService emails unnotified new listings to every alert recipient.
type DigestService struct {
	store    DigestStore
	mailer   Mailer
	archiver Archiver
	now      func() time.Time
}

// NewDigestService accepts a nil mailer (digest reports ErrMailerNotConfigured
// when it has something to send) and a nil archiver (archiving disabled).
func NewDigestService(store DigestStore, mailer Mailer, archiver Archiver) *DigestService {
	return &DigestService{
		store:    store,
		mailer:   mailer,
		archiver: archiver,
		now:      time.Now,
	}
}

// RunDigest sends one digest per recipient and then marks every selected
// listing notified, whether or not each send succeeded. With no listings or
// no recipients nothing is sent and nothing is marked.
func (s *DigestService) RunDigest(ctx context.Context) (models.DigestResult, error) {
	listings, err := s.store.GetUnnotifiedNewListings(ctx)
	if err != nil {
		return models.DigestResult{}, fmt.Errorf("get unnotified listings: %w", err)
	}

	emails, err := s.store.GetAlertEmails(ctx)
	if err != nil {
		return models.DigestResult{}, fmt.Errorf("get alert emails: %w", err)
	}

	if len(listings) == 0 {
		return models.DigestResult{Message: msgNoListings}, nil
	}
	if len(emails) == 0 {
		return models.DigestResult{ListingsCount: len(listings), Message: msgNoRecipients}, nil
	}

	if s.mailer == nil {
		return models.DigestResult{}, ErrMailerNotConfigured
	}

	html, err := notifier.RenderDigest(listings)
	if err != nil {
		return models.DigestResult{}, fmt.Errorf("render digest: %w", err)
	}
	subject := notifier.DigestSubject(len(listings))

	sent := 0
	for _, to := range emails {
		if err := s.mailer.Send(ctx, to, subject, string(html)); err != nil {
			log.Printf("Digest: send to %s failed: %v", notifier.MaskEmail(to), err)
			continue
		}
		sent++
	}

	ids := make([]uuid.UUID, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	if err := s.store.MarkNotified(ctx, ids); err != nil {
		return models.DigestResult{}, fmt.Errorf("mark notified: %w", err)
	}

	if s.archiver != nil {
		if url, err := s.archiver.Archive(ctx, s.now(), html); err != nil {
			log.Printf("Digest: archive failed: %v", err)
		} else {
			log.Printf("Digest: archived to %s", url)
		}
	}

	log.Printf("Digest: %d listings, sent %d/%d", len(listings), sent, len(emails))
	return models.DigestResult{
		ListingsCount: len(listings),
		EmailsSent:    sent,
		Recipients:    len(emails),
	}, nil
}
