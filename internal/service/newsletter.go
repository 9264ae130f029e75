package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

const MaxNameLength = 100

// SubscribeResult tells the handler which of the two success cases
// happened: 201 for a new row, 200 for a reactivated one.
type SubscribeResult struct {
	Subscriber  *model.NewsletterSubscriber
	Reactivated bool
}

// NewsletterService manages newsletter signups.
//
// ONE ROW PER ADDRESS:
// Emails are lower-cased before they reach the store and the email column
// is UNIQUE. Unsubscribing keeps the row; subscribing again reactivates it.
type NewsletterService struct {
	subscribers repository.SubscriberRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewNewsletterService(subscribers repository.SubscriberRepository, logger *slog.Logger) *NewsletterService {
	return &NewsletterService{subscribers: subscribers, logger: logger, now: time.Now}
}

// Subscribe creates, reactivates, or reports "Already subscribed" (409).
func (s *NewsletterService) Subscribe(ctx context.Context, email, name string) (*SubscribeResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}

	existing, err := s.subscribers.GetSubscriberByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		sub := &model.NewsletterSubscriber{Email: email, Name: name}
		// A concurrent subscribe for the same address loses on the UNIQUE
		// constraint and comes back as a Conflict, which is the right answer.
		if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
			return nil, err
		}
		s.logger.Info("newsletter subscribed", slog.String("subscriberID", sub.ID))
		return &SubscribeResult{Subscriber: sub}, nil

	case err != nil:
		return nil, fmt.Errorf("service/newsletter: looking up subscriber: %w", err)

	case existing.IsActive:
		return nil, apperror.Conflict("Already subscribed")
	}

	sub, err := s.subscribers.SetSubscriberActive(ctx, email, true, s.now())
	if err != nil {
		return nil, fmt.Errorf("service/newsletter: reactivating subscriber: %w", err)
	}
	s.logger.Info("newsletter resubscribed", slog.String("subscriberID", sub.ID))
	return &SubscribeResult{Subscriber: sub, Reactivated: true}, nil
}

// Unsubscribe deactivates email. Unknown or already inactive addresses are
// not an error: the response must not reveal who is on the list.
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	existing, err := s.subscribers.GetSubscriberByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service/newsletter: looking up subscriber: %w", err)
	}
	if !existing.IsActive {
		return nil
	}

	if _, err := s.subscribers.SetSubscriberActive(ctx, email, false, s.now()); err != nil {
		return fmt.Errorf("service/newsletter: deactivating subscriber: %w", err)
	}
	s.logger.Info("newsletter unsubscribed", slog.String("subscriberID", existing.ID))
	return nil
}

// List returns subscribers for the admin view.
func (s *NewsletterService) List(ctx context.Context, activeOnly bool) ([]model.NewsletterSubscriber, error) {
	subs, err := s.subscribers.ListSubscribers(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("service/newsletter: listing subscribers: %w", err)
	}
	return subs, nil
}

// normalizeEmail accepts a bare address (no display name) and lower-cases it.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(addr.Address[strings.IndexByte(addr.Address, '@'):], ".") {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}
