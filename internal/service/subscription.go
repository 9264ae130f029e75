package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/payment"
	"github.com/sakif/portfolio/internal/repository"
)

// WebhookOutcome says what a verified webhook event did.
type WebhookOutcome string

const (
	WebhookApplied     WebhookOutcome = "applied"
	WebhookDuplicate   WebhookOutcome = "duplicate"
	WebhookIgnored     WebhookOutcome = "ignored"
	WebhookUnknownUser WebhookOutcome = "unknown_user"
)

const notConfiguredMessage = "Payments are not configured"

// PaymentConfig is what the checkout page needs before it can render.
type PaymentConfig struct {
	PublishableKey string `json:"publishableKey"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// SubscriptionService turns payments into premium access.
//
// THE TWO HALVES:
//  1. CreateIntent runs while the user is on the checkout page. It only asks
//     the provider for a client secret; nothing is granted yet.
//  2. HandleWebhook runs later, when the provider tells us the payment
//     succeeded. Only a verified event flips IsPremium.
//
// The browser never reports success itself, so a user cannot grant
// themselves premium by calling an endpoint.
type SubscriptionService struct {
	users     repository.UserRepository
	grants    repository.SubscriptionRepository
	processor payment.Processor
	logger    *slog.Logger
}

func NewSubscriptionService(
	users repository.UserRepository,
	grants repository.SubscriptionRepository,
	processor payment.Processor,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{users: users, grants: grants, processor: processor, logger: logger}
}

// Config returns the publishable key and price, or 503 when payments are
// not configured.
func (s *SubscriptionService) Config() (*PaymentConfig, error) {
	if !s.processor.Configured() || s.processor.PublishableKey() == "" {
		return nil, apperror.Unavailable(notConfiguredMessage)
	}
	price := s.processor.Price()
	return &PaymentConfig{
		PublishableKey: s.processor.PublishableKey(),
		Amount:         price.AmountCents,
		Currency:       price.Currency,
	}, nil
}

// CreateIntent starts a premium purchase for userID.
func (s *SubscriptionService) CreateIntent(ctx context.Context, userID string) (*payment.Intent, error) {
	if !s.processor.Configured() {
		return nil, apperror.Unavailable(notConfiguredMessage)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsPremium {
		return nil, apperror.Conflict("You already have premium access")
	}

	intent, err := s.processor.CreatePremiumIntent(ctx, user.ID, user.Email)
	if errors.Is(err, payment.ErrNotConfigured) {
		return nil, apperror.Unavailable(notConfiguredMessage)
	}
	if err != nil {
		return nil, fmt.Errorf("service/subscription: creating intent: %w", err)
	}

	s.logger.Info("payment intent created", slog.String("userID", user.ID), slog.String("intentID", intent.ID))
	return intent, nil
}

// HandleWebhook verifies and applies one webhook delivery.
//
// RETRY SEMANTICS (the provider retries anything that isn't 2xx):
//   - bad signature       → 400, nothing written, never retried into success
//   - not configured      → 503, we cannot tell genuine from forged
//   - store failure       → 500, the retry will apply it later
//   - unknown user        → acknowledged; retrying cannot fix it
//   - replayed event      → acknowledged; the ledger already has it
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.processor.VerifyEvent(payload, signature)
	switch {
	case errors.Is(err, payment.ErrNotConfigured):
		return "", apperror.Unavailable(notConfiguredMessage)
	case errors.Is(err, payment.ErrInvalidSignature):
		s.logger.Warn("webhook signature rejected", slog.String("error", err.Error()))
		return "", apperror.ValidationFailed("signature", "invalid webhook signature")
	case errors.Is(err, payment.ErrMalformedEvent):
		return "", apperror.ValidationFailed("body", "malformed webhook event")
	case err != nil:
		return "", fmt.Errorf("service/subscription: verifying webhook: %w", err)
	}

	log := s.logger.With(slog.String("eventID", event.ID), slog.String("type", event.Type))

	if event.Type != payment.EventPaymentSucceeded {
		log.Info("webhook event ignored")
		return WebhookIgnored, nil
	}
	if event.UserID == "" {
		log.Warn("payment event has no user metadata")
		return WebhookIgnored, nil
	}

	applied, err := s.grants.ApplyPremium(ctx, repository.PremiumGrant{
		EventID:         event.ID,
		EventType:       event.Type,
		UserID:          event.UserID,
		SubscriptionRef: event.Reference,
	})
	if errors.Is(err, apperror.ErrNotFound) {
		log.Warn("payment event for unknown user", slog.String("userID", event.UserID))
		return WebhookUnknownUser, nil
	}
	if err != nil {
		return "", fmt.Errorf("service/subscription: applying premium: %w", err)
	}
	if !applied {
		log.Info("webhook event already applied")
		return WebhookDuplicate, nil
	}

	log.Info("premium granted", slog.String("userID", event.UserID))
	return WebhookApplied, nil
}
