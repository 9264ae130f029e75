package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"
)

// metadataUserID is the intent metadata key that ties a payment to a user.
const metadataUserID = "userId"

// StripeConfig holds the Stripe account settings.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	AmountCents    int64
	Currency       string

	// Backend overrides the Stripe API backend. Tests point it at an
	// httptest server; nil uses the real API.
	Backend stripe.Backend

	// Tolerance is the maximum webhook timestamp age.
	// Zero uses the library default (5 minutes).
	Tolerance time.Duration
}

// Stripe implements Processor with stripe-go.
//
// It uses a per-instance paymentintent.Client instead of the package-level
// stripe.Key so two configurations can coexist (tests do exactly that).
type Stripe struct {
	cfg     StripeConfig
	intents *paymentintent.Client
}

var _ Processor = (*Stripe)(nil)

// NewStripe builds a Stripe processor. An empty secret key is allowed:
// Configured then reports false and every call returns ErrNotConfigured.
func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	cfg.Currency = strings.ToLower(cfg.Currency)

	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}

	return &Stripe{
		cfg:     cfg,
		intents: &paymentintent.Client{B: backend, Key: cfg.SecretKey},
	}
}

// Configured reports whether a secret key is set.
func (s *Stripe) Configured() bool {
	return s.cfg.SecretKey != ""
}

// PublishableKey is safe to hand to the browser.
func (s *Stripe) PublishableKey() string {
	return s.cfg.PublishableKey
}

// Price returns the configured premium price.
func (s *Stripe) Price() Price {
	return Price{AmountCents: s.cfg.AmountCents, Currency: s.cfg.Currency}
}

// CreatePremiumIntent creates a payment intent for the premium upgrade.
// NOTE: DO NOT LOG THE CLIENT SECRET.
func (s *Stripe) CreatePremiumIntent(ctx context.Context, userID, email string) (*Intent, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:                  stripe.Int64(s.cfg.AmountCents),
		Currency:                stripe.String(s.cfg.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)},
		Description:             stripe.String("Premium content access"),
	}
	if email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: creating payment intent: %w", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       s.cfg.AmountCents,
		Currency:     s.cfg.Currency,
	}, nil
}

// VerifyEvent verifies a Stripe-Signature header and decodes the event.
//
// API version mismatches are ignored: the only fields we read (id, type,
// metadata) are stable across versions, and rejecting the event would just
// make Stripe retry it forever.
func (s *Stripe) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	if s.cfg.WebhookSecret == "" {
		return nil, ErrNotConfigured
	}
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                s.cfg.Tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}

	if event.Type == stripe.EventTypePaymentIntentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.UserID = pi.Metadata[metadataUserID]
		out.Reference = pi.ID
	}

	return out, nil
}
