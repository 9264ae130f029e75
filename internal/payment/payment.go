// Package payment talks to the payment provider: it creates payment intents
// for the premium upgrade and verifies the provider's signed webhook events.
//
// WHY AN INTERFACE?
// The subscription service only needs "create an intent" and "is this
// webhook genuine". Hiding Stripe behind Processor keeps stripe-go types out
// of the service layer and lets service tests use a tiny fake.
package payment

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the provider keys are missing. Callers answer
	// 503 and never treat an unverifiable webhook as genuine.
	ErrNotConfigured = errors.New("payment: not configured")

	// ErrInvalidSignature means the webhook payload failed verification.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")

	// ErrMalformedEvent means the payload was genuine but not decodable.
	ErrMalformedEvent = errors.New("payment: malformed event")
)

// EventPaymentSucceeded is the only event type that changes state.
const EventPaymentSucceeded = "payment_intent.succeeded"

// Intent is a created payment intent. ClientSecret goes to the browser,
// which completes the payment directly with the provider.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// Event is a verified webhook event reduced to what reconciliation needs.
type Event struct {
	ID   string
	Type string

	// UserID is the userId metadata attached by CreatePremiumIntent.
	// Empty for events that don't carry one.
	UserID string

	// Reference is the provider's id for the payment, recorded on the user.
	Reference string
}

// Price is the server-side premium price.
type Price struct {
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Processor is the payment provider as seen by the service layer.
type Processor interface {
	// Configured reports whether intents can be created.
	Configured() bool

	PublishableKey() string
	Price() Price

	// CreatePremiumIntent charges the configured price. The amount never
	// comes from the client.
	CreatePremiumIntent(ctx context.Context, userID, email string) (*Intent, error)

	// VerifyEvent checks the signature header against the raw payload
	// before decoding anything.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
