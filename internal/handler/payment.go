package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/service"
)

// MaxWebhookBytes caps the webhook body. Typical events are a few KiB,
// but an intent with large metadata can pass 64 KiB.
const MaxWebhookBytes = 1 << 20

// SignatureHeader carries the provider's HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// PaymentHandler exposes checkout and the payment webhook.
type PaymentHandler struct {
	subscriptions *service.SubscriptionService
	logger        *slog.Logger
}

func NewPaymentHandler(subscriptions *service.SubscriptionService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{subscriptions: subscriptions, logger: logger}
}

// HandleConfig: GET /api/payment/config
// {"publishableKey":"pk_...","amount":900,"currency":"usd"}, or 503.
func (h *PaymentHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.subscriptions.Config()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleCreateIntent: POST /api/create-payment-intent
//
// THE BODY IS IGNORED:
// The old client sent {"amount": 9}. The price now comes only from server
// configuration, so whatever the browser sends cannot change what is
// charged. We do not even read it.
func (h *PaymentHandler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	intent, err := h.subscriptions.CreateIntent(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clientSecret": intent.ClientSecret,
		"amount":       intent.Amount,
		"currency":     intent.Currency,
	})
}

// HandleWebhook: POST /api/stripe-webhook
//
// RAW BYTES:
// The signature is computed over the exact bytes Stripe sent. Decoding
// and re-encoding the JSON would change whitespace and key order and the
// check would fail, so the body is read as-is and handed over untouched.
//
// Responses: 200 {"received":true} for anything we accepted (applied,
// duplicate, ignored, unknown user); 400 for a bad signature; 413 for a
// body over MaxWebhookBytes; 503 when
// no webhook secret is configured; 500 when the store failed, so Stripe
// retries.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "payload_too_large",
				Message: "webhook payload too large",
			})
			return
		}
		writeError(w, apperror.ValidationFailed("body", "could not read webhook payload"))
		return
	}

	outcome, err := h.subscriptions.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("webhook processed", slog.String("outcome", string(outcome)))
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
