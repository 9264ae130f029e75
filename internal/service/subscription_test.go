package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/payment"
)

func newTestSubscriptions(m *memStore, p *fakeProcessor) *SubscriptionService {
	return NewSubscriptionService(m, m, p, testLogger())
}

func TestConfig(t *testing.T) {
	m := newMemStore()

	_, err := newTestSubscriptions(m, &fakeProcessor{}).Config()
	assertErrIs(t, err, apperror.ErrUnavailable)

	cfg, err := newTestSubscriptions(m, &fakeProcessor{configured: true}).Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.PublishableKey != "pk_test" || cfg.Amount != 900 || cfg.Currency != "usd" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestCreateIntent(t *testing.T) {
	m := newMemStore()
	free := seedUser(t, m, "free", false, false)
	paid := seedUser(t, m, "paid", true, false)
	proc := &fakeProcessor{configured: true}
	svc := newTestSubscriptions(m, proc)
	ctx := context.Background()

	intent, err := svc.CreateIntent(ctx, free.ID)
	if err != nil {
		t.Fatalf("CreateIntent() error = %v", err)
	}
	if intent.ClientSecret == "" {
		t.Error("ClientSecret should be returned")
	}
	if len(proc.created) != 1 || proc.created[0] != free.ID {
		t.Errorf("intents created for %v", proc.created)
	}

	_, err = svc.CreateIntent(ctx, paid.ID)
	assertErrIs(t, err, apperror.ErrConflict)

	// Creating an intent never grants anything by itself.
	if m.users[free.ID].IsPremium {
		t.Error("CreateIntent must not grant premium")
	}
}

func TestCreateIntent_NotConfigured(t *testing.T) {
	m := newMemStore()
	u := seedUser(t, m, "free", false, false)
	_, err := newTestSubscriptions(m, &fakeProcessor{}).CreateIntent(context.Background(), u.ID)
	assertErrIs(t, err, apperror.ErrUnavailable)
}

func TestCreateIntent_ProviderError(t *testing.T) {
	m := newMemStore()
	u := seedUser(t, m, "free", false, false)
	boom := errors.New("card network unreachable")
	_, err := newTestSubscriptions(m, &fakeProcessor{configured: true, createErr: boom}).CreateIntent(context.Background(), u.ID)
	assertErrIs(t, err, boom)
}

func TestHandleWebhook_GrantsOnce(t *testing.T) {
	m := newMemStore()
	u := seedUser(t, m, "buyer", false, false)
	proc := &fakeProcessor{configured: true, next: &payment.Event{
		ID:        "evt_1",
		Type:      payment.EventPaymentSucceeded,
		UserID:    u.ID,
		Reference: "pi_1",
	}}
	svc := newTestSubscriptions(m, proc)
	ctx := context.Background()

	outcome, err := svc.HandleWebhook(ctx, []byte(`{}`), "valid")
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if outcome != WebhookApplied {
		t.Errorf("outcome = %q, want %q", outcome, WebhookApplied)
	}
	if !m.users[u.ID].IsPremium || m.users[u.ID].SubscriptionRef != "pi_1" {
		t.Errorf("user = %+v, want premium with reference", m.users[u.ID])
	}

	outcome, err = svc.HandleWebhook(ctx, []byte(`{}`), "valid")
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if outcome != WebhookDuplicate {
		t.Errorf("replay outcome = %q, want %q", outcome, WebhookDuplicate)
	}
}

func TestHandleWebhook_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		proc    *fakeProcessor
		sig     string
		want    WebhookOutcome
		wantErr error
	}{
		{
			name:    "not configured",
			proc:    &fakeProcessor{},
			sig:     "valid",
			wantErr: apperror.ErrUnavailable,
		},
		{
			name:    "bad signature",
			proc:    &fakeProcessor{configured: true},
			sig:     "forged",
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "malformed",
			proc:    &fakeProcessor{configured: true},
			sig:     "valid",
			wantErr: apperror.ErrValidation,
		},
		{
			name: "other event type",
			proc: &fakeProcessor{configured: true, next: &payment.Event{ID: "evt_2", Type: "charge.refunded", UserID: "user-1"}},
			sig:  "valid",
			want: WebhookIgnored,
		},
		{
			name: "no user metadata",
			proc: &fakeProcessor{configured: true, next: &payment.Event{ID: "evt_3", Type: payment.EventPaymentSucceeded}},
			sig:  "valid",
			want: WebhookIgnored,
		},
		{
			name: "unknown user",
			proc: &fakeProcessor{configured: true, next: &payment.Event{ID: "evt_4", Type: payment.EventPaymentSucceeded, UserID: "ghost"}},
			sig:  "valid",
			want: WebhookUnknownUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestSubscriptions(newMemStore(), tt.proc)
			got, err := svc.HandleWebhook(context.Background(), []byte(`{}`), tt.sig)
			if tt.wantErr != nil {
				assertErrIs(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("HandleWebhook() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleWebhook_StoreFailureIsRetryable(t *testing.T) {
	m := newMemStore()
	m.failWith = errors.New("disk full")
	proc := &fakeProcessor{configured: true, next: &payment.Event{ID: "evt_5", Type: payment.EventPaymentSucceeded, UserID: "user-1"}}

	_, err := newTestSubscriptions(m, proc).HandleWebhook(context.Background(), []byte(`{}`), "valid")
	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		t.Errorf("error = %v, want an internal (500) error so the provider retries", err)
	}
}
