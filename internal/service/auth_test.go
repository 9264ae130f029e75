package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/entitlement"
)

// newTestAuthService returns an AuthService over the in-memory store.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, m *memStore, adminEmails ...string) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(m, ts, adminEmails, testLogger()), ts
}

// =========================================================================
// LoginOrRegister TESTS
// =========================================================================

func TestLoginOrRegister_NewUser(t *testing.T) {
	m := newMemStore()
	svc, tokens := newTestAuthService(t, m)

	result, err := svc.LoginOrRegister(context.Background(), &auth.Identity{
		Subject:   "sub-1",
		Email:     "  Writer@Example.com",
		FirstName: "Sam",
	})
	if err != nil {
		t.Fatalf("LoginOrRegister() error = %v", err)
	}
	if result.User.ID == "" {
		t.Fatal("User.ID should be set after upsert")
	}
	if result.User.Email != "writer@example.com" {
		t.Errorf("Email = %q, want normalized", result.User.Email)
	}
	if result.User.IsAdmin || result.User.IsPremium {
		t.Errorf("new user should be neither admin nor premium: %+v", result.User)
	}

	// The token we issued validates back to the same user.
	userID, err := tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token subject = %q, want %q", userID, result.User.ID)
	}
}

func TestLoginOrRegister_ExistingUserGetsUpdatedProfile(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)
	ctx := context.Background()

	first, err := svc.LoginOrRegister(ctx, &auth.Identity{Subject: "sub-9", Email: "old@example.com", FirstName: "Old"})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	second, err := svc.LoginOrRegister(ctx, &auth.Identity{Subject: "sub-9", Email: "new@example.com", FirstName: "New"})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("ID changed from %q to %q", first.User.ID, second.User.ID)
	}
	if second.User.FirstName != "New" || second.User.Email != "new@example.com" {
		t.Errorf("profile not refreshed: %+v", second.User)
	}
}

func TestLoginOrRegister_AdminEmails(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m, " Owner@Example.com ", "")

	result, err := svc.LoginOrRegister(context.Background(), &auth.Identity{Subject: "sub-owner", Email: "owner@example.com"})
	if err != nil {
		t.Fatalf("LoginOrRegister() error = %v", err)
	}
	if !result.User.IsAdmin {
		t.Error("configured admin email should be granted admin")
	}

	other, err := svc.LoginOrRegister(context.Background(), &auth.Identity{Subject: "sub-x", Email: ""})
	if err != nil {
		t.Fatalf("LoginOrRegister() error = %v", err)
	}
	if other.User.IsAdmin {
		t.Error("an empty email must never match the admin list")
	}
}

func TestLoginOrRegister_Rejects(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)

	_, err := svc.LoginOrRegister(context.Background(), nil)
	assertErrIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.LoginOrRegister(context.Background(), &auth.Identity{Email: "a@example.com"})
	assertErrIs(t, err, apperror.ErrUnauthorized)

	m.failWith = errors.New("database is on fire")
	if _, err := svc.LoginOrRegister(context.Background(), &auth.Identity{Subject: "s"}); err == nil {
		t.Fatal("LoginOrRegister() should propagate repository errors")
	}
}

// =========================================================================
// Viewer / IsAdmin TESTS
// =========================================================================

func TestViewer(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)
	u := seedUser(t, m, "reader", true, false)

	tests := []struct {
		name   string
		userID string
		want   entitlement.Viewer
	}{
		{"anonymous", "", entitlement.Anonymous},
		{"deleted user", "user-404", entitlement.Anonymous},
		{"premium", u.ID, entitlement.Viewer{UserID: u.ID, IsPremium: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Viewer(context.Background(), tt.userID)
			if err != nil {
				t.Fatalf("Viewer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Viewer() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)
	admin := seedUser(t, m, "boss", false, true)
	plain := seedUser(t, m, "pleb", false, false)

	for id, want := range map[string]bool{admin.ID: true, plain.ID: false, "user-404": false} {
		got, err := svc.IsAdmin(context.Background(), id)
		if err != nil {
			t.Fatalf("IsAdmin(%q) error = %v", id, err)
		}
		if got != want {
			t.Errorf("IsAdmin(%q) = %v, want %v", id, got, want)
		}
	}

	m.failWith = errors.New("timeout")
	if _, err := svc.IsAdmin(context.Background(), admin.ID); err == nil {
		t.Error("IsAdmin() should surface store errors")
	}
}

// =========================================================================
// Profile / admin flag TESTS
// =========================================================================

func TestUpdateProfile(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)
	u := seedUser(t, m, "sam", false, false)

	updated, err := svc.UpdateProfile(context.Background(), u.ID, ProfileInput{LastName: ptr("  Rahman ")})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.LastName != "Rahman" || updated.FirstName != "Sam" {
		t.Errorf("profile = %+v", updated)
	}

	_, err = svc.UpdateProfile(context.Background(), u.ID, ProfileInput{FirstName: ptr(longString(MaxNameLength + 1))})
	assertErrIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateProfile(context.Background(), "", ProfileInput{})
	assertErrIs(t, err, apperror.ErrUnauthorized)
}

func TestSetAdminByEmail(t *testing.T) {
	m := newMemStore()
	svc, _ := newTestAuthService(t, m)
	u := seedUser(t, m, "helper", false, false)

	got, err := svc.SetAdminByEmail(context.Background(), "HELPER@example.com", true)
	if err != nil {
		t.Fatalf("SetAdminByEmail() error = %v", err)
	}
	if !got.IsAdmin || !m.users[u.ID].IsAdmin {
		t.Error("admin flag should be set")
	}

	if _, err := svc.SetAdminByEmail(context.Background(), "helper@example.com", false); err != nil {
		t.Fatal(err)
	}
	if m.users[u.ID].IsAdmin {
		t.Error("admin flag should be cleared")
	}

	_, err = svc.SetAdminByEmail(context.Background(), "stranger@example.com", true)
	assertErrIs(t, err, apperror.ErrNotFound)
}
