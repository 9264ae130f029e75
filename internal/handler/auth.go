package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// LoginCookie holds the signed login state between /api/login and
// /api/callback.
const LoginCookie = "oidc_login"

// LoginProvider is the identity provider side of the login flow.
// *auth.OIDCProvider implements it.
type LoginProvider interface {
	AuthURL(ls auth.LoginState) string
	Exchange(ctx context.Context, code string, ls auth.LoginState) (*auth.Identity, error)
}

// AuthHandler manages the OIDC login flow and the user's own profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to the identity provider
//   - HandleCallback → receive the code, verify the identity, issue the session
//   - HandleLogout   → clear the session cookie
//   - HandleMe       → return the currently logged-in user
//   - HandleProfile / HandleUpdateProfile → read and edit display fields
//
// DEPENDENCY CHAIN:
//   - provider LoginProvider         → OIDC redirect and code exchange (nil = disabled)
//   - tokens   *auth.TokenService    → signs the login-state cookie
//   - users    *service.AuthService  → upserts the user, issues the session JWT
type AuthHandler struct {
	provider  LoginProvider
	tokens    *auth.TokenService
	users     *service.AuthService
	validator *validate.Validator
	secure    bool
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. provider may be nil when no
// identity provider is configured; login then answers 503. secure sets
// the Secure flag on cookies and should be true behind HTTPS.
func NewAuthHandler(
	provider LoginProvider,
	tokens *auth.TokenService,
	users *service.AuthService,
	v *validate.Validator,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		tokens:    tokens,
		users:     users,
		validator: v,
		secure:    secure,
		logger:    logger,
	}
}

// HandleLogin redirects the user to the provider's authorization page.
//
// HTTP: GET /api/login?redirect=/blog/some-post
//
// CSRF, REPLAY AND CODE THEFT:
// NewLoginState creates a random state (CSRF), a nonce (ties the ID token
// to this login) and a PKCE verifier (a stolen code is useless without
// it). All three go into a signed cookie rather than server memory:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: still sent on the provider's top-level redirect back
//   - 10-minute expiry: long enough to log in, short enough to limit risk
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeError(w, apperror.Unavailable("Login is not configured"))
		return
	}

	ls := auth.NewLoginState(r.URL.Query().Get("redirect"))
	signed, err := h.tokens.IssueLoginState(ls)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     LoginCookie,
		Value:    signed,
		Path:     "/api",
		MaxAge:   int(auth.LoginStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(ls), http.StatusFound)
}

// HandleCallback completes the login.
//
// HTTP: GET /api/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Read and verify the login-state cookie, compare the state (CSRF check)
//  2. Exchange the code with the PKCE verifier, verify the ID token and nonce
//  3. Upsert the user by subject and issue a session token
//  4. Set the session cookie and redirect to where the user started
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeError(w, apperror.Unavailable("Login is not configured"))
		return
	}

	// --- Step 1: Validate the login state ---
	cookie, err := r.Cookie(LoginCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing login cookie")
		writeError(w, apperror.ValidationFailed("state", "login session expired, please try again"))
		return
	}
	ls, err := h.tokens.ParseLoginState(cookie.Value)
	if err != nil {
		h.logger.Warn("auth callback: bad login cookie", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("state", "login session expired, please try again"))
		return
	}

	// The login state is single-use, whatever happens next.
	h.clearCookie(w, LoginCookie, "/api")

	if r.URL.Query().Get("state") != ls.State {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid login state"))
		return
	}

	// The user pressed "deny" at the provider.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned error", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing authorization code"))
		return
	}

	// --- Step 2: Exchange and verify ---
	identity, err := h.provider.Exchange(r.Context(), code, *ls)
	if err != nil {
		h.logger.Error("auth callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("authentication failed"))
		return
	}

	// --- Step 3: Upsert and issue the session ---
	result, err := h.users.LoginOrRegister(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	// --- Step 4: Session cookie and redirect ---
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, ls.Redirect, http.StatusSeeOther)
}

// HandleLogout clears the session cookie and sends the browser home.
//
// HTTP: GET /api/logout
//
// Since sessions are stateless JWTs, "logout" means deleting the cookie.
// The token stays valid until it expires, but the browser no longer has it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, auth.SessionCookie, "/")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user.
//
// HTTP: GET /api/auth/user (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		// A valid token for a deleted user is an expired session, not a 404.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleProfile: GET /api/user/profile (RequireAuth)
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	h.HandleMe(w, r)
}

// HandleUpdateProfile: PUT /api/user/profile (RequireAuth)
// Body: any of {"firstName","lastName","profileImageUrl"}.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if err := decodeBody(r, h.validator, validate.Profile, &in); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.users.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
