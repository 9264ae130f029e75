// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes (public, signed-in, admin)
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and calls server.New, which creates:
//
//	sqlstore.DB ──→ services (blog, portfolio, engagement, ...) ──→ handlers
//	TokenService ─→ auth middleware, AuthHandler
//	OIDCProvider ─→ AuthHandler
//	Stripe ───────→ SubscriptionService
//	Mailjet ──────→ ContactService
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/config"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/handler"
	"github.com/sakif/portfolio/internal/middleware"
	"github.com/sakif/portfolio/internal/notify"
	"github.com/sakif/portfolio/internal/payment"
	"github.com/sakif/portfolio/internal/repository/sqlstore"
	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it during graceful
// shutdown; callers that never Start (tests, one-off commands) call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// Option overrides one collaborator. Tests use these to run the full
// router against fakes instead of real providers.
type Option func(*options)

type options struct {
	login     handler.LoginProvider
	loginSet  bool
	processor payment.Processor
	notifier  service.ContactNotifier
}

// WithLoginProvider replaces OIDC discovery. A nil provider disables login.
func WithLoginProvider(p handler.LoginProvider) Option {
	return func(o *options) { o.login, o.loginSet = p, true }
}

// WithPaymentProcessor replaces the Stripe processor built from config.
func WithPaymentProcessor(p payment.Processor) Option {
	return func(o *options) { o.processor = p }
}

// WithContactNotifier replaces the Mailjet notifier built from config.
func WithContactNotifier(n service.ContactNotifier) Option {
	return func(o *options) { o.notifier = n }
}

// New opens the database, builds every service and handler, and registers
// the routes.
//
// Collaborators that are not configured do not stop the server: without
// an OIDC client id login answers 503, and without Stripe keys the payment
// endpoints do. Everything else keeps working.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := entitlement.ParsePolicy(cfg.PremiumPolicy)
	if err != nil {
		return nil, err
	}

	// === CREATE DATABASE ===
	db, err := sqlstore.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx, policy, o); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// DB exposes the store, for commands and tests that seed data.
func (s *Server) DB() *sqlstore.DB {
	return s.db
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// loginProvider runs OIDC discovery once at startup. A failure is logged,
// not fatal: the rest of the site does not depend on the provider.
func (s *Server) loginProvider(ctx context.Context, o options) handler.LoginProvider {
	if o.loginSet {
		return o.login
	}
	if !s.config.OIDC.Enabled() {
		s.logger.Warn("OIDC is not configured, login is disabled")
		return nil
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	provider, err := auth.NewOIDCProvider(discoverCtx, auth.OIDCConfig{
		IssuerURL:    s.config.OIDC.IssuerURL,
		ClientID:     s.config.OIDC.ClientID,
		ClientSecret: s.config.OIDC.ClientSecret,
		RedirectURL:  s.config.OIDC.RedirectURL,
	})
	if err != nil {
		s.logger.Error("OIDC discovery failed, login is disabled", slog.String("error", err.Error()))
		return nil
	}
	return provider
}

func (s *Server) processor(o options) payment.Processor {
	if o.processor != nil {
		return o.processor
	}
	p := payment.NewStripe(payment.StripeConfig{
		SecretKey:      s.config.Stripe.SecretKey,
		PublishableKey: s.config.Stripe.PublishableKey,
		WebhookSecret:  s.config.Stripe.WebhookSecret,
		AmountCents:    s.config.Stripe.PriceCents,
		Currency:       s.config.Stripe.Currency,
	})
	if !p.Configured() {
		s.logger.Warn("Stripe is not configured, payment endpoints will answer 503")
	}
	return p
}

func (s *Server) notifier(o options) service.ContactNotifier {
	if o.notifier != nil {
		return o.notifier
	}
	return notify.New(notify.Config{
		PublicKey:  s.config.Mail.PublicKey,
		PrivateKey: s.config.Mail.PrivateKey,
		Sender:     s.config.Mail.Sender,
		Recipient:  s.config.Mail.ContactRecipient,
	}, s.logger)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                              → DB ping
//	GET    /api/login | /api/callback | /api/logout
//	GET    /api/auth/user                        → signed in
//	GET    /api/user/profile, PUT /api/user/profile
//	GET    /api/blog, /api/blog/recent, /api/blog/{slug}     → optional auth
//	POST   /api/blog, PUT|DELETE /api/blog/{id}              → admin
//	GET    /api/blog/{id}/likes                  → optional auth
//	POST   /api/blog/{id}/likes/toggle           → signed in
//	GET    /api/blog/{id}/comments               → public
//	POST   /api/blog/{id}/comments               → signed in
//	DELETE /api/blog/comments/{id}               → signed in, author only
//	GET    /api/portfolio, /featured, /{slug}    → public
//	POST   /api/portfolio, PUT|DELETE /api/portfolio/{id}    → admin
//	POST   /api/newsletter/subscribe | unsubscribe, /api/contact
//	GET    /api/payment/config
//	POST   /api/create-payment-intent            → signed in
//	POST   /api/stripe-webhook                   → signed by Stripe
//	/api/admin/*                                 → admin
//
// ONE PARAMETER NAME:
// chi requires every route sharing a path segment to use the same
// parameter name. /api/blog/{slug} and /api/blog/{id}/likes share the
// segment after /api/blog/, so both are registered as {id}; HandleGet
// reads it as the slug.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(ctx context.Context, policy entitlement.Policy, o options) error {
	validator, err := validate.New()
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(s.config.Session.Secret, s.config.Session.TTL)
	if err != nil {
		return err
	}
	if s.config.Session.Generated {
		s.logger.Warn("SESSION_SECRET is not set, using a random secret; sessions end on restart")
	}

	// === SERVICES ===
	// s.db implements every repository interface; each service only sees
	// the interfaces it needs.
	authService := service.NewAuthService(s.db, tokens, s.config.AdminEmails, s.logger)
	blogService := service.NewBlogService(s.db, policy, s.logger)
	portfolioService := service.NewPortfolioService(s.db, s.logger)
	engagementService := service.NewEngagementService(s.db, s.db, s.db, s.logger)
	newsletterService := service.NewNewsletterService(s.db, s.logger)
	contactService := service.NewContactService(s.db, s.notifier(o), s.logger)
	subscriptionService := service.NewSubscriptionService(s.db, s.db, s.processor(o), s.logger)
	adminService := service.NewAdminService(s.db, s.db, s.db, s.db)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(s.loginProvider(ctx, o), tokens, authService, validator,
		s.config.Session.Secure, s.logger)
	blogHandler := handler.NewBlogHandler(blogService, authService, validator, s.logger)
	portfolioHandler := handler.NewPortfolioHandler(portfolioService, validator, s.logger)
	engagementHandler := handler.NewEngagementHandler(engagementService, validator, s.logger)
	inboundHandler := handler.NewInboundHandler(newsletterService, contactService, validator, s.logger)
	paymentHandler := handler.NewPaymentHandler(subscriptionService, s.logger)
	adminHandler := handler.NewAdminHandler(adminService, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)
	requireAdmin := auth.RequireAdmin(authService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HealthHandler(s.db, s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)

		// --- Identity ---
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Get("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/auth/user", authHandler.HandleMe)
		r.With(requireAuth).Get("/user/profile", authHandler.HandleProfile)
		r.With(requireAuth).Put("/user/profile", authHandler.HandleUpdateProfile)

		// --- Blog ---
		r.Route("/blog", func(r chi.Router) {
			r.With(optionalAuth).Get("/", blogHandler.HandleList)
			r.With(optionalAuth).Get("/recent", blogHandler.HandleRecent)
			r.With(optionalAuth).Get("/{id}", blogHandler.HandleGet)

			r.With(optionalAuth).Get("/{id}/likes", engagementHandler.HandleLikes)
			r.With(requireAuth).Post("/{id}/likes/toggle", engagementHandler.HandleToggleLike)
			r.Get("/{id}/comments", engagementHandler.HandleComments)
			r.With(requireAuth).Post("/{id}/comments", engagementHandler.HandlePostComment)
			r.With(requireAuth).Delete("/comments/{id}", engagementHandler.HandleDeleteComment)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Post("/", blogHandler.HandleCreate)
				r.Put("/{id}", blogHandler.HandleUpdate)
				r.Delete("/{id}", blogHandler.HandleDelete)
			})
		})

		// --- Portfolio ---
		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", portfolioHandler.HandleList)
			r.Get("/featured", portfolioHandler.HandleFeatured)
			r.Get("/{id}", portfolioHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Post("/", portfolioHandler.HandleCreate)
				r.Put("/{id}", portfolioHandler.HandleUpdate)
				r.Delete("/{id}", portfolioHandler.HandleDelete)
			})
		})

		// --- Newsletter & contact ---
		r.Post("/newsletter/subscribe", inboundHandler.HandleSubscribe)
		r.Post("/newsletter/unsubscribe", inboundHandler.HandleUnsubscribe)
		r.Post("/contact", inboundHandler.HandleContact)

		// --- Payments ---
		r.Get("/payment/config", paymentHandler.HandleConfig)
		r.With(requireAuth).Post("/create-payment-intent", paymentHandler.HandleCreateIntent)
		r.Post("/stripe-webhook", paymentHandler.HandleWebhook)

		// --- Admin ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Get("/stats", adminHandler.HandleStats)
			r.Get("/blog", blogHandler.HandleAdminList)
			r.Get("/contacts", inboundHandler.HandleListContacts)
			r.Patch("/contacts/{id}", inboundHandler.HandleMarkContact)
			r.Get("/newsletter", inboundHandler.HandleListSubscribers)
		})
	})

	s.mountStatic()
	return nil
}

// mountStatic serves the built web client, if there is one.
//
// SINGLE-PAGE APP FALLBACK:
// The client routes /blog/some-post itself. A hard refresh on that URL
// reaches the server, which has no such file, so any unknown non-API path
// gets index.html and the client router takes over.
func (s *Server) mountStatic() {
	dir := s.config.Server.StaticDir
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Info("no web client build found, serving the API only", slog.String("dir", dir))
		return
	}

	fileServer := http.FileServer(http.Dir(dir))
	s.router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", s.config.Server.BaseURL),
			slog.String("database", string(s.db.Dialect())),
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
