package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/repository/sqlstore"
	"github.com/sakif/portfolio/internal/service"
)

// openStore opens the configured database. Open applies pending
// migrations, so every command below runs against the current schema.
func (a *app) openStore(ctx context.Context) (*sqlstore.DB, error) {
	db, err := sqlstore.Open(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			version, dirty, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("schema version %d is dirty, fix it by hand", version)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", db.Dialect(), version)
			return nil
		},
	}
}

// newSeedCmd inserts a few sample projects and one post so a fresh
// install has something to show. Rows whose slug already exists are
// skipped, so running it twice is harmless.
func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample projects and posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			policy, err := entitlement.ParsePolicy(a.cfg.PremiumPolicy)
			if err != nil {
				return err
			}
			return seed(ctx, service.NewPortfolioService(db, a.logger), service.NewBlogService(db, policy, a.logger), a.logger)
		},
	}
}

func seed(ctx context.Context, portfolio *service.PortfolioService, blog *service.BlogService, logger *slog.Logger) error {
	featured := true
	projects := []service.ProjectInput{
		{
			Title:       ptr("MEL System for NGO"),
			Slug:        ptr("mel-system-ngo"),
			Description: ptr("A comprehensive Monitoring, Evaluation, and Learning system."),
			Category:    ptr("MEL Systems"),
			TechStack:   &[]string{"React", "PostgreSQL", "Node.js"},
			Featured:    &featured,
		},
		{
			Title:       ptr("ICT Infrastructure Audit"),
			Slug:        ptr("ict-audit"),
			Description: ptr("Complete audit of ICT infrastructure for a government agency."),
			Category:    ptr("ICT Infrastructure"),
			TechStack:   &[]string{"Networking", "Security", "Hardware"},
			Featured:    &featured,
		},
	}
	for _, p := range projects {
		if _, err := portfolio.Create(ctx, p); skipExisting(err) != nil {
			return fmt.Errorf("seeding project %s: %w", *p.Slug, err)
		}
	}

	published := true
	readTime := 5
	posts := []service.PostInput{
		{
			Title:       ptr("Introduction to MEL Systems"),
			Slug:        ptr("intro-mel-systems"),
			Excerpt:     ptr("Learn the basics of Monitoring, Evaluation, and Learning."),
			Content:     ptr("<p>Monitoring, Evaluation, and Learning (MEL) is critical for project success...</p>"),
			Category:    ptr("MEL"),
			Tags:        &[]string{"MEL", "Basics"},
			IsPublished: &published,
			ReadTime:    &readTime,
		},
	}
	for _, p := range posts {
		if _, err := blog.Create(ctx, p); skipExisting(err) != nil {
			return fmt.Errorf("seeding post %s: %w", *p.Slug, err)
		}
	}

	logger.Info("seeding complete", slog.Int("projects", len(projects)), slog.Int("posts", len(posts)))
	return nil
}

// skipExisting treats a slug conflict as success.
func skipExisting(err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return nil
	}
	return err
}

func ptr[T any](v T) *T { return &v }

// newAdminCmd grants or revokes admin rights. The user must have logged in
// at least once, so the account exists.
//
// ADMIN_EMAILS grants the flag again on every login, so revoking an
// address that is still listed there only lasts until the next login.
func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin rights",
	}

	set := func(admin bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			tokens, err := auth.NewTokenService(a.cfg.Session.Secret, a.cfg.Session.TTL)
			if err != nil {
				return err
			}
			users := service.NewAuthService(db, tokens, a.cfg.AdminEmails, a.logger)

			user, err := users.SetAdminByEmail(ctx, args[0], admin)
			if errors.Is(err, apperror.ErrNotFound) {
				return fmt.Errorf("no user with email %s; they must log in once first", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%t\n", user.Email, user.IsAdmin)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "grant <email>",
			Short: "Give a user admin rights",
			Args:  cobra.ExactArgs(1),
			RunE:  set(true),
		},
		&cobra.Command{
			Use:   "revoke <email>",
			Short: "Take admin rights away",
			Args:  cobra.ExactArgs(1),
			RunE:  set(false),
		},
	)
	return cmd
}
