// Package main is the entry point for the portfolio server and its
// maintenance commands.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (from env vars or a .env file)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application, or run one maintenance task and exit
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// COMMANDS:
//
//	portfolio                      → same as "serve"
//	portfolio serve                → run the HTTP server
//	portfolio migrate              → apply database migrations and print the version
//	portfolio seed                 → insert sample projects and posts
//	portfolio admin grant <email>  → give an existing user admin rights
//	portfolio admin revoke <email> → take them away
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/portfolio/internal/config"
	"github.com/sakif/portfolio/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every command needs. It is filled in by the root
// command's PersistentPreRunE, before any subcommand runs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio and blog server with premium articles",
		Long: `Serves the portfolio, the blog (with premium articles unlocked by a
Stripe payment), likes and comments, the newsletter and the contact form.

Configuration comes from environment variables; a .env file in the
working directory is read first if present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log)
			slog.SetDefault(a.logger)
			return nil
		},
		// Running the binary with no subcommand starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.serve(cmd)
			},
		},
		newMigrateCmd(a),
		newSeedCmd(a),
		newAdminCmd(a),
	)
	return root
}

// newLogger builds the process logger.
//
// Text output is easier to read in a terminal; JSON is what log
// collectors expect in production.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func (a *app) serve(cmd *cobra.Command) error {
	srv, err := server.New(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
