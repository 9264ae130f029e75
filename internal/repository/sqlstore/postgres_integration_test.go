//go:build integration

package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

// Run with: go test -tags integration ./internal/repository/sqlstore/
// Requires a Docker daemon.
func newPostgresDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portfolio_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("opening postgres store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if db.Dialect() != DialectPostgres {
		t.Fatalf("Dialect() = %q", db.Dialect())
	}
	return db
}

func TestPostgres_EndToEnd(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	version, dirty, err := db.SchemaVersion(ctx)
	if err != nil || version != 1 || dirty {
		t.Fatalf("SchemaVersion() = %d, %v, %v", version, dirty, err)
	}

	user := &model.User{Subject: "sub-1", Email: "a@example.com", IsAdmin: true}
	if err := db.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	user.IsAdmin = false
	if err := db.UpsertUser(ctx, user); err != nil || !user.IsAdmin {
		t.Fatalf("admin demoted on refresh: %+v, %v", user, err)
	}

	post := &model.BlogPost{Slug: "pg", Title: "Postgres", Category: "MEL", Tags: []string{"SQL"}, IsPublished: true}
	if err := db.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if err := db.CreatePost(ctx, &model.BlogPost{Slug: "pg", Title: "dup", Category: "MEL"}); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate slug = %v, want ErrConflict", err)
	}

	posts, err := db.ListPosts(ctx, repository.PostFilter{PublishedOnly: true, Search: "sql"})
	if err != nil || len(posts) != 1 {
		t.Fatalf("ListPosts(search) = %d posts, %v", len(posts), err)
	}

	// Concurrent toggles across real connections.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx, post.ID, user.ID); err != nil {
				t.Errorf("ToggleLike() error = %v", err)
			}
		}()
	}
	wg.Wait()
	count, _ := db.CountLikes(ctx, post.ID)
	if count > 1 {
		t.Errorf("CountLikes() = %d, want at most 1", count)
	}

	grant := repository.PremiumGrant{EventID: "evt_pg", EventType: "payment_intent.succeeded", UserID: user.ID, SubscriptionRef: "pi_pg"}
	if applied, err := db.ApplyPremium(ctx, grant); err != nil || !applied {
		t.Fatalf("ApplyPremium() = %v, %v", applied, err)
	}
	if applied, err := db.ApplyPremium(ctx, grant); err != nil || applied {
		t.Fatalf("replayed ApplyPremium() = %v, %v", applied, err)
	}

	if err := db.CreateSubscriber(ctx, &model.NewsletterSubscriber{Email: "n@example.com"}); err != nil {
		t.Fatalf("CreateSubscriber() error = %v", err)
	}
	if err := db.CreateSubscriber(ctx, &model.NewsletterSubscriber{Email: "n@example.com"}); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate subscriber = %v, want ErrConflict", err)
	}
}
