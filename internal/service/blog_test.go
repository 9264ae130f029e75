package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/entitlement"
)

func newTestBlogService(m *memStore, policy entitlement.Policy) *BlogService {
	return NewBlogService(m, policy, testLogger())
}

func validPostInput(slug string) PostInput {
	return PostInput{
		Title:    ptr("Measuring what matters"),
		Slug:     ptr(slug),
		Content:  ptr("Some words about indicators."),
		Category: ptr("MEL"),
	}
}

// =========================================================================
// GetBySlug: ENTITLEMENT
// =========================================================================

func TestGetBySlug_PremiumAnonymousIsLocked(t *testing.T) {
	m := newMemStore()
	seedPost(t, m, "intro", true)
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	view, err := svc.GetBySlug(context.Background(), entitlement.Anonymous, "intro")
	assertErrIs(t, err, apperror.ErrSubscriptionRequired)

	teaser, ok := view.(entitlement.RedactedPost)
	if !ok {
		t.Fatalf("view = %T, want RedactedPost", view)
	}
	if teaser.Excerpt != "teaser" || !teaser.Locked {
		t.Errorf("teaser = %+v", teaser)
	}
}

func TestGetBySlug_PremiumSignedInGetsContent(t *testing.T) {
	m := newMemStore()
	seedPost(t, m, "intro", true)
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	view, err := svc.GetBySlug(context.Background(), entitlement.Viewer{UserID: "u1"}, "intro")
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	full, ok := view.(entitlement.FullPost)
	if !ok || full.Content != "SECRET" {
		t.Fatalf("view = %#v, want FullPost with content", view)
	}
}

func TestGetBySlug_PremiumPolicyRequiresPayment(t *testing.T) {
	m := newMemStore()
	seedPost(t, m, "intro", true)
	svc := newTestBlogService(m, entitlement.RequirePremium)

	_, err := svc.GetBySlug(context.Background(), entitlement.Viewer{UserID: "u1"}, "intro")
	assertErrIs(t, err, apperror.ErrSubscriptionRequired)

	_, err = svc.GetBySlug(context.Background(), entitlement.Viewer{UserID: "u1", IsPremium: true}, "intro")
	if err != nil {
		t.Fatalf("premium viewer: GetBySlug() error = %v", err)
	}
}

func TestGetBySlug_DraftHiddenFromPublic(t *testing.T) {
	m := newMemStore()
	p := seedPost(t, m, "draft", false)
	m.posts[p.ID].IsPublished = false
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	_, err := svc.GetBySlug(context.Background(), entitlement.Viewer{UserID: "u1"}, "draft")
	assertErrIs(t, err, apperror.ErrNotFound)

	if _, err := svc.GetBySlug(context.Background(), entitlement.Viewer{UserID: "a", IsAdmin: true}, "draft"); err != nil {
		t.Fatalf("admin: GetBySlug() error = %v", err)
	}
}

func TestGetBySlug_Missing(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)
	_, err := svc.GetBySlug(context.Background(), entitlement.Anonymous, "nope")
	assertErrIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// List / Recent
// =========================================================================

func TestList_RedactsPremiumForAnonymous(t *testing.T) {
	m := newMemStore()
	seedPost(t, m, "free", false)
	seedPost(t, m, "paid", true)
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	views, err := svc.List(context.Background(), entitlement.Anonymous, PostQuery{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}

	// Newest first: "paid" was created second.
	if _, ok := views[0].(entitlement.RedactedPost); !ok {
		t.Errorf("views[0] = %T, want RedactedPost", views[0])
	}
	if _, ok := views[1].(entitlement.FullPost); !ok {
		t.Errorf("views[1] = %T, want FullPost", views[1])
	}
}

func TestRecent_Limits(t *testing.T) {
	m := newMemStore()
	for _, slug := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		seedPost(t, m, slug, false)
	}
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultRecent},
		{-3, DefaultRecent},
		{2, 2},
		{1000, 8},
	}
	for _, tt := range tests {
		views, err := svc.Recent(context.Background(), entitlement.Anonymous, tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) error = %v", tt.limit, err)
		}
		if len(views) != tt.want {
			t.Errorf("Recent(%d) returned %d posts, want %d", tt.limit, len(views), tt.want)
		}
	}
}

func TestList_StoreError(t *testing.T) {
	m := newMemStore()
	m.failWith = errors.New("database is on fire")
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	if _, err := svc.List(context.Background(), entitlement.Anonymous, PostQuery{}); err == nil {
		t.Fatal("List() should propagate store errors")
	}
}

// =========================================================================
// Create / Update / Delete
// =========================================================================

func TestCreate_EstimatesReadTime(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)

	in := validPostInput("long-read")
	in.Content = ptr(strings.Repeat("word ", 450))
	post, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.ReadTimeMinutes != 3 {
		t.Errorf("ReadTimeMinutes = %d, want 3", post.ReadTimeMinutes)
	}
	if post.ID == "" {
		t.Error("ID should be assigned")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)

	tests := []struct {
		name  string
		edit  func(*PostInput)
		field string
	}{
		{"missing title", func(in *PostInput) { in.Title = nil }, "title"},
		{"blank title", func(in *PostInput) { in.Title = ptr("   ") }, "title"},
		{"bad slug", func(in *PostInput) { in.Slug = ptr("Not A Slug") }, "slug"},
		{"double hyphen", func(in *PostInput) { in.Slug = ptr("a--b") }, "slug"},
		{"reserved slug", func(in *PostInput) { in.Slug = ptr("recent") }, "slug"},
		{"blank content", func(in *PostInput) { in.Content = ptr(" ") }, "content"},
		{"long category", func(in *PostInput) { in.Category = ptr(strings.Repeat("x", 51)) }, "category"},
		{"zero read time", func(in *PostInput) { in.ReadTime = ptr(0) }, "readTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPostInput("ok")
			tt.edit(&in)
			_, err := svc.Create(context.Background(), in)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)
	if _, err := svc.Create(context.Background(), validPostInput("same")); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := svc.Create(context.Background(), validPostInput("same"))
	assertErrIs(t, err, apperror.ErrConflict)
}

func TestUpdate_SlugImmutableOncePublished(t *testing.T) {
	m := newMemStore()
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	in := validPostInput("first-slug")
	in.IsPublished = ptr(true)
	post, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Update(context.Background(), post.ID, PostInput{Slug: ptr("second-slug")})
	assertErrIs(t, err, apperror.ErrValidation)

	// Sending the unchanged slug along with other fields is fine.
	updated, err := svc.Update(context.Background(), post.ID, PostInput{Slug: ptr("first-slug"), Title: ptr("New title")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "New title" {
		t.Errorf("Title = %q", updated.Title)
	}
}

func TestUpdate_ReservedSlug(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)
	post, err := svc.Create(context.Background(), validPostInput("draft"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err = svc.Update(context.Background(), post.ID, PostInput{Slug: ptr("recent")})
	assertErrIs(t, err, apperror.ErrValidation)
}

func TestUpdate_DraftCanBeRenamedAndPublished(t *testing.T) {
	m := newMemStore()
	svc := newTestBlogService(m, entitlement.RequireAuthentication)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	post, err := svc.Create(context.Background(), validPostInput("draft-slug"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(context.Background(), post.ID, PostInput{
		Slug:        ptr("final-slug"),
		IsPublished: ptr(true),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Slug != "final-slug" {
		t.Errorf("Slug = %q", updated.Slug)
	}
	if !updated.PublishedAt.Equal(fixed) {
		t.Errorf("PublishedAt = %v, want %v", updated.PublishedAt, fixed)
	}
}

func TestUpdate_Missing(t *testing.T) {
	svc := newTestBlogService(newMemStore(), entitlement.RequireAuthentication)
	_, err := svc.Update(context.Background(), "nope", PostInput{Title: ptr("x")})
	assertErrIs(t, err, apperror.ErrNotFound)
}

func TestDelete(t *testing.T) {
	m := newMemStore()
	p := seedPost(t, m, "gone", false)
	svc := newTestBlogService(m, entitlement.RequireAuthentication)

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	assertErrIs(t, svc.Delete(context.Background(), p.ID), apperror.ErrNotFound)
}

func TestEstimateReadTime(t *testing.T) {
	tests := map[string]int{
		"":                            1,
		"one":                         1,
		strings.Repeat("w ", 200):     1,
		strings.Repeat("w ", 201):     2,
		strings.Repeat("w\n\t ", 1000): 5,
	}
	for content, want := range tests {
		if got := EstimateReadTime(content); got != want {
			t.Errorf("EstimateReadTime(%d words) = %d, want %d", len(strings.Fields(content)), got, want)
		}
	}
}
