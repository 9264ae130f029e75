// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers check the SHAPE of a request (JSON Schema, see package validate).
// Services check the RULES: a slug may not change after publication, a
// reply must belong to the same post, only the author deletes a comment.
// Every caller gets the rules, whether it is an HTTP handler or the CLI.
//
// DEPENDENCY INJECTION:
// Each service takes repository interfaces, not *sqlstore.DB. Tests pass an
// in-memory fake (see fakes_test.go); the server passes the real store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength    = 200
	MaxCategoryLength = 50
	DefaultRecent     = 6
	MaxRecent         = 50

	// wordsPerMinute drives the read-time estimate when none is supplied.
	wordsPerMinute = 200
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// validateSlug checks the slug format. Reserved slugs name fixed routes
// beside /{slug}, which would otherwise shadow the item.
func validateSlug(slug string, reserved ...string) error {
	if !slugPattern.MatchString(slug) {
		return apperror.ValidationFailed("slug", "slug must be lowercase letters, digits and single hyphens")
	}
	for _, r := range reserved {
		if slug == r {
			return apperror.ValidationFailed("slug", fmt.Sprintf("slug %q is reserved", slug))
		}
	}
	return nil
}

// PostInput is the body of a create or partial update. A nil field is
// "not supplied": Create requires some of them, Update leaves the stored
// value alone.
type PostInput struct {
	Title         *string    `json:"title"`
	Slug          *string    `json:"slug"`
	Excerpt       *string    `json:"excerpt"`
	Content       *string    `json:"content"`
	FeaturedImage *string    `json:"featuredImage"`
	Category      *string    `json:"category"`
	Tags          *[]string  `json:"tags"`
	IsPremium     *bool      `json:"isPremium"`
	IsPublished   *bool      `json:"isPublished"`
	ReadTime      *int       `json:"readTime"`
	PublishedAt   *time.Time `json:"publishedAt"`
}

// PostQuery holds the public list filters.
type PostQuery struct {
	Category string
	Search   string
	Premium  *bool
}

// BlogService handles business logic for blog posts.
//
// Every read goes through the entitlement policy, so the list, the recent
// list and the single-post page apply the same premium rule.
type BlogService struct {
	posts  repository.PostRepository
	policy entitlement.Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewBlogService(posts repository.PostRepository, policy entitlement.Policy, logger *slog.Logger) *BlogService {
	return &BlogService{
		posts:  posts,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// List returns published posts matching q, newest first, each shaped for v.
func (s *BlogService) List(ctx context.Context, v entitlement.Viewer, q PostQuery) ([]entitlement.PostView, error) {
	posts, err := s.posts.ListPosts(ctx, repository.PostFilter{
		PublishedOnly: true,
		Category:      strings.TrimSpace(q.Category),
		Search:        strings.TrimSpace(q.Search),
		Premium:       q.Premium,
	})
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing posts: %w", err)
	}
	return s.policy.ViewAll(posts, v), nil
}

// Recent returns the latest published posts. limit ≤ 0 means
// DefaultRecent; anything above MaxRecent is clamped.
func (s *BlogService) Recent(ctx context.Context, v entitlement.Viewer, limit int) ([]entitlement.PostView, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecent
	case limit > MaxRecent:
		limit = MaxRecent
	}

	posts, err := s.posts.ListPosts(ctx, repository.PostFilter{PublishedOnly: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing recent posts: %w", err)
	}
	return s.policy.ViewAll(posts, v), nil
}

// GetBySlug returns one post shaped for v.
//
// TWO KINDS OF "NO":
//   - Unpublished posts are invisible to non-admins: NotFound, as if the
//     slug did not exist.
//   - A premium post the viewer may not read comes back as a RedactedPost
//     TOGETHER WITH a SubscriptionRequired error. The handler answers 403
//     and still shows the teaser, so the client can render a "subscribe"
//     prompt instead of an error page.
func (s *BlogService) GetBySlug(ctx context.Context, v entitlement.Viewer, slug string) (entitlement.PostView, error) {
	post, err := s.posts.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished && !v.IsAdmin {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("post not found with slug %s", slug),
		}
	}

	view := s.policy.View(post, v)
	if _, locked := view.(entitlement.RedactedPost); locked {
		return view, apperror.SubscriptionRequired(s.lockedMessage(v))
	}
	return view, nil
}

func (s *BlogService) lockedMessage(v entitlement.Viewer) string {
	if !v.Authenticated() {
		return "Please sign in to read this premium article"
	}
	return "A premium subscription is required to read this article"
}

// AllPosts returns every post including drafts, for the admin dashboard.
func (s *BlogService) AllPosts(ctx context.Context) ([]model.BlogPost, error) {
	posts, err := s.posts.ListPosts(ctx, repository.PostFilter{})
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing all posts: %w", err)
	}
	return posts, nil
}

// Create validates in and stores a new post.
func (s *BlogService) Create(ctx context.Context, in PostInput) (*model.BlogPost, error) {
	post := &model.BlogPost{Tags: []string{}}
	if err := applyPostInput(post, in, true); err != nil {
		return nil, err
	}
	if post.ReadTimeMinutes == 0 {
		post.ReadTimeMinutes = EstimateReadTime(post.Content)
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/blog: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("slug", post.Slug),
		slog.Bool("premium", post.IsPremium),
	)
	return post, nil
}

// Update applies a partial update.
//
// SLUG IMMUTABILITY:
// Once a post has been published its slug is its public URL; links and
// likes point at it. Changing it is rejected. A draft may still be renamed.
func (s *BlogService) Update(ctx context.Context, id string, in PostInput) (*model.BlogPost, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasPublished := post.IsPublished
	if in.Slug != nil && *in.Slug != post.Slug && wasPublished {
		return nil, apperror.ValidationFailed("slug", "slug cannot be changed after the post is published")
	}

	contentChanged := in.Content != nil && *in.Content != post.Content
	if err := applyPostInput(post, in, false); err != nil {
		return nil, err
	}
	if in.ReadTime == nil && contentChanged {
		post.ReadTimeMinutes = EstimateReadTime(post.Content)
	}
	if !wasPublished && post.IsPublished && in.PublishedAt == nil {
		post.PublishedAt = s.now()
	}

	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/blog: updating post: %w", err)
	}

	s.logger.Info("post updated", slog.String("id", post.ID))
	return post, nil
}

func (s *BlogService) Delete(ctx context.Context, id string) error {
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("service/blog: deleting post: %w", err)
	}
	s.logger.Info("post deleted", slog.String("id", id))
	return nil
}

// applyPostInput copies supplied fields onto post and enforces the field
// rules. With create set, title, slug, content and category are required.
func applyPostInput(post *model.BlogPost, in PostInput, create bool) error {
	if create {
		switch {
		case in.Title == nil:
			return apperror.ValidationFailed("title", "title is required")
		case in.Slug == nil:
			return apperror.ValidationFailed("slug", "slug is required")
		case in.Content == nil:
			return apperror.ValidationFailed("content", "content is required")
		case in.Category == nil:
			return apperror.ValidationFailed("category", "category is required")
		}
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > MaxTitleLength {
			return apperror.ValidationFailed("title", fmt.Sprintf("title must be 1-%d characters", MaxTitleLength))
		}
		post.Title = title
	}
	if in.Slug != nil {
		if err := validateSlug(*in.Slug, "recent"); err != nil {
			return err
		}
		post.Slug = *in.Slug
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return apperror.ValidationFailed("content", "content must not be empty")
		}
		post.Content = *in.Content
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" || len(category) > MaxCategoryLength {
			return apperror.ValidationFailed("category", fmt.Sprintf("category must be 1-%d characters", MaxCategoryLength))
		}
		post.Category = category
	}
	if in.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*in.Excerpt)
	}
	if in.FeaturedImage != nil {
		post.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
	}
	if in.Tags != nil {
		post.Tags = cleanList(*in.Tags)
	}
	if in.IsPremium != nil {
		post.IsPremium = *in.IsPremium
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}
	if in.ReadTime != nil {
		if *in.ReadTime < 1 {
			return apperror.ValidationFailed("readTime", "readTime must be at least 1 minute")
		}
		post.ReadTimeMinutes = *in.ReadTime
	}
	if in.PublishedAt != nil {
		post.PublishedAt = in.PublishedAt.UTC()
	}
	return nil
}

// EstimateReadTime is ceil(words / 200), at least one minute.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	return max(minutes, 1)
}

// cleanList trims entries, drops empties and duplicates, keeps order.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
