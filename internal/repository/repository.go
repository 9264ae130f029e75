// Package repository declares the storage interfaces the service layer
// depends on. sqlstore implements all of them for SQLite and Postgres;
// service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/portfolio/internal/model"
)

// PostFilter narrows ListPosts. Zero values mean "no filter".
type PostFilter struct {
	PublishedOnly bool
	Category      string
	Search        string
	Premium       *bool
	Limit         int
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	Category string
	Search   string
	Featured *bool
}

// PremiumGrant is a verified payment event to apply to a user.
type PremiumGrant struct {
	EventID         string
	EventType       string
	UserID          string
	SubscriptionRef string
}

// UserCounts feeds the admin dashboard.
type UserCounts struct {
	Total   int
	Premium int
}

type UserRepository interface {
	// UpsertUser inserts or refreshes a user keyed by Subject. Profile fields
	// are overwritten; IsAdmin can be raised but never lowered here; IsPremium
	// and SubscriptionRef are left untouched. The stored row is copied back.
	UpsertUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, profileImageURL string) (*model.User, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	CountUsers(ctx context.Context) (UserCounts, error)
}

// SubscriptionRepository applies verified payment events.
type SubscriptionRepository interface {
	// ApplyPremium records the event and marks the user premium in one
	// transaction. It returns false without writing when the event ID was
	// already applied.
	ApplyPremium(ctx context.Context, grant PremiumGrant) (bool, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.BlogPost) error
	GetPostByID(ctx context.Context, id string) (*model.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.BlogPost, error)
	UpdatePost(ctx context.Context, post *model.BlogPost) error
	DeletePost(ctx context.Context, id string) error
	CountPosts(ctx context.Context) (int, error)
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.PortfolioProject) error
	GetProjectByID(ctx context.Context, id string) (*model.PortfolioProject, error)
	GetProjectBySlug(ctx context.Context, slug string) (*model.PortfolioProject, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.PortfolioProject, error)
	UpdateProject(ctx context.Context, project *model.PortfolioProject) error
	DeleteProject(ctx context.Context, id string) error
}

type SubscriberRepository interface {
	// CreateSubscriber returns an apperror.ErrConflict error when the email
	// already exists, including when a concurrent request won the race.
	CreateSubscriber(ctx context.Context, sub *model.NewsletterSubscriber) error
	GetSubscriberByEmail(ctx context.Context, email string) (*model.NewsletterSubscriber, error)
	SetSubscriberActive(ctx context.Context, email string, active bool, at time.Time) (*model.NewsletterSubscriber, error)
	ListSubscribers(ctx context.Context, activeOnly bool) ([]model.NewsletterSubscriber, error)
	CountSubscribers(ctx context.Context) (total, active int, err error)
}

type ContactRepository interface {
	CreateContact(ctx context.Context, req *model.ContactRequest) error
	ListContacts(ctx context.Context) ([]model.ContactRequest, error)
	SetContactRead(ctx context.Context, id string, read bool) (*model.ContactRequest, error)
	CountContacts(ctx context.Context) (total, unread int, err error)
}

type LikeRepository interface {
	CountLikes(ctx context.Context, postID string) (int, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	// ToggleLike flips the (post, user) like and returns the new state.
	ToggleLike(ctx context.Context, postID, userID string) (model.LikeState, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.BlogComment) error
	GetComment(ctx context.Context, id string) (*model.BlogComment, error)
	ListComments(ctx context.Context, postID string) ([]model.CommentWithAuthor, error)
	// DeleteComment removes the comment only if authorID wrote it. Replies
	// are removed with it.
	DeleteComment(ctx context.Context, id, authorID string) error
}
