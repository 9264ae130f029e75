// Package entitlement decides what part of a blog post a caller may see.
//
// It is pure: no storage, no HTTP. Handlers resolve the caller into a
// Viewer, the service loads the post, and Policy.View turns the pair into
// either a FullPost or a RedactedPost. Those two types are the only shapes a
// post leaves the API in, so a premium body cannot reach a caller by way of
// a forgotten field.
package entitlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/portfolio/internal/model"
)

// Viewer is the caller as far as entitlement cares.
// The zero value is an anonymous visitor.
type Viewer struct {
	UserID    string
	IsPremium bool
	IsAdmin   bool
}

// Anonymous is the viewer used when no valid session is present.
var Anonymous = Viewer{}

func (v Viewer) Authenticated() bool {
	return v.UserID != ""
}

// Policy selects the rule applied to premium posts.
type Policy int

const (
	// RequireAuthentication unlocks premium content for any signed-in user.
	RequireAuthentication Policy = iota
	// RequirePremium unlocks premium content only for paying users.
	RequirePremium
)

// ParsePolicy maps the PREMIUM_POLICY setting to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "authenticated":
		return RequireAuthentication, nil
	case "premium":
		return RequirePremium, nil
	default:
		return 0, fmt.Errorf("entitlement: unknown policy %q (want authenticated or premium)", s)
	}
}

func (p Policy) String() string {
	if p == RequirePremium {
		return "premium"
	}
	return "authenticated"
}

// Decision is the outcome for one (post, viewer) pair.
type Decision int

const (
	Full Decision = iota
	Teaser
)

// Decide returns Full for free posts and for callers the policy admits.
// Admins always get Full so they can review what they publish.
func (p Policy) Decide(post *model.BlogPost, v Viewer) Decision {
	if !post.IsPremium || v.IsAdmin {
		return Full
	}
	if !v.Authenticated() {
		return Teaser
	}
	if p == RequirePremium && !v.IsPremium {
		return Teaser
	}
	return Full
}

// PostView is implemented by FullPost and RedactedPost only.
type PostView interface {
	Summary() PostSummary
	isPostView()
}

// PostSummary is every public field of a post except the body.
type PostSummary struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Excerpt         string    `json:"excerpt"`
	FeaturedImage   string    `json:"featuredImage"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	IsPremium       bool      `json:"isPremium"`
	IsPublished     bool      `json:"isPublished"`
	ReadTimeMinutes int       `json:"readTime"`
	PublishedAt     time.Time `json:"publishedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FullPost carries the body.
type FullPost struct {
	PostSummary
	Content string `json:"content"`
}

// RedactedPost has no content field at all; Locked tells the client why.
type RedactedPost struct {
	PostSummary
	Locked bool `json:"locked"`
}

func (f FullPost) Summary() PostSummary     { return f.PostSummary }
func (r RedactedPost) Summary() PostSummary { return r.PostSummary }
func (FullPost) isPostView()                {}
func (RedactedPost) isPostView()            {}

// View applies Decide and builds the matching variant.
func (p Policy) View(post *model.BlogPost, v Viewer) PostView {
	summary := Summarize(post)
	if p.Decide(post, v) == Full {
		return FullPost{PostSummary: summary, Content: post.Content}
	}
	return RedactedPost{PostSummary: summary, Locked: true}
}

// ViewAll applies View to every post, preserving order.
func (p Policy) ViewAll(posts []model.BlogPost, v Viewer) []PostView {
	views := make([]PostView, 0, len(posts))
	for i := range posts {
		views = append(views, p.View(&posts[i], v))
	}
	return views
}

func Summarize(post *model.BlogPost) PostSummary {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostSummary{
		ID:              post.ID,
		Slug:            post.Slug,
		Title:           post.Title,
		Excerpt:         post.Excerpt,
		FeaturedImage:   post.FeaturedImage,
		Category:        post.Category,
		Tags:            tags,
		IsPremium:       post.IsPremium,
		IsPublished:     post.IsPublished,
		ReadTimeMinutes: post.ReadTimeMinutes,
		PublishedAt:     post.PublishedAt,
		CreatedAt:       post.CreatedAt,
		UpdatedAt:       post.UpdatedAt,
	}
}
