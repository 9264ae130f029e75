package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/payment"
	"github.com/sakif/portfolio/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements every repository interface with plain maps, the way
// sqlstore.DB implements them with SQL. Service tests exercise business
// rules against it without a database.
//
// Each test gets its own store. Set failWith to make every call fail, to
// check that services wrap and propagate store errors.

type memStore struct {
	mu sync.Mutex

	users       map[string]*model.User
	posts       map[string]*model.BlogPost
	projects    map[string]*model.PortfolioProject
	subscribers map[string]*model.NewsletterSubscriber // keyed by email
	contacts    map[string]*model.ContactRequest
	likes       map[[2]string]bool // (postID, userID)
	comments    map[string]*model.BlogComment
	events      map[string]bool

	nextID   int
	clock    time.Time
	failWith error
}

var (
	_ repository.UserRepository         = (*memStore)(nil)
	_ repository.SubscriptionRepository = (*memStore)(nil)
	_ repository.PostRepository         = (*memStore)(nil)
	_ repository.ProjectRepository      = (*memStore)(nil)
	_ repository.SubscriberRepository   = (*memStore)(nil)
	_ repository.ContactRepository      = (*memStore)(nil)
	_ repository.LikeRepository         = (*memStore)(nil)
	_ repository.CommentRepository      = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*model.User{},
		posts:       map[string]*model.BlogPost{},
		projects:    map[string]*model.PortfolioProject{},
		subscribers: map[string]*model.NewsletterSubscriber{},
		contacts:    map[string]*model.ContactRequest{},
		likes:       map[[2]string]bool{},
		comments:    map[string]*model.BlogComment{},
		events:      map[string]bool{},
		clock:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// id returns "<prefix>-N" and advances a fake clock by one second, so
// "newest first" orderings are deterministic.
func (m *memStore) id(prefix string) (string, time.Time) {
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	return fmt.Sprintf("%s-%d", prefix, m.nextID), m.clock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- users ---------------------------------------------------------------

func (m *memStore) UpsertUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, u := range m.users {
		if u.Subject == user.Subject {
			u.Email, u.FirstName, u.LastName, u.ProfileImageURL = user.Email, user.FirstName, user.LastName, user.ProfileImageURL
			u.IsAdmin = u.IsAdmin || user.IsAdmin
			*user = *u
			return nil
		}
	}
	id, ts := m.id("user")
	stored := *user
	stored.ID, stored.CreatedAt, stored.UpdatedAt = id, ts, ts
	m.users[id] = &stored
	*user = stored
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) UpdateProfile(_ context.Context, id, first, last, img string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	u.FirstName, u.LastName, u.ProfileImageURL = first, last, img
	cp := *u
	return &cp, nil
}

func (m *memStore) SetAdmin(_ context.Context, id string, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.IsAdmin = admin
	return nil
}

func (m *memStore) CountUsers(_ context.Context) (repository.UserCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c repository.UserCounts
	for _, u := range m.users {
		c.Total++
		if u.IsPremium {
			c.Premium++
		}
	}
	return c, nil
}

func (m *memStore) ApplyPremium(_ context.Context, g repository.PremiumGrant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	if m.events[g.EventID] {
		return false, nil
	}
	u, ok := m.users[g.UserID]
	if !ok {
		return false, apperror.NotFound("user", g.UserID)
	}
	m.events[g.EventID] = true
	u.IsPremium = true
	u.SubscriptionRef = g.SubscriptionRef
	return true, nil
}

// ---- posts ---------------------------------------------------------------

func (m *memStore) CreatePost(_ context.Context, post *model.BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, p := range m.posts {
		if p.Slug == post.Slug {
			return apperror.Conflict(fmt.Sprintf("a post with slug %q already exists", post.Slug))
		}
	}
	id, ts := m.id("post")
	post.ID, post.CreatedAt, post.UpdatedAt = id, ts, ts
	if post.PublishedAt.IsZero() {
		post.PublishedAt = ts
	}
	cp := *post
	m.posts[id] = &cp
	return nil
}

func (m *memStore) GetPostByID(_ context.Context, id string) (*model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPostBySlug(_ context.Context, slug string) (*model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, p := range m.posts {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("post", slug)
}

func (m *memStore) ListPosts(_ context.Context, f repository.PostFilter) ([]model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.BlogPost{}
	for _, p := range m.posts {
		if f.PublishedOnly && !p.IsPublished {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Premium != nil && p.IsPremium != *f.Premium {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) UpdatePost(_ context.Context, post *model.BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) CountPosts(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return len(m.posts), nil
}

// ---- projects ------------------------------------------------------------

func (m *memStore) CreateProject(_ context.Context, p *model.PortfolioProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.Slug == p.Slug {
			return apperror.Conflict("duplicate slug")
		}
	}
	id, ts := m.id("project")
	p.ID, p.CreatedAt, p.UpdatedAt = id, ts, ts
	cp := *p
	m.projects[id] = &cp
	return nil
}

func (m *memStore) GetProjectByID(_ context.Context, id string) (*model.PortfolioProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProjectBySlug(_ context.Context, slug string) (*model.PortfolioProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("project", slug)
}

func (m *memStore) ListProjects(_ context.Context, f repository.ProjectFilter) ([]model.PortfolioProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PortfolioProject{}
	for _, p := range m.projects {
		if f.Featured != nil && p.Featured != *f.Featured {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) UpdateProject(_ context.Context, p *model.PortfolioProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return apperror.NotFound("project", p.ID)
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(m.projects, id)
	return nil
}

// ---- newsletter ----------------------------------------------------------

func (m *memStore) CreateSubscriber(_ context.Context, sub *model.NewsletterSubscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[sub.Email]; ok {
		return apperror.Conflict("Already subscribed")
	}
	id, ts := m.id("sub")
	sub.ID, sub.SubscribedAt, sub.IsActive = id, ts, true
	cp := *sub
	m.subscribers[sub.Email] = &cp
	return nil
}

func (m *memStore) GetSubscriberByEmail(_ context.Context, email string) (*model.NewsletterSubscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	s, ok := m.subscribers[email]
	if !ok {
		return nil, apperror.NotFound("subscriber", email)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SetSubscriberActive(_ context.Context, email string, active bool, at time.Time) (*model.NewsletterSubscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[email]
	if !ok {
		return nil, apperror.NotFound("subscriber", email)
	}
	s.IsActive = active
	if active {
		s.SubscribedAt, s.UnsubscribedAt = at, nil
	} else {
		t := at
		s.UnsubscribedAt = &t
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSubscribers(_ context.Context, activeOnly bool) ([]model.NewsletterSubscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.NewsletterSubscriber{}
	for _, s := range m.subscribers {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CountSubscribers(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, s := range m.subscribers {
		if s.IsActive {
			active++
		}
	}
	return len(m.subscribers), active, nil
}

// ---- contacts ------------------------------------------------------------

func (m *memStore) CreateContact(_ context.Context, c *model.ContactRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	id, ts := m.id("contact")
	c.ID, c.CreatedAt, c.IsRead = id, ts, false
	cp := *c
	m.contacts[id] = &cp
	return nil
}

func (m *memStore) ListContacts(_ context.Context) ([]model.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ContactRequest{}
	for _, c := range m.contacts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) SetContactRead(_ context.Context, id string, read bool) (*model.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, apperror.NotFound("contact request", id)
	}
	c.IsRead = read
	cp := *c
	return &cp, nil
}

func (m *memStore) CountContacts(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unread := 0
	for _, c := range m.contacts {
		if !c.IsRead {
			unread++
		}
	}
	return len(m.contacts), unread, nil
}

// ---- likes ---------------------------------------------------------------

func (m *memStore) CountLikes(_ context.Context, postID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.likes {
		if k[0] == postID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) HasLiked(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[[2]string{postID, userID}], nil
}

func (m *memStore) ToggleLike(_ context.Context, postID, userID string) (model.LikeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{postID, userID}
	if m.likes[key] {
		delete(m.likes, key)
	} else {
		m.likes[key] = true
	}
	n := 0
	for k := range m.likes {
		if k[0] == postID {
			n++
		}
	}
	return model.LikeState{Count: n, IsLiked: m.likes[key]}, nil
}

// ---- comments ------------------------------------------------------------

func (m *memStore) CreateComment(_ context.Context, c *model.BlogComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ts := m.id("comment")
	c.ID, c.CreatedAt, c.UpdatedAt = id, ts, ts
	cp := *c
	m.comments[id] = &cp
	return nil
}

func (m *memStore) GetComment(_ context.Context, id string) (*model.BlogComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListComments(_ context.Context, postID string) ([]model.CommentWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CommentWithAuthor{}
	for _, c := range m.comments {
		if c.PostID != postID {
			continue
		}
		item := model.CommentWithAuthor{BlogComment: *c}
		if u, ok := m.users[c.UserID]; ok {
			item.User = model.Author{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) DeleteComment(_ context.Context, id, authorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.UserID != authorID {
		return apperror.NotFound("comment", id)
	}
	delete(m.comments, id)
	for cid, other := range m.comments {
		if other.ParentID != nil && *other.ParentID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

// =========================================================================
// FAKE PAYMENT PROCESSOR
// =========================================================================

// fakeProcessor accepts any payload whose signature equals "valid" and
// returns the event queued in next.
type fakeProcessor struct {
	configured bool
	next       *payment.Event
	createErr  error
	created    []string // user IDs intents were created for
}

var _ payment.Processor = (*fakeProcessor)(nil)

func (f *fakeProcessor) Configured() bool       { return f.configured }
func (f *fakeProcessor) PublishableKey() string { return "pk_test" }
func (f *fakeProcessor) Price() payment.Price {
	return payment.Price{AmountCents: 900, Currency: "usd"}
}

func (f *fakeProcessor) CreatePremiumIntent(_ context.Context, userID, _ string) (*payment.Intent, error) {
	if !f.configured {
		return nil, payment.ErrNotConfigured
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, userID)
	return &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 900, Currency: "usd"}, nil
}

func (f *fakeProcessor) VerifyEvent(_ []byte, sig string) (*payment.Event, error) {
	if !f.configured {
		return nil, payment.ErrNotConfigured
	}
	if sig != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	if f.next == nil {
		return nil, payment.ErrMalformedEvent
	}
	return f.next, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func ptr[T any](v T) *T { return &v }

// assertErrIs fails unless err wraps target.
func assertErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// seedUser stores a user directly and returns it.
func seedUser(t *testing.T, m *memStore, subject string, premium, admin bool) *model.User {
	t.Helper()
	u := &model.User{Subject: subject, Email: subject + "@example.com", FirstName: strings.ToUpper(subject[:1]) + subject[1:]}
	if err := m.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	m.users[u.ID].IsPremium = premium
	m.users[u.ID].IsAdmin = admin
	u.IsPremium, u.IsAdmin = premium, admin
	return u
}

// seedPost stores a published post directly and returns it.
func seedPost(t *testing.T, m *memStore, slug string, premium bool) *model.BlogPost {
	t.Helper()
	p := &model.BlogPost{
		Slug: slug, Title: slug, Excerpt: "teaser", Content: "SECRET",
		Category: model.CategoryMEL, IsPremium: premium, IsPublished: true, ReadTimeMinutes: 1,
	}
	if err := m.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("seedPost: %v", err)
	}
	return p
}

func longString(n int) string { return strings.Repeat("x", n) }
