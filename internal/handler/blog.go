package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// ViewerResolver turns the session's user ID into an entitlement viewer.
// service.AuthService implements it.
type ViewerResolver interface {
	Viewer(ctx context.Context, userID string) (entitlement.Viewer, error)
}

// BlogHandler serves the blog.
//
// HANDLER RESPONSIBILITIES:
//   - HandleList / HandleRecent / HandleGet → public reads, entitlement applied
//   - HandleCreate / HandleUpdate / HandleDelete → admin writes
//   - HandleAdminList → every post including drafts
//
// Reads run behind OptionalAuth: the user ID may or may not be in the
// context, and the viewer decides how much of a premium post comes back.
type BlogHandler struct {
	blog      *service.BlogService
	viewers   ViewerResolver
	validator *validate.Validator
	logger    *slog.Logger
}

func NewBlogHandler(blog *service.BlogService, viewers ViewerResolver, v *validate.Validator, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{blog: blog, viewers: viewers, validator: v, logger: logger}
}

// viewer resolves the caller. A lookup failure is logged and treated as
// anonymous: the caller still gets public content, never more.
func (h *BlogHandler) viewer(r *http.Request) entitlement.Viewer {
	userID, _ := auth.UserIDFromContext(r.Context())
	v, err := h.viewers.Viewer(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolving viewer failed", slog.String("userID", userID), slog.String("error", err.Error()))
		return entitlement.Anonymous
	}
	return v
}

// HandleList returns published posts.
//
// HTTP: GET /api/blog?category=MEL&search=indicators&premium=true
func (h *BlogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := h.blog.List(r.Context(), h.viewer(r), service.PostQuery{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Premium:  queryBool(r, "premium"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleRecent returns the newest published posts.
//
// HTTP: GET /api/blog/recent?limit=3
func (h *BlogHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("limit", "limit must be an integer"))
			return
		}
		limit = n
	}

	posts, err := h.blog.Recent(r.Context(), h.viewer(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post by slug.
//
// HTTP: GET /api/blog/{slug}
//
// THREE OUTCOMES:
//   - 200 with content       → the viewer may read it
//   - 403 with the teaser    → premium post, viewer not entitled
//   - 404                    → no such slug, or a draft
func (h *BlogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "id")

	view, err := h.blog.GetBySlug(r.Context(), h.viewer(r), slug)
	if errors.Is(err, apperror.ErrSubscriptionRequired) {
		if teaser, ok := view.(entitlement.RedactedPost); ok {
			writeLocked(w, teaser, err)
			return
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCreate creates a post.
//
// HTTP: POST /api/blog (admin)
func (h *BlogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeBody(r, h.validator, validate.PostCreate, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.blog.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/blog/{id} (admin)
func (h *BlogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeBody(r, h.validator, validate.PostUpdate, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.blog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post with its likes and comments.
//
// HTTP: DELETE /api/blog/{id} (admin)
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.blog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdminList returns every post, drafts included, with full content.
//
// HTTP: GET /api/admin/blog (admin)
func (h *BlogHandler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blog.AllPosts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
