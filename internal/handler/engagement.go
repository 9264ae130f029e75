package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// EngagementHandler serves likes and comments. The {id} in these routes is
// the post's ID, except for comment deletion where it is the comment's.
type EngagementHandler struct {
	engagement *service.EngagementService
	validator  *validate.Validator
	logger     *slog.Logger
}

func NewEngagementHandler(engagement *service.EngagementService, v *validate.Validator, logger *slog.Logger) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, validator: v, logger: logger}
}

type commentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// HandleLikes: GET /api/blog/{id}/likes → {"count": 3, "isLiked": false}
// isLiked is always false for anonymous callers.
func (h *EngagementHandler) HandleLikes(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	state, err := h.engagement.Likes(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleToggleLike: POST /api/blog/{id}/likes/toggle
// Returns the state after the toggle, read in the same transaction.
func (h *EngagementHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	state, err := h.engagement.ToggleLike(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleComments: GET /api/blog/{id}/comments, newest first.
func (h *EngagementHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.engagement.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandlePostComment: POST /api/blog/{id}/comments
// Body: {"content": "...", "parentId": "optional comment id"}
func (h *EngagementHandler) HandlePostComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, h.validator, validate.Comment, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	comment, err := h.engagement.PostComment(r.Context(), chi.URLParam(r, "id"), userID, req.Content, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleDeleteComment: DELETE /api/blog/comments/{id}, author only.
func (h *EngagementHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.engagement.DeleteComment(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
