package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// PortfolioHandler serves case studies. Reads are public; writes sit
// behind RequireAdmin in the router.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
	validator *validate.Validator
	logger    *slog.Logger
}

func NewPortfolioHandler(portfolio *service.PortfolioService, v *validate.Validator, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, validator: v, logger: logger}
}

// HandleList: GET /api/portfolio?category=&search=&featured=
func (h *PortfolioHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projects, err := h.portfolio.List(r.Context(), service.ProjectQuery{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Featured: queryBool(r, "featured"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleFeatured: GET /api/portfolio/featured
func (h *PortfolioHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	projects, err := h.portfolio.Featured(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleGet: GET /api/portfolio/{slug}
func (h *PortfolioHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.portfolio.GetBySlug(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *PortfolioHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeBody(r, h.validator, validate.ProjectCreate, &in); err != nil {
		writeError(w, err)
		return
	}
	project, err := h.portfolio.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *PortfolioHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeBody(r, h.validator, validate.ProjectUpdate, &in); err != nil {
		writeError(w, err)
		return
	}
	project, err := h.portfolio.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *PortfolioHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.portfolio.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
