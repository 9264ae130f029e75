package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

// ProjectInput is the body of a project create or partial update.
type ProjectInput struct {
	Title         *string   `json:"title"`
	Slug          *string   `json:"slug"`
	Description   *string   `json:"description"`
	Challenge     *string   `json:"challenge"`
	Solution      *string   `json:"solution"`
	Outcome       *string   `json:"outcome"`
	Category      *string   `json:"category"`
	TechStack     *[]string `json:"techStack"`
	FeaturedImage *string   `json:"featuredImage"`
	Images        *[]string `json:"images"`
	LiveURL       *string   `json:"liveUrl"`
	SourceURL     *string   `json:"githubUrl"`
	Featured      *bool     `json:"featured"`
	SortOrder     *int      `json:"order"`
}

// ProjectQuery holds the public list filters.
type ProjectQuery struct {
	Category string
	Search   string
	Featured *bool
}

// PortfolioService handles case studies. Projects are public; only writes
// are restricted, and that happens in the router.
type PortfolioService struct {
	projects repository.ProjectRepository
	logger   *slog.Logger
}

func NewPortfolioService(projects repository.ProjectRepository, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{projects: projects, logger: logger}
}

func (s *PortfolioService) List(ctx context.Context, q ProjectQuery) ([]model.PortfolioProject, error) {
	projects, err := s.projects.ListProjects(ctx, repository.ProjectFilter{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Featured: q.Featured,
	})
	if err != nil {
		return nil, fmt.Errorf("service/portfolio: listing projects: %w", err)
	}
	return projects, nil
}

// Featured returns the projects flagged for the home page.
func (s *PortfolioService) Featured(ctx context.Context) ([]model.PortfolioProject, error) {
	featured := true
	return s.List(ctx, ProjectQuery{Featured: &featured})
}

func (s *PortfolioService) GetBySlug(ctx context.Context, slug string) (*model.PortfolioProject, error) {
	return s.projects.GetProjectBySlug(ctx, slug)
}

func (s *PortfolioService) Create(ctx context.Context, in ProjectInput) (*model.PortfolioProject, error) {
	project := &model.PortfolioProject{TechStack: []string{}, Images: []string{}}
	if err := applyProjectInput(project, in, true); err != nil {
		return nil, err
	}

	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/portfolio: creating project: %w", err)
	}
	s.logger.Info("project created", slog.String("id", project.ID), slog.String("slug", project.Slug))
	return project, nil
}

func (s *PortfolioService) Update(ctx context.Context, id string, in ProjectInput) (*model.PortfolioProject, error) {
	project, err := s.projects.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProjectInput(project, in, false); err != nil {
		return nil, err
	}

	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/portfolio: updating project: %w", err)
	}
	s.logger.Info("project updated", slog.String("id", project.ID))
	return project, nil
}

func (s *PortfolioService) Delete(ctx context.Context, id string) error {
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("service/portfolio: deleting project: %w", err)
	}
	s.logger.Info("project deleted", slog.String("id", id))
	return nil
}

func applyProjectInput(p *model.PortfolioProject, in ProjectInput, create bool) error {
	if create {
		switch {
		case in.Title == nil:
			return apperror.ValidationFailed("title", "title is required")
		case in.Slug == nil:
			return apperror.ValidationFailed("slug", "slug is required")
		case in.Description == nil:
			return apperror.ValidationFailed("description", "description is required")
		case in.Category == nil:
			return apperror.ValidationFailed("category", "category is required")
		}
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > MaxTitleLength {
			return apperror.ValidationFailed("title", fmt.Sprintf("title must be 1-%d characters", MaxTitleLength))
		}
		p.Title = title
	}
	if in.Slug != nil {
		if err := validateSlug(*in.Slug, "featured"); err != nil {
			return err
		}
		p.Slug = *in.Slug
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			return apperror.ValidationFailed("description", "description must not be empty")
		}
		p.Description = desc
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" || len(category) > MaxCategoryLength {
			return apperror.ValidationFailed("category", fmt.Sprintf("category must be 1-%d characters", MaxCategoryLength))
		}
		p.Category = category
	}
	if in.SortOrder != nil {
		if *in.SortOrder < 0 {
			return apperror.ValidationFailed("order", "order must not be negative")
		}
		p.SortOrder = *in.SortOrder
	}

	setString(&p.Challenge, in.Challenge)
	setString(&p.Solution, in.Solution)
	setString(&p.Outcome, in.Outcome)
	setString(&p.FeaturedImage, in.FeaturedImage)
	setString(&p.LiveURL, in.LiveURL)
	setString(&p.SourceURL, in.SourceURL)
	if in.TechStack != nil {
		p.TechStack = cleanList(*in.TechStack)
	}
	if in.Images != nil {
		p.Images = cleanList(*in.Images)
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
