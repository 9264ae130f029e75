package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

const projectColumns = `id, slug, title, description, challenge, solution, outcome, category,
	tech_stack, featured_image, images, live_url, source_url, featured, sort_order, created_at, updated_at`

func scanProject(row scanner) (*model.PortfolioProject, error) {
	var (
		p         model.PortfolioProject
		techStack string
		images    string
	)
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Description, &p.Challenge, &p.Solution, &p.Outcome, &p.Category,
		&techStack, &p.FeaturedImage, &images, &p.LiveURL, &p.SourceURL, &p.Featured, &p.SortOrder,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TechStack = decodeList(techStack)
	p.Images = decodeList(images)
	return &p, nil
}

func (db *DB) CreateProject(ctx context.Context, project *model.PortfolioProject) error {
	ts := now()
	project.ID = xid.New().String()
	project.CreatedAt = ts
	project.UpdatedAt = ts
	if project.TechStack == nil {
		project.TechStack = []string{}
	}
	if project.Images == nil {
		project.Images = []string{}
	}

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO portfolio_projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		project.ID, project.Slug, project.Title, project.Description, project.Challenge,
		project.Solution, project.Outcome, project.Category, encodeList(project.TechStack),
		project.FeaturedImage, encodeList(project.Images), project.LiveURL, project.SourceURL,
		project.Featured, project.SortOrder, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("a project with slug %q already exists", project.Slug))
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (db *DB) GetProjectByID(ctx context.Context, id string) (*model.PortfolioProject, error) {
	p, err := scanProject(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+projectColumns+` FROM portfolio_projects WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	return p, nil
}

func (db *DB) GetProjectBySlug(ctx context.Context, slug string) (*model.PortfolioProject, error) {
	p, err := scanProject(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+projectColumns+` FROM portfolio_projects WHERE slug = ?`), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("project not found with slug %s", slug),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", slug, err)
	}
	return p, nil
}

// ListProjects orders featured projects first, then by the curated
// sort_order, then newest.
func (db *DB) ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]model.PortfolioProject, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Featured != nil {
		where = append(where, "featured = ?")
		args = append(args, *filter.Featured)
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(tech_stack) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + projectColumns + ` FROM portfolio_projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY featured DESC, sort_order ASC, created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []model.PortfolioProject{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

func (db *DB) UpdateProject(ctx context.Context, project *model.PortfolioProject) error {
	project.UpdatedAt = now()

	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE portfolio_projects SET slug = ?, title = ?, description = ?, challenge = ?, solution = ?,
			outcome = ?, category = ?, tech_stack = ?, featured_image = ?, images = ?, live_url = ?,
			source_url = ?, featured = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`),
		project.Slug, project.Title, project.Description, project.Challenge, project.Solution,
		project.Outcome, project.Category, encodeList(project.TechStack), project.FeaturedImage,
		encodeList(project.Images), project.LiveURL, project.SourceURL, project.Featured,
		project.SortOrder, project.UpdatedAt, project.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("a project with slug %q already exists", project.Slug))
		}
		return fmt.Errorf("updating project %s: %w", project.ID, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("project", project.ID)
	}
	return nil
}

func (db *DB) DeleteProject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM portfolio_projects WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("project", id)
	}
	return nil
}
