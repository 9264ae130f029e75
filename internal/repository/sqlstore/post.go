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

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, slug, title, excerpt, content, featured_image, category, tags,
	is_premium, is_published, read_time_minutes, published_at, created_at, updated_at`

func scanPost(row scanner) (*model.BlogPost, error) {
	var (
		p    model.BlogPost
		tags string
	)
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.FeaturedImage, &p.Category, &tags,
		&p.IsPremium, &p.IsPublished, &p.ReadTimeMinutes, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Tags = decodeList(tags)
	return &p, nil
}

// CreatePost assigns ID and timestamps. PublishedAt defaults to creation
// time when the caller leaves it zero.
func (db *DB) CreatePost(ctx context.Context, post *model.BlogPost) error {
	ts := now()
	post.ID = xid.New().String()
	post.CreatedAt = ts
	post.UpdatedAt = ts
	if post.PublishedAt.IsZero() {
		post.PublishedAt = ts
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO blog_posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		post.ID, post.Slug, post.Title, post.Excerpt, post.Content, post.FeaturedImage, post.Category,
		encodeList(post.Tags), post.IsPremium, post.IsPublished, post.ReadTimeMinutes,
		post.PublishedAt.UTC(), post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("a post with slug %q already exists", post.Slug))
		}
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

func (db *DB) GetPostByID(ctx context.Context, id string) (*model.BlogPost, error) {
	p, err := scanPost(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+postColumns+` FROM blog_posts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting post %s: %w", id, err)
	}
	return p, nil
}

func (db *DB) GetPostBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	p, err := scanPost(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+postColumns+` FROM blog_posts WHERE slug = ?`), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("post not found with slug %s", slug),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("getting post %s: %w", slug, err)
	}
	return p, nil
}

// ListPosts returns posts newest first. Search matches title, excerpt and
// tags case-insensitively.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.BlogPost, error) {
	var (
		where []string
		args  []any
	)
	if filter.PublishedOnly {
		where = append(where, "is_published = ?")
		args = append(args, true)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Premium != nil {
		where = append(where, "is_premium = ?")
		args = append(args, *filter.Premium)
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(excerpt) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + postColumns + ` FROM blog_posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY published_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.BlogPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	return posts, nil
}

// UpdatePost writes every mutable column and bumps UpdatedAt.
func (db *DB) UpdatePost(ctx context.Context, post *model.BlogPost) error {
	post.UpdatedAt = now()
	if post.Tags == nil {
		post.Tags = []string{}
	}

	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE blog_posts SET slug = ?, title = ?, excerpt = ?, content = ?, featured_image = ?,
			category = ?, tags = ?, is_premium = ?, is_published = ?, read_time_minutes = ?,
			published_at = ?, updated_at = ?
		WHERE id = ?`),
		post.Slug, post.Title, post.Excerpt, post.Content, post.FeaturedImage,
		post.Category, encodeList(post.Tags), post.IsPremium, post.IsPublished, post.ReadTimeMinutes,
		post.PublishedAt.UTC(), post.UpdatedAt, post.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("a post with slug %q already exists", post.Slug))
		}
		return fmt.Errorf("updating post %s: %w", post.ID, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes the post; its likes and comments go with it through
// ON DELETE CASCADE.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM blog_posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

func (db *DB) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}
