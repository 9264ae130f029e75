package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

var (
	_ repository.LikeRepository    = (*DB)(nil)
	_ repository.CommentRepository = (*DB)(nil)
)

// =========================================================================
// LIKES
// =========================================================================

func (db *DB) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT COUNT(*) FROM blog_likes WHERE post_id = ?`), postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting likes for %s: %w", postID, err)
	}
	return n, nil
}

func (db *DB) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT COUNT(*) FROM blog_likes WHERE post_id = ? AND user_id = ?`), postID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking like: %w", err)
	}
	return n > 0, nil
}

// ToggleLike flips a like inside one transaction.
//
// DELETE FIRST:
// Deleting the pair tells us in one statement whether the user had liked
// the post. If nothing was deleted we insert, and ON CONFLICT DO NOTHING
// covers a concurrent toggle that inserted first. The UNIQUE (post_id,
// user_id) constraint, not this code, is what guarantees a single row.
func (db *DB) ToggleLike(ctx context.Context, postID, userID string) (model.LikeState, error) {
	var state model.LikeState
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			db.rebind(`DELETE FROM blog_likes WHERE post_id = ? AND user_id = ?`), postID, userID)
		if err != nil {
			return fmt.Errorf("removing like: %w", err)
		}

		if rowsAffected(res) == 0 {
			_, err = tx.ExecContext(ctx, db.rebind(`
				INSERT INTO blog_likes (id, post_id, user_id, created_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (post_id, user_id) DO NOTHING`),
				xid.New().String(), postID, userID, now(),
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return apperror.NotFound("post", postID)
				}
				return fmt.Errorf("adding like: %w", err)
			}
			state.IsLiked = true
		}

		return tx.QueryRowContext(ctx,
			db.rebind(`SELECT COUNT(*) FROM blog_likes WHERE post_id = ?`), postID).Scan(&state.Count)
	})
	if err != nil {
		return model.LikeState{}, err
	}
	return state, nil
}

// =========================================================================
// COMMENTS
// =========================================================================

const commentColumns = `id, post_id, user_id, parent_id, content, created_at, updated_at`

func scanComment(row scanner) (*model.BlogComment, error) {
	var (
		c      model.BlogComment
		parent sql.NullString
	)
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &parent, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.String
		c.ParentID = &p
	}
	return &c, nil
}

func (db *DB) CreateComment(ctx context.Context, comment *model.BlogComment) error {
	ts := now()
	comment.ID = xid.New().String()
	comment.CreatedAt = ts
	comment.UpdatedAt = ts

	var parent sql.NullString
	if comment.ParentID != nil {
		parent = sql.NullString{String: *comment.ParentID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO blog_comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		comment.ID, comment.PostID, comment.UserID, parent, comment.Content, comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("post", comment.PostID)
		}
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.BlogComment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+commentColumns+` FROM blog_comments WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("comment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting comment %s: %w", id, err)
	}
	return c, nil
}

// ListComments returns a post's comments newest first, each joined with
// its author's public profile.
func (db *DB) ListComments(ctx context.Context, postID string) ([]model.CommentWithAuthor, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT c.id, c.post_id, c.user_id, c.parent_id, c.content, c.created_at, c.updated_at,
			u.id, u.first_name, u.last_name, u.profile_image_url
		FROM blog_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ?
		ORDER BY c.created_at DESC, c.id DESC`), postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments for %s: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.CommentWithAuthor{}
	for rows.Next() {
		var (
			c      model.CommentWithAuthor
			parent sql.NullString
		)
		err := rows.Scan(
			&c.ID, &c.PostID, &c.UserID, &parent, &c.Content, &c.CreatedAt, &c.UpdatedAt,
			&c.User.ID, &c.User.FirstName, &c.User.LastName, &c.User.ProfileImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if parent.Valid {
			p := parent.String
			c.ParentID = &p
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

// DeleteComment deletes only when authorID matches, so an authorization
// check done earlier cannot race with the delete. Replies cascade.
func (db *DB) DeleteComment(ctx context.Context, id, authorID string) error {
	res, err := db.conn.ExecContext(ctx,
		db.rebind(`DELETE FROM blog_comments WHERE id = ? AND user_id = ?`), id, authorID)
	if err != nil {
		return fmt.Errorf("deleting comment %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}
