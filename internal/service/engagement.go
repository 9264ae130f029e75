package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

const MaxCommentLength = 2000

// EngagementService handles likes and comments on blog posts.
//
// WHO ENFORCES WHAT:
//   - "one like per user per post" is the UNIQUE constraint in the store;
//     the service never counts rows to decide anything.
//   - "only the author deletes" is checked here for a clear 403, and the
//     store's DELETE is filtered by author as well.
//   - "a reply belongs to the same post" is checked here; the store cannot
//     express it as a constraint.
type EngagementService struct {
	posts    repository.PostRepository
	likes    repository.LikeRepository
	comments repository.CommentRepository
	logger   *slog.Logger
}

func NewEngagementService(
	posts repository.PostRepository,
	likes repository.LikeRepository,
	comments repository.CommentRepository,
	logger *slog.Logger,
) *EngagementService {
	return &EngagementService{posts: posts, likes: likes, comments: comments, logger: logger}
}

// Likes returns the count and whether userID (may be empty) liked the post.
func (s *EngagementService) Likes(ctx context.Context, postID, userID string) (model.LikeState, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return model.LikeState{}, err
	}

	count, err := s.likes.CountLikes(ctx, postID)
	if err != nil {
		return model.LikeState{}, fmt.Errorf("service/engagement: counting likes: %w", err)
	}
	state := model.LikeState{Count: count}
	if userID == "" {
		return state, nil
	}

	state.IsLiked, err = s.likes.HasLiked(ctx, postID, userID)
	if err != nil {
		return model.LikeState{}, fmt.Errorf("service/engagement: checking like: %w", err)
	}
	return state, nil
}

// ToggleLike flips the like and returns the state after the flip.
func (s *EngagementService) ToggleLike(ctx context.Context, postID, userID string) (model.LikeState, error) {
	if userID == "" {
		return model.LikeState{}, apperror.Unauthorized("sign in to like posts")
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return model.LikeState{}, err
	}

	state, err := s.likes.ToggleLike(ctx, postID, userID)
	if err != nil {
		return model.LikeState{}, fmt.Errorf("service/engagement: toggling like: %w", err)
	}

	s.logger.Info("like toggled",
		slog.String("postID", postID),
		slog.String("userID", userID),
		slog.Bool("liked", state.IsLiked),
	)
	return state, nil
}

// Comments lists a post's comments newest first. There is no pagination.
func (s *EngagementService) Comments(ctx context.Context, postID string) ([]model.CommentWithAuthor, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/engagement: listing comments: %w", err)
	}
	return comments, nil
}

// PostComment adds a comment or a reply.
func (s *EngagementService) PostComment(ctx context.Context, postID, userID, content string, parentID *string) (*model.BlogComment, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("sign in to comment")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment must not be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content", fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}

	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		parent, err := s.comments.GetComment(ctx, *parentID)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("parentId", "parent comment does not exist")
		}
		if err != nil {
			return nil, fmt.Errorf("service/engagement: loading parent comment: %w", err)
		}
		if parent.PostID != postID {
			return nil, apperror.ValidationFailed("parentId", "parent comment belongs to a different post")
		}
	}

	comment := &model.BlogComment{
		PostID:   postID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/engagement: creating comment: %w", err)
	}

	s.logger.Info("comment posted",
		slog.String("commentID", comment.ID),
		slog.String("postID", postID),
		slog.String("userID", userID),
	)
	return comment, nil
}

// DeleteComment removes a comment written by userID, and its replies.
func (s *EngagementService) DeleteComment(ctx context.Context, commentID, userID string) error {
	if userID == "" {
		return apperror.Unauthorized("sign in to delete comments")
	}

	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return apperror.Forbidden("you can only delete your own comments")
	}

	if err := s.comments.DeleteComment(ctx, commentID, userID); err != nil {
		return fmt.Errorf("service/engagement: deleting comment: %w", err)
	}
	s.logger.Info("comment deleted", slog.String("commentID", commentID), slog.String("userID", userID))
	return nil
}

// requirePost returns NotFound for missing and unpublished posts, so drafts
// collect no likes or comments.
func (s *EngagementService) requirePost(ctx context.Context, postID string) error {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if !post.IsPublished {
		return apperror.NotFound("post", postID)
	}
	return nil
}
