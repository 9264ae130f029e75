package model

import "time"

// LikeState is what the likes endpoints return.
type LikeState struct {
	Count   int  `json:"count"`
	IsLiked bool `json:"isLiked"`
}

// BlogComment is a comment on a post. ParentID, when set, points to another
// comment on the same post.
type BlogComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	ParentID  *string   `json:"parentId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentWithAuthor is a comment joined with its author's public fields.
type CommentWithAuthor struct {
	BlogComment
	User Author `json:"user"`
}
