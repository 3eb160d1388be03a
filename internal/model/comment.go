package model

import (
	"slices"
	"time"
)

// CommentTarget — к чему относится комментарий: пост или объявление.
type CommentTarget string

const (
	TargetPost   CommentTarget = "posts"
	TargetReport CommentTarget = "reports"
)

// Valid сообщает, известен ли тип контейнера.
func (t CommentTarget) Valid() bool {
	return t == TargetPost || t == TargetReport
}

// Comment — комментарий или ответ (post_comments / report_comments).
// ParentCommentID пустой у комментариев верхнего уровня.
type Comment struct {
	ID              string     `json:"id"`
	PostID          string     `json:"postId,omitempty"`
	ReportID        string     `json:"reportId,omitempty"`
	ParentCommentID *string    `json:"parentCommentId"`
	UserID          string     `json:"userId"`
	UserName        string     `json:"userName"`
	Text            string     `json:"text"`
	Likes           []string   `json:"likes"`
	MentionedUsers  []string   `json:"mentionedUsers"`
	CreatedAt       time.Time  `json:"createdAt"`
	EditedAt        *time.Time `json:"editedAt,omitempty"`
}

// ContainerID возвращает id поста или объявления.
func (c *Comment) ContainerID() string {
	if c.PostID != "" {
		return c.PostID
	}
	return c.ReportID
}

// IsReply сообщает, является ли комментарий ответом.
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil && *c.ParentCommentID != ""
}

// LikedBy сообщает, поставил ли userID лайк.
func (c *Comment) LikedBy(userID string) bool {
	return slices.Contains(c.Likes, userID)
}

// CommentNode — узел дерева комментариев.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}
