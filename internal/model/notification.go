package model

import "time"

type NotificationType string

const (
	NotifyPostLike              NotificationType = "post_like"
	NotifyPostComment           NotificationType = "post_comment"
	NotifyReportComment         NotificationType = "report_comment"
	NotifyCommentLike           NotificationType = "comment_like"
	NotifyCommentReply          NotificationType = "comment_reply"
	NotifyCommentMention        NotificationType = "comment_mention"
	NotifyCommentMentionReply   NotificationType = "comment_mention_reply"
	NotifyFriendRequest         NotificationType = "friend_request"
	NotifyFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotifyFoundPet              NotificationType = "found_pet"
	NotifyAdminReport           NotificationType = "admin_report"
	NotifyNewMessage            NotificationType = "new_message"
)

// Notification — запись в коллекции notifications. После создания меняется только Read.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}
