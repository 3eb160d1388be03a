package repository

import (
	"errors"
	"fmt"

	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

var ErrNotFound = errors.New("not found")

// Имена коллекций — часть контракта с внешними триггерами, менять нельзя.
const (
	CollDirectChats    = "direct_chats"
	CollDirectMessages = "direct_messages"
	CollReportChats    = "report_chats"
	CollReportMessages = "report_messages"
	CollBlocks         = "blocks"
	CollFriends        = "friends"
	CollFriendRequests = "friend_requests"
	CollNotifications  = "notifications"
	CollPostComments   = "post_comments"
	CollReportComments = "report_comments"
	CollReports        = "stray_reports"
	CollUsers          = "users"
	CollPosts          = "posts"
	CollMessageReports = "message_reports"
)

// ThreadCollection возвращает коллекцию переписок данного типа.
func ThreadCollection(kind model.ChatKind) string {
	if kind == model.ChatReport {
		return CollReportChats
	}
	return CollDirectChats
}

// MessageCollection возвращает коллекцию сообщений данного типа.
func MessageCollection(kind model.ChatKind) string {
	if kind == model.ChatReport {
		return CollReportMessages
	}
	return CollDirectMessages
}

// CommentCollection возвращает коллекцию комментариев к постам или объявлениям.
func CommentCollection(target model.CommentTarget) string {
	if target == model.TargetReport {
		return CollReportComments
	}
	return CollPostComments
}

// wrap переводит storage.ErrNotFound в ErrNotFound, остальное оборачивает с именем операции.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func decodeAll[T any](docs []storage.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
