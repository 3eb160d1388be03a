package model

import (
	"slices"
	"time"
)

// ChatKind — тип переписки: личная (между друзьями) или привязанная к объявлению.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatReport ChatKind = "report"
)

// Valid сообщает, известен ли тип чата.
func (k ChatKind) Valid() bool {
	return k == ChatDirect || k == ChatReport
}

// ThreadView — режим списка чатов.
type ThreadView string

const (
	ViewActive   ThreadView = "active"
	ViewArchived ThreadView = "archived"
)

// ChatThread — документ коллекций direct_chats / report_chats.
// Имена полей совпадают с документами, на которые опираются внешние триггеры.
type ChatThread struct {
	ID                 string     `json:"id"`
	Kind               ChatKind   `json:"kind"`
	Participants       []string   `json:"participants"`
	ReportID           string     `json:"reportId,omitempty"`
	LastMessagePreview string     `json:"lastMessagePreview"`
	LastMessageAt      time.Time  `json:"lastMessageAt"`
	ReadBy             []string   `json:"readBy"`
	DeletedBy          []string   `json:"deletedBy"`
	Archived           bool       `json:"archived"`
	ArchivedAt         *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy         string     `json:"archivedBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// HasParticipant сообщает, участвует ли userID в переписке.
func (t *ChatThread) HasParticipant(userID string) bool {
	return slices.Contains(t.Participants, userID)
}

// Other возвращает второго участника переписки (пусто, если userID не участник).
func (t *ChatThread) Other(userID string) string {
	if !t.HasParticipant(userID) {
		return ""
	}
	for _, p := range t.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// IsReadBy сообщает, видел ли userID последнее сообщение.
func (t *ChatThread) IsReadBy(userID string) bool {
	return slices.Contains(t.ReadBy, userID)
}

// IsDeletedBy сообщает, скрыл ли userID переписку у себя.
func (t *ChatThread) IsDeletedBy(userID string) bool {
	return slices.Contains(t.DeletedBy, userID)
}

// UserSnapshot — имя и аватар собеседника для списка чатов.
type UserSnapshot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ThreadListItem — элемент списка чатов пользователя.
type ThreadListItem struct {
	ChatThread
	OtherUser    UserSnapshot `json:"otherUser"`
	ReportStatus ReportStatus `json:"reportStatus,omitempty"`
	Unread       bool         `json:"unread"`
}
