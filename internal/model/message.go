package model

import (
	"slices"
	"time"
)

// Message — сообщение в переписке.
// DeletedBy — кто удалил сообщение для всех (только личные чаты),
// HiddenFor — пользователи, скрывшие сообщение только у себя.
type Message struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	Kind       ChatKind   `json:"kind"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       *string    `json:"text"`
	Images     []string   `json:"images"`
	Timestamp  time.Time  `json:"timestamp"`
	Edited     bool       `json:"edited"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	Deleted    bool       `json:"deleted"`
	DeletedBy  string     `json:"deletedBy,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	HiddenFor  []string   `json:"hiddenFor,omitempty"`
}

// IsHiddenFor сообщает, скрыто ли сообщение для userID.
func (m *Message) IsHiddenFor(userID string) bool {
	return slices.Contains(m.HiddenFor, userID)
}

// MessageReport — жалоба пользователя на сообщение (коллекция message_reports).
type MessageReport struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"messageId"`
	ChatID     string    `json:"chatId"`
	Kind       ChatKind  `json:"kind"`
	ReporterID string    `json:"reporterId"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
