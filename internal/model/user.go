package model

import "time"

type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	IsAdmin     bool      `json:"isAdmin,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PublicName возвращает имя для уведомлений и подписи сообщений.
func (u *User) PublicName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Name != "" {
		return u.Name
	}
	return "Someone"
}

// Snapshot возвращает краткий профиль для списков.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{ID: u.ID, Name: u.PublicName(), AvatarURL: u.AvatarURL}
}

// Block — запись о блокировке, ключ "{blockerId}_{blockedId}".
type Block struct {
	ID        string    `json:"id"`
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Friend — односторонняя запись дружбы, ключ "{userId}_{friendId}".
type Friend struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FriendID  string    `json:"friendId"`
	CreatedAt time.Time `json:"createdAt"`
}

const FriendRequestPending = "pending"

// FriendRequest — заявка в друзья, ключ "{fromId}_{toId}".
type FriendRequest struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PairKey строит направленный ключ "{a}_{b}" для blocks, friends и friend_requests.
func PairKey(a, b string) string {
	return a + "_" + b
}
