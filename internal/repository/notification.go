package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

type NotificationRepository struct {
	store storage.Store
}

func NewNotificationRepository(store storage.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notification.Create", time.Now())()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Create(ctx, CollNotifications, n.ID, n); err != nil {
		return fmt.Errorf("notificationRepo.Create: %w", err)
	}
	return nil
}

// ListForUser возвращает уведомления получателя, новые первыми. limit <= 0 — без ограничения.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notification.ListForUser", time.Now())()
	docs, err := r.store.Query(ctx, CollNotifications, storage.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListForUser: %w", err)
	}
	list, err := decodeAll[model.Notification](docs)
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListForUser: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// MarkRead отмечает уведомление прочитанным; чужое уведомление считается ненайденным.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	defer logger.DeferLogDuration("notification.MarkRead", time.Now())()
	doc, err := r.store.Get(ctx, CollNotifications, id)
	if err != nil {
		return wrap("notificationRepo.MarkRead", err)
	}
	if owner, _ := doc["userId"].(string); owner != userID {
		return ErrNotFound
	}
	return wrap("notificationRepo.MarkRead", r.store.Update(ctx, CollNotifications, id, storage.Set("read", true)))
}
