package repository

import (
	"context"
	"fmt"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

// Event — типизированное изменение живой подписки. Для Removed Item может быть nil.
type Event[T any] struct {
	Type storage.ChangeType `json:"type"`
	ID   string             `json:"id"`
	Item *T                 `json:"item,omitempty"`
}

// watch переводит поток storage.Change в типизированные события.
// decode возвращает nil, если документ не должен быть виден подписчику: такое изменение уходит как Removed.
// Канал закрывается, когда закрывается исходная подписка (отмена ctx).
func watch[T any](ctx context.Context, store storage.Store, op, collection string, decode func(storage.Document) (*T, error), filters ...storage.Filter) (<-chan Event[T], error) {
	src, err := store.Subscribe(ctx, collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make(chan Event[T], 16)
	go func() {
		defer close(out)
		for ch := range src {
			ev := Event[T]{Type: ch.Type, ID: ch.ID}
			if ch.Type != storage.ChangeRemoved {
				item, err := decode(ch.Doc)
				if err != nil {
					logger.Errorf("%s: decode %s: %v", op, ch.ID, err)
					continue
				}
				if item == nil {
					ev.Type = storage.ChangeRemoved
				}
				ev.Item = item
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// дочитываем src, чтобы хранилище освободило слушателя
				for range src {
				}
				return
			}
		}
	}()
	return out, nil
}

// Watch — живой список переписок пользователя одного типа. Удалённые им переписки приходят как Removed.
func (r *ThreadRepository) Watch(ctx context.Context, kind model.ChatKind, userID string) (<-chan Event[model.ChatThread], error) {
	return watch(ctx, r.store, "threadRepo.Watch", ThreadCollection(kind), func(doc storage.Document) (*model.ChatThread, error) {
		var t model.ChatThread
		if err := doc.Decode(&t); err != nil {
			return nil, err
		}
		t.Kind = kind
		if t.IsDeletedBy(userID) {
			return nil, nil
		}
		return &t, nil
	}, storage.ArrayContains("participants", userID))
}

// Watch — живая лента сообщений переписки; скрытые для viewerID приходят как Removed.
func (r *MessageRepository) Watch(ctx context.Context, kind model.ChatKind, chatID, viewerID string) (<-chan Event[model.Message], error) {
	return watch(ctx, r.store, "messageRepo.Watch", MessageCollection(kind), func(doc storage.Document) (*model.Message, error) {
		m, err := decodeMessage(kind, doc)
		if err != nil {
			return nil, err
		}
		if m.IsHiddenFor(viewerID) {
			return nil, nil
		}
		return m, nil
	}, storage.Eq("chatId", chatID))
}

// Watch — живой список уведомлений получателя.
func (r *NotificationRepository) Watch(ctx context.Context, userID string) (<-chan Event[model.Notification], error) {
	return watch(ctx, r.store, "notificationRepo.Watch", CollNotifications, func(doc storage.Document) (*model.Notification, error) {
		var n model.Notification
		if err := doc.Decode(&n); err != nil {
			return nil, err
		}
		return &n, nil
	}, storage.Eq("userId", userID))
}
