package pushserver

import (
	"context"
	"sync"

	"github.com/pawsafe/internal/push"
)

// SubscriptionStore хранит web-push подписки. Реализации: storage/redis.Client и MemoryStore.
type SubscriptionStore interface {
	Add(ctx context.Context, userID string, sub push.PushSubscription) error
	List(ctx context.Context, userID string) ([]push.PushSubscription, error)
	Remove(ctx context.Context, userID, endpoint string) error
}

// MemoryStore — подписки в памяти процесса (локальный запуск без Redis, тесты).
type MemoryStore struct {
	mu   sync.Mutex
	subs map[string][]push.PushSubscription
	max  int
}

func NewMemoryStore(maxPerUser int) *MemoryStore {
	return &MemoryStore{subs: make(map[string][]push.PushSubscription), max: maxPerUser}
}

func (m *MemoryStore) Add(_ context.Context, userID string, sub push.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := without(m.subs[userID], sub.Endpoint)
	list = append(list, sub)
	if m.max > 0 && len(list) > m.max {
		list = list[len(list)-m.max:]
	}
	m.subs[userID] = list
	return nil
}

func (m *MemoryStore) List(_ context.Context, userID string) ([]push.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]push.PushSubscription(nil), m.subs[userID]...), nil
}

func (m *MemoryStore) Remove(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := without(m.subs[userID], endpoint)
	if len(list) == 0 {
		delete(m.subs, userID)
		return nil
	}
	m.subs[userID] = list
	return nil
}

func without(list []push.PushSubscription, endpoint string) []push.PushSubscription {
	out := make([]push.PushSubscription, 0, len(list))
	for _, s := range list {
		if s.Endpoint != endpoint {
			out = append(out, s)
		}
	}
	return out
}
