package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

type FriendRepository struct {
	store storage.Store
}

func NewFriendRepository(store storage.Store) *FriendRepository {
	return &FriendRepository{store: store}
}

// CreateRequest создаёт заявку from→to; повторная заявка не ошибка.
func (r *FriendRepository) CreateRequest(ctx context.Context, from, to string) (*model.FriendRequest, error) {
	defer logger.DeferLogDuration("friend.CreateRequest", time.Now())()
	req := &model.FriendRequest{
		ID:        model.PairKey(from, to),
		FromID:    from,
		ToID:      to,
		Status:    model.FriendRequestPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Create(ctx, CollFriendRequests, req.ID, req); err != nil && !errors.Is(err, storage.ErrExists) {
		return nil, fmt.Errorf("friendRepo.CreateRequest: %w", err)
	}
	return req, nil
}

func (r *FriendRepository) GetRequest(ctx context.Context, from, to string) (*model.FriendRequest, error) {
	defer logger.DeferLogDuration("friend.GetRequest", time.Now())()
	doc, err := r.store.Get(ctx, CollFriendRequests, model.PairKey(from, to))
	if err != nil {
		return nil, wrap("friendRepo.GetRequest", err)
	}
	var req model.FriendRequest
	if err := doc.Decode(&req); err != nil {
		return nil, fmt.Errorf("friendRepo.GetRequest: %w", err)
	}
	return &req, nil
}

// Accept создаёт записи дружбы в обе стороны и удаляет заявку.
func (r *FriendRepository) Accept(ctx context.Context, from, to string) error {
	defer logger.DeferLogDuration("friend.Accept", time.Now())()
	now := time.Now().UTC()
	for _, f := range []model.Friend{
		{ID: model.PairKey(from, to), UserID: from, FriendID: to, CreatedAt: now},
		{ID: model.PairKey(to, from), UserID: to, FriendID: from, CreatedAt: now},
	} {
		if err := r.store.Set(ctx, CollFriends, f.ID, f); err != nil {
			return fmt.Errorf("friendRepo.Accept: %w", err)
		}
	}
	if err := r.store.Delete(ctx, CollFriendRequests, model.PairKey(from, to)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("friendRepo.Accept: %w", err)
	}
	return nil
}

func (r *FriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	defer logger.DeferLogDuration("friend.AreFriends", time.Now())()
	_, err := r.store.Get(ctx, CollFriends, model.PairKey(a, b))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("friendRepo.AreFriends: %w", err)
	}
	return true, nil
}
