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

type BlockRepository struct {
	store storage.Store
}

func NewBlockRepository(store storage.Store) *BlockRepository {
	return &BlockRepository{store: store}
}

// IsBlocked сообщает, заблокировал ли subject пользователя actor (есть blocks/{subject}_{actor}).
func (r *BlockRepository) IsBlocked(ctx context.Context, subject, actor string) (bool, error) {
	defer logger.DeferLogDuration("block.IsBlocked", time.Now())()
	_, err := r.store.Get(ctx, CollBlocks, model.PairKey(subject, actor))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blockRepo.IsBlocked: %w", err)
	}
	return true, nil
}

// CanSend: писать нельзя, если блокировка есть в любую сторону.
func (r *BlockRepository) CanSend(ctx context.Context, from, to string) (bool, error) {
	blocked, err := r.IsBlocked(ctx, to, from)
	if err != nil || blocked {
		return false, err
	}
	blocked, err = r.IsBlocked(ctx, from, to)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// Block идемпотентно создаёт блокировку и удаляет дружбу и заявки в обе стороны.
func (r *BlockRepository) Block(ctx context.Context, blocker, blocked string) error {
	defer logger.DeferLogDuration("block.Block", time.Now())()
	b := model.Block{
		ID:        model.PairKey(blocker, blocked),
		BlockerID: blocker,
		BlockedID: blocked,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Create(ctx, CollBlocks, b.ID, b); err != nil && !errors.Is(err, storage.ErrExists) {
		return fmt.Errorf("blockRepo.Block: %w", err)
	}
	for _, key := range []string{model.PairKey(blocker, blocked), model.PairKey(blocked, blocker)} {
		for _, coll := range []string{CollFriends, CollFriendRequests} {
			if err := r.store.Delete(ctx, coll, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("blockRepo.Block cascade %s/%s: %w", coll, key, err)
			}
		}
	}
	return nil
}

// Unblock снимает блокировку; дружба не восстанавливается.
func (r *BlockRepository) Unblock(ctx context.Context, blocker, blocked string) error {
	defer logger.DeferLogDuration("block.Unblock", time.Now())()
	err := r.store.Delete(ctx, CollBlocks, model.PairKey(blocker, blocked))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("blockRepo.Unblock: %w", err)
	}
	return nil
}

// ListBlocked возвращает блокировки, созданные blocker.
func (r *BlockRepository) ListBlocked(ctx context.Context, blocker string) ([]model.Block, error) {
	defer logger.DeferLogDuration("block.ListBlocked", time.Now())()
	docs, err := r.store.Query(ctx, CollBlocks, storage.Eq("blockerId", blocker))
	if err != nil {
		return nil, fmt.Errorf("blockRepo.ListBlocked: %w", err)
	}
	return decodeAll[model.Block](docs)
}
