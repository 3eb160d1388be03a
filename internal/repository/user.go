package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

const (
	profileCacheSize = 4096
	profileCacheTTL  = 5 * time.Minute
	directoryTTL     = time.Minute
	directoryKey     = "all"
)

// UserRepository читает профили; профили и полный справочник (для упоминаний) кешируются.
type UserRepository struct {
	store     storage.Store
	profiles  *lru.LRU[string, model.User]
	directory *lru.LRU[string, []model.User]
}

func NewUserRepository(store storage.Store) *UserRepository {
	return &UserRepository{
		store:     store,
		profiles:  lru.NewLRU[string, model.User](profileCacheSize, nil, profileCacheTTL),
		directory: lru.NewLRU[string, []model.User](1, nil, directoryTTL),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := r.profiles.Get(id); ok {
		return &u, nil
	}
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, CollUsers, id)
	if err != nil {
		return nil, wrap("userRepo.GetByID", err)
	}
	var u model.User
	if err := doc.Decode(&u); err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	r.profiles.Add(id, u)
	return &u, nil
}

// Upsert сохраняет профиль и сбрасывает кеши.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Upsert", time.Now())()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Set(ctx, CollUsers, u.ID, u); err != nil {
		return fmt.Errorf("userRepo.Upsert: %w", err)
	}
	r.profiles.Remove(u.ID)
	r.directory.Purge()
	return nil
}

// List возвращает всех пользователей (справочник для разбора упоминаний).
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	if users, ok := r.directory.Get(directoryKey); ok {
		return users, nil
	}
	defer logger.DeferLogDuration("user.List", time.Now())()
	docs, err := r.store.Query(ctx, CollUsers)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	users, err := decodeAll[model.User](docs)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	r.directory.Add(directoryKey, users)
	return users, nil
}

// Admins возвращает администраторов (получатели жалоб на сообщения).
func (r *UserRepository) Admins(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.Admins", time.Now())()
	docs, err := r.store.Query(ctx, CollUsers, storage.Eq("isAdmin", true))
	if err != nil {
		return nil, fmt.Errorf("userRepo.Admins: %w", err)
	}
	return decodeAll[model.User](docs)
}

// Snapshot возвращает имя и аватар; отсутствующий профиль даёт снимок только с id.
func (r *UserRepository) Snapshot(ctx context.Context, id string) model.UserSnapshot {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Errorf("user snapshot %s: %v", id, err)
		}
		return model.UserSnapshot{ID: id}
	}
	return u.Snapshot()
}
