package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

type PostRepository struct {
	store storage.Store
}

func NewPostRepository(store storage.Store) *PostRepository {
	return &PostRepository{store: store}
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	defer logger.DeferLogDuration("post.Create", time.Now())()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Create(ctx, CollPosts, p.ID, p); err != nil {
		return fmt.Errorf("postRepo.Create: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	defer logger.DeferLogDuration("post.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, CollPosts, id)
	if err != nil {
		return nil, wrap("postRepo.GetByID", err)
	}
	var p model.Post
	if err := doc.Decode(&p); err != nil {
		return nil, fmt.Errorf("postRepo.GetByID: %w", err)
	}
	return &p, nil
}

// SetLike добавляет или убирает лайк атомарной операцией над множеством.
func (r *PostRepository) SetLike(ctx context.Context, id, userID string, liked bool) error {
	defer logger.DeferLogDuration("post.SetLike", time.Now())()
	u := storage.ArrayRemove("likes", userID)
	if liked {
		u = storage.ArrayUnion("likes", userID)
	}
	return wrap("postRepo.SetLike", r.store.Update(ctx, CollPosts, id, u))
}
