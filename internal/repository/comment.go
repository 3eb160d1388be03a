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

type CommentRepository struct {
	store storage.Store
}

func NewCommentRepository(store storage.Store) *CommentRepository {
	return &CommentRepository{store: store}
}

func containerField(target model.CommentTarget) string {
	if target == model.TargetReport {
		return "reportId"
	}
	return "postId"
}

func (r *CommentRepository) Create(ctx context.Context, target model.CommentTarget, c *model.Comment) error {
	defer logger.DeferLogDuration("comment.Create", time.Now())()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if c.MentionedUsers == nil {
		c.MentionedUsers = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Create(ctx, CommentCollection(target), c.ID, c); err != nil {
		return fmt.Errorf("commentRepo.Create: %w", err)
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, target model.CommentTarget, id string) (*model.Comment, error) {
	defer logger.DeferLogDuration("comment.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, CommentCollection(target), id)
	if err != nil {
		return nil, wrap("commentRepo.GetByID", err)
	}
	var c model.Comment
	if err := doc.Decode(&c); err != nil {
		return nil, fmt.Errorf("commentRepo.GetByID: %w", err)
	}
	return &c, nil
}

// UpdateText заменяет текст и пересчитанный список упомянутых.
func (r *CommentRepository) UpdateText(ctx context.Context, target model.CommentTarget, id, text string, mentioned []string) error {
	defer logger.DeferLogDuration("comment.UpdateText", time.Now())()
	if mentioned == nil {
		mentioned = []string{}
	}
	err := r.store.Update(ctx, CommentCollection(target), id,
		storage.Set("text", text),
		storage.Set("mentionedUsers", mentioned),
		storage.Set("editedAt", time.Now().UTC()),
	)
	return wrap("commentRepo.UpdateText", err)
}

func (r *CommentRepository) SetLike(ctx context.Context, target model.CommentTarget, id, userID string, liked bool) error {
	defer logger.DeferLogDuration("comment.SetLike", time.Now())()
	u := storage.ArrayRemove("likes", userID)
	if liked {
		u = storage.ArrayUnion("likes", userID)
	}
	return wrap("commentRepo.SetLike", r.store.Update(ctx, CommentCollection(target), id, u))
}

func (r *CommentRepository) Delete(ctx context.Context, target model.CommentTarget, id string) error {
	defer logger.DeferLogDuration("comment.Delete", time.Now())()
	return wrap("commentRepo.Delete", r.store.Delete(ctx, CommentCollection(target), id))
}

// ListByContainer возвращает все комментарии поста или объявления плоским списком.
func (r *CommentRepository) ListByContainer(ctx context.Context, target model.CommentTarget, containerID string) ([]model.Comment, error) {
	defer logger.DeferLogDuration("comment.ListByContainer", time.Now())()
	docs, err := r.store.Query(ctx, CommentCollection(target), storage.Eq(containerField(target), containerID))
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListByContainer: %w", err)
	}
	return decodeAll[model.Comment](docs)
}
