package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/pawsafe/internal/chatid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

// ThreadRepository владеет коллекциями direct_chats и report_chats.
type ThreadRepository struct {
	store    storage.Store
	messages *MessageRepository
	users    *UserRepository
	reports  *ReportRepository
}

func NewThreadRepository(store storage.Store, messages *MessageRepository, users *UserRepository, reports *ReportRepository) *ThreadRepository {
	return &ThreadRepository{store: store, messages: messages, users: users, reports: reports}
}

// ThreadID вычисляет ключ переписки по типу, участникам и (для report) объявлению.
func ThreadID(kind model.ChatKind, userA, userB, reportID string) (string, error) {
	if kind == model.ChatReport {
		return chatid.Report(reportID, userA, userB)
	}
	return chatid.Direct(userA, userB)
}

func (r *ThreadRepository) GetByID(ctx context.Context, kind model.ChatKind, id string) (*model.ChatThread, error) {
	defer logger.DeferLogDuration("thread.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, ThreadCollection(kind), id)
	if err != nil {
		return nil, wrap("threadRepo.GetByID", err)
	}
	var t model.ChatThread
	if err := doc.Decode(&t); err != nil {
		return nil, fmt.Errorf("threadRepo.GetByID: %w", err)
	}
	t.Kind = kind
	return &t, nil
}

// Ensure читает переписку или создаёт её с readBy = {sender}.
// Одновременные создатели сходятся на одном документе: проигравший Create получает ErrExists.
func (r *ThreadRepository) Ensure(ctx context.Context, kind model.ChatKind, userA, userB, reportID, senderID string) (string, error) {
	defer logger.DeferLogDuration("thread.Ensure", time.Now())()
	id, err := ThreadID(kind, userA, userB, reportID)
	if err != nil {
		return "", err
	}
	_, err = r.store.Get(ctx, ThreadCollection(kind), id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("threadRepo.Ensure: %w", err)
	}

	participants := []string{userA, userB}
	slices.Sort(participants)
	now := time.Now().UTC()
	t := model.ChatThread{
		ID:            id,
		Kind:          kind,
		Participants:  participants,
		ReadBy:        []string{senderID},
		DeletedBy:     []string{},
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if kind == model.ChatReport {
		t.ReportID = reportID
	}
	if err := r.store.Create(ctx, ThreadCollection(kind), id, t); err != nil && !errors.Is(err, storage.ErrExists) {
		return "", fmt.Errorf("threadRepo.Ensure: %w", err)
	}
	return id, nil
}

// PostMessageMetadata обновляет превью и время, заменяет readBy на {sender}
// и убирает из deletedBy остальных участников. Удаление переписки самим отправителем не трогается.
func (r *ThreadRepository) PostMessageMetadata(ctx context.Context, kind model.ChatKind, id, senderID, preview string) error {
	defer logger.DeferLogDuration("thread.PostMessageMetadata", time.Now())()
	t, err := r.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if now.Before(t.LastMessageAt) {
		now = t.LastMessageAt
	}
	updates := []storage.Update{
		storage.Set("lastMessagePreview", preview),
		storage.Set("lastMessageAt", now),
		storage.Set("readBy", []string{senderID}),
	}
	var recipients []string
	for _, p := range t.Participants {
		if p != senderID {
			recipients = append(recipients, p)
		}
	}
	if len(recipients) > 0 {
		updates = append(updates, storage.ArrayRemove("deletedBy", anySlice(recipients)...))
	}
	return wrap("threadRepo.PostMessageMetadata", r.store.Update(ctx, ThreadCollection(kind), id, updates...))
}

func (r *ThreadRepository) MarkRead(ctx context.Context, kind model.ChatKind, id, userID string) error {
	defer logger.DeferLogDuration("thread.MarkRead", time.Now())()
	return wrap("threadRepo.MarkRead", r.store.Update(ctx, ThreadCollection(kind), id, storage.ArrayUnion("readBy", userID)))
}

// SoftDelete скрывает переписку для userID вместе со всеми её сообщениями.
func (r *ThreadRepository) SoftDelete(ctx context.Context, kind model.ChatKind, id, userID string) error {
	defer logger.DeferLogDuration("thread.SoftDelete", time.Now())()
	if err := r.store.Update(ctx, ThreadCollection(kind), id, storage.ArrayUnion("deletedBy", userID)); err != nil {
		return wrap("threadRepo.SoftDelete", err)
	}
	return r.messages.HideAllForUser(ctx, kind, id, userID)
}

func (r *ThreadRepository) Archive(ctx context.Context, kind model.ChatKind, id, userID string) error {
	defer logger.DeferLogDuration("thread.Archive", time.Now())()
	err := r.store.Update(ctx, ThreadCollection(kind), id,
		storage.Set("archived", true),
		storage.Set("archivedAt", time.Now().UTC()),
		storage.Set("archivedBy", userID),
	)
	return wrap("threadRepo.Archive", err)
}

func (r *ThreadRepository) Unarchive(ctx context.Context, kind model.ChatKind, id string) error {
	defer logger.DeferLogDuration("thread.Unarchive", time.Now())()
	err := r.store.Update(ctx, ThreadCollection(kind), id,
		storage.Set("archived", false),
		storage.Unset("archivedAt"),
		storage.Unset("archivedBy"),
	)
	return wrap("threadRepo.Unarchive", err)
}

// ListForUser возвращает переписки обоих типов, где userID участник, не удалял их
// и признак архива совпадает с view. Новые сверху.
func (r *ThreadRepository) ListForUser(ctx context.Context, userID string, view model.ThreadView) ([]model.ThreadListItem, error) {
	defer logger.DeferLogDuration("thread.ListForUser", time.Now())()
	archived := view == model.ViewArchived
	var out []model.ThreadListItem
	for _, kind := range []model.ChatKind{model.ChatDirect, model.ChatReport} {
		docs, err := r.store.Query(ctx, ThreadCollection(kind), storage.ArrayContains("participants", userID))
		if err != nil {
			return nil, fmt.Errorf("threadRepo.ListForUser: %w", err)
		}
		threads, err := decodeAll[model.ChatThread](docs)
		if err != nil {
			return nil, fmt.Errorf("threadRepo.ListForUser: %w", err)
		}
		for _, t := range threads {
			if t.IsDeletedBy(userID) || t.Archived != archived {
				continue
			}
			t.Kind = kind
			item := model.ThreadListItem{
				ChatThread: t,
				OtherUser:  r.users.Snapshot(ctx, t.Other(userID)),
				Unread:     !t.IsReadBy(userID),
			}
			if kind == model.ChatReport && t.ReportID != "" {
				item.ReportStatus = r.reportStatus(ctx, t.ReportID)
			}
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

// UnreadCount — число активных (не архивных) переписок, где userID нет в readBy.
func (r *ThreadRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	items, err := r.ListForUser(ctx, userID, model.ViewActive)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if it.Unread {
			n++
		}
	}
	return n, nil
}

// reportStatus: отсутствующее объявление даёт пустой статус.
func (r *ThreadRepository) reportStatus(ctx context.Context, reportID string) model.ReportStatus {
	rep, err := r.reports.GetByID(ctx, reportID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Errorf("thread list report %s: %v", reportID, err)
		}
		return ""
	}
	return rep.Status
}
