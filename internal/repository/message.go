package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

// directMessageDoc — документ direct_messages. deletedBy здесь — кто удалил сообщение для всех,
// поэтому личное скрытие хранится в hiddenFor.
type directMessageDoc struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       *string    `json:"text"`
	Images     []string   `json:"images"`
	Timestamp  time.Time  `json:"timestamp"`
	Edited     bool       `json:"edited"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	Deleted    bool       `json:"deleted"`
	DeletedBy  string     `json:"deletedBy,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	HiddenFor  []string   `json:"hiddenFor"`
}

// reportMessageDoc — документ report_messages: deletedBy — список скрывших сообщение у себя.
type reportMessageDoc struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       *string    `json:"text"`
	Images     []string   `json:"images"`
	Timestamp  time.Time  `json:"timestamp"`
	Edited     bool       `json:"edited"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	DeletedBy  []string   `json:"deletedBy"`
}

func hideField(kind model.ChatKind) string {
	if kind == model.ChatReport {
		return "deletedBy"
	}
	return "hiddenFor"
}

type MessageRepository struct {
	store storage.Store
}

func NewMessageRepository(store storage.Store) *MessageRepository {
	return &MessageRepository{store: store}
}

// Create сохраняет сообщение. Пустой ID заменяется ULID (сортируется по времени создания).
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("message.Create", time.Now())()
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := r.store.Create(ctx, MessageCollection(m.Kind), m.ID, toMessageDoc(m)); err != nil {
		return fmt.Errorf("messageRepo.Create: %w", err)
	}
	return nil
}

func toMessageDoc(m *model.Message) any {
	hidden := m.HiddenFor
	if hidden == nil {
		hidden = []string{}
	}
	if m.Kind == model.ChatReport {
		return reportMessageDoc{
			ID: m.ID, ChatID: m.ChatID, SenderID: m.SenderID, SenderName: m.SenderName,
			Text: m.Text, Images: m.Images, Timestamp: m.Timestamp,
			Edited: m.Edited, EditedAt: m.EditedAt, DeletedBy: hidden,
		}
	}
	return directMessageDoc{
		ID: m.ID, ChatID: m.ChatID, SenderID: m.SenderID, SenderName: m.SenderName,
		Text: m.Text, Images: m.Images, Timestamp: m.Timestamp,
		Edited: m.Edited, EditedAt: m.EditedAt,
		Deleted: m.Deleted, DeletedBy: m.DeletedBy, DeletedAt: m.DeletedAt, HiddenFor: hidden,
	}
}

func decodeMessage(kind model.ChatKind, doc storage.Document) (*model.Message, error) {
	if kind == model.ChatReport {
		var d reportMessageDoc
		if err := doc.Decode(&d); err != nil {
			return nil, err
		}
		return &model.Message{
			ID: d.ID, ChatID: d.ChatID, Kind: kind, SenderID: d.SenderID, SenderName: d.SenderName,
			Text: d.Text, Images: d.Images, Timestamp: d.Timestamp,
			Edited: d.Edited, EditedAt: d.EditedAt, HiddenFor: d.DeletedBy,
		}, nil
	}
	var d directMessageDoc
	if err := doc.Decode(&d); err != nil {
		return nil, err
	}
	return &model.Message{
		ID: d.ID, ChatID: d.ChatID, Kind: kind, SenderID: d.SenderID, SenderName: d.SenderName,
		Text: d.Text, Images: d.Images, Timestamp: d.Timestamp,
		Edited: d.Edited, EditedAt: d.EditedAt,
		Deleted: d.Deleted, DeletedBy: d.DeletedBy, DeletedAt: d.DeletedAt, HiddenFor: d.HiddenFor,
	}, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, kind model.ChatKind, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("message.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, MessageCollection(kind), id)
	if err != nil {
		return nil, wrap("messageRepo.GetByID", err)
	}
	m, err := decodeMessage(kind, doc)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.GetByID: %w", err)
	}
	return m, nil
}

// ErrMessageDeleted — сообщение удалили для всех, пока шла правка.
var ErrMessageDeleted = errors.New("message is deleted")

// Edit меняет текст. В личных чатах правка применяется только пока deleted == false,
// иначе мягкое удаление между проверкой и записью вернуло бы стёртый текст.
// Сообщения чатов по объявлениям удаляются целиком, для них хватает ErrNotFound.
func (r *MessageRepository) Edit(ctx context.Context, kind model.ChatKind, id, text string) error {
	defer logger.DeferLogDuration("message.Edit", time.Now())()
	updates := []storage.Update{
		storage.Set("text", text),
		storage.Set("edited", true),
		storage.Set("editedAt", time.Now().UTC()),
	}
	var err error
	if kind == model.ChatReport {
		err = r.store.Update(ctx, CollReportMessages, id, updates...)
	} else {
		err = r.store.UpdateIf(ctx, CollDirectMessages, id, []storage.Filter{storage.Eq("deleted", false)}, updates...)
	}
	if errors.Is(err, storage.ErrConditionFailed) {
		return ErrMessageDeleted
	}
	return wrap("messageRepo.Edit", err)
}

// SoftDelete (личные чаты): текст и картинки стираются, строка остаётся для порядка в переписке.
func (r *MessageRepository) SoftDelete(ctx context.Context, id, actingUserID string) error {
	defer logger.DeferLogDuration("message.SoftDelete", time.Now())()
	err := r.store.Update(ctx, CollDirectMessages, id,
		storage.Set("text", nil),
		storage.Set("images", nil),
		storage.Set("deleted", true),
		storage.Set("deletedBy", actingUserID),
		storage.Set("deletedAt", time.Now().UTC()),
	)
	return wrap("messageRepo.SoftDelete", err)
}

// HardDelete (чаты по объявлениям): документ удаляется целиком.
func (r *MessageRepository) HardDelete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("message.HardDelete", time.Now())()
	return wrap("messageRepo.HardDelete", r.store.Delete(ctx, CollReportMessages, id))
}

// HideForUser скрывает сообщение только для userID.
func (r *MessageRepository) HideForUser(ctx context.Context, kind model.ChatKind, id, userID string) error {
	defer logger.DeferLogDuration("message.HideForUser", time.Now())()
	err := r.store.Update(ctx, MessageCollection(kind), id, storage.ArrayUnion(hideField(kind), userID))
	return wrap("messageRepo.HideForUser", err)
}

// HideAllForUser скрывает для userID все сообщения переписки.
func (r *MessageRepository) HideAllForUser(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	defer logger.DeferLogDuration("message.HideAllForUser", time.Now())()
	docs, err := r.store.Query(ctx, MessageCollection(kind), storage.Eq("chatId", chatID))
	if err != nil {
		return fmt.Errorf("messageRepo.HideAllForUser: %w", err)
	}
	var errs []error
	for _, doc := range docs {
		err := r.store.Update(ctx, MessageCollection(kind), doc.ID(), storage.ArrayUnion(hideField(kind), userID))
		// Сообщение могли удалить между запросом и обновлением.
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("messageRepo.HideAllForUser: %w", errors.Join(errs...))
	}
	return nil
}

// ListByChat возвращает сообщения переписки, видимые viewerID, по возрастанию времени.
func (r *MessageRepository) ListByChat(ctx context.Context, kind model.ChatKind, chatID, viewerID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.ListByChat", time.Now())()
	docs, err := r.store.Query(ctx, MessageCollection(kind), storage.Eq("chatId", chatID))
	if err != nil {
		return nil, fmt.Errorf("messageRepo.ListByChat: %w", err)
	}
	out := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := decodeMessage(kind, doc)
		if err != nil {
			return nil, fmt.Errorf("messageRepo.ListByChat: %w", err)
		}
		if viewerID != "" && m.IsHiddenFor(viewerID) {
			continue
		}
		out = append(out, *m)
	}
	SortMessages(out)
	return out, nil
}

// SortMessages упорядочивает по timestamp, при равенстве — по id.
func SortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// CreateReport сохраняет жалобу на сообщение.
func (r *MessageRepository) CreateReport(ctx context.Context, rep *model.MessageReport) error {
	defer logger.DeferLogDuration("message.CreateReport", time.Now())()
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Create(ctx, CollMessageReports, rep.ID, rep); err != nil {
		return fmt.Errorf("messageRepo.CreateReport: %w", err)
	}
	return nil
}
