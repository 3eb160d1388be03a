package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pawsafe/internal/blob"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/metrics"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

const previewMaxRunes = 100

// Attachment — изображение, пришедшее вместе с сообщением.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendRequest — новое сообщение. Для report-переписки обязателен ReportID.
type SendRequest struct {
	Kind        model.ChatKind
	SenderID    string
	RecipientID string
	ReportID    string
	Text        string
	Images      []Attachment
}

type ChatService struct {
	threads  *repository.ThreadRepository
	messages *repository.MessageRepository
	blocks   *repository.BlockRepository
	reports  *repository.ReportRepository
	users    *repository.UserRepository
	admins   AdminDirectory
	blobs    blob.Store
	fanout   *Fanout
}

// AdminDirectory — получатели жалоб на сообщения.
type AdminDirectory interface {
	Admins(ctx context.Context) ([]model.User, error)
}

func NewChatService(
	threads *repository.ThreadRepository,
	messages *repository.MessageRepository,
	blocks *repository.BlockRepository,
	reports *repository.ReportRepository,
	users *repository.UserRepository,
	blobs blob.Store,
	fanout *Fanout,
) *ChatService {
	return &ChatService{
		threads: threads, messages: messages, blocks: blocks, reports: reports,
		users: users, admins: users, blobs: blobs, fanout: fanout,
	}
}

func reject(reason string, err error) error {
	metrics.SendsRejected.WithLabelValues(reason).Inc()
	return err
}

// Send проверяет отправку, загружает вложения, сохраняет сообщение и обновляет метаданные переписки.
// Отказ (пустое сообщение, блокировка, закрытое объявление) возвращается до любой записи.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (*model.Message, error) {
	if !req.Kind.Valid() {
		return nil, reject("invalid", ErrInvalidInput)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Images) == 0 {
		return nil, reject("empty", ErrEmptyMessage)
	}
	if req.SenderID == req.RecipientID && req.SenderID != "" {
		return nil, reject("self", ErrForbidden)
	}
	chatID, err := repository.ThreadID(req.Kind, req.SenderID, req.RecipientID, req.ReportID)
	if err != nil {
		return nil, reject("participant", err)
	}
	ok, err := s.blocks.CanSend(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject("blocked", ErrBlocked)
	}
	if req.Kind == model.ChatReport {
		if err := s.ensureReportOpen(ctx, chatID, req.ReportID); err != nil {
			if errors.Is(err, ErrReportNotFound) {
				return nil, reject("report", err)
			}
			return nil, reject("resolved", err)
		}
	}

	images := s.upload(ctx, chatID, req.Images)
	if text == "" && len(images) == 0 {
		return nil, reject("upload", ErrUploadFailed)
	}

	if _, err := s.threads.Ensure(ctx, req.Kind, req.SenderID, req.RecipientID, req.ReportID, req.SenderID); err != nil {
		return nil, err
	}
	sender := s.users.Snapshot(ctx, req.SenderID)
	msg := &model.Message{
		ChatID:     chatID,
		Kind:       req.Kind,
		SenderID:   req.SenderID,
		SenderName: sender.Name,
		Images:     images,
	}
	if text != "" {
		msg.Text = &text
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	preview := Preview(text, len(images))
	if err := s.threads.PostMessageMetadata(ctx, req.Kind, chatID, req.SenderID, preview); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(string(req.Kind)).Inc()

	s.fanout.Push(ctx, req.RecipientID, Event{
		ActorID: req.SenderID,
		Type:    model.NotifyNewMessage,
		Title:   sender.Name,
		Body:    preview,
		Data:    map[string]string{"chatId": chatID, "kind": string(req.Kind), "messageId": msg.ID},
	})
	return msg, nil
}

// ensureReportOpen читает свежий статус объявления. Новую переписку по несуществующему
// объявлению не создаём; в уже существующей отсутствующее объявление считается открытым.
func (s *ChatService) ensureReportOpen(ctx context.Context, chatID, reportID string) error {
	rep, err := s.reports.GetByID(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		_, err := s.threads.GetByID(ctx, model.ChatReport, chatID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReportNotFound
		}
		return err
	}
	if err != nil {
		return err
	}
	if !rep.IsOpen() {
		return ErrReportResolved
	}
	return nil
}

// upload загружает вложения по одному; неудачное пропускается.
func (s *ChatService) upload(ctx context.Context, chatID string, files []Attachment) []string {
	urls := make([]string, 0, len(files))
	if s.blobs == nil {
		return urls
	}
	for _, f := range files {
		head := f.Data
		if len(head) > 512 {
			head = head[:512]
		}
		key, err := blob.ImageKey("chats/"+chatID, f.Filename, head)
		if err != nil {
			logger.Errorf("chat %s: skip attachment %q: %v", chatID, f.Filename, err)
			continue
		}
		url, err := s.blobs.Put(ctx, key, bytes.NewReader(f.Data), f.ContentType)
		if err != nil {
			logger.Errorf("chat %s: upload %q: %v", chatID, f.Filename, err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// Preview — текст превью переписки: обрезанный текст или значок с числом фото.
func Preview(text string, images int) string {
	if text != "" {
		if utf8.RuneCountInString(text) > previewMaxRunes {
			r := []rune(text)
			return string(r[:previewMaxRunes]) + "…"
		}
		return text
	}
	switch {
	case images == 1:
		return "📷 Photo"
	case images > 1:
		return fmt.Sprintf("📷 %d photos", images)
	}
	return ""
}

// thread возвращает переписку, если userID её участник; иначе ErrNotFound.
func (s *ChatService) thread(ctx context.Context, kind model.ChatKind, chatID, userID string) (*model.ChatThread, error) {
	if !kind.Valid() {
		return nil, ErrInvalidInput
	}
	t, err := s.threads.GetByID(ctx, kind, chatID)
	if err != nil {
		return nil, err
	}
	if !t.HasParticipant(userID) {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

// message возвращает сообщение из переписки, где userID участник.
func (s *ChatService) message(ctx context.Context, kind model.ChatKind, id, userID string) (*model.Message, error) {
	if !kind.Valid() {
		return nil, ErrInvalidInput
	}
	msg, err := s.messages.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.thread(ctx, kind, msg.ChatID, userID); err != nil {
		return nil, err
	}
	return msg, nil
}

// Edit меняет текст; разрешено только автору и только неудалённого сообщения.
func (s *ChatService) Edit(ctx context.Context, kind model.ChatKind, id, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	msg, err := s.message(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrForbidden
	}
	if msg.Deleted {
		return ErrMessageDeleted
	}
	err = s.messages.Edit(ctx, kind, id, text)
	if errors.Is(err, repository.ErrMessageDeleted) {
		return ErrMessageDeleted
	}
	return err
}

// Delete удаляет сообщение для всех: в личных чатах мягко (строка остаётся), в чатах по объявлениям целиком.
func (s *ChatService) Delete(ctx context.Context, kind model.ChatKind, id, userID string) error {
	msg, err := s.message(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrForbidden
	}
	if kind == model.ChatReport {
		return s.messages.HardDelete(ctx, id)
	}
	if msg.Deleted {
		return nil
	}
	return s.messages.SoftDelete(ctx, id, userID)
}

// Hide скрывает сообщение только для userID.
func (s *ChatService) Hide(ctx context.Context, kind model.ChatKind, id, userID string) error {
	if _, err := s.message(ctx, kind, id, userID); err != nil {
		return err
	}
	return s.messages.HideForUser(ctx, kind, id, userID)
}

// ReportMessage сохраняет жалобу, скрывает сообщение у пожаловавшегося и уведомляет администраторов.
func (s *ChatService) ReportMessage(ctx context.Context, kind model.ChatKind, id, userID, reason string) error {
	msg, err := s.message(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return ErrForbidden
	}
	rep := &model.MessageReport{
		MessageID:  id,
		ChatID:     msg.ChatID,
		Kind:       kind,
		ReporterID: userID,
		Reason:     strings.TrimSpace(reason),
	}
	if err := s.messages.CreateReport(ctx, rep); err != nil {
		return err
	}
	if err := s.messages.HideForUser(ctx, kind, id, userID); err != nil {
		return err
	}

	admins, err := s.admins.Admins(ctx)
	if err != nil {
		logger.Errorf("report message %s: list admins: %v", id, err)
		return nil
	}
	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	s.fanout.NotifyMany(ctx, ids, Event{
		ActorID: userID,
		Type:    model.NotifyAdminReport,
		Title:   "Message reported",
		Body:    Preview(deref(msg.Text), len(msg.Images)),
		Data:    map[string]string{"messageReportId": rep.ID, "messageId": id, "chatId": msg.ChatID, "kind": string(kind)},
	})
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Messages возвращает видимые userID сообщения переписки по возрастанию времени.
func (s *ChatService) Messages(ctx context.Context, kind model.ChatKind, chatID, userID string) ([]model.Message, error) {
	if _, err := s.thread(ctx, kind, chatID, userID); err != nil {
		return nil, err
	}
	return s.messages.ListByChat(ctx, kind, chatID, userID)
}

func (s *ChatService) Threads(ctx context.Context, userID string, view model.ThreadView) ([]model.ThreadListItem, error) {
	if view == "" {
		view = model.ViewActive
	}
	if view != model.ViewActive && view != model.ViewArchived {
		return nil, ErrInvalidInput
	}
	return s.threads.ListForUser(ctx, userID, view)
}

func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.threads.UnreadCount(ctx, userID)
}

func (s *ChatService) MarkRead(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	if _, err := s.thread(ctx, kind, chatID, userID); err != nil {
		return err
	}
	return s.threads.MarkRead(ctx, kind, chatID, userID)
}

// DeleteThread скрывает переписку у userID до следующего входящего сообщения.
func (s *ChatService) DeleteThread(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	if _, err := s.thread(ctx, kind, chatID, userID); err != nil {
		return err
	}
	return s.threads.SoftDelete(ctx, kind, chatID, userID)
}

func (s *ChatService) Archive(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	if _, err := s.thread(ctx, kind, chatID, userID); err != nil {
		return err
	}
	return s.threads.Archive(ctx, kind, chatID, userID)
}

func (s *ChatService) Unarchive(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	if _, err := s.thread(ctx, kind, chatID, userID); err != nil {
		return err
	}
	return s.threads.Unarchive(ctx, kind, chatID)
}

// Thread возвращает переписку участнику (для подписок websocket).
func (s *ChatService) Thread(ctx context.Context, kind model.ChatKind, chatID, userID string) (*model.ChatThread, error) {
	return s.thread(ctx, kind, chatID, userID)
}
