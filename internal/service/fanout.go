package service

import (
	"context"
	"sync/atomic"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/metrics"
	"github.com/pawsafe/internal/model"
	"golang.org/x/sync/errgroup"
)

const defaultFanoutConcurrency = 8

// NotificationWriter сохраняет запись уведомления.
type NotificationWriter interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Pusher доставляет push. Реализация — push.Client.
type Pusher interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string) error
}

// Event — одно логическое событие для рассылки. ActorID никогда не получает уведомление о своём действии.
type Event struct {
	ActorID string
	Type    model.NotificationType
	Title   string
	Body    string
	Data    map[string]string
}

// Fanout — единственный на процесс диспетчер уведомлений.
type Fanout struct {
	notifications NotificationWriter
	pusher        Pusher
	limit         int
}

func NewFanout(notifications NotificationWriter, pusher Pusher, concurrency int) *Fanout {
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	return &Fanout{notifications: notifications, pusher: pusher, limit: concurrency}
}

// Notify пишет одну запись и пытается доставить один push.
// Ошибка — только если не записалось уведомление; сбой push логируется.
// Возвращает false без ошибки, если target — сам автор действия.
func (f *Fanout) Notify(ctx context.Context, target string, ev Event) (bool, error) {
	if target == "" || target == ev.ActorID {
		return false, nil
	}
	n := &model.Notification{
		UserID: target,
		Type:   ev.Type,
		Title:  ev.Title,
		Body:   ev.Body,
		Data:   ev.Data,
	}
	if err := f.notifications.Create(ctx, n); err != nil {
		return false, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(ev.Type)).Inc()
	f.Push(ctx, target, ev)
	return true, nil
}

// NotifyMany убирает дубликаты и автора, доставляет параллельно.
// Сбой одного получателя не влияет на остальных. Возвращает число записанных уведомлений.
func (f *Fanout) NotifyMany(ctx context.Context, targets []string, ev Event) int {
	recipients := Recipients(targets, ev.ActorID)
	if len(recipients) == 0 {
		return 0
	}
	var delivered atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)
	for _, target := range recipients {
		target := target
		g.Go(func() error {
			ok, err := f.Notify(gctx, target, ev)
			if err != nil {
				logger.Errorf("fanout %s to %s: %v", ev.Type, target, err)
				return nil
			}
			if ok {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// Push — только push без записи в notifications (новые сообщения чата).
func (f *Fanout) Push(ctx context.Context, target string, ev Event) {
	if f.pusher == nil || target == "" || target == ev.ActorID {
		return
	}
	if err := f.pusher.Notify(ctx, target, ev.Title, ev.Body, ev.Data); err != nil {
		metrics.PushFailures.Inc()
		logger.Errorf("push %s to %s: %v", ev.Type, target, err)
	}
}

// Recipients возвращает уникальных получателей в порядке первого появления, без пустых id и exclude.
func Recipients(targets []string, exclude ...string) []string {
	seen := make(map[string]struct{}, len(targets)+len(exclude))
	for _, e := range exclude {
		seen[e] = struct{}{}
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func logFanoutErr(action string, err error) {
	if err != nil {
		logger.Errorf("%s notification: %v", action, err)
	}
}
