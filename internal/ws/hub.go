package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/metrics"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

// Hub держит соединения и переводит subscribe/unsubscribe в живые подписки репозиториев.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	threads    *repository.ThreadRepository
	messages   *repository.MessageRepository
	notifs     *repository.NotificationRepository
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	threads *repository.ThreadRepository,
	messages *repository.MessageRepository,
	notifs *repository.NotificationRepository,
	maxConns int,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		threads:    threads,
		messages:   messages,
		notifs:     notifs,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Done закрывается после завершения Run.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()
	metrics.WSConnections.Set(0)

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	metrics.WSConnections.Dec()

	// Close отменяет контекст соединения, а с ним все подписки.
	c.Close()
}

// Connections возвращает число активных соединений.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// HandleMessage dispatches incoming WebSocket frames.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		if msg.SubscriptionID == "" || !c.dropSub(msg.SubscriptionID) {
			h.sendToClient(c, errorMessage(msg.SubscriptionID, "unknown subscription"))
			return
		}
		h.sendToClient(c, OutgoingMessage{Type: EventUnsubscribed, SubscriptionID: msg.SubscriptionID})
	default:
		h.sendToClient(c, errorMessage("", "unknown event type"))
	}
}

var errNoAccess = errors.New("not found")

// forwarder запускает одну подписку репозитория и пересылает её события в соединение.
type forwarder func(ctx context.Context, emit func(any)) error

func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSubscribe", time.Now())()

	var fwds []forwarder
	switch msg.Topic {
	case TopicThreads:
		kinds := []model.ChatKind{model.ChatDirect, model.ChatReport}
		if msg.Kind != "" {
			if !msg.Kind.Valid() {
				h.sendToClient(c, errorMessage("", "invalid kind"))
				return
			}
			kinds = []model.ChatKind{msg.Kind}
		}
		for _, kind := range kinds {
			kind := kind
			fwds = append(fwds, func(ctx context.Context, emit func(any)) error {
				ch, err := h.threads.Watch(ctx, kind, c.userID)
				if err != nil {
					return err
				}
				c.goSub(func() { drain(ch, emit) })
				return nil
			})
		}
	case TopicMessages:
		if !msg.Kind.Valid() || msg.ChatID == "" {
			h.sendToClient(c, errorMessage("", "kind and chat_id required"))
			return
		}
		if err := h.checkParticipant(ctx, msg.Kind, msg.ChatID, c.userID); err != nil {
			if errors.Is(err, errNoAccess) {
				h.sendToClient(c, errorMessage("", "chat not found"))
			} else {
				logger.Errorf("ws subscribe messages chat=%s user=%s: %v", msg.ChatID, c.userID, err)
				h.sendToClient(c, errorMessage("", "internal error"))
			}
			return
		}
		fwds = append(fwds, func(ctx context.Context, emit func(any)) error {
			ch, err := h.messages.Watch(ctx, msg.Kind, msg.ChatID, c.userID)
			if err != nil {
				return err
			}
			c.goSub(func() { drain(ch, emit) })
			return nil
		})
	case TopicNotifications:
		fwds = append(fwds, func(ctx context.Context, emit func(any)) error {
			ch, err := h.notifs.Watch(ctx, c.userID)
			if err != nil {
				return err
			}
			c.goSub(func() { drain(ch, emit) })
			return nil
		})
	default:
		h.sendToClient(c, errorMessage("", "unknown topic"))
		return
	}

	subID := uuid.New().String()
	subCtx, cancel := context.WithCancel(ctx)
	if !c.addSub(subID, cancel) {
		cancel()
		h.sendToClient(c, errorMessage("", "too many subscriptions"))
		return
	}
	// subscribed уходит раньше первого change: оба идут через один канал send.
	h.sendToClient(c, OutgoingMessage{Type: EventSubscribed, SubscriptionID: subID, Topic: msg.Topic})

	emit := func(ev any) {
		h.sendToClient(c, OutgoingMessage{Type: EventChange, SubscriptionID: subID, Topic: msg.Topic, Payload: ev})
	}
	for _, fwd := range fwds {
		if err := fwd(subCtx, emit); err != nil {
			logger.Errorf("ws subscribe %s user=%s: %v", msg.Topic, c.userID, err)
			c.dropSub(subID)
			h.sendToClient(c, errorMessage(subID, "subscribe failed"))
			return
		}
	}
}

func drain[T any](ch <-chan repository.Event[T], emit func(any)) {
	for ev := range ch {
		emit(ev)
	}
}

func (h *Hub) checkParticipant(ctx context.Context, kind model.ChatKind, chatID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	t, err := h.threads.GetByID(ctx, kind, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return errNoAccess
	}
	if err != nil {
		return err
	}
	if !t.HasParticipant(userID) {
		return errNoAccess
	}
	return nil
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
