package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/storage"
)

const (
	notifyChannel = "docstore_changes"
	// opResync рассылается подпискам после переподключения: уведомления за время разрыва потеряны.
	opResync = "resync"
)

var errClosed = errors.New("docs: store closed")

type changeNotice struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

// subscriber копит уведомления, не блокируя горутину LISTEN.
type subscriber struct {
	mu      sync.Mutex
	pending []changeNotice
	wake    chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{wake: make(chan struct{}, 1)}
}

func (s *subscriber) push(n changeNotice) {
	s.mu.Lock()
	s.pending = append(s.pending, n)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []changeNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// listeners — подписки по коллекциям; все они питаются от одного LISTEN-соединения.
type listeners struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newListeners() *listeners {
	return &listeners{subs: make(map[string]map[*subscriber]struct{})}
}

func (l *listeners) add(collection string, sub *subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[collection] == nil {
		l.subs[collection] = make(map[*subscriber]struct{})
	}
	l.subs[collection][sub] = struct{}{}
}

func (l *listeners) remove(collection string, sub *subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs[collection], sub)
	if len(l.subs[collection]) == 0 {
		delete(l.subs, collection)
	}
}

// dispatch раздаёт payload pg_notify подписчикам его коллекции.
func (l *listeners) dispatch(payload string) {
	var n changeNotice
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		logger.Errorf("docs.listen: bad payload %q: %v", payload, err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subs[n.Collection] {
		sub.push(n)
	}
}

func (l *listeners) resync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for collection, subs := range l.subs {
		for sub := range subs {
			sub.push(changeNotice{Collection: collection, Op: opResync})
		}
	}
}

// register запускает LISTEN при первой подписке и учитывает горутину подписки в s.wg.
func (s *Store) register(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if !s.listening {
		conn, err := s.connectListener(ctx)
		if err != nil {
			return err
		}
		lctx, cancel := context.WithCancel(context.Background())
		s.stopListen = cancel
		s.listening = true
		s.wg.Add(1)
		go s.listen(lctx, conn)
	}
	s.wg.Add(1)
	return nil
}

// connectListener открывает соединение вне пула: LISTEN держит его всё время жизни Store.
func (s *Store) connectListener(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig)
	if err != nil {
		return nil, fmt.Errorf("docs.listen connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("docs.listen: %w", err)
	}
	return conn, nil
}

// listen читает уведомления и при обрыве переподключается с паузой 1s → 30s.
func (s *Store) listen(ctx context.Context, conn *pgx.Conn) {
	defer s.wg.Done()
	for {
		n, err := conn.WaitForNotification(ctx)
		if err == nil {
			s.subs.dispatch(n.Payload)
			continue
		}
		closeConn(conn)
		if ctx.Err() != nil {
			return
		}
		logger.Errorf("docs.listen: %v", err)

		backoff := time.Second
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			conn, err = s.connectListener(ctx)
			if err == nil {
				break
			}
			logger.Errorf("docs.listen: reconnect: %v", err)
			backoff = min(backoff*2, 30*time.Second)
		}
		logger.Info("docs.listen: reconnected")
		s.subs.resync()
	}
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = conn.Close(ctx)
}

// follow отдаёт снимок, затем перечитывает документы по уведомлениям.
// Документ читается из пула коротким запросом, соединение не удерживается.
func (s *Store) follow(ctx context.Context, collection string, filters []storage.Filter, snapshot []storage.Document, sub *subscriber, out chan<- storage.Change) {
	tracker := storage.NewTracker(filters)
	emit := func(id string, doc storage.Document) bool {
		ch, ok := tracker.Observe(id, doc)
		if !ok {
			return true
		}
		select {
		case out <- ch:
			return true
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		}
	}
	for _, doc := range snapshot {
		if !emit(doc.ID(), doc) {
			return
		}
	}
	for {
		for _, n := range sub.drain() {
			if n.Op == opResync {
				if !s.resync(ctx, collection, filters, tracker, emit) {
					return
				}
				continue
			}
			var doc storage.Document
			if n.Op != "delete" {
				var err error
				doc, err = s.Get(ctx, collection, n.ID)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					if ctx.Err() != nil {
						return
					}
					logger.Errorf("docs.Subscribe %s: reload %s: %v", collection, n.ID, err)
					continue
				}
			}
			if !emit(n.ID, doc) {
				return
			}
		}
		select {
		case <-sub.wake:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// resync сверяет то, что видел подписчик, с текущим состоянием коллекции.
func (s *Store) resync(ctx context.Context, collection string, filters []storage.Filter, tracker *storage.Tracker, emit func(string, storage.Document) bool) bool {
	docs, err := s.Query(ctx, collection, filters...)
	if err != nil {
		logger.Errorf("docs.Subscribe %s: resync: %v", collection, err)
		return ctx.Err() == nil
	}
	current := make(map[string]bool, len(docs))
	for _, doc := range docs {
		current[doc.ID()] = true
		if !emit(doc.ID(), doc) {
			return false
		}
	}
	for _, id := range tracker.IDs() {
		if current[id] {
			continue
		}
		doc, err := s.Get(ctx, collection, id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Errorf("docs.Subscribe %s: resync %s: %v", collection, id, err)
			continue
		}
		if !emit(id, doc) {
			return false
		}
	}
	return true
}
