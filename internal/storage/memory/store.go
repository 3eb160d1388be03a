// Package memory — документное хранилище в памяти процесса (тесты и локальная разработка без БД).
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/pawsafe/internal/storage"
)

var errClosed = errors.New("memory store: closed")

type Store struct {
	mu     sync.RWMutex
	colls  map[string]map[string]storage.Document
	subs   map[string]map[*subscription]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		colls: make(map[string]map[string]storage.Document),
		subs:  make(map[string]map[*subscription]struct{}),
		done:  make(chan struct{}),
	}
}

// Close останавливает все подписки и ждёт их завершения.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.colls[collection][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *Store) Create(ctx context.Context, collection, id string, v any) error {
	doc, err := storage.Encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, ok := s.coll(collection)[id]; ok {
		return storage.ErrExists
	}
	s.put(collection, id, doc)
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, v any) error {
	doc, err := storage.Encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.put(collection, id, doc)
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates ...storage.Update) error {
	return s.UpdateIf(ctx, collection, id, nil, updates...)
}

func (s *Store) UpdateIf(ctx context.Context, collection, id string, cond []storage.Filter, updates ...storage.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	cur, ok := s.coll(collection)[id]
	if !ok {
		return storage.ErrNotFound
	}
	if !storage.Match(cur, cond) {
		return storage.ErrConditionFailed
	}
	next := cur.Clone()
	storage.Apply(next, updates)
	s.put(collection, id, next)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	c := s.coll(collection)
	if _, ok := c[id]; !ok {
		return storage.ErrNotFound
	}
	delete(c, id)
	s.publish(collection, id, nil)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...storage.Filter) ([]storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matching(collection, filters), nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters ...storage.Filter) (<-chan storage.Change, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	sub := newSubscription(filters)
	for _, doc := range s.matching(collection, filters) {
		sub.push(event{id: doc.ID(), doc: doc})
	}
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[*subscription]struct{})
	}
	s.subs[collection][sub] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	out := make(chan storage.Change)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer s.unsubscribe(collection, sub)
		sub.run(ctx, s.done, out)
	}()
	return out, nil
}

func (s *Store) unsubscribe(collection string, sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[collection], sub)
	if len(s.subs[collection]) == 0 {
		delete(s.subs, collection)
	}
}

// coll, put, matching и publish вызываются под s.mu.
func (s *Store) coll(collection string) map[string]storage.Document {
	c, ok := s.colls[collection]
	if !ok {
		c = make(map[string]storage.Document)
		s.colls[collection] = c
	}
	return c
}

func (s *Store) put(collection, id string, doc storage.Document) {
	s.coll(collection)[id] = doc
	s.publish(collection, id, doc)
}

func (s *Store) matching(collection string, filters []storage.Filter) []storage.Document {
	c := s.colls[collection]
	ids := make([]string, 0, len(c))
	for id, doc := range c {
		if storage.Match(doc, filters) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]storage.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, c[id].Clone())
	}
	return out
}

func (s *Store) publish(collection, id string, doc storage.Document) {
	for sub := range s.subs[collection] {
		sub.push(event{id: id, doc: doc.Clone()})
	}
}

type event struct {
	id  string
	doc storage.Document
}

// subscription копит события без блокировки пишущих и отдаёт их в своей горутине.
type subscription struct {
	tracker *storage.Tracker
	mu      sync.Mutex
	pending []event
	wake    chan struct{}
}

func newSubscription(filters []storage.Filter) *subscription {
	return &subscription{tracker: storage.NewTracker(filters), wake: make(chan struct{}, 1)}
}

func (s *subscription) push(ev event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) drain() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.pending
	s.pending = nil
	return evs
}

func (s *subscription) run(ctx context.Context, done <-chan struct{}, out chan<- storage.Change) {
	for {
		for _, ev := range s.drain() {
			ch, ok := s.tracker.Observe(ev.id, ev.doc)
			if !ok {
				continue
			}
			select {
			case out <- ch:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}
