// Package postgres хранит документы в одной таблице jsonb и раздаёт изменения через LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/storage"
	"github.com/pawsafe/migrations"
)

type Store struct {
	pool *pgxpool.Pool
	subs *listeners

	mu         sync.Mutex
	listening  bool
	closed     bool
	stopListen context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup
}

var _ storage.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, subs: newListeners(), done: make(chan struct{})}
}

// Close останавливает LISTEN и подписки. Пул закрывает вызывающий код.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	if s.stopListen != nil {
		s.stopListen()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Migrate применяет встроенные миграции по порядку.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := migrations.Ordered()
	if err != nil {
		return fmt.Errorf("docs.Migrate: %w", err)
	}
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("docs.Migrate read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("docs.Migrate run %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	defer logger.DeferLogDuration("docs.Get "+collection, time.Now())()
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docs.Get: %w", err)
	}
	return decode(raw)
}

func (s *Store) Create(ctx context.Context, collection, id string, v any) error {
	defer logger.DeferLogDuration("docs.Create "+collection, time.Now())()
	raw, err := encode(v)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, ($3::text)::jsonb)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("docs.Create: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrExists
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, v any) error {
	defer logger.DeferLogDuration("docs.Set "+collection, time.Now())()
	raw, err := encode(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, ($3::text)::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("docs.Set: %w", err)
	}
	return nil
}

const (
	sqlSet = `UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], ($4::text)::jsonb, true), updated_at = now()
		WHERE collection = $1 AND id = $2`

	sqlUnset = `UPDATE documents SET data = data - $3::text, updated_at = now()
		WHERE collection = $1 AND id = $2`

	// Значения, которых ещё нет в массиве, дописываются в конец в исходном порядке.
	sqlArrayUnion = `UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text],
			(CASE WHEN jsonb_typeof(data -> $3::text) = 'array' THEN data -> $3::text ELSE '[]'::jsonb END)
			|| COALESCE((
				SELECT jsonb_agg(e.v ORDER BY e.n)
				FROM jsonb_array_elements(($4::text)::jsonb) WITH ORDINALITY AS e(v, n)
				WHERE NOT ((CASE WHEN jsonb_typeof(data -> $3::text) = 'array' THEN data -> $3::text ELSE '[]'::jsonb END)
					@> jsonb_build_array(e.v))
			), '[]'::jsonb),
			true),
			updated_at = now()
		WHERE collection = $1 AND id = $2`

	sqlArrayRemove = `UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text],
			COALESCE((
				SELECT jsonb_agg(e.v ORDER BY e.n)
				FROM jsonb_array_elements(
					CASE WHEN jsonb_typeof(data -> $3::text) = 'array' THEN data -> $3::text ELSE '[]'::jsonb END
				) WITH ORDINALITY AS e(v, n)
				WHERE NOT (($4::text)::jsonb @> jsonb_build_array(e.v))
			), '[]'::jsonb),
			true),
			updated_at = now()
		WHERE collection = $1 AND id = $2`
)

// Update выполняет каждое изменение отдельным UPDATE в одной транзакции: сервер сам читает
// и пишет массив, поэтому конкурентные ArrayUnion / ArrayRemove не теряются.
func (s *Store) Update(ctx context.Context, collection, id string, updates ...storage.Update) error {
	defer logger.DeferLogDuration("docs.Update "+collection, time.Now())()
	return s.update(ctx, collection, id, nil, updates)
}

// UpdateIf проверяет cond на строке, заблокированной SELECT ... FOR UPDATE, до первого изменения.
func (s *Store) UpdateIf(ctx context.Context, collection, id string, cond []storage.Filter, updates ...storage.Update) error {
	defer logger.DeferLogDuration("docs.UpdateIf "+collection, time.Now())()
	return s.update(ctx, collection, id, cond, updates)
}

func (s *Store) update(ctx context.Context, collection, id string, cond []storage.Filter, updates []storage.Update) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("docs.Update begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docs.Update lock: %w", err)
	}
	if len(cond) > 0 {
		cur, err := decode(raw)
		if err != nil {
			return err
		}
		if !storage.Match(cur, cond) {
			return storage.ErrConditionFailed
		}
	}

	for _, u := range updates {
		query, args, err := updateStatement(u)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, append([]any{collection, id}, args...)...); err != nil {
			return fmt.Errorf("docs.Update %s: %w", u.Field, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("docs.Update commit: %w", err)
	}
	return nil
}

func updateStatement(u storage.Update) (string, []any, error) {
	switch u.Op {
	case storage.UpdateSet:
		raw, err := encode(u.Value)
		if err != nil {
			return "", nil, err
		}
		return sqlSet, []any{u.Field, raw}, nil
	case storage.UpdateUnset:
		return sqlUnset, []any{u.Field}, nil
	case storage.UpdateArrayUnion, storage.UpdateArrayRemove:
		values := u.Values
		if values == nil {
			values = []any{}
		}
		raw, err := encode(values)
		if err != nil {
			return "", nil, err
		}
		if u.Op == storage.UpdateArrayUnion {
			return sqlArrayUnion, []any{u.Field, raw}, nil
		}
		return sqlArrayRemove, []any{u.Field, raw}, nil
	}
	return "", nil, fmt.Errorf("docs: unknown update op %d", u.Op)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	defer logger.DeferLogDuration("docs.Delete "+collection, time.Now())()
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("docs.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Query отбирает кандидатов по jsonb-вхождению (индекс GIN), затем проверяет фильтры точно.
func (s *Store) Query(ctx context.Context, collection string, filters ...storage.Filter) ([]storage.Document, error) {
	defer logger.DeferLogDuration("docs.Query "+collection, time.Now())()
	query, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docs.Query: %w", err)
	}
	defer rows.Close()

	var out []storage.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("docs.Query scan: %w", err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if storage.Match(doc, filters) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docs.Query rows: %w", err)
	}
	return out, nil
}

func buildQuery(collection string, filters []storage.Filter) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT data FROM documents WHERE collection = $1`)
	args := []any{collection}
	contains := func(v any) (string, error) {
		raw, err := encode(v)
		if err != nil {
			return "", err
		}
		args = append(args, raw)
		return fmt.Sprintf("data @> ($%d::text)::jsonb", len(args)), nil
	}
	for _, f := range filters {
		switch f.Op {
		case storage.OpEq:
			cond, err := contains(map[string]any{f.Field: f.Value})
			if err != nil {
				return "", nil, err
			}
			b.WriteString(" AND " + cond)
		case storage.OpArrayContains:
			cond, err := contains(map[string]any{f.Field: []any{f.Value}})
			if err != nil {
				return "", nil, err
			}
			b.WriteString(" AND " + cond)
		case storage.OpIn:
			vs, _ := f.Value.([]any)
			if len(vs) == 0 {
				b.WriteString(" AND false")
				continue
			}
			parts := make([]string, 0, len(vs))
			for _, v := range vs {
				cond, err := contains(map[string]any{f.Field: v})
				if err != nil {
					return "", nil, err
				}
				parts = append(parts, cond)
			}
			b.WriteString(" AND (" + strings.Join(parts, " OR ") + ")")
		default:
			return "", nil, fmt.Errorf("docs: unknown filter op %q", f.Op)
		}
	}
	b.WriteString(" ORDER BY id")
	return b.String(), args, nil
}

// Subscribe регистрирует подписку на общем LISTEN-соединении Store (одно на процесс, вне пула).
// Регистрация идёт до снимка, поэтому изменения между снимком и первым уведомлением не теряются.
// После уведомления документ перечитывается, поэтому события несут актуальное состояние.
func (s *Store) Subscribe(ctx context.Context, collection string, filters ...storage.Filter) (<-chan storage.Change, error) {
	if err := s.register(ctx); err != nil {
		return nil, fmt.Errorf("docs.Subscribe: %w", err)
	}
	sub := newSubscriber()
	s.subs.add(collection, sub)
	snapshot, err := s.Query(ctx, collection, filters...)
	if err != nil {
		s.subs.remove(collection, sub)
		s.wg.Done()
		return nil, err
	}

	out := make(chan storage.Change)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer s.subs.remove(collection, sub)
		s.follow(ctx, collection, filters, snapshot, sub, out)
	}()
	return out, nil
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("docs: encode: %w", err)
	}
	return string(raw), nil
}

func decode(raw []byte) (storage.Document, error) {
	var doc storage.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("docs: decode: %w", err)
	}
	return doc, nil
}
