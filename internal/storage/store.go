// Package storage описывает документное хранилище с живыми подписками.
// Реализации: memory.Store (тесты), postgres.Store (jsonb + LISTEN/NOTIFY), mongo.Store (change streams).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("storage: document not found")
	ErrExists   = errors.New("storage: document already exists")
	// ErrConditionFailed — документ есть, но не подходит под условие UpdateIf.
	ErrConditionFailed = errors.New("storage: update condition failed")
)

// Store — документное хранилище. Операции над множествами (ArrayUnion / ArrayRemove)
// атомарны на уровне одного документа; транзакций между документами нет.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create записывает документ, если его ещё нет; иначе ErrExists.
	Create(ctx context.Context, collection, id string, doc any) error
	// Set создаёт или полностью перезаписывает документ.
	Set(ctx context.Context, collection, id string, doc any) error
	// Update применяет изменения к существующему документу; ErrNotFound, если его нет.
	Update(ctx context.Context, collection, id string, updates ...Update) error
	// UpdateIf атомарно проверяет cond и применяет изменения; ErrConditionFailed, если документ не подходит.
	UpdateIf(ctx context.Context, collection, id string, cond []Filter, updates ...Update) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Subscribe отдаёт текущий снимок как Added, затем изменения. Отмена ctx закрывает канал.
	Subscribe(ctx context.Context, collection string, filters ...Filter) (<-chan Change, error)
	Close() error
}

// Document — документ в нормализованном виде (как после JSON): string, float64, bool, nil, []any, map[string]any.
type Document map[string]any

// ID возвращает поле "id" документа.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Decode раскладывает документ в типизированную структуру.
func (d Document) Decode(out any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("storage: encode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("storage: decode document: %w", err)
	}
	return nil
}

// Clone возвращает глубокую копию документа.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Encode приводит структуру (или map) к Document.
func Encode(v any) (Document, error) {
	if doc, ok := v.(Document); ok {
		return doc.Clone(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	if doc == nil {
		return nil, errors.New("storage: encode: document must be an object")
	}
	return doc, nil
}

// Normalize приводит значение к виду, в котором оно хранится в Document.
func Normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change — событие подписки. Для Removed Doc содержит последнее известное состояние.
type Change struct {
	Type ChangeType `json:"type"`
	ID   string     `json:"id"`
	Doc  Document   `json:"doc,omitempty"`
}
