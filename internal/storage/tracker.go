package storage

// Tracker превращает поток «документ id теперь выглядит так» в события подписки
// с учётом того, что клиент уже видел. Не потокобезопасен: один Tracker на подписку.
type Tracker struct {
	filters []Filter
	seen    map[string]Document
}

func NewTracker(filters []Filter) *Tracker {
	return &Tracker{filters: filters, seen: make(map[string]Document)}
}

// Observe принимает новое состояние документа (nil — удалён) и возвращает событие, если оно есть.
func (t *Tracker) Observe(id string, doc Document) (Change, bool) {
	prev, was := t.seen[id]
	matches := doc != nil && Match(doc, t.filters)
	switch {
	case matches && !was:
		t.seen[id] = doc
		return Change{Type: ChangeAdded, ID: id, Doc: doc}, true
	case matches && was:
		t.seen[id] = doc
		return Change{Type: ChangeModified, ID: id, Doc: doc}, true
	case !matches && was:
		delete(t.seen, id)
		return Change{Type: ChangeRemoved, ID: id, Doc: prev}, true
	}
	return Change{}, false
}

// IDs возвращает документы, которые подписчик сейчас видит.
func (t *Tracker) IDs() []string {
	ids := make([]string, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	return ids
}
