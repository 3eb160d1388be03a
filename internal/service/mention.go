package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/pawsafe/internal/model"
)

// @ и дальше слова через одиночные пробелы; пунктуация и конец строки завершают токен.
var mentionRe = regexp.MustCompile(`@([\p{L}\p{N}_]+(?: [\p{L}\p{N}_]+)*)`)

// ExtractMentions возвращает сырые имена после @, без повторов (с учётом регистра), в порядке появления.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		raw := m[1]
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out
}

// UserDirectory — полный справочник пользователей.
type UserDirectory interface {
	List(ctx context.Context) ([]model.User, error)
}

type MentionResolver struct {
	users UserDirectory
}

func NewMentionResolver(users UserDirectory) *MentionResolver {
	return &MentionResolver{users: users}
}

// Resolve сопоставляет сырые имена с пользователями по displayName или name без учёта регистра.
// Захват "Alice hi" даёт самое длинное известное имя, являющееся его префиксом по словам,
// поэтому имя обязано заканчиваться пробелом или концом захвата. Неизвестные имена пропускаются.
func (r *MentionResolver) Resolve(ctx context.Context, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	users, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(users)*2)
	for _, u := range users {
		for _, name := range []string{u.DisplayName, u.Name} {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" {
				continue
			}
			if _, ok := index[key]; !ok {
				index[key] = u.ID
			}
		}
	}

	var ids []string
	for _, name := range raw {
		if id, ok := lookupLongestPrefix(index, name); ok {
			ids = append(ids, id)
		}
	}
	return Recipients(ids), nil
}

// ResolveText — ExtractMentions + Resolve.
func (r *MentionResolver) ResolveText(ctx context.Context, text string) ([]string, error) {
	return r.Resolve(ctx, ExtractMentions(text))
}

func lookupLongestPrefix(index map[string]string, raw string) (string, bool) {
	words := strings.Fields(strings.ToLower(raw))
	for n := len(words); n > 0; n-- {
		if id, ok := index[strings.Join(words[:n], " ")]; ok {
			return id, true
		}
	}
	return "", false
}
