// Package migrations предоставляет встроенные SQL-миграции документного хранилища.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// Files содержит все .sql файлы из этой директории (порядок важен: 001, 002, ...).
//
//go:embed *.sql
var Files embed.FS

// Ordered возвращает имена миграций в порядке применения.
func Ordered() ([]string, error) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
