// Package blob хранит вложения (фото в чатах) и возвращает URL для клиента.
// Реализации: LocalStore (каталог на диске, раздаётся API) и S3Store (любое S3-совместимое хранилище).
package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("blob: not found")
	ErrTypeNotAllowed  = errors.New("blob: file type not allowed")
	ErrContentMismatch = errors.New("blob: file content does not match type")
)

// Store сохраняет объект под ключом и возвращает публичный URL.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Для вложений чата разрешены только изображения.
var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".heic": true,
}

// ImageKey проверяет расширение и сигнатуру файла и строит ключ "{prefix}/{uuid}{ext}".
// head — первые байты содержимого (до 512).
func ImageKey(prefix, filename string, head []byte) (string, error) {
	// Некоторые клиенты кодируют пробел в имени как "+".
	ext := strings.ToLower(filepath.Ext(strings.ReplaceAll(filename, "+", " ")))
	if !imageExt[ext] {
		return "", ErrTypeNotAllowed
	}
	if !matchMagic(ext, head) {
		return "", ErrContentMismatch
	}
	name := uuid.New().String() + ext
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + name, nil
	}
	return name, nil
}

func matchMagic(ext string, head []byte) bool {
	switch ext {
	case ".jpg", ".jpeg":
		return len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF
	case ".png":
		return len(head) >= 8 && bytes.Equal(head[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	case ".gif":
		return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
	case ".webp":
		return len(head) >= 12 && bytes.Equal(head[8:12], []byte("WEBP"))
	case ".heic":
		return len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) &&
			(bytes.Equal(head[8:12], []byte("heic")) || bytes.Equal(head[8:12], []byte("heix")) || bytes.Equal(head[8:12], []byte("mif1")))
	}
	return false
}

// ContentTypeByExt — MIME по расширению ключа.
func ContentTypeByExt(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	}
	return "application/octet-stream"
}
