package blob

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pawsafe/internal/logger"
)

// LocalStore хранит объекты сжатыми (.gz) в каталоге Dir; URL — PublicBase + "/" + key.
type LocalStore struct {
	Dir        string
	PublicBase string
}

func NewLocalStore(dir, publicBase string) *LocalStore {
	return &LocalStore{Dir: dir, PublicBase: strings.TrimSuffix(publicBase, "/")}
}

// cleanKey не даёт выйти за пределы Dir.
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" || k == "." {
		return "", ErrNotFound
	}
	return k, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dstPath := filepath.Join(s.Dir, filepath.FromSlash(key)) + ".gz"
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("blob: create dir: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("blob: create: %w", err)
	}
	gz := gzip.NewWriter(dst)
	if err := copyWithContext(ctx, gz, r); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(dstPath)
		return "", err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("blob: compress: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("blob: close: %w", err)
	}
	return s.PublicBase + "/" + key, nil
}

// Open возвращает распакованное содержимое объекта.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir, filepath.FromSlash(key)) + ".gz")
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

// Serve отдаёт объект по HTTP (разархивирует при отдаче).
func (s *LocalStore) Serve(w http.ResponseWriter, key string) {
	rc, err := s.Open(key)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("blob serve %s: %v", key, err)
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", ContentTypeByExt(key))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Debugf("blob serve %s: %v", key, err)
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}
}
