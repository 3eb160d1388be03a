package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pawsafe/internal/logger"
)

// VAPIDKeys — пара ключей для Web Push (VAPID).
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Complete сообщает, заданы ли оба ключа.
func (k *VAPIDKeys) Complete() bool {
	return k != nil && k.PublicKey != "" && k.PrivateKey != ""
}

const defaultVAPIDKeysPath = "config/vapid.json"

// EnsureVAPIDKeys загружает ключи из файла; если файла нет или он неполный — генерирует и сохраняет.
// Путь: аргумент, затем env VAPID_KEYS_FILE, затем config/vapid.json.
// Ошибка записи не фатальна: сгенерированные ключи используются до перезапуска.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if path == "" {
		path = os.Getenv("VAPID_KEYS_FILE")
	}
	if path == "" {
		path = defaultVAPIDKeysPath
	}
	keys, err := LoadVAPIDKeys(path)
	if err == nil && keys.Complete() {
		return keys, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Errorf("push: VAPID keys %s unreadable, regenerating: %v", path, err)
	}
	keys, err = GenerateVAPIDKeys()
	if err != nil {
		return nil, err
	}
	if err := saveVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: не удалось сохранить VAPID-ключи в %s: %v (ключи сгенерированы и используются)", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID-ключи сгенерированы и сохранены в %s", path)
	return keys, nil
}

// GenerateVAPIDKeys создаёт новую пару ключей.
func GenerateVAPIDKeys() (*VAPIDKeys, error) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("push: generate VAPID keys: %w", err)
	}
	return &VAPIDKeys{PublicKey: pub, PrivateKey: priv}, nil
}

func LoadVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("push: parse %s: %w", path, err)
	}
	return &keys, nil
}

func saveVAPIDKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
