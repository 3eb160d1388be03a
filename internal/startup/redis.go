package startup

import (
	"context"
	"os"
	"time"

	"github.com/pawsafe/internal/logger"
	redisstorage "github.com/pawsafe/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis с повторами.
// logPrefix добавляется к сообщениям лога (например "push: ").
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redisstorage.Client {
	var client *redisstorage.Client
	retry(maxWait, logPrefix+"redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := redisstorage.New(ctx, redisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	return client
}

// retry повторяет connect с экспоненциальной паузой (2s → 30s); после maxWait завершает процесс.
func retry(maxWait time.Duration, what string, connect func() error) {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := connect()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			logger.Errorf("%s (gave up after %v): %v", what, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%s connect failed, retry in %v: %v", what, backoff, err)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
