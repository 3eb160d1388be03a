// Package startup — подключение к внешним хранилищам с повторами при старте сервисов.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawsafe/internal/storage/postgres"
)

// ConnectDBWithRetry подключается к Postgres с повторами; при недоступности БД не роняет процесс сразу.
// logPrefix добавляется к сообщениям лога (например "api: ").
func ConnectDBWithRetry(poolCfg *pgxpool.Config, maxWait time.Duration, logPrefix string) *pgxpool.Pool {
	var pool *pgxpool.Pool
	retry(maxWait, logPrefix+"db", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		cancel()
		if err != nil {
			return err
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = p.Ping(pingCtx)
		pingCancel()
		if err != nil {
			p.Close()
			return fmt.Errorf("ping: %w", err)
		}
		pool = p
		return nil
	})
	return pool
}

// OpenPostgresStore подключается, применяет миграции и возвращает документное хранилище поверх пула.
func OpenPostgresStore(databaseURL string, maxConns int, logPrefix string) (*postgres.Store, *pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = 2

	pool := ConnectDBWithRetry(poolCfg, 60*time.Second, logPrefix)
	store := postgres.New(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}
