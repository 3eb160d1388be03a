// Микросервис пуш-уведомлений (Web Push): подписки в Redis, отправка через VAPID.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawsafe/internal/config"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/push"
	"github.com/pawsafe/internal/pushserver"
	"github.com/pawsafe/internal/startup"
)

func main() {
	logger.SetPrefix("push")
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	memStore := flag.Bool("memory", false, "keep subscriptions in memory instead of Redis")
	flag.Parse()

	if *genVAPID {
		keys, err := push.GenerateVAPIDKeys()
		if err != nil {
			logger.Errorf("generate VAPID: %v", err)
			os.Exit(1)
		}
		logger.Infof("VAPID_PUBLIC_KEY=%s", keys.PublicKey)
		logger.Infof("VAPID_PRIVATE_KEY=%s", keys.PrivateKey)
		logger.Flush()
		return
	}

	logger.Info("starting push service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	defer logger.Flush()

	keys := &push.VAPIDKeys{
		PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
	}
	if !keys.Complete() {
		loaded, err := push.EnsureVAPIDKeys(cfg.VAPIDKeysFile)
		if err != nil {
			logger.Infof("VAPID: не удалось загрузить/сгенерировать ключи: %v (push отключены)", err)
		} else {
			keys = loaded
		}
	}
	if !keys.Complete() {
		logger.Info("VAPID keys not set: подписки сохраняются, отправка не выполняется")
	}

	var store pushserver.SubscriptionStore
	if *memStore {
		logger.Info("subscriptions: in-memory")
		store = pushserver.NewMemoryStore(cfg.MaxSubsPerUser)
	} else {
		rdb := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "push: ")
		defer rdb.Close()
		logger.Info("redis connected")
		store = rdb
	}

	s := pushserver.New(store, keys, "pawsafe-push", cfg.InternalSecret)
	srv := &http.Server{
		Addr:         cfg.PushAddr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("push server listening on %s", cfg.PushAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("push server: %v", err)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("push server stopped")
}
