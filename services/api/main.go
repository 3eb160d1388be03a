// API сервис: чаты по объявлениям и личные сообщения, комментарии, уведомления и WebSocket-подписки.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"golang.org/x/time/rate"

	"github.com/pawsafe/internal/blob"
	"github.com/pawsafe/internal/config"
	"github.com/pawsafe/internal/handler"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/middleware"
	"github.com/pawsafe/internal/push"
	"github.com/pawsafe/internal/repository"
	"github.com/pawsafe/internal/service"
	"github.com/pawsafe/internal/startup"
	"github.com/pawsafe/internal/storage"
	"github.com/pawsafe/internal/storage/memory"
	"github.com/pawsafe/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and trusted X-User-Id auth")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	defer logger.Flush()

	if *dev && cfg.StoreBackend == config.StorePostgres {
		embeddedDB, err := startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	store, closeStore := openStore(cfg)
	defer closeStore()
	if *migrate {
		logger.Info("migrations applied")
		return
	}

	blobs, local := openBlobs(cfg)

	users := repository.NewUserRepository(store)
	blocks := repository.NewBlockRepository(store)
	friends := repository.NewFriendRepository(store)
	reports := repository.NewReportRepository(store)
	posts := repository.NewPostRepository(store)
	comments := repository.NewCommentRepository(store)
	messages := repository.NewMessageRepository(store)
	threads := repository.NewThreadRepository(store, messages, users, reports)
	notifications := repository.NewNotificationRepository(store)

	pushClient := push.NewClient(cfg.PushServiceURL, cfg.InternalSecret)
	if !pushClient.Enabled() {
		logger.Info("PUSH_SERVICE_URL not set: push disabled, notifications are stored only")
	}
	fanout := service.NewFanout(notifications, pushClient, cfg.FanoutConcurrency)
	proximity := service.NewProximityMatcher(reports, fanout, cfg.ProximityRadiusKm)
	chat := service.NewChatService(threads, messages, blocks, reports, users, blobs, fanout)
	social := service.NewSocialService(blocks, friends, posts, users, fanout)
	commentSvc := service.NewCommentService(comments, posts, reports, users, service.NewMentionResolver(users), fanout)
	reportSvc := service.NewReportService(reports, proximity)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(threads, messages, notifications, cfg.MaxWSConnections)
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	h := handler.Handlers{
		Chat:         handler.NewChatHandler(chat, cfg.MaxUploadSize),
		Message:      handler.NewMessageHandler(chat),
		Social:       handler.NewSocialHandler(social, posts),
		Comment:      handler.NewCommentHandler(commentSvc),
		Report:       handler.NewReportHandler(reportSvc),
		Notification: handler.NewNotificationHandler(notifications),
		User:         handler.NewUserHandler(users),
		Push:         handler.NewPushHandler(pushClient),
		WS:           handler.NewWSHandler(hub, cfg.CORSAllowedOrigins),
	}
	if local != nil {
		h.File = handler.NewFileHandler(local)
	}

	var auth func(http.Handler) http.Handler
	switch {
	case cfg.AuthServiceURL != "":
		auth = middleware.AuthServiceValidate(cfg.AuthServiceURL, nil)
	case *dev:
		logger.Info("dev mode: X-User-Id header is trusted")
		auth = middleware.TrustedUserHeader
	default:
		logger.Errorf("AUTH_SERVICE_URL is required (use -dev for trusted X-User-Id)")
		os.Exit(1)
	}

	perSecond := rate.Limit(cfg.RateLimitPerSecond)
	r := handler.NewRouter(h, handler.RouterOptions{
		Auth:        auth,
		CORSOrigins: cfg.CORSAllowedOrigins,
		RateByIP:    middleware.NewKeyRateLimiter(perSecond*2, cfg.RateLimitBurst*2),
		RateByUser:  middleware.NewKeyRateLimiter(perSecond, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	proximity.Wait()
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// openStore выбирает документное хранилище по STORE_BACKEND.
func openStore(cfg *config.Config) (storage.Store, func()) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Info("store: in-memory (data is lost on restart)")
		s := memory.New()
		return s, func() { _ = s.Close() }
	case config.StoreMongo:
		s := startup.ConnectMongoWithRetry(cfg.Mongo.URI, cfg.Mongo.Database, 60*time.Second, "")
		logger.Infof("store: mongo %s", cfg.Mongo.Database)
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Errorf("mongo close: %v", err)
			}
		}
	case config.StorePostgres:
		s, pool, err := startup.OpenPostgresStore(cfg.DatabaseURL(), cfg.DBMaxConnections(), "")
		if err != nil {
			logger.Errorf("postgres: %v", err)
			os.Exit(1)
		}
		logger.Info("store: postgres, migrations applied")
		return s, func() {
			_ = s.Close()
			pool.Close()
		}
	}
	logger.Errorf("unknown STORE_BACKEND %q (memory | postgres | mongo)", cfg.StoreBackend)
	os.Exit(1)
	return nil, nil
}

// openBlobs выбирает хранилище изображений. local != nil только для локального диска (его раздаёт /api/files).
func openBlobs(cfg *config.Config) (blob.Store, *blob.LocalStore) {
	if cfg.BlobBackend == config.BlobS3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s3, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			logger.Errorf("s3: %v", err)
			os.Exit(1)
		}
		logger.Infof("blobs: s3 bucket %s", cfg.S3.Bucket)
		return s3, nil
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Errorf("upload dir: %v", err)
		os.Exit(1)
	}
	local := blob.NewLocalStore(cfg.UploadDir, cfg.PublicFileURL)
	logger.Infof("blobs: local %s", cfg.UploadDir)
	return local, local
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "pawsafe"
		password = "pawsafe_secret"
		database = "pawsafe"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "pawsafe-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
