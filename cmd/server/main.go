package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cjaradhye/burnbox/internal/auth"
	jwtpkg "github.com/cjaradhye/burnbox/internal/auth/jwt"
	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/event"
	"github.com/cjaradhye/burnbox/internal/health"
	"github.com/cjaradhye/burnbox/internal/logger"
	"github.com/cjaradhye/burnbox/internal/monitoring"
	"github.com/cjaradhye/burnbox/internal/pool"
	"github.com/cjaradhye/burnbox/internal/service"
	"github.com/cjaradhye/burnbox/internal/smtp"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/hybrid"
	"github.com/cjaradhye/burnbox/internal/storage/memory"
	"github.com/cjaradhye/burnbox/internal/storage/postgres"
	redisstore "github.com/cjaradhye/burnbox/internal/storage/redis"
	"github.com/cjaradhye/burnbox/internal/storage/s3"
	httptransport "github.com/cjaradhye/burnbox/internal/transport/http"
	"github.com/cjaradhye/burnbox/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting burnbox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis 客户端：缓存、事件发布共用
	var redisClient *redisstore.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.New(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, continuing without cache and events", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("redis connected", zap.String("address", cfg.Redis.Address))
		}
	}

	// 存储层：配置了数据库走 PostgreSQL（可叠加 Redis 缓存），否则落内存
	store, err := buildStore(cfg, redisClient, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// 附件对象存储
	blobs, err := buildBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, redisClient, log)

	tokens := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authService := auth.NewService(store, tokens, &cfg.Google, log)

	// 事件发布在有界工作池上执行
	workers := pool.NewWorkerPool(8, 256, log)
	workers.Start(ctx)
	defer workers.Stop()

	var events event.Publisher
	if redisClient != nil {
		events = event.NewRedisPublisher(redisClient.Client(), workers, log)
		log.Info("event publishing enabled")
	} else {
		events = event.NopPublisher{}
	}

	mailboxService := service.NewMailboxService(store, blobs, events, &cfg.Mailbox, log)
	mailboxService.Metrics = metrics
	messageService := service.NewMessageService(store, blobs, mailboxService, log)

	hub := websocket.NewHub(tokens, store, cfg.CORS.AllowedOrigins, log)
	ingestService := service.NewIngestService(store, blobs, events, hub, log)
	ingestService.Metrics = metrics

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		MailboxService: mailboxService,
		MessageService: messageService,
		IngestService:  ingestService,
		JWTManager:     tokens,
		Store:          store,
		WebSocketHub:   hub,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		WorkerPool:     workers,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})

	// 过期邮箱后台清理
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Mailbox.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := mailboxService.Sweep(groupCtx); err != nil {
					log.Error("mailbox sweep failed", zap.Error(err))
				}
			}
		}
	})

	// 本地开发用 SMTP 接收服务，生产环境走 SNS 推送
	if cfg.SMTP.Enabled {
		limiter := smtp.NewConnectionLimiter(100, 50)
		backend := smtp.NewBackend(ingestService, cfg.Mailbox.Domain, limiter, log)

		smtpServer := gosmtp.NewServer(backend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 10 * 1024 * 1024
		smtpServer.MaxRecipients = 50

		group.Go(func() error {
			log.Info("smtp server listening", zap.String("addr", smtpServer.Addr))
			if err := smtpServer.ListenAndServe(); err != nil {
				select {
				case <-groupCtx.Done():
					return nil
				default:
					return fmt.Errorf("smtp server: %w", err)
				}
			}
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			return smtpServer.Close()
		})
	}

	// 优雅关停
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildStore 根据配置选择持久化方案。
func buildStore(cfg *config.Config, redisClient *redisstore.Client, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.DSN == "" {
		log.Info("using in-memory storage (development mode)")
		return memory.NewStore(), nil
	}

	pg, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("postgres storage initialized")

	if redisClient != nil {
		cache := redisstore.NewCache(redisClient)
		log.Info("redis cache layer enabled")
		return hybrid.NewStore(pg, cache, log), nil
	}
	return pg, nil
}

// buildBlobStore 附件内容存储：配置了桶走 S3，否则落内存。
func buildBlobStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.BlobStore, error) {
	if cfg.S3.Bucket == "" {
		log.Info("using in-memory blob storage (development mode)")
		return storage.NewMemoryBlobStore(), nil
	}

	store, err := s3.New(ctx, &cfg.S3, log)
	if err != nil {
		return nil, fmt.Errorf("connect s3: %w", err)
	}
	log.Info("s3 blob storage initialized", zap.String("bucket", cfg.S3.Bucket))
	return store, nil
}
