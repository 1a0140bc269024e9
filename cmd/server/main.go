package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	config "github.com/maheshrc27/publish-engine/configs"
	"github.com/maheshrc27/publish-engine/internal/api/handlers"
	"github.com/maheshrc27/publish-engine/internal/api/middleware"
	"github.com/maheshrc27/publish-engine/internal/cache"
	"github.com/maheshrc27/publish-engine/internal/capability"
	"github.com/maheshrc27/publish-engine/internal/events"
	job "github.com/maheshrc27/publish-engine/internal/jobs"
	"github.com/maheshrc27/publish-engine/internal/media"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/orchestrator"
	"github.com/maheshrc27/publish-engine/internal/publisher"
	"github.com/maheshrc27/publish-engine/internal/queue"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/internal/scheduler"
	"github.com/maheshrc27/publish-engine/internal/service"
	"github.com/maheshrc27/publish-engine/internal/token"
	"github.com/maheshrc27/publish-engine/internal/validation"
	"github.com/maheshrc27/publish-engine/pkg/logging"
	"github.com/maheshrc27/publish-engine/pkg/telemetry"
	"github.com/maheshrc27/publish-engine/pkg/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()
	logger := logging.WithComponent("main")

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		logger.Fatal("database is unreachable", zap.Error(err))
	}

	redisConn := redisConnOpt(cfg.RedisURI)
	client := asynq.NewClient(redisConn)
	defer client.Close()

	// Creator info is shared across instances; page tokens are secrets and
	// stay in process memory.
	var creatorCache cache.Cache
	if rc, err := cache.NewRedis(ctx, cfg.RedisURI); err != nil {
		logger.Warn("redis cache unavailable, using in-process cache", zap.Error(err))
		creatorCache = cache.NewMemory(4096, cfg.Publishing.CreatorInfoTTL)
	} else {
		defer rc.Close()
		creatorCache = rc
	}
	pageTokenCache := cache.NewMemory(4096, cfg.Publishing.PageTokenTTL)

	var eventPublisher events.Publisher = events.NoopPublisher{}
	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL)
		if err != nil {
			logger.Warn("nats unavailable, events disabled", zap.Error(err))
		} else {
			defer nc.Drain()
			eventPublisher = events.NewNatsPublisher(nc)
		}
	}

	httpClient := utils.NewHTTPClient(cfg.Publishing.TargetTimeout)

	var bucket media.ObjectGetter
	if cfg.R2.AccountID != "" {
		r2, err := media.NewR2Client(ctx, cfg.R2.AccountID, cfg.R2.AccessKey, cfg.R2.SecretKey)
		if err != nil {
			logger.Fatal("failed to create r2 client", zap.Error(err))
		}
		bucket = r2
	}
	mediaSource := media.NewSource(httpClient, bucket, cfg.R2.BucketName, cfg.R2.PublicURL)

	cipher, err := utils.NewTokenCipher([]byte(cfg.EncryptionKey))
	if err != nil {
		logger.Fatal("failed to create token cipher", zap.Error(err))
	}

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	facebookGraph := token.DefaultFacebookGraphURL + "/" + cfg.GraphAPIVersion
	tokenManager := token.NewManager(socialAccountRepo, cipher, map[models.Platform]token.Strategy{
		models.PlatformInstagram: token.NewInstagramStrategy(httpClient, ""),
		models.PlatformFacebook:  token.NewFacebookStrategy(httpClient, facebookGraph, cfg.Facebook.ClientID, cfg.Facebook.ClientSecret),
		models.PlatformTiktok:    token.NewTiktokStrategy(httpClient, "", cfg.Tiktok.ClientID, cfg.Tiktok.ClientSecret),
		models.PlatformYoutube:   token.NewYoutubeStrategy(cfg.Google.ClientID, cfg.Google.ClientSecret, httpClient),
		models.PlatformTwitter:   token.NewTwitterStrategy(cfg.Twitter.ClientID, cfg.Twitter.ClientSecret, httpClient),
		models.PlatformLinkedin:  token.NoRefreshStrategy{},
	}, eventPublisher, cfg.Publishing.RefreshLookahead)

	pubCfg := publisher.Config{
		HTTPClient:   httpClient,
		Backoff:      cfg.Publishing.StepBackoff,
		PollInterval: cfg.Publishing.VideoPollInterval,
		PollTimeout:  cfg.Publishing.VideoPollTimeout,
	}
	instagramCfg := pubCfg
	instagramCfg.BaseURL = "https://graph.instagram.com/" + cfg.GraphAPIVersion
	facebookCfg := pubCfg
	facebookCfg.BaseURL = facebookGraph

	publishers := publisher.Registry{
		models.PlatformInstagram: publisher.NewInstagram(instagramCfg),
		models.PlatformFacebook:  publisher.NewFacebook(facebookCfg, pageTokenCache, cfg.Publishing.PageTokenTTL),
		models.PlatformTiktok:    publisher.NewTiktok(pubCfg, creatorCache, cfg.Publishing.CreatorInfoTTL),
		models.PlatformYoutube:   publisher.NewYoutube(pubCfg, mediaSource),
		models.PlatformLinkedin:  publisher.NewLinkedin(pubCfg, mediaSource, cfg.LinkedinVersion),
		models.PlatformTwitter:   publisher.NewTwitter(pubCfg, mediaSource),
	}

	validator := validation.New(capability.Default)
	orch := orchestrator.NewOrchestrator(postRepo, attemptRepo, socialAccountRepo, tokenManager, validator, publishers,
		eventPublisher, orchestrator.Options{
			TargetConcurrency: cfg.Publishing.TargetConcurrency,
			TargetTimeout:     cfg.Publishing.TargetTimeout,
		})
	sched := scheduler.New(postRepo, orch, scheduler.Options{
		BatchSize:       cfg.Publishing.SchedulerBatch,
		PostConcurrency: cfg.Publishing.PostConcurrency,
	})

	dispatcher := queue.NewDispatcher(client)
	postService := service.NewPostService(postRepo, socialAccountRepo, attemptRepo, validator, orch, dispatcher,
		cfg.Publishing.StaleAfter)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.SchedulerSecret)

	health := handlers.NewHealthHandler(db)
	app.Get("/healthz", health.Healthz)

	internal := app.Group("/internal", authMiddleware.SchedulerSecret())
	internal.Post("/scheduler/tick", handlers.NewSchedulerHandler(sched).Tick)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts", post.CreatePost)
	api.Post("/posts/validate", post.ValidatePost)
	api.Get("/posts/:id/result", post.PostResult)
	api.Post("/posts/:id/republish", post.RepublishPost)

	// cron jobs
	schedulerJob := job.NewSchedulerJob(sched)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokenManager, cfg.Publishing.RefreshLookahead, 10)

	c := cron.New()
	if err := c.AddFunc(cfg.SchedulerSpec, schedulerJob.Run); err != nil {
		logger.Fatal("invalid scheduler spec", zap.String("spec", cfg.SchedulerSpec), zap.Error(err))
	}
	if err := c.AddFunc(cfg.TokenRefreshSpec, refreshTokenJob.RefreshTokens); err != nil {
		logger.Fatal("invalid token refresh spec", zap.String("spec", cfg.TokenRefreshSpec), zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	// queue
	queueW := queue.NewQueue(postRepo, orch)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.QueueConcurrency,
		Logger:      logging.GetLogger().Sugar(),
	})
	go func() {
		mux := asynq.NewServeMux()
		queueW.Register(mux)

		logger.Info("starting the asynq server")
		if err := server.Run(mux); err != nil {
			logger.Fatal("could not start asynq server", zap.Error(err))
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()
	logger.Info("server is running", zap.String("port", cfg.Port))

	gracefulShutdown(app, server, logger)
}

// redisConnOpt accepts a redis:// URL or a bare host:port.
func redisConnOpt(uri string) asynq.RedisConnOpt {
	if opt, err := asynq.ParseRedisURI(uri); err == nil {
		return opt
	}
	return asynq.RedisClientOpt{Addr: uri}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	server.Shutdown()
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logger.Error("failed to shut down server", zap.Error(err))
	}

	logger.Info("server shutdown complete")
}
