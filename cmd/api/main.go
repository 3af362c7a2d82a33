package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mundodelosninos/mundo-de-los-ninos-sub001/api/swagger"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/handler"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/integration/calendar"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/middleware"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/repository"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/ws"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/cache"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/config"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/database"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/jobs"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/logger"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/mailer"
	corsmiddleware "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/middleware/requestid"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/storage"
)

// @title Centro Ludico API
// @version 1.0.0
// @description Daycare management backend with role based visibility
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Chat.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	chatRepo := repository.NewChatRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	relationRepo := repository.NewRelationRepository(db)

	policy := authz.NewPolicy(relationRepo)
	validate := validator.New()

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	store, err := storage.NewObjectStore(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL, signer)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object store", "error", err)
	}

	mailSender := mailer.NewSMTPSender(cfg.SMTP, logr)

	authSvc := service.NewAuthService(userRepo, tokenRepo, studentRepo, mailSender, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		PasswordResetTTL:   cfg.Invitations.PasswordResetTTL,
		ParentInviteTTL:    cfg.Invitations.ParentInviteTTL,
		BaseURL:            cfg.BaseURL,
		Production:         cfg.Env == config.EnvProduction,
	})
	userSvc := service.NewUserService(userRepo, relationRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, policy, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, policy, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, policy, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, policy, validate, logr)
	metricsSvc := service.NewMetricsService()
	exportSvc := service.NewExportService(attendanceSvc, logr)
	mediaSvc := service.NewMediaService(mediaRepo, store, policy, validate, logr, service.MediaConfig{
		MaxFileSize:  cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	})

	// NewSyncer returns nil when no provider is configured; assigning a
	// typed nil to the interface would defeat the nil checks downstream.
	var syncer service.ExternalCalendarSyncer
	if cfg.CalendarSync.Enabled {
		if s := calendar.NewSyncer(cfg.CalendarSync, logr); s != nil {
			syncer = s
		}
	}

	var calendarSvc *service.CalendarService
	if syncer != nil {
		syncQueue := jobs.NewQueue(service.SyncJobType, func(ctx context.Context, job jobs.Job) error {
			return calendarSvc.HandleSyncJob(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Jobs.Workers,
			MaxRetries: cfg.Jobs.MaxRetries,
			RetryDelay: cfg.Jobs.RetryDelay,
			Logger:     logr,
		})
		calendarSvc = service.NewCalendarService(calendarRepo, policy, syncer, syncQueue, validate, logr)
		syncQueue.Start(ctx)
		defer syncQueue.Stop()
	} else {
		calendarSvc = service.NewCalendarService(calendarRepo, policy, nil, nil, validate, logr)
	}

	var publisher service.MessagePublisher
	var chatGateway gin.HandlerFunc
	var presence *ws.Presence
	var chatSvc *service.ChatService
	if cfg.Chat.Enabled {
		hub := ws.NewHub()
		publisher = ws.NewRedisPublisher(rdb, cfg.Chat.ChannelPrefix)
		presence = ws.NewPresence(rdb, cfg.Chat.ChannelPrefix, logr)

		subscriber := ws.NewSubscriber(rdb, cfg.Chat.ChannelPrefix, hub, logr)
		go func() {
			if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
				logr.Sugar().Warnw("chat subscriber stopped", "error", err)
			}
		}()

		chatSvc = service.NewChatService(chatRepo, userRepo, policy, publisher, validate, logr)
		gateway := ws.NewGateway(hub, authSvc, chatSvc, metricsSvc, presence, cfg.Chat.WriteTimeout, logr)
		chatGateway = gateway.HandleRoom
	} else {
		chatSvc = service.NewChatService(chatRepo, userRepo, policy, nil, validate, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.Register(r, handler.Routes{
		APIPrefix:   cfg.APIPrefix,
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Groups:      handler.NewGroupHandler(groupSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Activities:  handler.NewActivityHandler(activitySvc),
		Chat:        handler.NewChatHandler(chatSvc, presence),
		Calendar:    handler.NewCalendarHandler(calendarSvc),
		Media:       handler.NewMediaHandler(mediaSvc, signer),
		Exports:     handler.NewExportHandler(exportSvc),
		Health:      handler.NewHealthHandler(db, rdb),
		AuthService: authSvc,
		Metrics:     metricsSvc,
		ChatGateway: chatGateway,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
