package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codebattle/internal/common/cache"
	commonmw "codebattle/internal/common/http/middleware"
	"codebattle/internal/common/mq"
	"codebattle/internal/common/storage"
	"codebattle/internal/match/controller"
	"codebattle/internal/match/repository"
	"codebattle/internal/match/sandbox"
	"codebattle/internal/match/service"
	"codebattle/internal/match/transport/ws"
	"codebattle/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/match_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	producer, err := mq.NewKafkaProducer(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = producer.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	harness := sandbox.NewFileHarness(appCfg.Match.HarnessDir)
	runner, err := sandbox.NewRunner(appCfg.Judge, harness)
	if err != nil {
		logger.Error(context.Background(), "init judge runner failed", zap.Error(err))
		return
	}

	queueRepo := repository.NewQueueRepository(redisCache)
	roomRepo := repository.NewRoomRepository(redisCache)
	sessionRepo := repository.NewSessionRepository(redisCache)
	eventPublisher := repository.NewMQResultEventPublisher(producer, appCfg.Result.Topic)
	archiver := repository.NewLogArchiver(objStorage, appCfg.Result.Bucket)

	hub := ws.NewHub()
	resultPublisher := service.NewResultPublisher(roomRepo, sessionRepo, hub, eventPublisher, archiver)
	roomSvc := service.NewRoomService(roomRepo, runner, resultPublisher, hub, appCfg.Match.RunTimeout)
	queueSvc := service.NewQueueService(queueRepo, appCfg.Match.GameTypes)
	disconnectSvc := service.NewDisconnectService(sessionRepo, roomRepo, queueSvc, resultPublisher)
	matcher := service.NewMatcher(queueRepo, roomRepo, sessionRepo, runner, hub, matcherConfig(appCfg))

	auth := ws.NewAuthenticator(appCfg.Auth.JWTSecret, appCfg.Auth.JWTIssuer)
	wsHandler := ws.NewHandler(hub, auth, queueSvc, roomSvc, roomRepo, sessionRepo, disconnectSvc)

	matcher.Start(context.Background())

	httpServer := buildHTTPServer(appCfg.Server, wsHandler, queueRepo, roomRepo, runner, redisCache)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		matcher.Stop()
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "match http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	matcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, wsHandler *ws.Handler, queueRepo *repository.QueueRepository, roomRepo *repository.RoomRepository, runner *sandbox.Runner, redisCache *cache.RedisCache) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/ws", gin.WrapH(wsHandler))
	router.GET("/healthz", func(c *gin.Context) {
		if err := redisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1/match")
	matchController := controller.NewMatchController(queueRepo, roomRepo, runner)
	api.GET("/queues/:gameType", matchController.GetQueueSize)
	api.GET("/matches/:id", matchController.GetMatch)
	api.POST("/compile", matchController.CompileCode)

	return &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
