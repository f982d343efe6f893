package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tryon/internal/api"
	"tryon/internal/config"
	"tryon/internal/generator"
	"tryon/internal/model"
	"tryon/internal/progress"
	"tryon/internal/queue"
	"tryon/internal/service"
	"tryon/internal/storage"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	if err := model.SeedAdminUser(context.Background(), repo, &cfg); err != nil {
		logrus.WithError(err).Warn("failed to seed admin user")
	}

	backend, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}
	store := storage.NewReadURLCache(backend)

	progressCh, err := progress.NewChannel(cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise progress channel")
		return
	}
	defer progressCh.Close()

	signedTTL := time.Duration(cfg.StorageSignedURLTTLSeconds) * time.Second
	registry := generator.NewRegistry(cfg)
	generationSvc := service.NewGenerationService(repo, store, registry, progressCh, signedTTL)
	classifySvc := service.NewClassifyService(repo, store, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ClassifyModel, signedTTL)

	taskQueue := queue.New(cfg.QueueCapacity, cfg.WorkerCount, generationSvc.RunTask)
	taskQueue.Start()

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, generationSvc, classifySvc, taskQueue)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)
	authGroup.PATCH("/me", httpHandler.AuthMiddleware(), httpHandler.UpdateMe)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())
	protected.POST("/assets", httpHandler.UploadAsset)
	protected.GET("/assets", httpHandler.ListAssets)
	protected.DELETE("/assets/:id", httpHandler.DeleteAsset)
	protected.POST("/virtual-fit/generate", httpHandler.CreateGeneration)
	protected.GET("/virtual-fit/tasks", httpHandler.ListTasks)
	protected.GET("/virtual-fit/tasks/:id", httpHandler.GetTask)
	protected.DELETE("/virtual-fit/tasks/:id", httpHandler.DeleteTask)

	admin := protected.Group("/admin")
	admin.Use(httpHandler.RequireAdmin())
	admin.GET("/tasks", httpHandler.AdminListTasks)

	if localProvider, ok := backend.(storage.LocalBaseDirProvider); ok {
		if prefix := localProvider.StaticRoutePrefix(); prefix != "" {
			r.Static(prefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("服务器启动失败")
		}
	}()

	// 等待退出信号，先停 HTTP 再排空任务队列
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("服务器关闭中")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http server shutdown failed")
	}
	taskQueue.Stop()
	logger.Info("服务器已退出")
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
