package api

import (
	"time"

	"tryon/internal/auth"
	"tryon/internal/config"
	"tryon/internal/model"
	"tryon/internal/queue"
	"tryon/internal/service"
	"tryon/internal/storage"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	repo        model.Repository
	storage     storage.Storage
	authManager *auth.Manager

	// 服务层
	generationService *service.GenerationService
	classifyService   *service.ClassifyService

	// 任务队列，生成请求入队后由 worker 执行
	taskQueue *queue.Queue
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, generationSvc *service.GenerationService, classifySvc *service.ClassifyService, taskQueue *queue.Queue) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		authManager:       authManager,
		generationService: generationSvc,
		classifyService:   classifySvc,
		taskQueue:         taskQueue,
	}, nil
}
