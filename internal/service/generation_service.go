package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
	"tryon/internal/generator"
	"tryon/internal/model"
	"tryon/internal/progress"
	"tryon/internal/storage"
)

const (
	maxClothingImages = 2
	runTaskTimeout    = 15 * time.Minute
)

// GenerationService 试穿生成服务，负责任务创建与异步执行
type GenerationService struct {
	repo      model.Repository
	storage   storage.Storage
	registry  generator.Registry
	progress  progress.Channel
	signedTTL time.Duration
}

// NewGenerationService 创建生成服务实例
func NewGenerationService(repo model.Repository, store storage.Storage, registry generator.Registry, progressCh progress.Channel, signedTTL time.Duration) *GenerationService {
	if signedTTL <= 0 {
		signedTTL = 2 * time.Hour
	}
	return &GenerationService{
		repo:      repo,
		storage:   store,
		registry:  registry,
		progress:  progressCh,
		signedTTL: signedTTL,
	}
}

// CreateTask 校验输入并落库一条待执行任务。入队由调用方负责。
func (s *GenerationService) CreateTask(ctx context.Context, user *entity.DbUser, req entity.GenerateRequest) (*entity.DbGenerationTask, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}
	if _, _, err := s.loadTaskInputs(ctx, user.ID, req.BodyAssetID, req.ClothingAssetIDs, req.Provider); err != nil {
		return nil, err
	}

	task := &entity.DbGenerationTask{
		TaskID:           uuid.NewString(),
		UserID:           user.ID,
		BodyAssetID:      req.BodyAssetID,
		ClothingAssetIDs: entity.StringArray(req.ClothingAssetIDs),
		Provider:         req.Provider,
		Status:           entity.TaskStatusPending,
	}
	if err := s.repo.CreateGenerationTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  task.TaskID,
		"user_id":  user.ID,
		"provider": task.Provider,
	}).Info("generation task created")
	return task, nil
}

// loadTaskInputs 校验并加载任务输入素材
func (s *GenerationService) loadTaskInputs(ctx context.Context, userID uint, bodyAssetID string, clothingAssetIDs []string, providerKind string) (*entity.DbAsset, []*entity.DbAsset, error) {
	if !entity.ValidProvider(providerKind) {
		return nil, nil, fmt.Errorf("unknown provider: %s", providerKind)
	}
	if len(clothingAssetIDs) < 1 || len(clothingAssetIDs) > maxClothingImages {
		return nil, nil, fmt.Errorf("between 1 and %d clothing images are required", maxClothingImages)
	}

	body, err := s.repo.GetAssetByAssetID(ctx, bodyAssetID)
	if err != nil {
		return nil, nil, fmt.Errorf("load body asset: %w", err)
	}
	if body == nil || body.UserID != userID || body.Category != entity.AssetCategoryBody {
		return nil, nil, errors.New("body image not found")
	}
	if body.Status != entity.AssetStatusAvailable {
		return nil, nil, errors.New("body image is not available")
	}

	clothing, err := s.repo.ListAssetsByAssetIDs(ctx, clothingAssetIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load clothing assets: %w", err)
	}
	if len(clothing) != len(clothingAssetIDs) {
		return nil, nil, errors.New("clothing image not found")
	}
	for _, item := range clothing {
		if item.UserID != userID || item.Category != entity.AssetCategoryItem {
			return nil, nil, errors.New("clothing image not found")
		}
		if item.Status != entity.AssetStatusAvailable {
			return nil, nil, errors.New("clothing image is not available")
		}
	}

	return body, clothing, nil
}

// RunTask 执行一条生成任务。队列调用，不向队列返回错误：
// 一切失败都落在任务记录里。
func (s *GenerationService) RunTask(ctx context.Context, taskID string) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"task_id": taskID,
				"panic":   r,
			}).Error("generation task panicked")
			s.failTask(context.Background(), taskID, "internal error")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, runTaskTimeout)
	defer cancel()

	log := logrus.WithField("task_id", taskID)

	task, err := s.repo.GetGenerationTaskByTaskID(ctx, taskID)
	if err != nil {
		log.WithError(err).Error("load generation task failed")
		return
	}
	if task == nil {
		log.Error("generation task not found")
		return
	}
	if entity.TaskStatusTerminal(task.Status) {
		log.WithField("status", task.Status).Warn("task already in terminal state, skipping")
		return
	}
	if task.Status == entity.TaskStatusProcessing {
		log.Warn("task already processing, skipping")
		return
	}

	// 任何外部调用前先持久化 processing 状态
	processing := entity.TaskStatusProcessing
	if err := s.updateTaskWithRetry(ctx, taskID, entity.TaskUpdates{Status: &processing}); err != nil {
		log.WithError(err).Error("could not mark task processing")
		return
	}

	s.setProgress(ctx, taskID, 5)

	body, clothing, err := s.loadTaskInputs(ctx, task.UserID, task.BodyAssetID, task.ClothingAssetIDs.ToSlice(), task.Provider)
	if err != nil {
		log.WithError(err).Warn("task input validation failed")
		s.failTask(ctx, taskID, err.Error())
		return
	}

	gen := s.registry.Lookup(task.Provider)
	if gen == nil {
		s.failTask(ctx, taskID, fmt.Sprintf("unknown provider: %s", task.Provider))
		return
	}

	// 素材记录存在不代表 blob 还在，调用服务商前确认
	for _, asset := range append([]*entity.DbAsset{body}, clothing...) {
		ok, err := s.storage.Exists(ctx, asset.BlobKey, asset.FileSize)
		if err != nil {
			log.WithError(err).WithField("asset_id", asset.AssetID).Error("blob check failed")
			s.failTask(ctx, taskID, "could not prepare input images")
			return
		}
		if !ok {
			log.WithField("asset_id", asset.AssetID).Warn("input blob missing or size mismatch")
			s.failTask(ctx, taskID, "input image is no longer available")
			return
		}
	}

	bodyURL, err := s.storage.ResolveReadURL(ctx, body.BlobKey, s.signedTTL)
	if err != nil {
		log.WithError(err).Error("resolve body image url failed")
		s.failTask(ctx, taskID, "could not prepare input images")
		return
	}
	clothingURLs := make([]string, 0, len(clothing))
	for _, item := range clothing {
		url, err := s.storage.ResolveReadURL(ctx, item.BlobKey, s.signedTTL)
		if err != nil {
			log.WithError(err).Error("resolve clothing image url failed")
			s.failTask(ctx, taskID, "could not prepare input images")
			return
		}
		clothingURLs = append(clothingURLs, url)
	}

	s.setProgress(ctx, taskID, 10)

	req := generator.Request{
		TaskID:            taskID,
		BodyImageURL:      bodyURL,
		ClothingImageURLs: clothingURLs,
		Part:              clothing[0].Part,
		Progress: func(percent int) {
			s.setProgress(ctx, taskID, percent)
		},
		SaveProviderTask: func(ctx context.Context, providerTaskID string) error {
			return s.repo.UpdateGenerationTask(ctx, taskID, entity.TaskUpdates{ProviderTaskID: &providerTaskID})
		},
	}

	// 不自报进度的服务商在调用前后模拟粗粒度进度
	simulate := !gen.ReportsProgress()
	if simulate {
		s.setProgress(ctx, taskID, 40)
	}

	image, err := gen.Generate(ctx, req)
	if err != nil {
		log.WithError(err).WithField("provider", task.Provider).Error("generation failed")
		s.failTask(ctx, taskID, userFacingError(task.Provider, err))
		return
	}
	if simulate {
		s.setProgress(ctx, taskID, 90)
	}

	resultAsset, err := s.saveResultAsset(ctx, task, image)
	if err != nil {
		log.WithError(err).Error("persist result failed")
		s.failTask(ctx, taskID, "failed to save generated image")
		return
	}

	completed := entity.TaskStatusCompleted
	now := time.Now().UTC()
	updates := entity.TaskUpdates{
		Status:        &completed,
		ResultAssetID: &resultAsset.AssetID,
		CompletedAt:   &now,
	}
	if err := s.updateTaskWithRetry(ctx, taskID, updates); err != nil {
		log.WithError(err).Error("could not mark task completed")
		return
	}

	s.setProgress(ctx, taskID, 100)
	log.WithFields(logrus.Fields{
		"provider":        task.Provider,
		"result_asset_id": resultAsset.AssetID,
		"image_size":      len(image),
	}).Info("generation task completed")
}

// saveResultAsset 上传生成图并创建 generated 素材记录
func (s *GenerationService) saveResultAsset(ctx context.Context, task *entity.DbGenerationTask, image []byte) (*entity.DbAsset, error) {
	assetID := uuid.NewString()
	key, err := s.storage.Save(ctx, image, storage.SaveOptions{
		Category:  fmt.Sprintf("user_%d/%s", task.UserID, entity.AssetCategoryGenerated),
		Extension: "jpg",
		BaseName:  assetID,
	})
	if err != nil {
		return nil, fmt.Errorf("upload result: %w", err)
	}

	asset := &entity.DbAsset{
		AssetID:     assetID,
		UserID:      task.UserID,
		BlobKey:     key,
		FileSize:    int64(len(image)),
		Category:    entity.AssetCategoryGenerated,
		DisplayName: fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04")),
		Status:      entity.AssetStatusAvailable,
	}
	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("create result asset: %w", err)
	}
	return asset, nil
}

// failTask 统一失败出口：落终态、记录错误、补完成时间
func (s *GenerationService) failTask(ctx context.Context, taskID, message string) {
	failed := entity.TaskStatusFailed
	now := time.Now().UTC()
	updates := entity.TaskUpdates{
		Status:       &failed,
		ErrorMessage: &message,
		CompletedAt:  &now,
	}
	if err := s.updateTaskWithRetry(ctx, taskID, updates); err != nil {
		logrus.WithError(err).WithField("task_id", taskID).Error("could not mark task failed")
	}
}

// updateTaskWithRetry 持久化更新，失败后重试一次
func (s *GenerationService) updateTaskWithRetry(ctx context.Context, taskID string, updates entity.TaskUpdates) error {
	err := s.repo.UpdateGenerationTask(ctx, taskID, updates)
	if err == nil {
		return nil
	}
	logrus.WithError(err).WithField("task_id", taskID).Warn("task update failed, retrying once")

	// 原 context 可能已取消，用短超时重试
	retryCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.repo.UpdateGenerationTask(retryCtx, taskID, updates)
}

// setProgress 尽力而为写进度，失败只记录
func (s *GenerationService) setProgress(ctx context.Context, taskID string, percent int) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Set(ctx, taskID, percent); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"task_id": taskID,
			"percent": percent,
		}).Warn("progress update failed")
	}
}

// TaskStatus 合并任务记录、进度通道与结果地址为一条状态响应
func (s *GenerationService) TaskStatus(ctx context.Context, userID uint, taskID string) (*entity.TaskStatusResponse, error) {
	task, err := s.repo.GetGenerationTaskByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, nil
	}

	resp := &entity.TaskStatusResponse{
		TaskID:       task.TaskID,
		Status:       task.Status,
		Provider:     task.Provider,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		CompletedAt:  task.CompletedAt,
	}

	switch task.Status {
	case entity.TaskStatusCompleted:
		resp.Progress = 100
	case entity.TaskStatusPending:
		resp.Progress = 0
	default:
		if s.progress != nil {
			if percent, ok, err := s.progress.Get(ctx, taskID); err == nil && ok {
				resp.Progress = percent
			} else if err != nil {
				logrus.WithError(err).WithField("task_id", taskID).Warn("progress read failed")
			}
		}
	}

	if task.Status == entity.TaskStatusCompleted && task.ResultAssetID != "" {
		result, err := s.repo.GetAssetByAssetID(ctx, task.ResultAssetID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			url, err := s.storage.ResolveReadURL(ctx, result.BlobKey, s.signedTTL)
			if err != nil {
				logrus.WithError(err).WithField("task_id", taskID).Warn("resolve result url failed")
			}
			resp.Result = &entity.TaskResult{
				AssetID:     result.AssetID,
				URL:         url,
				DisplayName: result.DisplayName,
				FileSize:    result.FileSize,
				CreatedAt:   result.CreatedAt,
			}
		}
	}

	return resp, nil
}

// userFacingError 服务商拒绝原样透出，其余失败返回统一文案
func userFacingError(providerKind string, err error) string {
	if generator.IsRejection(err) {
		if msg := strings.TrimSpace(generator.Message(err)); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("generation failed using %s", providerKind)
}
