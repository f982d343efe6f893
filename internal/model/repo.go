package model

import (
	"context"

	"tryon/internal/entity"
)

// Repository 数据访问接口
type Repository interface {
	// 用户
	CreateUser(ctx context.Context, user *entity.DbUser) error
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	CountUsers(ctx context.Context) (int64, error)

	// 素材
	CreateAsset(ctx context.Context, asset *entity.DbAsset) error
	GetAssetByAssetID(ctx context.Context, assetID string) (*entity.DbAsset, error)
	ListAssetsByAssetIDs(ctx context.Context, assetIDs []string) ([]*entity.DbAsset, error)
	ListAssets(ctx context.Context, query entity.AssetQuery) ([]*entity.DbAsset, *entity.Meta, error)
	UpdateAsset(ctx context.Context, assetID string, updates entity.AssetUpdates) error
	DeleteAsset(ctx context.Context, assetID string) error

	// 生成任务
	CreateGenerationTask(ctx context.Context, task *entity.DbGenerationTask) error
	GetGenerationTaskByTaskID(ctx context.Context, taskID string) (*entity.DbGenerationTask, error)
	UpdateGenerationTask(ctx context.Context, taskID string, updates entity.TaskUpdates) error
	ListGenerationTasks(ctx context.Context, query entity.TaskQuery) ([]*entity.DbGenerationTask, *entity.Meta, error)
	DeleteGenerationTask(ctx context.Context, taskID string) error
}
