package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tryon/internal/entity"
)

// CreateGenerationTask 创建生成任务
func (r *GormRepository) CreateGenerationTask(ctx context.Context, task *entity.DbGenerationTask) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// GetGenerationTaskByTaskID 根据任务 ID 查询，未找到时返回 nil
func (r *GormRepository) GetGenerationTaskByTaskID(ctx context.Context, taskID string) (*entity.DbGenerationTask, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}

	var task entity.DbGenerationTask
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// UpdateGenerationTask 按字段更新生成任务
func (r *GormRepository) UpdateGenerationTask(ctx context.Context, taskID string, updates entity.TaskUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&entity.DbGenerationTask{}).
		Where("task_id = ?", taskID).
		Updates(updates.ToMap()).Error
}

// ListGenerationTasks 分页查询生成任务
func (r *GormRepository) ListGenerationTasks(ctx context.Context, query entity.TaskQuery) ([]*entity.DbGenerationTask, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	db := r.db.WithContext(ctx).Model(&entity.DbGenerationTask{})
	if query.UserID != 0 {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	pageSize := int(query.PageSize)
	if pageSize <= 0 {
		pageSize = 20
	}
	page := int(query.Page)
	if page <= 0 {
		page = 1
	}

	var rows []*entity.DbGenerationTask
	err := db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	return rows, r.calculatePagination(total, page, pageSize), nil
}

// DeleteGenerationTask 删除生成任务记录
func (r *GormRepository) DeleteGenerationTask(ctx context.Context, taskID string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&entity.DbGenerationTask{}).Error
}
