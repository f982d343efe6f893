package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tryon/internal/entity"
)

// CreateAsset 创建素材记录
func (r *GormRepository) CreateAsset(ctx context.Context, asset *entity.DbAsset) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if asset == nil {
		return fmt.Errorf("asset is nil")
	}
	return r.db.WithContext(ctx).Create(asset).Error
}

// GetAssetByAssetID 根据素材 ID 查询，未找到时返回 nil
func (r *GormRepository) GetAssetByAssetID(ctx context.Context, assetID string) (*entity.DbAsset, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}

	var asset entity.DbAsset
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

// ListAssetsByAssetIDs 批量查询素材，结果顺序与传入的 ID 顺序一致，
// 缺失的 ID 被跳过
func (r *GormRepository) ListAssetsByAssetIDs(ctx context.Context, assetIDs []string) ([]*entity.DbAsset, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if len(assetIDs) == 0 {
		return []*entity.DbAsset{}, nil
	}

	var rows []*entity.DbAsset
	err := r.db.WithContext(ctx).Where("asset_id IN ?", assetIDs).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entity.DbAsset, len(rows))
	for _, row := range rows {
		byID[row.AssetID] = row
	}
	ordered := make([]*entity.DbAsset, 0, len(assetIDs))
	for _, id := range assetIDs {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// ListAssets 分页查询素材
func (r *GormRepository) ListAssets(ctx context.Context, query entity.AssetQuery) ([]*entity.DbAsset, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	db := r.db.WithContext(ctx).Model(&entity.DbAsset{})
	if query.UserID != 0 {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Category != "" {
		db = db.Where("category = ?", query.Category)
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

	var rows []*entity.DbAsset
	err := db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	return rows, r.calculatePagination(total, page, pageSize), nil
}

// UpdateAsset 按字段更新素材
func (r *GormRepository) UpdateAsset(ctx context.Context, assetID string, updates entity.AssetUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&entity.DbAsset{}).
		Where("asset_id = ?", assetID).
		Updates(updates.ToMap()).Error
}

// DeleteAsset 删除素材记录
func (r *GormRepository) DeleteAsset(ctx context.Context, assetID string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Where("asset_id = ?", assetID).Delete(&entity.DbAsset{}).Error
}
