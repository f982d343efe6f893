package entity

import "time"

// UserUpdates 用户更新字段
type UserUpdates struct {
	DisplayName  *string
	Role         *string
	PasswordHash *string
	IsActive     *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// AssetUpdates 资源更新字段
type AssetUpdates struct {
	Part   *string
	Status *string
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u AssetUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Part != nil {
		updates["part"] = *u.Part
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u AssetUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// TaskUpdates 生成任务更新字段
type TaskUpdates struct {
	Status         *string
	ProviderTaskID *string
	ErrorMessage   *string
	ResultAssetID  *string
	CompletedAt    *time.Time
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u TaskUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.ProviderTaskID != nil {
		updates["provider_task_id"] = *u.ProviderTaskID
	}
	if u.ErrorMessage != nil {
		updates["error_message"] = *u.ErrorMessage
	}
	if u.ResultAssetID != nil {
		updates["result_asset_id"] = *u.ResultAssetID
	}
	if u.CompletedAt != nil {
		updates["completed_at"] = *u.CompletedAt
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u TaskUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
