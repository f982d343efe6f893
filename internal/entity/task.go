package entity

import "time"

// Generation task states. Pending and Processing are transient; Completed and
// Failed are terminal and never transition again.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// Provider kinds. The set is closed: it is validated at task creation and
// keyed into the generator registry at dispatch.
const (
	ProviderGemini    = "gemini"
	ProviderVWFlux    = "vwflux"
	ProviderVWCatVTON = "vwcatvton"
	ProviderFitroom   = "fitroom"
)

// ValidProvider reports whether kind names a known generation backend.
func ValidProvider(kind string) bool {
	switch kind {
	case ProviderGemini, ProviderVWFlux, ProviderVWCatVTON, ProviderFitroom:
		return true
	default:
		return false
	}
}

// TaskStatusTerminal reports whether status permits no further transitions.
func TaskStatusTerminal(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

// DbGenerationTask is the durable record of one virtual-fit generation
// request. Input references and provider are immutable after creation;
// ProviderTaskID is write-once and only ever set for the fitroom provider.
type DbGenerationTask struct {
	ID               uint        `gorm:"primarykey" json:"-"`
	TaskID           string      `gorm:"column:task_id;type:varchar(64);uniqueIndex;not null" json:"task_id"`
	UserID           uint        `gorm:"column:user_id;index:idx_task_owner;not null" json:"user_id"`
	BodyAssetID      string      `gorm:"column:body_asset_id;type:varchar(64);not null" json:"body_asset_id"`
	ClothingAssetIDs StringArray `gorm:"column:clothing_asset_ids;type:text" json:"clothing_asset_ids"`
	Provider         string      `gorm:"column:provider;type:varchar(50);index" json:"provider"`
	Status           string      `gorm:"column:status;type:varchar(20);index:idx_task_owner;not null" json:"status"`
	ProviderTaskID   string      `gorm:"column:provider_task_id;type:varchar(200)" json:"provider_task_id,omitempty"`
	ErrorMessage     string      `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ResultAssetID    string      `gorm:"column:result_asset_id;type:varchar(64)" json:"result_asset_id,omitempty"`
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`
	CompletedAt      *time.Time  `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName overrides default pluralised name.
func (DbGenerationTask) TableName() string {
	return "generation_tasks"
}

// GenerateRequest is the task-creation payload.
type GenerateRequest struct {
	BodyAssetID      string   `json:"body_asset_id" binding:"required"`
	ClothingAssetIDs []string `json:"clothing_asset_ids" binding:"required"`
	Provider         string   `json:"provider" binding:"required"`
}

// TaskResult describes the generated asset inside a status response.
type TaskResult struct {
	AssetID     string    `json:"asset_id"`
	URL         string    `json:"url,omitempty"`
	DisplayName string    `json:"display_name"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskStatusResponse is the polling payload for one task.
type TaskStatusResponse struct {
	TaskID       string      `json:"task_id"`
	Status       string      `json:"status"`
	Progress     int         `json:"progress"`
	Provider     string      `json:"provider"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Result       *TaskResult `json:"result,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// TaskQuery supports listing a user's generation tasks. UserID is set by the
// handler from the authenticated session, never from client input.
type TaskQuery struct {
	BaseParams
	UserID uint   `json:"-" form:"-"`
	Status string `json:"status" form:"status" query:"status"`
}
