package entity

import "time"

// Asset categories.
const (
	AssetCategoryBody      = "body"
	AssetCategoryItem      = "item"
	AssetCategoryGenerated = "generated"
)

// Clothing part classification, populated asynchronously after upload.
const (
	PartUpper   = "upper"
	PartLower   = "lower"
	PartFullSet = "full_set"
)

// Asset availability states.
const (
	AssetStatusAvailable = "available"
	AssetStatusFailed    = "failed"
)

// DbAsset represents a stored binary image, uploaded or generated, addressed
// by an opaque AssetID. BlobKey is the storage backend key.
type DbAsset struct {
	ID          uint      `gorm:"primarykey" json:"-"`
	AssetID     string    `gorm:"column:asset_id;type:varchar(64);uniqueIndex;not null" json:"asset_id"`
	UserID      uint      `gorm:"column:user_id;index:idx_asset_owner;not null" json:"user_id"`
	BlobKey     string    `gorm:"column:blob_key;type:varchar(500);not null" json:"-"`
	FileSize    int64     `gorm:"column:file_size;not null" json:"file_size"`
	Category    string    `gorm:"column:category;type:varchar(50);index:idx_asset_owner" json:"category"`
	Part        string    `gorm:"column:part;type:varchar(50)" json:"part,omitempty"`
	DisplayName string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Status      string    `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides default pluralised name.
func (DbAsset) TableName() string {
	return "assets"
}

// ValidPart reports whether value is a recognised clothing part.
func ValidPart(value string) bool {
	switch value {
	case PartUpper, PartLower, PartFullSet:
		return true
	default:
		return false
	}
}

// AssetSummary is the client-facing form of an asset, with a transient read
// URL resolved at response time.
type AssetSummary struct {
	AssetID     string    `json:"asset_id"`
	Category    string    `json:"category"`
	Part        string    `json:"part,omitempty"`
	DisplayName string    `json:"display_name"`
	FileSize    int64     `json:"file_size"`
	Status      string    `json:"status"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssetQuery supports listing assets by category. UserID is set by the
// handler from the authenticated session, never from client input.
type AssetQuery struct {
	BaseParams
	UserID   uint   `json:"-" form:"-"`
	Category string `json:"category" form:"category" query:"category"`
}
