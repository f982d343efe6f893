package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
	"tryon/internal/storage"
)

// 单个上传文件的大小上限
const maxUploadBytes = 20 << 20

// UploadAsset 上传身体照或服装图。multipart 字段：file、category、display_name（可选）。
func (h *HTTPHandler) UploadAsset(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	category := strings.TrimSpace(c.PostForm("category"))
	if category != entity.AssetCategoryBody && category != entity.AssetCategoryItem {
		BadRequest(c, ErrCodeInvalidRequest, "category must be body or item")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		MissingField(c, "file")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		BadRequest(c, ErrCodeInvalidRequest, "file exceeds the 20MB upload limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logrus.WithError(err).Error("failed to open uploaded file")
		InternalError(c, "failed to read upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		logrus.WithError(err).Error("failed to read uploaded file")
		InternalError(c, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		BadRequest(c, ErrCodeInvalidRequest, "file exceeds the 20MB upload limit")
		return
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		BadRequest(c, ErrCodeInvalidRequest, "only image uploads are supported")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	assetID := uuid.NewString()
	blobKey, err := h.storage.Save(ctx, data, storage.SaveOptions{
		Category:  fmt.Sprintf("user_%d/%s", user.ID, category),
		BaseName:  assetID,
		Extension: extensionForMime(mimeType, fileHeader.Filename),
	})
	if err != nil {
		logrus.WithError(err).Error("failed to persist uploaded image")
		InternalError(c, "failed to store upload")
		return
	}

	displayName := strings.TrimSpace(c.PostForm("display_name"))
	if displayName == "" {
		displayName = strings.TrimSpace(fileHeader.Filename)
	}
	if displayName == "" {
		displayName = assetID
	}

	asset := &entity.DbAsset{
		AssetID:     assetID,
		UserID:      user.ID,
		BlobKey:     blobKey,
		FileSize:    int64(len(data)),
		Category:    category,
		DisplayName: displayName,
		Status:      entity.AssetStatusAvailable,
	}
	if err := h.repo.CreateAsset(ctx, asset); err != nil {
		logrus.WithError(err).Error("failed to create asset record")
		InternalError(c, "failed to store upload")
		return
	}

	// 服装图上传后异步识别部位
	if category == entity.AssetCategoryItem {
		h.classifyService.DetectPartAsync(assetID)
	}

	c.JSON(http.StatusCreated, h.assetSummary(ctx, asset))
}

// ListAssets 按分类分页列出当前用户的素材
func (h *HTTPHandler) ListAssets(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var query entity.AssetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		InvalidPayload(c)
		return
	}
	query.UserID = user.ID

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	assets, meta, err := h.repo.ListAssets(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("failed to list assets")
		InternalError(c, "failed to list assets")
		return
	}

	summaries := make([]entity.AssetSummary, 0, len(assets))
	for _, asset := range assets {
		summaries = append(summaries, h.assetSummary(ctx, asset))
	}

	c.JSON(http.StatusOK, gin.H{
		"items": summaries,
		"meta":  meta,
	})
}

// DeleteAsset 删除当前用户的一条素材记录
func (h *HTTPHandler) DeleteAsset(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	assetID := strings.TrimSpace(c.Param("id"))
	if assetID == "" {
		MissingField(c, "id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	asset, err := h.repo.GetAssetByAssetID(ctx, assetID)
	if err != nil {
		logrus.WithError(err).Error("failed to load asset")
		InternalError(c, "failed to delete asset")
		return
	}
	if asset == nil || asset.UserID != user.ID {
		NotFound(c, ErrCodeNotFound, "asset not found")
		return
	}

	if err := h.repo.DeleteAsset(ctx, assetID); err != nil {
		logrus.WithError(err).Error("failed to delete asset")
		InternalError(c, "failed to delete asset")
		return
	}

	c.Status(http.StatusNoContent)
}

// assetSummary 组装客户端可见的素材信息，附带临时读取 URL
func (h *HTTPHandler) assetSummary(ctx context.Context, asset *entity.DbAsset) entity.AssetSummary {
	summary := entity.AssetSummary{
		AssetID:     asset.AssetID,
		Category:    asset.Category,
		Part:        asset.Part,
		DisplayName: asset.DisplayName,
		FileSize:    asset.FileSize,
		Status:      asset.Status,
		CreatedAt:   asset.CreatedAt,
	}
	url, err := h.storage.ResolveReadURL(ctx, asset.BlobKey, h.signedURLTTL())
	if err != nil {
		logrus.WithError(err).WithField("asset_id", asset.AssetID).Warn("failed to resolve asset url")
	} else {
		summary.URL = url
	}
	return summary
}

func (h *HTTPHandler) signedURLTTL() time.Duration {
	ttl := time.Duration(h.cfg.StorageSignedURLTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return ttl
}

func extensionForMime(mimeType, filename string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "jpg"
}
