package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tryon/internal/config"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

// SaveOptions 控制存储后端如何持久化文件。
//
// Category 用于在磁盘上组织文件，Extension 提示首选的文件扩展名（不含前导点）。
// 当 Extension 为空时，存储实现应尝试猜测合适的扩展名。
type SaveOptions struct {
	Category     string
	Extension    string
	BaseName     string
	SkipIfExists bool
}

// Storage 是持久化二进制数据并返回存储特定标识符的抽象（例如本地存储的相对路径）。
//
// ResolveReadURL 为已保存的对象签发限时可读地址；本地存储返回静态文件路由下的
// 稳定路径，忽略 ttl。Exists 校验对象存在且大小一致（expectedSize <= 0 时只查存在性）。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	ResolveReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string, expectedSize int64) (bool, error)
}

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
// StaticRoutePrefix 是该目录必须挂载的 URL 路径，读取 URL 才能命中；
// 为空表示文件由外部服务托管，无需本地路由。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
	StaticRoutePrefix() string
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		serverBase := strings.TrimSpace(cfg.ServerBaseURL)
		if serverBase == "" {
			serverBase = fmt.Sprintf("http://127.0.0.1:%s", cfg.HTTPPort)
		}
		return NewLocalStorage(cfg.StorageLocalDir, cfg.StoragePublicBaseURL, serverBase)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
