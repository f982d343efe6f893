package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists files to the local filesystem.
type LocalStorage struct {
	baseDir     string
	readBaseURL string
	routePrefix string
}

// NewLocalStorage creates a LocalStorage instance. The directory is created if
// it does not exist. publicBaseURL is either the HTTP route prefix under which
// the base directory is served or a full external URL; serverBaseURL supplies
// the origin when publicBaseURL is a bare prefix. Read URLs must come out
// absolute because the provider adapters download inputs with a plain HTTP
// client.
func NewLocalStorage(baseDir, publicBaseURL, serverBaseURL string) (*LocalStorage, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		baseDir = "datas/images"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	publicBaseURL = strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if publicBaseURL == "" {
		publicBaseURL = "/files"
	}

	var readBaseURL, routePrefix string
	if strings.HasPrefix(publicBaseURL, "http://") || strings.HasPrefix(publicBaseURL, "https://") {
		parsed, err := url.Parse(publicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse public base url: %w", err)
		}
		readBaseURL = publicBaseURL
		// 根路径挂载会和 API 路由冲突，交给外部服务托管
		routePrefix = strings.TrimRight(parsed.Path, "/")
	} else {
		if !strings.HasPrefix(publicBaseURL, "/") {
			publicBaseURL = "/" + publicBaseURL
		}
		serverBaseURL = strings.TrimRight(strings.TrimSpace(serverBaseURL), "/")
		if !strings.HasPrefix(serverBaseURL, "http://") && !strings.HasPrefix(serverBaseURL, "https://") {
			return nil, errors.New("local storage needs an absolute server base url to build read urls")
		}
		readBaseURL = serverBaseURL + publicBaseURL
		routePrefix = publicBaseURL
	}

	return &LocalStorage{baseDir: baseDir, readBaseURL: readBaseURL, routePrefix: routePrefix}, nil
}

// LocalBaseDir returns the root directory used for storing files.
func (s *LocalStorage) LocalBaseDir() string {
	return s.baseDir
}

// StaticRoutePrefix returns the URL path under which LocalBaseDir must be
// served for read URLs to resolve. Empty means the files are published by an
// external host and no local route is needed.
func (s *LocalStorage) StaticRoutePrefix() string {
	return s.routePrefix
}

// Save writes the provided bytes to disk and returns a relative path that can
// later be used to build a public URL.
func (s *LocalStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	relativePath := buildObjectPath(opts.Category, opts.BaseName, opts.Extension)

	absDir := filepath.Join(s.baseDir, filepath.FromSlash(path.Dir(relativePath)))
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	absPath := filepath.Join(s.baseDir, filepath.FromSlash(relativePath))
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return relativePath, nil
}

// ResolveReadURL returns a stable absolute URL under the static file route.
// Local files need no signing, so ttl is ignored.
func (s *LocalStorage) ResolveReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("empty storage key")
	}
	return s.readBaseURL + "/" + key, nil
}

// Exists reports whether the file is on disk, checking size when expectedSize
// is positive.
func (s *LocalStorage) Exists(_ context.Context, key string, expectedSize int64) (bool, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return false, errors.New("empty storage key")
	}
	info, err := os.Stat(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if expectedSize > 0 && info.Size() != expectedSize {
		return false, nil
	}
	return true, nil
}

var _ Storage = (*LocalStorage)(nil)
var _ LocalBaseDirProvider = (*LocalStorage)(nil)
