package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS   ObjectStorageMode = "gcs"
	ObjectStorageModeLocal ObjectStorageMode = "local"
)

// ResolveBucketService picks the media store from OBJECT_STORAGE_MODE.
// Local mode writes under MEDIA_LOCAL_DIR and serves files from
// MEDIA_LOCAL_BASE_URL; it exists for development and CI, not production.
func ResolveBucketService(log *logger.Logger) (BucketService, error) {
	mode := ObjectStorageMode(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE")))
	if mode == "" {
		mode = ObjectStorageModeGCS
	}
	switch mode {
	case ObjectStorageModeGCS:
		return NewBucketService(log)
	case ObjectStorageModeLocal:
		return NewLocalBucketService(log)
	default:
		return nil, fmt.Errorf("unsupported object storage mode %q", mode)
	}
}

type localBucketService struct {
	log     *logger.Logger
	baseDir string
	baseURL string
}

func NewLocalBucketService(log *logger.Logger) (BucketService, error) {
	baseDir := strings.TrimSpace(os.Getenv("MEDIA_LOCAL_DIR"))
	if baseDir == "" {
		return nil, fmt.Errorf("missing env var MEDIA_LOCAL_DIR")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	baseURL := strings.TrimSpace(os.Getenv("MEDIA_LOCAL_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:8080/media"
	}
	return &localBucketService{
		log:     log.With("service", "LocalBucketService"),
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (ls *localBucketService) pathFor(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty object key")
	}
	return filepath.Join(ls.baseDir, clean), nil
}

func (ls *localBucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	p, err := ls.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, file); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (ls *localBucketService) DeleteFile(ctx context.Context, key string) error {
	p, err := ls.pathFor(key)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (ls *localBucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := ls.pathFor(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (ls *localBucketService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	out := []string{}
	err := filepath.Walk(ls.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(ls.baseDir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return out, nil
	}
	return out, err
}

func (ls *localBucketService) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := ls.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = ls.DeleteFile(ctx, k)
	}
	return nil
}

func (ls *localBucketService) GetPublicURL(key string) string {
	return ls.baseURL + "/" + key
}
