package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/pkg/logger"
)

// LocalStorage 디스크 저장소. 파일은 Dir 에 저장되고 PublicPrefix 로 서빙됨
type LocalStorage struct {
	dir          string
	publicPrefix string
}

func NewLocalStorage(dir, publicPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, publicPrefix: publicPrefix}, nil
}

func (s *LocalStorage) Save(ctx context.Context, file *multipart.FileHeader) (*model.Photo, error) {
	filename := NewFilename(file.Filename)
	fullPath := filepath.Join(s.dir, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filename, err)
	}

	size, err := copyUpload(file, dst)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}

	logger.Debug("Photo stored on disk", map[string]interface{}{
		"filename": filename,
		"size":     size,
	})

	return &model.Photo{
		Filename:     filename,
		OriginalName: file.Filename,
		Path:         path.Join(s.publicPrefix, filename),
		Size:         size,
	}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, filename string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

func (s *LocalStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list upload dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
