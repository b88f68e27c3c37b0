package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileTooLarge возвращается, когда загружаемый файл превышает лимит.
var ErrFileTooLarge = errors.New("файл превышает допустимый размер")

// MediaStore — файловое хранилище медиа. Файлы раскладываются по каталогам
// владельцев, имя составляется из владельца и метки времени, поэтому
// коллизий между загрузками нет.
type MediaStore struct {
	rootPath       string
	maxUploadBytes int64
}

// NewMediaStore создаёт хранилище в каталоге rootPath.
func NewMediaStore(rootPath string, maxUploadMB int64) (*MediaStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &MediaStore{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxUploadBytes возвращает лимит размера загрузки.
func (s *MediaStore) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save пишет файл во временное имя и атомарно переименовывает в целевое.
// Возвращает путь относительно корня хранилища и записанный размер.
func (s *MediaStore) Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	fileName := fmt.Sprintf("%s_%d%s",
		ownerID.String(), time.Now().UnixNano(), filepath.Ext(sanitizeFilename(originalName)))

	ownerDir := filepath.Join(s.rootPath, ownerID.String())
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать каталог владельца: %w", err)
	}

	targetPath := filepath.Join(ownerDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	// Читается на один байт больше лимита, чтобы отличить ровный лимит
	// от превышения.
	limited := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, ErrFileTooLarge
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.Join(ownerID.String(), fileName), written, nil
}

// Delete убирает файл из хранилища; отсутствующий файл не считается ошибкой.
func (s *MediaStore) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, relativePath)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// sanitizeFilename оставляет от клиентского имени только безопасную основу.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
