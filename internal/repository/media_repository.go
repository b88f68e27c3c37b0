package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uslugihub/backend/internal/models"
)

// ErrMediaNotFound — файл не найден.
var ErrMediaNotFound = errors.New("media file not found")

// MediaRepository хранит метаданные загруженных файлов.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository создаёт новый экземпляр.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create сохраняет метаданные файла.
func (r *MediaRepository) Create(ctx context.Context, m *models.MediaFile) error {
	query := `
		INSERT INTO media_files (user_id, file_path, file_type, file_size, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		m.UserID, m.FilePath, m.FileType, m.FileSize, m.IsPublic,
	).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("media repository: create %w", err)
	}
	return nil
}

// GetByID возвращает метаданные файла.
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	var m models.MediaFile
	query := `
		SELECT id, user_id, file_path, file_type, file_size, is_public, created_at
		FROM media_files WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("media repository: get by id %w", err)
	}
	return &m, nil
}

// Delete удаляет метаданные файла владельца.
func (r *MediaRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM media_files WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("media repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMediaNotFound
	}
	return nil
}
