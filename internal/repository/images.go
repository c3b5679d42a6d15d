package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitlabs/orbit-api/internal/model"
)

const imageColumns = `id, order_id, original_filename, storage_path_original,
	storage_path_processed, processing_status, retry_count, last_error,
	last_error_type, ai_analysis, file_size, mime_type, created_at, updated_at`

// ImageRepository wraps all image SQL used by the workflow and validators.
type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func scanImage(row pgx.Row) (*model.Image, error) {
	var img model.Image
	err := row.Scan(
		&img.ID, &img.OrderID, &img.OriginalFilename, &img.StoragePathOriginal,
		&img.StoragePathProcessed, &img.ProcessingStatus, &img.RetryCount,
		&img.LastError, &img.LastErrorType, &img.AIAnalysis, &img.FileSize,
		&img.MimeType, &img.CreatedAt, &img.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}
	return &img, nil
}

// ListByOrder returns all images for an order in database order.
func (r *ImageRepository) ListByOrder(ctx context.Context, orderID string) ([]model.Image, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+imageColumns+` FROM images WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// CountByStatus groups the order's images by processing status.
func (r *ImageRepository) CountByStatus(ctx context.Context, orderID string) (map[model.ImageStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT processing_status, COUNT(*) FROM images
		WHERE order_id=$1 GROUP BY processing_status
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ImageStatus]int)
	for rows.Next() {
		var status model.ImageStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan image count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MarkProcessing flags an image as in flight.
func (r *ImageRepository) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images SET processing_status='processing', updated_at=now()
		WHERE id=$1
	`, id)
	if err != nil {
		return fmt.Errorf("mark image processing: %w", err)
	}
	return nil
}

// MarkRetrying records a failed attempt before the retry sleep.
func (r *ImageRepository) MarkRetrying(ctx context.Context, id string, retryCount int, errMsg, errType string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images
		SET processing_status='retrying', retry_count=$1,
			last_error=$2, last_error_type=$3, updated_at=now()
		WHERE id=$4
	`, retryCount, errMsg, errType, id)
	if err != nil {
		return fmt.Errorf("mark image retrying: %w", err)
	}
	return nil
}

// MarkCompleted stores the processed path and analysis payload. A completed
// image always carries both, and successful recovery clears the retry
// bookkeeping left behind by earlier attempts.
func (r *ImageRepository) MarkCompleted(ctx context.Context, id, processedPath string, analysis json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images
		SET processing_status='completed', storage_path_processed=$1,
			ai_analysis=$2, retry_count=0, last_error=NULL, last_error_type=NULL,
			updated_at=now()
		WHERE id=$3
	`, processedPath, analysis, id)
	if err != nil {
		return fmt.Errorf("mark image completed: %w", err)
	}
	return nil
}

// MarkFailed transitions an image to its terminal error state.
func (r *ImageRepository) MarkFailed(ctx context.Context, id string, retryCount int, errMsg, errType string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images
		SET processing_status='error', retry_count=$1,
			last_error=$2, last_error_type=$3, updated_at=now()
		WHERE id=$4
	`, retryCount, errMsg, errType, id)
	if err != nil {
		return fmt.Errorf("mark image failed: %w", err)
	}
	return nil
}

// StoreAnalysis persists the analysis payload as soon as it is available so
// a later embedding failure does not lose the extraction.
func (r *ImageRepository) StoreAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images SET ai_analysis=$1, updated_at=now() WHERE id=$2
	`, analysis, id)
	if err != nil {
		return fmt.Errorf("store image analysis: %w", err)
	}
	return nil
}
