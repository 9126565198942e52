package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"printsync/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageExists   = errors.New("image with this fingerprint already exists")
	// ErrImageMissing is returned when a product references an image row that no longer exists
	ErrImageMissing = errors.New("referenced image no longer exists")
)

// ImageRepository persists fingerprinted image assets
type ImageRepository interface {
	Create(ctx context.Context, image *domain.ImageAsset) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.ImageAsset, error)
	// FindBySourceURL returns the most recently stored asset downloaded from url.
	FindBySourceURL(ctx context.Context, url string) (*domain.ImageAsset, error)
	// DeleteUnreferenced removes the image only if no product uses it as primary or
	// gallery image, in a single statement. It returns ErrImageNotFound when the row
	// is missing or still referenced.
	DeleteUnreferenced(ctx context.Context, id uuid.UUID) (*domain.ImageAsset, error)
}

type imageRepository struct {
	db *sql.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *sql.DB) ImageRepository {
	return &imageRepository{db: db}
}

const imageColumns = `id, fingerprint, source_url, storage_location, content_type, created_at`

func (r *imageRepository) Create(ctx context.Context, image *domain.ImageAsset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (`+imageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, image.ID, image.Fingerprint, image.SourceURL, image.StorageLocation, image.ContentType, image.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrImageExists
		}
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

func (r *imageRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.ImageAsset, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+` FROM images WHERE fingerprint = $1
	`, fingerprint))
}

func (r *imageRepository) FindBySourceURL(ctx context.Context, url string) (*domain.ImageAsset, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+` FROM images WHERE source_url = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, url))
}

func (r *imageRepository) DeleteUnreferenced(ctx context.Context, id uuid.UUID) (*domain.ImageAsset, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		DELETE FROM images i
		WHERE i.id = $1
		  AND NOT EXISTS (SELECT 1 FROM products p WHERE p.primary_image_id = i.id)
		  AND NOT EXISTS (SELECT 1 FROM product_gallery g WHERE g.image_id = i.id)
		RETURNING `+imageColumns+`
	`, id))
}

func (r *imageRepository) scanOne(row *sql.Row) (*domain.ImageAsset, error) {
	image := &domain.ImageAsset{}
	err := row.Scan(
		&image.ID,
		&image.Fingerprint,
		&image.SourceURL,
		&image.StorageLocation,
		&image.ContentType,
		&image.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	return image, nil
}
