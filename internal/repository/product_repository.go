package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"printsync/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this external id already exists")
)

// ProductRepository defines the interface for local product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.LocalProduct) error
	Update(ctx context.Context, product *domain.LocalProduct) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LocalProduct, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.LocalProduct, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.LocalProduct, int, error)
	SetAttributes(ctx context.Context, productID uuid.UUID, attributes []domain.ProductAttribute) error
	SetGallery(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, external_id, title, description, status, tags, primary_image_id,
	displayed_price, max_price, provider_id, blueprint_id, print_areas, last_synced_at,
	created_at, updated_at`

// Create inserts a new product; the external id must not exist yet
func (r *productRepository) Create(ctx context.Context, product *domain.LocalProduct) error {
	tags, err := json.Marshal(nonNilTags(product.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.ExternalID,
		product.Title,
		product.Description,
		product.Status,
		tags,
		nullableUUID(product.PrimaryImageID),
		product.DisplayedPrice,
		product.MaxPrice,
		product.ProviderID,
		product.BlueprintID,
		nullableJSON(product.PrintAreas),
		product.LastSyncedAt,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.LocalProduct) error {
	tags, err := json.Marshal(nonNilTags(product.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		UPDATE products
		SET title = $2, description = $3, status = $4, tags = $5, primary_image_id = $6,
		    displayed_price = $7, max_price = $8, provider_id = $9, blueprint_id = $10,
		    print_areas = $11, last_synced_at = $12, updated_at = $13
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.Status,
		tags,
		nullableUUID(product.PrimaryImageID),
		product.DisplayedPrice,
		product.MaxPrice,
		product.ProviderID,
		product.BlueprintID,
		nullableJSON(product.PrintAreas),
		product.LastSyncedAt,
		product.UpdatedAt,
	)
	if err != nil {
		// the only foreign key on products is the primary image
		if isForeignKeyViolation(err) {
			return ErrImageMissing
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its attributes and gallery
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LocalProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByExternalID retrieves a product by its Printify id
func (r *productRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.LocalProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE external_id = $1`
	return r.findOne(ctx, query, externalID)
}

func (r *productRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.LocalProduct, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	if product.Attributes, err = r.loadAttributes(ctx, product.ID); err != nil {
		return nil, err
	}
	if product.GalleryImageIDs, err = r.loadGallery(ctx, product.ID); err != nil {
		return nil, err
	}

	return product, nil
}

// List retrieves products ordered by most recently synced, with pagination
func (r *productRepository) List(ctx context.Context, page, pageSize int) ([]*domain.LocalProduct, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY last_synced_at DESC NULLS LAST, created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.LocalProduct{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// SetAttributes replaces the product's attribute set, preserving the given order
func (r *productRepository) SetAttributes(ctx context.Context, productID uuid.UUID, attributes []domain.ProductAttribute) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_attributes WHERE product_id = $1`, productID); err != nil {
			return fmt.Errorf("failed to clear product attributes: %w", err)
		}

		for i, attr := range attributes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO product_attributes (product_id, taxonomy_id, position, used_for_variations)
				VALUES ($1, $2, $3, $4)
			`, productID, attr.TaxonomyID, i, attr.UsedForVariations)
			if err != nil {
				return fmt.Errorf("failed to attach attribute: %w", err)
			}
		}
		return nil
	})
}

// SetGallery replaces the product's gallery, preserving the given order
func (r *productRepository) SetGallery(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_gallery WHERE product_id = $1`, productID); err != nil {
			return fmt.Errorf("failed to clear gallery: %w", err)
		}

		for i, imageID := range imageIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO product_gallery (product_id, image_id, position)
				VALUES ($1, $2, $3)
			`, productID, imageID, i)
			if err != nil {
				if isForeignKeyViolation(err) {
					return ErrImageMissing
				}
				return fmt.Errorf("failed to attach gallery image: %w", err)
			}
		}
		return nil
	})
}

func (r *productRepository) loadAttributes(ctx context.Context, productID uuid.UUID) ([]domain.ProductAttribute, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pa.taxonomy_id, t.name, t.slug, pa.position, pa.used_for_variations
		FROM product_attributes pa
		JOIN attribute_taxonomies t ON t.id = pa.taxonomy_id
		WHERE pa.product_id = $1
		ORDER BY pa.position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product attributes: %w", err)
	}
	defer rows.Close()

	attributes := []domain.ProductAttribute{}
	for rows.Next() {
		var attr domain.ProductAttribute
		if err := rows.Scan(&attr.TaxonomyID, &attr.Name, &attr.Slug, &attr.Position, &attr.UsedForVariations); err != nil {
			return nil, fmt.Errorf("failed to scan product attribute: %w", err)
		}
		attributes = append(attributes, attr)
	}

	return attributes, rows.Err()
}

func (r *productRepository) loadGallery(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT image_id FROM product_gallery WHERE product_id = $1 ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan gallery image: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *productRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.LocalProduct, error) {
	product := &domain.LocalProduct{}
	var (
		description  sql.NullString
		providerID   sql.NullString
		blueprintID  sql.NullString
		tags         []byte
		printAreas   []byte
		primaryImage uuid.NullUUID
		lastSyncedAt sql.NullTime
	)

	err := row.Scan(
		&product.ID,
		&product.ExternalID,
		&product.Title,
		&description,
		&product.Status,
		&tags,
		&primaryImage,
		&product.DisplayedPrice,
		&product.MaxPrice,
		&providerID,
		&blueprintID,
		&printAreas,
		&lastSyncedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Description = description.String
	product.ProviderID = providerID.String
	product.BlueprintID = blueprintID.String
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &product.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if len(printAreas) > 0 {
		product.PrintAreas = json.RawMessage(printAreas)
	}
	if primaryImage.Valid {
		id := primaryImage.UUID
		product.PrimaryImageID = &id
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		product.LastSyncedAt = &t
	}

	return product, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
