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
	ErrVariationNotFound = errors.New("variation not found")
)

// VariationRepository defines the interface for variation data access.
// There is deliberately no Delete: sync only appends or updates variations.
type VariationRepository interface {
	Create(ctx context.Context, variation *domain.LocalVariation) error
	Update(ctx context.Context, variation *domain.LocalVariation) error
	FindByExternalVariantID(ctx context.Context, productID uuid.UUID, externalVariantID string) (*domain.LocalVariation, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.LocalVariation, error)
}

type variationRepository struct {
	db *sql.DB
}

// NewVariationRepository creates a new instance of VariationRepository
func NewVariationRepository(db *sql.DB) VariationRepository {
	return &variationRepository{db: db}
}

const variationColumns = `id, product_id, external_variant_id, sku, price, cost, attributes,
	enabled, stock_status, weight, created_at, updated_at`

// Create inserts a new variation under its parent product
func (r *variationRepository) Create(ctx context.Context, variation *domain.LocalVariation) error {
	attributes, err := encodeAttributes(variation.Attributes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO variations (` + variationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		variation.ID,
		variation.ProductID,
		variation.ExternalVariantID,
		variation.SKU,
		variation.Price,
		variation.Cost,
		attributes,
		variation.Enabled,
		variation.StockStatus,
		variation.Weight,
		variation.CreatedAt,
		variation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create variation: %w", err)
	}

	return nil
}

// Update overwrites the synced fields of an existing variation
func (r *variationRepository) Update(ctx context.Context, variation *domain.LocalVariation) error {
	attributes, err := encodeAttributes(variation.Attributes)
	if err != nil {
		return err
	}

	query := `
		UPDATE variations
		SET sku = $2, price = $3, cost = $4, attributes = $5, enabled = $6,
		    stock_status = $7, weight = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		variation.ID,
		variation.SKU,
		variation.Price,
		variation.Cost,
		attributes,
		variation.Enabled,
		variation.StockStatus,
		variation.Weight,
		variation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update variation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrVariationNotFound
	}

	return nil
}

// FindByExternalVariantID retrieves a variation by its Printify variant id within one product
func (r *variationRepository) FindByExternalVariantID(ctx context.Context, productID uuid.UUID, externalVariantID string) (*domain.LocalVariation, error) {
	query := `
		SELECT ` + variationColumns + `
		FROM variations
		WHERE product_id = $1 AND external_variant_id = $2
	`

	variation, err := scanVariation(r.db.QueryRowContext(ctx, query, productID, externalVariantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVariationNotFound
		}
		return nil, fmt.Errorf("failed to find variation: %w", err)
	}

	return variation, nil
}

// ListByProduct retrieves every variation of a product, including ones no longer offered remotely
func (r *variationRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.LocalVariation, error) {
	query := `
		SELECT ` + variationColumns + `
		FROM variations
		WHERE product_id = $1
		ORDER BY created_at ASC, external_variant_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variations: %w", err)
	}
	defer rows.Close()

	variations := []*domain.LocalVariation{}
	for rows.Next() {
		variation, err := scanVariation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variation: %w", err)
		}
		variations = append(variations, variation)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variations: %w", err)
	}

	return variations, nil
}

func scanVariation(row rowScanner) (*domain.LocalVariation, error) {
	variation := &domain.LocalVariation{}
	var (
		sku        sql.NullString
		attributes []byte
	)

	err := row.Scan(
		&variation.ID,
		&variation.ProductID,
		&variation.ExternalVariantID,
		&sku,
		&variation.Price,
		&variation.Cost,
		&attributes,
		&variation.Enabled,
		&variation.StockStatus,
		&variation.Weight,
		&variation.CreatedAt,
		&variation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	variation.SKU = sku.String
	variation.Attributes = map[string]string{}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &variation.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode variation attributes: %w", err)
		}
	}

	return variation, nil
}

func encodeAttributes(attributes map[string]string) ([]byte, error) {
	if attributes == nil {
		attributes = map[string]string{}
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variation attributes: %w", err)
	}
	return encoded, nil
}
