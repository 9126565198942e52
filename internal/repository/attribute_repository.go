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
	ErrTaxonomyNotFound = errors.New("attribute taxonomy not found")
	ErrTermNotFound     = errors.New("attribute term not found")
	// ErrAttributeExists is returned when a concurrent sync created the same taxonomy or term first
	ErrAttributeExists = errors.New("attribute already exists")
)

// AttributeRepository is the shared taxonomy/term registry
type AttributeRepository interface {
	FindTaxonomyBySlug(ctx context.Context, slug string) (*domain.AttributeTaxonomy, error)
	CreateTaxonomy(ctx context.Context, taxonomy *domain.AttributeTaxonomy) error
	FindTerm(ctx context.Context, taxonomyID uuid.UUID, name string) (*domain.AttributeTerm, error)
	CreateTerm(ctx context.Context, term *domain.AttributeTerm) error
	ListTerms(ctx context.Context, taxonomyID uuid.UUID) ([]*domain.AttributeTerm, error)
}

type attributeRepository struct {
	db *sql.DB
}

// NewAttributeRepository creates a new instance of AttributeRepository
func NewAttributeRepository(db *sql.DB) AttributeRepository {
	return &attributeRepository{db: db}
}

func (r *attributeRepository) FindTaxonomyBySlug(ctx context.Context, slug string) (*domain.AttributeTaxonomy, error) {
	taxonomy := &domain.AttributeTaxonomy{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM attribute_taxonomies WHERE slug = $1
	`, slug).Scan(&taxonomy.ID, &taxonomy.Name, &taxonomy.Slug, &taxonomy.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaxonomyNotFound
		}
		return nil, fmt.Errorf("failed to find taxonomy: %w", err)
	}
	return taxonomy, nil
}

func (r *attributeRepository) CreateTaxonomy(ctx context.Context, taxonomy *domain.AttributeTaxonomy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attribute_taxonomies (id, name, slug, created_at) VALUES ($1, $2, $3, $4)
	`, taxonomy.ID, taxonomy.Name, taxonomy.Slug, taxonomy.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttributeExists
		}
		return fmt.Errorf("failed to create taxonomy: %w", err)
	}
	return nil
}

func (r *attributeRepository) FindTerm(ctx context.Context, taxonomyID uuid.UUID, name string) (*domain.AttributeTerm, error) {
	term := &domain.AttributeTerm{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, taxonomy_id, name, slug, created_at
		FROM attribute_terms
		WHERE taxonomy_id = $1 AND name = $2
	`, taxonomyID, name).Scan(&term.ID, &term.TaxonomyID, &term.Name, &term.Slug, &term.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTermNotFound
		}
		return nil, fmt.Errorf("failed to find term: %w", err)
	}
	return term, nil
}

func (r *attributeRepository) CreateTerm(ctx context.Context, term *domain.AttributeTerm) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attribute_terms (id, taxonomy_id, name, slug, created_at) VALUES ($1, $2, $3, $4, $5)
	`, term.ID, term.TaxonomyID, term.Name, term.Slug, term.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttributeExists
		}
		return fmt.Errorf("failed to create term: %w", err)
	}
	return nil
}

func (r *attributeRepository) ListTerms(ctx context.Context, taxonomyID uuid.UUID) ([]*domain.AttributeTerm, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, taxonomy_id, name, slug, created_at
		FROM attribute_terms
		WHERE taxonomy_id = $1
		ORDER BY name ASC
	`, taxonomyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	defer rows.Close()

	terms := []*domain.AttributeTerm{}
	for rows.Next() {
		term := &domain.AttributeTerm{}
		if err := rows.Scan(&term.ID, &term.TaxonomyID, &term.Name, &term.Slug, &term.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, term)
	}

	return terms, rows.Err()
}
