package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"printsync/internal/domain"
	"printsync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AxisValueKey identifies one option value of one Printify axis
type AxisValueKey struct {
	AxisID  string
	ValueID string
}

// TermRef is the registry term an axis value was mapped to
type TermRef struct {
	TaxonomyID   uuid.UUID
	TaxonomySlug string
	TermID       uuid.UUID
	TermSlug     string
}

// AttributeMapping is the result of mapping a product's option axes
type AttributeMapping struct {
	Lookup     map[AxisValueKey]TermRef
	Attributes []domain.ProductAttribute
}

// Resolve translates selected options into taxonomy slug -> term slug pairs.
// Pairs with no mapped term are dropped.
func (m *AttributeMapping) Resolve(selected map[string]string) map[string]string {
	attrs := make(map[string]string, len(selected))
	for axisID, valueID := range selected {
		ref, ok := m.Lookup[AxisValueKey{AxisID: axisID, ValueID: valueID}]
		if !ok {
			continue
		}
		attrs[ref.TaxonomySlug] = ref.TermSlug
	}
	return attrs
}

// AttributeMapper maps Printify option axes onto the shared attribute registry
type AttributeMapper interface {
	Map(ctx context.Context, axes []domain.OptionAxis, variants []domain.ExternalVariant) (*AttributeMapping, error)
}

type attributeMapper struct {
	attributeRepo repository.AttributeRepository
	logger        *zap.Logger
}

// NewAttributeMapper creates a new instance of AttributeMapper
func NewAttributeMapper(attributeRepo repository.AttributeRepository, logger *zap.Logger) AttributeMapper {
	return &attributeMapper{
		attributeRepo: attributeRepo,
		logger:        logger,
	}
}

// Map finds or creates a taxonomy per named axis and a term per named value
func (m *attributeMapper) Map(ctx context.Context, axes []domain.OptionAxis, variants []domain.ExternalVariant) (*AttributeMapping, error) {
	mapping := &AttributeMapping{
		Lookup: make(map[AxisValueKey]TermRef),
	}

	for _, axis := range axes {
		name := strings.TrimSpace(axis.Name)
		if name == "" {
			continue
		}

		taxonomy, err := m.ensureTaxonomy(ctx, name)
		if err != nil {
			return nil, err
		}

		attached := false
		for _, value := range axis.Values {
			valueName := strings.TrimSpace(value.Name)
			if valueName == "" {
				continue
			}

			term, err := m.ensureTerm(ctx, taxonomy.ID, valueName)
			if err != nil {
				return nil, err
			}

			mapping.Lookup[AxisValueKey{AxisID: axis.AxisID, ValueID: value.ValueID}] = TermRef{
				TaxonomyID:   taxonomy.ID,
				TaxonomySlug: taxonomy.Slug,
				TermID:       term.ID,
				TermSlug:     term.Slug,
			}
			attached = true
		}

		// the same taxonomy can back two axes; attach it once
		if attached && !hasTaxonomy(mapping.Attributes, taxonomy.ID) {
			mapping.Attributes = append(mapping.Attributes, domain.ProductAttribute{
				TaxonomyID:        taxonomy.ID,
				Name:              taxonomy.Name,
				Slug:              taxonomy.Slug,
				Position:          len(mapping.Attributes),
				UsedForVariations: true,
			})
		}
	}

	unresolved := 0
	for _, variant := range variants {
		for axisID, valueID := range variant.SelectedOptions {
			if _, ok := mapping.Lookup[AxisValueKey{AxisID: axisID, ValueID: valueID}]; !ok {
				unresolved++
			}
		}
	}
	if unresolved > 0 {
		m.logger.Debug("Variant options without a mapped term",
			zap.Int("unresolved", unresolved),
		)
	}

	return mapping, nil
}

func (m *attributeMapper) ensureTaxonomy(ctx context.Context, name string) (*domain.AttributeTaxonomy, error) {
	slug := Slugify(name)

	taxonomy, err := m.attributeRepo.FindTaxonomyBySlug(ctx, slug)
	if err == nil {
		return taxonomy, nil
	}
	if !errors.Is(err, repository.ErrTaxonomyNotFound) {
		return nil, fmt.Errorf("failed to look up taxonomy %q: %w", slug, err)
	}

	taxonomy = &domain.AttributeTaxonomy{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now(),
	}
	if err := m.attributeRepo.CreateTaxonomy(ctx, taxonomy); err != nil {
		if !errors.Is(err, repository.ErrAttributeExists) {
			return nil, fmt.Errorf("failed to create taxonomy %q: %w", slug, err)
		}
		// lost the race to a concurrent sync
		taxonomy, err = m.attributeRepo.FindTaxonomyBySlug(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("failed to look up taxonomy %q: %w", slug, err)
		}
		return taxonomy, nil
	}

	m.logger.Info("Attribute taxonomy created",
		zap.String("name", name),
		zap.String("slug", slug),
	)
	return taxonomy, nil
}

func (m *attributeMapper) ensureTerm(ctx context.Context, taxonomyID uuid.UUID, name string) (*domain.AttributeTerm, error) {
	term, err := m.attributeRepo.FindTerm(ctx, taxonomyID, name)
	if err == nil {
		return term, nil
	}
	if !errors.Is(err, repository.ErrTermNotFound) {
		return nil, fmt.Errorf("failed to look up term %q: %w", name, err)
	}

	term = &domain.AttributeTerm{
		ID:         uuid.New(),
		TaxonomyID: taxonomyID,
		Name:       name,
		Slug:       Slugify(name),
		CreatedAt:  time.Now(),
	}
	if err := m.attributeRepo.CreateTerm(ctx, term); err != nil {
		if !errors.Is(err, repository.ErrAttributeExists) {
			return nil, fmt.Errorf("failed to create term %q: %w", name, err)
		}
		term, err = m.attributeRepo.FindTerm(ctx, taxonomyID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up term %q: %w", name, err)
		}
	}
	return term, nil
}

func hasTaxonomy(attributes []domain.ProductAttribute, id uuid.UUID) bool {
	for _, attr := range attributes {
		if attr.TaxonomyID == id {
			return true
		}
	}
	return false
}
