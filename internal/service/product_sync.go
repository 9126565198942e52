package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"printsync/internal/domain"
	"printsync/internal/metrics"
	"printsync/internal/printify"
	"printsync/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNetwork is returned when the product detail could not be fetched
var ErrNetwork = printify.ErrNetwork

// ProductSource fetches raw product-detail payloads
type ProductSource interface {
	GetProduct(ctx context.Context, productID string) ([]byte, error)
}

// SyncResult summarizes one import or sync run
type SyncResult struct {
	ExternalID        string    `json:"external_id"`
	ProductID         uuid.UUID `json:"product_id,omitempty"`
	Action            string    `json:"action"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	VariationsCreated int       `json:"variations_created"`
	VariationsUpdated int       `json:"variations_updated"`
	Images            int       `json:"images"`
}

// ProductSyncService creates or updates local products from Printify data
type ProductSyncService interface {
	Sync(ctx context.Context, ext *domain.ExternalProduct) (*SyncResult, error)
	SyncProduct(ctx context.Context, externalID string) (*SyncResult, error)
}

type productSyncService struct {
	productRepo   repository.ProductRepository
	variationRepo repository.VariationRepository
	syncLogRepo   repository.SyncLogRepository
	mapper        AttributeMapper
	images        ImageIngester
	source        ProductSource
	defaultStatus string
	logger        *zap.Logger
}

// NewProductSyncService creates a new instance of ProductSyncService
func NewProductSyncService(
	productRepo repository.ProductRepository,
	variationRepo repository.VariationRepository,
	syncLogRepo repository.SyncLogRepository,
	mapper AttributeMapper,
	images ImageIngester,
	source ProductSource,
	defaultStatus string,
	logger *zap.Logger,
) ProductSyncService {
	if defaultStatus == "" {
		defaultStatus = domain.ProductStatusDraft
	}
	return &productSyncService{
		productRepo:   productRepo,
		variationRepo: variationRepo,
		syncLogRepo:   syncLogRepo,
		mapper:        mapper,
		images:        images,
		source:        source,
		defaultStatus: defaultStatus,
		logger:        logger,
	}
}

// SyncProduct fetches one product from Printify and syncs it
func (s *productSyncService) SyncProduct(ctx context.Context, externalID string) (*SyncResult, error) {
	started := time.Now()

	raw, err := s.source.GetProduct(ctx, externalID)
	if err != nil {
		return s.fail(ctx, started, externalID, s.actionFor(ctx, externalID), fmt.Errorf("failed to fetch product: %w", err))
	}

	ext, err := printify.ParseProduct(raw)
	if err != nil {
		return s.fail(ctx, started, externalID, s.actionFor(ctx, externalID), err)
	}

	return s.Sync(ctx, ext)
}

// Sync upserts one external product and its variations, images and attributes
func (s *productSyncService) Sync(ctx context.Context, ext *domain.ExternalProduct) (*SyncResult, error) {
	started := time.Now()

	// Validate before touching anything
	if err := validateExternal(ext); err != nil {
		externalID := ""
		if ext != nil {
			externalID = ext.ExternalID
		}
		return s.fail(ctx, started, externalID, domain.SyncActionImport, err)
	}

	logger := s.logger.With(zap.String("external_id", ext.ExternalID))

	// Look up by external id; create the shell when missing
	action := domain.SyncActionSync
	product, err := s.productRepo.FindByExternalID(ctx, ext.ExternalID)
	if err != nil {
		if !errors.Is(err, repository.ErrProductNotFound) {
			return s.fail(ctx, started, ext.ExternalID, action, fmt.Errorf("failed to look up product: %w", err))
		}
		action = domain.SyncActionImport
		now := time.Now()
		product = &domain.LocalProduct{
			ID:         uuid.New(),
			ExternalID: ext.ExternalID,
			Status:     s.defaultStatus,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	product.Title = ext.Title
	product.Description = ext.Description
	product.Tags = ext.Tags

	if action == domain.SyncActionImport {
		if err := s.productRepo.Create(ctx, product); err != nil {
			return s.fail(ctx, started, ext.ExternalID, action, fmt.Errorf("failed to create product: %w", err))
		}
		logger.Info("Product shell created", zap.String("product_id", product.ID.String()))
	}

	result := &SyncResult{
		ExternalID: ext.ExternalID,
		ProductID:  product.ID,
		Action:     action,
	}

	// Images: partial failures only shrink the asset list
	assets := s.images.Ingest(ctx, ext.ImageURLs())
	err = s.images.Assign(ctx, product, assets)
	if errors.Is(err, repository.ErrImageMissing) {
		// another sync pruned a reused asset between ingest and assign
		logger.Warn("Image pruned concurrently, re-ingesting", zap.Error(err))
		assets = s.images.Ingest(ctx, ext.ImageURLs())
		err = s.images.Assign(ctx, product, assets)
	}
	if err != nil {
		return s.failResult(ctx, started, result, fmt.Errorf("failed to assign images: %w", err))
	}
	result.Images = len(assets)

	// Attributes
	// unresolvable pairs are dropped by Resolve; a registry failure aborts the run
	mapping, err := s.mapper.Map(ctx, ext.OptionAxes, ext.Variants)
	if err != nil {
		return s.failResult(ctx, started, result, fmt.Errorf("failed to map attributes: %w", err))
	}
	if err := s.productRepo.SetAttributes(ctx, product.ID, mapping.Attributes); err != nil {
		return s.failResult(ctx, started, result, fmt.Errorf("failed to save attributes: %w", err))
	}
	product.Attributes = mapping.Attributes

	// Variations are created or updated, never deleted
	for _, variant := range ext.Variants {
		created, err := s.upsertVariation(ctx, product.ID, variant, mapping)
		if err != nil {
			return s.failResult(ctx, started, result, err)
		}
		if created {
			result.VariationsCreated++
		} else {
			result.VariationsUpdated++
		}
	}

	if err := s.rollUpPrice(ctx, product); err != nil {
		return s.failResult(ctx, started, result, err)
	}

	// Bookkeeping
	now := time.Now()
	product.ProviderID = ext.ProviderID
	product.BlueprintID = ext.BlueprintID
	product.PrintAreas = ext.PrintAreas
	product.LastSyncedAt = &now
	product.UpdatedAt = now
	if err := s.productRepo.Update(ctx, product); err != nil {
		return s.failResult(ctx, started, result, fmt.Errorf("failed to save product: %w", err))
	}

	verb := "Synced"
	if action == domain.SyncActionImport {
		verb = "Imported"
	}
	result.Status = domain.SyncStatusSuccess
	result.Message = fmt.Sprintf("%s product %q: %d variations created, %d updated, %d images",
		verb, ext.Title, result.VariationsCreated, result.VariationsUpdated, result.Images)

	s.audit(ctx, ext.ExternalID, action, domain.SyncStatusSuccess, result.Message)
	metrics.RecordSync(action, domain.SyncStatusSuccess, time.Since(started))

	logger.Info("Product synced",
		zap.String("action", action),
		zap.String("product_id", product.ID.String()),
		zap.Int("variations_created", result.VariationsCreated),
		zap.Int("variations_updated", result.VariationsUpdated),
	)

	return result, nil
}

func (s *productSyncService) upsertVariation(ctx context.Context, productID uuid.UUID, variant domain.ExternalVariant, mapping *AttributeMapping) (bool, error) {
	variation, err := s.variationRepo.FindByExternalVariantID(ctx, productID, variant.ExternalVariantID)
	created := false
	if err != nil {
		if !errors.Is(err, repository.ErrVariationNotFound) {
			return false, fmt.Errorf("failed to look up variation %s: %w", variant.ExternalVariantID, err)
		}
		created = true
		now := time.Now()
		variation = &domain.LocalVariation{
			ID:                uuid.New(),
			ProductID:         productID,
			ExternalVariantID: variant.ExternalVariantID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	variation.SKU = variant.SKU
	variation.Price = variant.Price
	variation.Cost = variant.Cost
	variation.Attributes = mapping.Resolve(variant.SelectedOptions)
	variation.Weight = variant.Weight
	variation.SetEnabled(variant.IsEnabled)

	if created {
		if err := s.variationRepo.Create(ctx, variation); err != nil {
			return false, fmt.Errorf("failed to create variation %s: %w", variant.ExternalVariantID, err)
		}
		return true, nil
	}

	if err := s.variationRepo.Update(ctx, variation); err != nil {
		return false, fmt.Errorf("failed to update variation %s: %w", variant.ExternalVariantID, err)
	}
	return false, nil
}

// rollUpPrice sets the displayed price to the lowest enabled variation price.
// With no enabled variation the previous price is kept.
func (s *productSyncService) rollUpPrice(ctx context.Context, product *domain.LocalProduct) error {
	variations, err := s.variationRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("failed to load variations: %w", err)
	}

	var low, high decimal.Decimal
	found := false
	for _, v := range variations {
		if !v.Enabled {
			continue
		}
		if !found || v.Price.LessThan(low) {
			low = v.Price
		}
		if !found || v.Price.GreaterThan(high) {
			high = v.Price
		}
		found = true
	}

	if found {
		product.DisplayedPrice = decimal.NewNullDecimal(low)
		product.MaxPrice = decimal.NewNullDecimal(high)
	}
	return nil
}

// actionFor labels a run that failed before the product was looked up
func (s *productSyncService) actionFor(ctx context.Context, externalID string) string {
	if _, err := s.productRepo.FindByExternalID(ctx, externalID); err == nil {
		return domain.SyncActionSync
	}
	return domain.SyncActionImport
}

func (s *productSyncService) fail(ctx context.Context, started time.Time, externalID, action string, err error) (*SyncResult, error) {
	return s.failResult(ctx, started, &SyncResult{ExternalID: externalID, Action: action}, err)
}

func (s *productSyncService) failResult(ctx context.Context, started time.Time, result *SyncResult, err error) (*SyncResult, error) {
	result.Status = domain.SyncStatusFailure
	result.Message = err.Error()

	s.audit(ctx, result.ExternalID, result.Action, domain.SyncStatusFailure, result.Message)
	metrics.RecordSync(result.Action, domain.SyncStatusFailure, time.Since(started))

	s.logger.Error("Product sync failed",
		zap.String("external_id", result.ExternalID),
		zap.String("action", result.Action),
		zap.Error(err),
	)
	return result, err
}

func (s *productSyncService) audit(ctx context.Context, externalID, action, status, message string) {
	entry := &domain.SyncLog{
		ID:         uuid.New(),
		EntityType: domain.EntityTypeProduct,
		EntityID:   externalID,
		Action:     action,
		Status:     status,
		Message:    message,
		CreatedAt:  time.Now(),
	}
	if err := s.syncLogRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write sync log",
			zap.String("external_id", externalID),
			zap.Error(err),
		)
	}
}

func validateExternal(ext *domain.ExternalProduct) error {
	if ext == nil {
		return fmt.Errorf("%w: empty product", domain.ErrValidation)
	}

	var missing []string
	if strings.TrimSpace(ext.ExternalID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(ext.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return &printify.ValidationError{Fields: missing}
	}
	return nil
}
