package transport

import (
	"context"
	"fmt"

	"printsync/internal/domain"
	"printsync/internal/repository"
	"printsync/internal/service"

	"github.com/google/uuid"
)

type mockProductRepository struct {
	products []*domain.LocalProduct
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.LocalProduct) error {
	m.products = append(m.products, product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.LocalProduct) error {
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LocalProduct, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.LocalProduct, error) {
	for _, p := range m.products {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, page, pageSize int) ([]*domain.LocalProduct, int, error) {
	start := (page - 1) * pageSize
	if start >= len(m.products) {
		return nil, len(m.products), nil
	}
	end := start + pageSize
	if end > len(m.products) {
		end = len(m.products)
	}
	return m.products[start:end], len(m.products), nil
}

func (m *mockProductRepository) SetAttributes(ctx context.Context, productID uuid.UUID, attributes []domain.ProductAttribute) error {
	return nil
}

func (m *mockProductRepository) SetGallery(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) error {
	return nil
}

type mockVariationRepository struct {
	variations []*domain.LocalVariation
}

func (m *mockVariationRepository) Create(ctx context.Context, variation *domain.LocalVariation) error {
	m.variations = append(m.variations, variation)
	return nil
}

func (m *mockVariationRepository) Update(ctx context.Context, variation *domain.LocalVariation) error {
	return nil
}

func (m *mockVariationRepository) FindByExternalVariantID(ctx context.Context, productID uuid.UUID, externalVariantID string) (*domain.LocalVariation, error) {
	return nil, repository.ErrVariationNotFound
}

func (m *mockVariationRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.LocalVariation, error) {
	var out []*domain.LocalVariation
	for _, v := range m.variations {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockSyncLogRepository struct {
	entries   []*domain.SyncLog
	lastQuery string
	lastLimit int
}

func (m *mockSyncLogRepository) Create(ctx context.Context, entry *domain.SyncLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockSyncLogRepository) List(ctx context.Context, entityID string, limit int) ([]*domain.SyncLog, error) {
	m.lastQuery, m.lastLimit = entityID, limit
	var out []*domain.SyncLog
	for _, e := range m.entries {
		if entityID == "" || e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type dispatchCall struct {
	event      string
	externalID string
}

// stubDispatcher queues everything once and ignores non-product events
type stubDispatcher struct {
	calls  []dispatchCall
	queued map[string]bool
	err    error
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{queued: make(map[string]bool)}
}

func (d *stubDispatcher) Dispatch(ctx context.Context, event, externalID string) (*domain.Task, error) {
	d.calls = append(d.calls, dispatchCall{event: event, externalID: externalID})
	if d.err != nil {
		return nil, d.err
	}
	if event == "order:created" {
		return nil, fmt.Errorf("%w: %s", service.ErrEventIgnored, event)
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: missing product id", domain.ErrValidation)
	}
	if d.queued[externalID] {
		return nil, nil
	}
	d.queued[externalID] = true
	return &domain.Task{Name: domain.TaskImport, ExternalID: externalID}, nil
}
