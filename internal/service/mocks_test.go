package service

import (
	"context"
	"fmt"
	"sync"

	"printsync/internal/domain"
	"printsync/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing. They copy records in and out so the
// service cannot mutate stored state without going through the repository.

type mockProductRepository struct {
	mu         sync.Mutex
	products   map[uuid.UUID]domain.LocalProduct
	attributes map[uuid.UUID][]domain.ProductAttribute
	gallery    map[uuid.UUID][]uuid.UUID
	updates    int
	// imageExists stands in for the image foreign keys when set
	imageExists func(id uuid.UUID) bool
	// beforeUpdate runs once ahead of the next Update
	beforeUpdate func()
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:   make(map[uuid.UUID]domain.LocalProduct),
		attributes: make(map[uuid.UUID][]domain.ProductAttribute),
		gallery:    make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.LocalProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ExternalID == product.ExternalID {
			return repository.ErrProductAlreadyExists
		}
	}
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.LocalProduct) error {
	if hook := m.takeBeforeUpdate(); hook != nil {
		hook()
	}
	if product.PrimaryImageID != nil && !m.imageKnown(*product.PrimaryImageID) {
		return repository.ErrImageMissing
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = cloneProduct(product)
	m.updates++
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LocalProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return m.hydrate(p), nil
}

func (m *mockProductRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.LocalProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ExternalID == externalID {
			return m.hydrate(p), nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, page, pageSize int) ([]*domain.LocalProduct, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.LocalProduct
	for _, p := range m.products {
		out = append(out, m.hydrate(p))
	}
	return out, len(out), nil
}

func (m *mockProductRepository) SetAttributes(ctx context.Context, productID uuid.UUID, attributes []domain.ProductAttribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[productID] = append([]domain.ProductAttribute(nil), attributes...)
	return nil
}

func (m *mockProductRepository) SetGallery(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) error {
	for _, id := range imageIDs {
		if !m.imageKnown(id) {
			return repository.ErrImageMissing
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gallery[productID] = append([]uuid.UUID(nil), imageIDs...)
	return nil
}

func (m *mockProductRepository) takeBeforeUpdate() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	hook := m.beforeUpdate
	m.beforeUpdate = nil
	return hook
}

func (m *mockProductRepository) imageKnown(id uuid.UUID) bool {
	m.mu.Lock()
	exists := m.imageExists
	m.mu.Unlock()
	return exists == nil || exists(id)
}

func (m *mockProductRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

func (m *mockProductRepository) referenced(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid, p := range m.products {
		if p.PrimaryImageID != nil && *p.PrimaryImageID == id {
			return true
		}
		for _, g := range m.gallery[pid] {
			if g == id {
				return true
			}
		}
	}
	return false
}

func (m *mockProductRepository) hydrate(p domain.LocalProduct) *domain.LocalProduct {
	out := cloneProduct(&p)
	out.Attributes = append([]domain.ProductAttribute(nil), m.attributes[p.ID]...)
	out.GalleryImageIDs = append([]uuid.UUID(nil), m.gallery[p.ID]...)
	return &out
}

func cloneProduct(p *domain.LocalProduct) domain.LocalProduct {
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Attributes = nil
	out.GalleryImageIDs = nil
	if p.PrimaryImageID != nil {
		id := *p.PrimaryImageID
		out.PrimaryImageID = &id
	}
	return out
}

type mockVariationRepository struct {
	mu         sync.Mutex
	variations map[string]domain.LocalVariation
}

func newMockVariationRepository() *mockVariationRepository {
	return &mockVariationRepository{variations: make(map[string]domain.LocalVariation)}
}

func variationKey(productID uuid.UUID, externalVariantID string) string {
	return productID.String() + "/" + externalVariantID
}

func (m *mockVariationRepository) Create(ctx context.Context, variation *domain.LocalVariation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := variationKey(variation.ProductID, variation.ExternalVariantID)
	if _, ok := m.variations[key]; ok {
		return fmt.Errorf("duplicate variation %s", key)
	}
	m.variations[key] = *variation
	return nil
}

func (m *mockVariationRepository) Update(ctx context.Context, variation *domain.LocalVariation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := variationKey(variation.ProductID, variation.ExternalVariantID)
	if _, ok := m.variations[key]; !ok {
		return repository.ErrVariationNotFound
	}
	m.variations[key] = *variation
	return nil
}

func (m *mockVariationRepository) FindByExternalVariantID(ctx context.Context, productID uuid.UUID, externalVariantID string) (*domain.LocalVariation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variations[variationKey(productID, externalVariantID)]
	if !ok {
		return nil, repository.ErrVariationNotFound
	}
	return &v, nil
}

func (m *mockVariationRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.LocalVariation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.LocalVariation
	for _, v := range m.variations {
		if v.ProductID == productID {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

func (m *mockVariationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.variations)
}

type mockAttributeRepository struct {
	mu         sync.Mutex
	taxonomies map[string]domain.AttributeTaxonomy
	terms      map[string]domain.AttributeTerm
	// raceOnCreate makes the next create lose to a simulated concurrent insert
	raceOnCreate bool
	// findErr fails every taxonomy lookup, as an unreachable database would
	findErr error
}

func newMockAttributeRepository() *mockAttributeRepository {
	return &mockAttributeRepository{
		taxonomies: make(map[string]domain.AttributeTaxonomy),
		terms:      make(map[string]domain.AttributeTerm),
	}
}

func termKey(taxonomyID uuid.UUID, name string) string {
	return taxonomyID.String() + "/" + name
}

func (m *mockAttributeRepository) FindTaxonomyBySlug(ctx context.Context, slug string) (*domain.AttributeTaxonomy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	t, ok := m.taxonomies[slug]
	if !ok {
		return nil, repository.ErrTaxonomyNotFound
	}
	return &t, nil
}

func (m *mockAttributeRepository) CreateTaxonomy(ctx context.Context, taxonomy *domain.AttributeTaxonomy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate {
		m.raceOnCreate = false
		winner := *taxonomy
		winner.ID = uuid.New()
		m.taxonomies[taxonomy.Slug] = winner
		return repository.ErrAttributeExists
	}
	if _, ok := m.taxonomies[taxonomy.Slug]; ok {
		return repository.ErrAttributeExists
	}
	m.taxonomies[taxonomy.Slug] = *taxonomy
	return nil
}

func (m *mockAttributeRepository) FindTerm(ctx context.Context, taxonomyID uuid.UUID, name string) (*domain.AttributeTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[termKey(taxonomyID, name)]
	if !ok {
		return nil, repository.ErrTermNotFound
	}
	return &t, nil
}

func (m *mockAttributeRepository) CreateTerm(ctx context.Context, term *domain.AttributeTerm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := termKey(term.TaxonomyID, term.Name)
	if _, ok := m.terms[key]; ok {
		return repository.ErrAttributeExists
	}
	m.terms[key] = *term
	return nil
}

func (m *mockAttributeRepository) ListTerms(ctx context.Context, taxonomyID uuid.UUID) ([]*domain.AttributeTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AttributeTerm
	for _, t := range m.terms {
		if t.TaxonomyID == taxonomyID {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

type mockImageRepository struct {
	mu       sync.Mutex
	images   map[uuid.UUID]domain.ImageAsset
	products *mockProductRepository
}

func newMockImageRepository(products *mockProductRepository) *mockImageRepository {
	return &mockImageRepository{
		images:   make(map[uuid.UUID]domain.ImageAsset),
		products: products,
	}
}

func (m *mockImageRepository) Create(ctx context.Context, image *domain.ImageAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, img := range m.images {
		if img.Fingerprint == image.Fingerprint {
			return repository.ErrImageExists
		}
	}
	m.images[image.ID] = *image
	return nil
}

func (m *mockImageRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.ImageAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, img := range m.images {
		if img.Fingerprint == fingerprint {
			img := img
			return &img, nil
		}
	}
	return nil, repository.ErrImageNotFound
}

func (m *mockImageRepository) FindBySourceURL(ctx context.Context, url string) (*domain.ImageAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.ImageAsset
	for _, img := range m.images {
		if img.SourceURL == url && (latest == nil || img.CreatedAt.After(latest.CreatedAt)) {
			img := img
			latest = &img
		}
	}
	if latest == nil {
		return nil, repository.ErrImageNotFound
	}
	return latest, nil
}

func (m *mockImageRepository) DeleteUnreferenced(ctx context.Context, id uuid.UUID) (*domain.ImageAsset, error) {
	if m.products.referenced(id) {
		return nil, repository.ErrImageNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	delete(m.images, id)
	return &img, nil
}

// remove drops a row as a concurrent sync's prune would
func (m *mockImageRepository) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, id)
}

func (m *mockImageRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

func (m *mockImageRepository) exists(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.images[id]
	return ok
}

type mockSyncLogRepository struct {
	mu      sync.Mutex
	entries []domain.SyncLog
}

func (m *mockSyncLogRepository) Create(ctx context.Context, entry *domain.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockSyncLogRepository) List(ctx context.Context, entityID string, limit int) ([]*domain.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SyncLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if entityID == "" || e.EntityID == entityID {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *mockSyncLogRepository) last() domain.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockSyncLogRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	location := "mem/" + key
	s.files[location] = data
	return location, nil
}

func (s *memoryStore) Delete(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, location)
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type stubSource struct {
	payloads map[string][]byte
	err      error
}

func (s *stubSource) GetProduct(ctx context.Context, productID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw, ok := s.payloads[productID]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", ErrNetwork)
	}
	return raw, nil
}
