package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"printsync/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pngHeader = "\x89PNG\r\n\x1a\n"

// imageServer serves PNGs under /img/ and HTML anywhere else
type imageServer struct {
	*httptest.Server
	mu        sync.Mutex
	downloads map[string]int
	down      bool
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{downloads: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.downloads[r.URL.Path]++
		down := s.down
		s.mu.Unlock()

		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/img/") {
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte(pngHeader + r.URL.Path))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) url(path string) string {
	return s.URL + path
}

func (s *imageServer) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *imageServer) hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[path]
}

type syncFixture struct {
	products   *mockProductRepository
	variations *mockVariationRepository
	attributes *mockAttributeRepository
	images     *mockImageRepository
	logs       *mockSyncLogRepository
	store      *memoryStore
	source     *stubSource
	server     *imageServer
	ingester   ImageIngester
	service    ProductSyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		products:   newMockProductRepository(),
		variations: newMockVariationRepository(),
		attributes: newMockAttributeRepository(),
		logs:       &mockSyncLogRepository{},
		store:      newMemoryStore(),
		source:     &stubSource{payloads: map[string][]byte{}},
		server:     newImageServer(t),
	}
	f.images = newMockImageRepository(f.products)
	f.products.imageExists = f.images.exists

	logger := zap.NewNop()
	f.ingester = NewImageIngester(f.images, f.products, f.store, f.server.Client(), FingerprintURL, logger)
	mapper := NewAttributeMapper(f.attributes, logger)
	f.service = NewProductSyncService(f.products, f.variations, f.logs, mapper, f.ingester, f.source, domain.ProductStatusDraft, logger)
	return f
}

// shirt is a two-axis product with three variants, one of them disabled
func (f *syncFixture) shirt(externalID string) *domain.ExternalProduct {
	return &domain.ExternalProduct{
		ExternalID:  externalID,
		Title:       "Classic Tee",
		Description: "Soft cotton tee",
		Tags:        []string{"tee", "cotton"},
		Images: []domain.ExternalImage{
			{URL: f.server.url("/img/front.png")},
			{URL: f.server.url("/img/back.png")},
		},
		OptionAxes: []domain.OptionAxis{
			{AxisID: "color", Name: "Color", Values: []domain.OptionValue{
				{ValueID: "1", Name: "Red"},
				{ValueID: "2", Name: "Blue"},
			}},
			{AxisID: "size", Name: "Size", Values: []domain.OptionValue{
				{ValueID: "10", Name: "S"},
				{ValueID: "11", Name: "M"},
			}},
		},
		Variants: []domain.ExternalVariant{
			{ExternalVariantID: "101", SKU: "TEE-RED-S", Price: decimal.RequireFromString("10.00"), Cost: decimal.RequireFromString("6.00"),
				SelectedOptions: map[string]string{"color": "1", "size": "10"}, IsEnabled: true},
			{ExternalVariantID: "102", SKU: "TEE-BLUE-M", Price: decimal.RequireFromString("8.50"), Cost: decimal.RequireFromString("5.00"),
				SelectedOptions: map[string]string{"color": "2", "size": "11"}, IsEnabled: true},
			{ExternalVariantID: "103", SKU: "TEE-RED-M", Price: decimal.RequireFromString("7.00"), Cost: decimal.RequireFromString("4.00"),
				SelectedOptions: map[string]string{"color": "1", "size": "11"}, IsEnabled: false},
		},
		ProviderID:  "29",
		BlueprintID: "6",
		PrintAreas:  []byte(`[{"position":"front"}]`),
	}
}
