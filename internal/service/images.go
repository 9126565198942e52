package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"printsync/internal/domain"
	"printsync/internal/metrics"
	"printsync/internal/repository"
	"printsync/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fingerprint modes
const (
	FingerprintURL     = "url"
	FingerprintContent = "content"
)

// maxImageBytes caps a single download
const maxImageBytes = 32 << 20

var errNotAnImage = errors.New("response is not an image")

// ImageIngester deduplicates remote images into stored assets and assigns them to products
type ImageIngester interface {
	// Ingest returns one asset per distinct URL in input order; failed URLs are omitted.
	Ingest(ctx context.Context, urls []string) []domain.ImageAsset
	// Assign makes the first asset primary and the rest the gallery, persists the
	// references and prunes assets the product no longer uses.
	Assign(ctx context.Context, product *domain.LocalProduct, assets []domain.ImageAsset) error
}

type imageIngester struct {
	imageRepo   repository.ImageRepository
	productRepo repository.ProductRepository
	store       storage.AssetStore
	httpClient  *http.Client
	mode        string
	logger      *zap.Logger
}

// NewImageIngester creates a new instance of ImageIngester
func NewImageIngester(
	imageRepo repository.ImageRepository,
	productRepo repository.ProductRepository,
	store storage.AssetStore,
	httpClient *http.Client,
	mode string,
	logger *zap.Logger,
) ImageIngester {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if mode != FingerprintContent {
		mode = FingerprintURL
	}
	return &imageIngester{
		imageRepo:   imageRepo,
		productRepo: productRepo,
		store:       store,
		httpClient:  httpClient,
		mode:        mode,
		logger:      logger,
	}
}

func (s *imageIngester) Ingest(ctx context.Context, urls []string) []domain.ImageAsset {
	assets := make([]domain.ImageAsset, 0, len(urls))
	seenURLs := make(map[string]bool, len(urls))
	seenAssets := make(map[uuid.UUID]bool, len(urls))

	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" || seenURLs[url] {
			continue
		}
		seenURLs[url] = true

		asset, err := s.ingestOne(ctx, url)
		if err != nil {
			if errors.Is(err, errNotAnImage) {
				metrics.RecordImage(metrics.ImageRejected)
			} else {
				metrics.RecordImage(metrics.ImageFailed)
			}
			s.logger.Warn("Skipping image",
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}

		// content mode can map two URLs onto the same bytes
		if seenAssets[asset.ID] {
			continue
		}
		seenAssets[asset.ID] = true
		assets = append(assets, *asset)
	}

	return assets
}

func (s *imageIngester) ingestOne(ctx context.Context, url string) (*domain.ImageAsset, error) {
	if s.mode == FingerprintURL {
		fingerprint := md5Hex([]byte(url))
		if asset, err := s.findExisting(ctx, fingerprint); asset != nil || err != nil {
			return asset, err
		}
		data, contentType, err := s.download(ctx, url)
		if err != nil {
			return nil, err
		}
		return s.persist(ctx, fingerprint, url, data, contentType)
	}

	data, contentType, err := s.download(ctx, url)
	if err != nil {
		// keep what we already have for this URL rather than detaching it on a transient failure
		if asset, lookupErr := s.imageRepo.FindBySourceURL(ctx, url); lookupErr == nil {
			s.logger.Warn("Image download failed, keeping stored copy",
				zap.String("url", url),
				zap.Error(err),
			)
			metrics.RecordImage(metrics.ImageReused)
			return asset, nil
		}
		return nil, err
	}
	sum := sha256.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])
	if asset, err := s.findExisting(ctx, fingerprint); asset != nil || err != nil {
		return asset, err
	}
	return s.persist(ctx, fingerprint, url, data, contentType)
}

func (s *imageIngester) findExisting(ctx context.Context, fingerprint string) (*domain.ImageAsset, error) {
	asset, err := s.imageRepo.FindByFingerprint(ctx, fingerprint)
	if err == nil {
		metrics.RecordImage(metrics.ImageReused)
		return asset, nil
	}
	if errors.Is(err, repository.ErrImageNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to look up image: %w", err)
}

func (s *imageIngester) persist(ctx context.Context, fingerprint, url string, data []byte, contentType string) (*domain.ImageAsset, error) {
	location, err := s.store.Put(ctx, fingerprint, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	asset := &domain.ImageAsset{
		ID:              uuid.New(),
		Fingerprint:     fingerprint,
		SourceURL:       url,
		StorageLocation: location,
		ContentType:     contentType,
		CreatedAt:       time.Now(),
	}
	if err := s.imageRepo.Create(ctx, asset); err != nil {
		if !errors.Is(err, repository.ErrImageExists) {
			return nil, fmt.Errorf("failed to save image: %w", err)
		}
		// a concurrent sync stored the same fingerprint first; its bytes live at the same key
		existing, err := s.imageRepo.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to look up image: %w", err)
		}
		metrics.RecordImage(metrics.ImageReused)
		return existing, nil
	}

	metrics.RecordImage(metrics.ImageDownloaded)
	s.logger.Debug("Image stored",
		zap.String("url", url),
		zap.String("fingerprint", fingerprint),
	)
	return asset, nil
}

func (s *imageIngester) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, "", fmt.Errorf("%w: content type %q", errNotAnImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("failed to download image: empty body")
	}

	return data, contentType, nil
}

func (s *imageIngester) Assign(ctx context.Context, product *domain.LocalProduct, assets []domain.ImageAsset) error {
	previous := product.ImageIDs()
	previousPrimary, previousGallery := product.PrimaryImageID, product.GalleryImageIDs

	current := make(map[uuid.UUID]bool, len(assets))
	product.PrimaryImageID = nil
	product.GalleryImageIDs = nil
	for i, asset := range assets {
		current[asset.ID] = true
		if i == 0 {
			id := asset.ID
			product.PrimaryImageID = &id
			continue
		}
		product.GalleryImageIDs = append(product.GalleryImageIDs, asset.ID)
	}

	if err := s.saveImages(ctx, product); err != nil {
		// restored so a retry still prunes against what the product held before
		product.PrimaryImageID, product.GalleryImageIDs = previousPrimary, previousGallery
		return err
	}

	for _, id := range previous {
		if current[id] {
			continue
		}
		s.prune(ctx, id)
	}

	return nil
}

func (s *imageIngester) saveImages(ctx context.Context, product *domain.LocalProduct) error {
	if err := s.productRepo.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to save primary image: %w", err)
	}
	if err := s.productRepo.SetGallery(ctx, product.ID, product.GalleryImageIDs); err != nil {
		return fmt.Errorf("failed to save gallery: %w", err)
	}
	return nil
}

// prune deletes a detached asset once no product references it. The reference
// check and the delete are one statement, so a concurrent assignment either
// keeps the row alive or fails with ErrImageMissing.
func (s *imageIngester) prune(ctx context.Context, id uuid.UUID) {
	logger := s.logger.With(zap.String("image_id", id.String()))

	asset, err := s.imageRepo.DeleteUnreferenced(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrImageNotFound) {
			logger.Warn("Failed to delete detached image", zap.Error(err))
		}
		return
	}

	if err := s.store.Delete(ctx, asset.StorageLocation); err != nil {
		logger.Warn("Failed to delete stored image bytes", zap.Error(err))
	}

	metrics.RecordImage(metrics.ImagePruned)
	logger.Info("Detached image deleted")
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
