package transport

import (
	"errors"
	"net/http"
	"strconv"

	"printsync/internal/domain"
	"printsync/internal/middleware"
	"printsync/internal/repository"
	"printsync/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ListQuery represents paging parameters of list endpoints
type ListQuery struct {
	Page     int `json:"page" validate:"gte=1"`
	PageSize int `json:"page_size" validate:"gte=1,lte=100"`
}

// SyncLogQuery represents the sync log filter
type SyncLogQuery struct {
	EntityID string `json:"entity_id" validate:"max=64"`
	Limit    int    `json:"limit" validate:"gte=1,lte=500"`
}

// ImportRequest represents a bulk import trigger
type ImportRequest struct {
	ExternalIDs []string `json:"external_ids" validate:"required,min=1,max=100,dive,required,max=64"`
}

// ProductListResponse is one page of local products
type ProductListResponse struct {
	Products []*domain.LocalProduct `json:"products"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// ProductDetailResponse is a product with its variations
type ProductDetailResponse struct {
	Product    *domain.LocalProduct     `json:"product"`
	Variations []*domain.LocalVariation `json:"variations"`
}

// ImportResponse reports the dispatch outcome per external id
type ImportResponse struct {
	Results map[string]DispatchResponse `json:"results"`
}

// AdminHandler serves the read-only catalog view and manual sync triggers
type AdminHandler struct {
	productRepo   repository.ProductRepository
	variationRepo repository.VariationRepository
	syncLogRepo   repository.SyncLogRepository
	dispatcher    service.Dispatcher
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	productRepo repository.ProductRepository,
	variationRepo repository.VariationRepository,
	syncLogRepo repository.SyncLogRepository,
	dispatcher service.Dispatcher,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		productRepo:   productRepo,
		variationRepo: variationRepo,
		syncLogRepo:   syncLogRepo,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterRoutes mounts the admin routes under /api behind the given middlewares,
// applied in order (CORS, authentication, admin role)
func (h *AdminHandler) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middlewares...)

		r.Get("/products", h.ListProducts)
		r.Post("/products/import", h.ImportProducts)
		r.Get("/products/{externalID}", h.GetProduct)
		r.Post("/products/{externalID}/sync", h.SyncProduct)
		r.Get("/sync-logs", h.ListSyncLogs)
	})
}

// ListProducts handles GET /api/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := ListQuery{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	if !h.validate(w, &query) {
		return
	}

	products, total, err := h.productRepo.List(r.Context(), query.Page, query.PageSize)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*domain.LocalProduct{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
}

// GetProduct handles GET /api/products/{externalID}
func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")

	product, err := h.productRepo.FindByExternalID(r.Context(), externalID)
	if err != nil {
		if !errors.Is(err, repository.ErrProductNotFound) {
			h.logger.Error("Failed to get product", zap.String("external_id", externalID), zap.Error(err))
		}
		middleware.RespondWithServiceError(w, err, "failed to get product")
		return
	}

	variations, err := h.variationRepo.ListByProduct(r.Context(), product.ID)
	if err != nil {
		h.logger.Error("Failed to list variations", zap.String("external_id", externalID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if variations == nil {
		variations = []*domain.LocalVariation{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductDetailResponse{
		Product:    product,
		Variations: variations,
	})
}

// SyncProduct handles POST /api/products/{externalID}/sync
func (h *AdminHandler) SyncProduct(w http.ResponseWriter, r *http.Request) {
	writeDispatch(w, h.logger, h.dispatcher, r, service.EventManual, chi.URLParam(r, "externalID"))
}

// ImportProducts handles POST /api/products/import
func (h *AdminHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Import validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results := make(map[string]DispatchResponse, len(req.ExternalIDs))
	for _, externalID := range req.ExternalIDs {
		task, err := h.dispatcher.Dispatch(r.Context(), service.EventManual, externalID)
		switch {
		case err != nil:
			h.logger.Error("Dispatch failed", zap.String("external_id", externalID), zap.Error(err))
			results[externalID] = DispatchResponse{Status: "error"}
		case task == nil:
			results[externalID] = DispatchResponse{Status: DispatchDuplicate}
		default:
			results[externalID] = DispatchResponse{Status: DispatchQueued, Task: task}
		}
	}

	middleware.RespondWithJSON(w, http.StatusAccepted, ImportResponse{Results: results})
}

// ListSyncLogs handles GET /api/sync-logs
func (h *AdminHandler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	query := SyncLogQuery{
		EntityID: r.URL.Query().Get("entity_id"),
		Limit:    queryInt(r, "limit", 50),
	}
	if !h.validate(w, &query) {
		return
	}

	logs, err := h.syncLogRepo.List(r.Context(), query.EntityID, query.Limit)
	if err != nil {
		h.logger.Error("Failed to list sync logs", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sync logs")
		return
	}
	if logs == nil {
		logs = []*domain.SyncLog{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, logs)
}

func (h *AdminHandler) validate(w http.ResponseWriter, v interface{}) bool {
	if err := middleware.ValidateRequest(v); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return false
	}
	return true
}

// queryInt reads an integer query parameter; unparsable values become 0 and fail validation
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
