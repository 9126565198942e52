package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrValidation marks an inbound payload that is missing required fields
var ErrValidation = errors.New("validation failed")

// Product statuses
const (
	ProductStatusDraft   = "draft"
	ProductStatusPublish = "publish"
	ProductStatusPending = "pending"
	ProductStatusPrivate = "private"
)

// ValidProductStatus reports whether status is accepted by the products table
func ValidProductStatus(status string) bool {
	switch status {
	case ProductStatusDraft, ProductStatusPublish, ProductStatusPending, ProductStatusPrivate:
		return true
	}
	return false
}

// ExternalProduct is a Printify product normalized for one sync run
type ExternalProduct struct {
	ExternalID  string
	Title       string
	Description string
	Price       decimal.Decimal
	Variants    []ExternalVariant
	Images      []ExternalImage
	Tags        []string
	OptionAxes  []OptionAxis
	ProviderID  string
	BlueprintID string
	PrintAreas  json.RawMessage
}

// ExternalImage is a remote image reference in product order
type ExternalImage struct {
	URL string
}

// ImageURLs returns the image URLs in their original order
func (p *ExternalProduct) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// OptionAxis is a Printify option dimension such as "Color" or "Size"
type OptionAxis struct {
	AxisID string
	Name   string
	Values []OptionValue
}

// OptionValue is one selectable value on an axis
type OptionValue struct {
	ValueID string
	Name    string
}

// LocalProduct is the catalog's persisted variable product
type LocalProduct struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	ExternalID      string              `json:"external_id" db:"external_id"`
	Title           string              `json:"title" db:"title"`
	Description     string              `json:"description" db:"description"`
	Status          string              `json:"status" db:"status"`
	Tags            []string            `json:"tags" db:"tags"`
	Attributes      []ProductAttribute  `json:"attributes" db:"-"`
	PrimaryImageID  *uuid.UUID          `json:"primary_image_id,omitempty" db:"primary_image_id"`
	GalleryImageIDs []uuid.UUID         `json:"gallery_image_ids" db:"-"`
	DisplayedPrice  decimal.NullDecimal `json:"displayed_price" db:"displayed_price"`
	MaxPrice        decimal.NullDecimal `json:"max_price" db:"max_price"`
	ProviderID      string              `json:"provider_id" db:"provider_id"`
	BlueprintID     string              `json:"blueprint_id" db:"blueprint_id"`
	PrintAreas      json.RawMessage     `json:"print_areas,omitempty" db:"print_areas"`
	LastSyncedAt    *time.Time          `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// ProductAttribute attaches a taxonomy to a product
type ProductAttribute struct {
	TaxonomyID        uuid.UUID `json:"taxonomy_id" db:"taxonomy_id"`
	Name              string    `json:"name" db:"name"`
	Slug              string    `json:"slug" db:"slug"`
	Position          int       `json:"position" db:"position"`
	UsedForVariations bool      `json:"used_for_variations" db:"used_for_variations"`
}

// ImageIDs returns the primary image followed by the gallery
func (p *LocalProduct) ImageIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.GalleryImageIDs)+1)
	if p.PrimaryImageID != nil {
		ids = append(ids, *p.PrimaryImageID)
	}
	return append(ids, p.GalleryImageIDs...)
}
