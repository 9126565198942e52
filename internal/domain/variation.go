package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock statuses derived from the enabled flag
const (
	StockStatusInStock    = "instock"
	StockStatusOutOfStock = "outofstock"
)

// ExternalVariant is one Printify variant normalized for one sync run
type ExternalVariant struct {
	ExternalVariantID string
	SKU               string
	Price             decimal.Decimal
	Cost              decimal.Decimal
	// SelectedOptions maps axis ID to value ID
	SelectedOptions map[string]string
	IsEnabled       bool
	Weight          decimal.NullDecimal
}

// LocalVariation is a persisted variation of a LocalProduct.
// Variations are only ever created or updated by sync, never deleted.
type LocalVariation struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	ProductID         uuid.UUID           `json:"product_id" db:"product_id"`
	ExternalVariantID string              `json:"external_variant_id" db:"external_variant_id"`
	SKU               string              `json:"sku" db:"sku"`
	Price             decimal.Decimal     `json:"price" db:"price"`
	Cost              decimal.Decimal     `json:"-" db:"cost"`
	Attributes        map[string]string   `json:"attributes" db:"attributes"`
	Enabled           bool                `json:"enabled" db:"enabled"`
	StockStatus       string              `json:"stock_status" db:"stock_status"`
	Weight            decimal.NullDecimal `json:"weight" db:"weight"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
}

// SetEnabled updates the enabled flag and the stock status derived from it
func (v *LocalVariation) SetEnabled(enabled bool) {
	v.Enabled = enabled
	if enabled {
		v.StockStatus = StockStatusInStock
	} else {
		v.StockStatus = StockStatusOutOfStock
	}
}
