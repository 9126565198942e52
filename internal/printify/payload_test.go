package printify

import (
	"errors"
	"fmt"
	"testing"

	"printsync/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

const sampleProduct = `{
	"id": "5d39b159e7c48c000728c89f",
	"title": "  Unisex Heavy Cotton Tee  ",
	"description": "Soft tee",
	"tags": ["T-shirts", "", "Men's Clothing", "T-shirts"],
	"options": [
		{"name": "Colors", "type": "color", "values": [{"id": 751, "title": "Solid White"}, {"id": 752, "title": "Black"}]},
		{"name": "Sizes", "type": "size", "values": [{"id": 14, "title": "S"}, {"id": 15, "title": "M"}]}
	],
	"variants": [
		{"id": 12100, "sku": "TEE-W-S", "price": 1200, "cost": 710, "options": [751, 14], "is_enabled": true, "grams": 180},
		{"id": 12101, "sku": "TEE-B-M", "price": 850, "cost": 710, "options": [752, 15], "is_enabled": true},
		{"id": 12102, "sku": "TEE-B-S", "price": 500, "options": [752, 14], "is_enabled": false},
		{"sku": "NO-ID", "price": 100}
	],
	"images": [
		{"src": "https://images.printify.com/a.png", "is_default": true},
		{"src": "https://images.printify.com/b.png"},
		{"src": "https://images.printify.com/a.png"}
	],
	"print_provider_id": 3,
	"blueprint_id": 384,
	"print_areas": [{"variant_ids": [12100], "placeholders": [{"position": "front"}]}]
}`

func TestParseProductNormalizesPrintifyShape(t *testing.T) {
	product, err := ParseProduct([]byte(sampleProduct))
	if err != nil {
		t.Fatalf("ParseProduct failed: %v", err)
	}

	if product.ExternalID != "5d39b159e7c48c000728c89f" {
		t.Errorf("unexpected external id %s", product.ExternalID)
	}
	if product.Title != "Unisex Heavy Cotton Tee" {
		t.Errorf("title not trimmed: %q", product.Title)
	}
	if product.ProviderID != "3" || product.BlueprintID != "384" {
		t.Errorf("numeric ids not normalized: %s/%s", product.ProviderID, product.BlueprintID)
	}
	if len(product.Tags) != 2 {
		t.Errorf("expected 2 unique tags, got %v", product.Tags)
	}
	if len(product.Images) != 2 {
		t.Errorf("expected duplicate image urls collapsed, got %v", product.Images)
	}
	if len(product.PrintAreas) == 0 {
		t.Error("print areas not passed through")
	}

	if len(product.Variants) != 3 {
		t.Fatalf("expected variant without id to be dropped, got %d variants", len(product.Variants))
	}

	first := product.Variants[0]
	if !first.Price.Equal(decimal.RequireFromString("12.00")) || !first.Cost.Equal(decimal.RequireFromString("7.10")) {
		t.Errorf("cents not converted: price %s cost %s", first.Price, first.Cost)
	}
	if first.SelectedOptions["Colors"] != "751" || first.SelectedOptions["Sizes"] != "14" {
		t.Errorf("array options not resolved to axes: %v", first.SelectedOptions)
	}
	if !first.Weight.Valid || !first.Weight.Decimal.Equal(decimal.NewFromInt(180)) {
		t.Errorf("grams not used as weight: %v", first.Weight)
	}
	if product.Variants[1].Weight.Valid {
		t.Error("weight should be absent when not provided")
	}
	if product.Variants[2].IsEnabled {
		t.Error("disabled variant parsed as enabled")
	}

	if product.OptionAxes[0].Values[0].Name != "Solid White" {
		t.Errorf("value title not used as name: %+v", product.OptionAxes[0].Values[0])
	}

	// derived from the cheapest enabled variant only
	if !product.Price.Equal(decimal.RequireFromString("8.50")) {
		t.Errorf("expected derived price 8.50, got %s", product.Price)
	}
}

func TestParseVariantObjectOptions(t *testing.T) {
	raw := `{"id": "v-1", "sku": "X", "price": 1999, "cost": 1000, "options": {"color": 5, "size": "7"}, "weight": 250.5}`

	variant, err := ParseVariant([]byte(raw), nil)
	if err != nil {
		t.Fatalf("ParseVariant failed: %v", err)
	}

	if variant.SelectedOptions["color"] != "5" || variant.SelectedOptions["size"] != "7" {
		t.Errorf("unexpected selections %v", variant.SelectedOptions)
	}
	if !variant.IsEnabled {
		t.Error("variants default to enabled when the flag is absent")
	}
	if !variant.Weight.Decimal.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("unexpected weight %v", variant.Weight)
	}
}

func TestParseProductRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing id":    `{"title": "Tee"}`,
		"empty id":      `{"id": "", "title": "Tee"}`,
		"missing title": `{"id": "abc"}`,
		"blank title":   `{"id": "abc", "title": "   "}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProduct([]byte(body))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) || len(vErr.Fields) == 0 {
				t.Errorf("expected field list, got %v", err)
			}
		})
	}
}

func TestParseProductRejectsMalformedJSON(t *testing.T) {
	_, err := ParseProduct([]byte(`{"id": `))
	if err == nil || errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected decode error, got %v", err)
	}
}

// Property: integer cents always become the same amount with two decimals
func TestProperty_CentsConversion(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("price in cents divided by 100", prop.ForAll(
		func(cents int64) bool {
			raw := fmt.Sprintf(`{"id": 1, "price": %d}`, cents)
			variant, err := ParseVariant([]byte(raw), nil)
			if err != nil {
				return false
			}
			return variant.Price.Equal(decimal.New(cents, -2))
		},
		gen.Int64Range(0, 10_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
