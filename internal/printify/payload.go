package printify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"printsync/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError lists the required payload fields that were missing or empty
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid product payload: missing " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrValidation
}

// ID accepts Printify identifiers encoded either as JSON strings or numbers
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

type productPayload struct {
	ID              ID                `json:"id" validate:"required"`
	Title           string            `json:"title" validate:"required"`
	Description     string            `json:"description"`
	Tags            []string          `json:"tags"`
	Options         []optionPayload   `json:"options"`
	Variants        []json.RawMessage `json:"variants"`
	Images          []imagePayload    `json:"images"`
	PrintProviderID ID                `json:"print_provider_id"`
	BlueprintID     ID                `json:"blueprint_id"`
	PrintAreas      json.RawMessage   `json:"print_areas"`
}

type optionPayload struct {
	ID     ID             `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Values []valuePayload `json:"values"`
}

type valuePayload struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type imagePayload struct {
	URL string `json:"url"`
	Src string `json:"src"`
}

type variantPayload struct {
	ID        ID              `json:"id" validate:"required"`
	SKU       string          `json:"sku"`
	Price     json.Number     `json:"price"`
	Cost      json.Number     `json:"cost"`
	Options   json.RawMessage `json:"options"`
	IsEnabled *bool           `json:"is_enabled"`
	Weight    *json.Number    `json:"weight"`
	Grams     *json.Number    `json:"grams"`
}

// ParseProduct decodes and validates a Printify product-detail response.
// Variants without an id are dropped; a missing product id or title fails the whole parse.
func ParseProduct(data []byte) (*domain.ExternalProduct, error) {
	var payload productPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode product payload: %w", err)
	}

	payload.Title = strings.TrimSpace(payload.Title)
	if err := validatePayload(&payload); err != nil {
		return nil, err
	}

	product := &domain.ExternalProduct{
		ExternalID:  string(payload.ID),
		Title:       payload.Title,
		Description: payload.Description,
		Tags:        normalizeTags(payload.Tags),
		OptionAxes:  parseOptionAxes(payload.Options),
		ProviderID:  string(payload.PrintProviderID),
		BlueprintID: string(payload.BlueprintID),
	}

	if len(payload.PrintAreas) > 0 && !bytes.Equal(payload.PrintAreas, []byte("null")) {
		product.PrintAreas = payload.PrintAreas
	}

	seen := make(map[string]bool)
	for _, img := range payload.Images {
		url := strings.TrimSpace(img.URL)
		if url == "" {
			url = strings.TrimSpace(img.Src)
		}
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		product.Images = append(product.Images, domain.ExternalImage{URL: url})
	}

	for _, raw := range payload.Variants {
		variant, err := ParseVariant(raw, product.OptionAxes)
		if err != nil {
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				continue
			}
			return nil, err
		}
		product.Variants = append(product.Variants, variant)
	}

	product.Price = lowestEnabledPrice(product.Variants)
	return product, nil
}

// ParseVariant decodes one variant. Option selections may be an {axis: value} object
// or a plain list of value ids, which is resolved against the product's axes.
func ParseVariant(data []byte, axes []domain.OptionAxis) (domain.ExternalVariant, error) {
	var payload variantPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.ExternalVariant{}, fmt.Errorf("failed to decode variant payload: %w", err)
	}

	if err := validatePayload(&payload); err != nil {
		return domain.ExternalVariant{}, err
	}

	price, err := centsToAmount(payload.Price)
	if err != nil {
		return domain.ExternalVariant{}, fmt.Errorf("variant %s: invalid price: %w", payload.ID, err)
	}
	cost, err := centsToAmount(payload.Cost)
	if err != nil {
		return domain.ExternalVariant{}, fmt.Errorf("variant %s: invalid cost: %w", payload.ID, err)
	}

	selected, err := parseSelectedOptions(payload.Options, axes)
	if err != nil {
		return domain.ExternalVariant{}, fmt.Errorf("variant %s: invalid options: %w", payload.ID, err)
	}

	variant := domain.ExternalVariant{
		ExternalVariantID: string(payload.ID),
		SKU:               strings.TrimSpace(payload.SKU),
		Price:             price,
		Cost:              cost,
		SelectedOptions:   selected,
		IsEnabled:         payload.IsEnabled == nil || *payload.IsEnabled,
	}

	weight := payload.Weight
	if weight == nil {
		weight = payload.Grams
	}
	if weight != nil && weight.String() != "" {
		w, err := decimal.NewFromString(weight.String())
		if err != nil {
			return domain.ExternalVariant{}, fmt.Errorf("variant %s: invalid weight: %w", payload.ID, err)
		}
		variant.Weight = decimal.NewNullDecimal(w)
	}

	return variant, nil
}

func validatePayload(payload interface{}) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	vErr := &ValidationError{}
	for _, fe := range fieldErrs {
		vErr.Fields = append(vErr.Fields, fe.Field())
	}
	return vErr
}

func parseOptionAxes(options []optionPayload) []domain.OptionAxis {
	axes := make([]domain.OptionAxis, 0, len(options))
	for i, opt := range options {
		name := strings.TrimSpace(opt.Name)
		axisID := string(opt.ID)
		if axisID == "" {
			axisID = name
		}
		if axisID == "" {
			axisID = strconv.Itoa(i)
		}

		axis := domain.OptionAxis{AxisID: axisID, Name: name}
		for _, v := range opt.Values {
			valueName := strings.TrimSpace(v.Name)
			if valueName == "" {
				valueName = strings.TrimSpace(v.Title)
			}
			axis.Values = append(axis.Values, domain.OptionValue{ValueID: string(v.ID), Name: valueName})
		}
		axes = append(axes, axis)
	}
	return axes
}

func parseSelectedOptions(raw json.RawMessage, axes []domain.OptionAxis) (map[string]string, error) {
	selected := make(map[string]string)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return selected, nil
	}

	if raw[0] == '{' {
		var byAxis map[string]ID
		if err := json.Unmarshal(raw, &byAxis); err != nil {
			return nil, err
		}
		for axisID, valueID := range byAxis {
			if valueID != "" {
				selected[axisID] = string(valueID)
			}
		}
		return selected, nil
	}

	var valueIDs []ID
	if err := json.Unmarshal(raw, &valueIDs); err != nil {
		return nil, err
	}

	axisByValue := make(map[string]string)
	for _, axis := range axes {
		for _, v := range axis.Values {
			if _, taken := axisByValue[v.ValueID]; !taken {
				axisByValue[v.ValueID] = axis.AxisID
			}
		}
	}
	for _, valueID := range valueIDs {
		if axisID, ok := axisByValue[string(valueID)]; ok {
			selected[axisID] = string(valueID)
		}
	}
	return selected, nil
}

// centsToAmount converts Printify's integer cents into a two-decimal amount
func centsToAmount(n json.Number) (decimal.Decimal, error) {
	if n.String() == "" {
		return decimal.Zero, nil
	}
	cents, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, err
	}
	return cents.Shift(-2), nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func lowestEnabledPrice(variants []domain.ExternalVariant) decimal.Decimal {
	var lowest *decimal.Decimal
	for i := range variants {
		if !variants[i].IsEnabled {
			continue
		}
		if lowest == nil || variants[i].Price.LessThan(*lowest) {
			lowest = &variants[i].Price
		}
	}
	if lowest == nil {
		return decimal.Zero
	}
	return *lowest
}
