package domain

import (
	"net/url"
	"slices"
	"strings"
)

// ItemCategory classifies one FF&E line item.
type ItemCategory string

// ItemCategory values.
const (
	CategoryFurniture ItemCategory = "furniture"
	CategoryFixture   ItemCategory = "fixture"
	CategoryEquipment ItemCategory = "equipment"
)

// validItemCategories stores all supported categories in canonical order.
var validItemCategories = []ItemCategory{
	CategoryFurniture,
	CategoryFixture,
	CategoryEquipment,
}

// ItemStatus tracks procurement progress for one item.
type ItemStatus string

// ItemStatus values, in procurement order.
const (
	StatusSpecified ItemStatus = "specified"
	StatusQuoted    ItemStatus = "quoted"
	StatusOrdered   ItemStatus = "ordered"
	StatusShipped   ItemStatus = "shipped"
	StatusDelivered ItemStatus = "delivered"
	StatusInstalled ItemStatus = "installed"
)

// validItemStatuses stores all supported statuses in procurement order.
var validItemStatuses = []ItemStatus{
	StatusSpecified,
	StatusQuoted,
	StatusOrdered,
	StatusShipped,
	StatusDelivered,
	StatusInstalled,
}

// Item is one tracked furniture, fixture, or equipment line.
type Item struct {
	ID            string       `json:"id,omitempty"`
	ProjectID     string       `json:"project_id"`
	RoomID        string       `json:"room_id,omitempty"`
	Name          string       `json:"name"`
	Category      ItemCategory `json:"category"`
	Vendor        string       `json:"vendor,omitempty"`
	SKU           string       `json:"sku,omitempty"`
	Quantity      int          `json:"quantity"`
	UnitCostCents int64        `json:"unit_cost_cents"`
	Status        ItemStatus   `json:"status"`
	ProductURL    string       `json:"product_url,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// NormalizeItemCategory canonicalizes category input.
func NormalizeItemCategory(c ItemCategory) ItemCategory {
	return ItemCategory(strings.TrimSpace(strings.ToLower(string(c))))
}

// IsValidItemCategory reports whether a category is supported.
func IsValidItemCategory(c ItemCategory) bool {
	return slices.Contains(validItemCategories, NormalizeItemCategory(c))
}

// NormalizeItemStatus canonicalizes status input.
func NormalizeItemStatus(s ItemStatus) ItemStatus {
	return ItemStatus(strings.TrimSpace(strings.ToLower(string(s))))
}

// IsValidItemStatus reports whether a status is supported.
func IsValidItemStatus(s ItemStatus) bool {
	return slices.Contains(validItemStatuses, NormalizeItemStatus(s))
}

// ItemStatuses returns all statuses in procurement order.
func ItemStatuses() []ItemStatus {
	return append([]ItemStatus(nil), validItemStatuses...)
}

// normalized trims text fields and fills creation defaults.
func (i Item) normalized() Item {
	i.ID = strings.TrimSpace(i.ID)
	i.ProjectID = strings.TrimSpace(i.ProjectID)
	i.RoomID = strings.TrimSpace(i.RoomID)
	i.Name = strings.TrimSpace(i.Name)
	i.Category = NormalizeItemCategory(i.Category)
	if i.Category == "" {
		i.Category = CategoryFurniture
	}
	i.Vendor = strings.TrimSpace(i.Vendor)
	i.SKU = strings.TrimSpace(i.SKU)
	if i.Quantity == 0 {
		i.Quantity = 1
	}
	i.Status = NormalizeItemStatus(i.Status)
	if i.Status == "" {
		i.Status = StatusSpecified
	}
	i.ProductURL = strings.TrimSpace(i.ProductURL)
	i.Notes = strings.TrimSpace(i.Notes)
	return i
}

// Validate checks a normalized item.
func (i Item) Validate() error {
	if i.ProjectID == "" {
		return ErrInvalidID
	}
	if i.Name == "" {
		return ErrInvalidName
	}
	if !IsValidItemCategory(i.Category) {
		return ErrInvalidCategory
	}
	if !IsValidItemStatus(i.Status) {
		return ErrInvalidStatus
	}
	if i.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if i.UnitCostCents < 0 {
		return ErrInvalidCost
	}
	return validateProductURL(i.ProductURL)
}

// ApplyPatch copies every set patch field onto the item.
func (i *Item) ApplyPatch(p ItemPatch) {
	if p.RoomID != nil {
		i.RoomID = *p.RoomID
	}
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.Vendor != nil {
		i.Vendor = *p.Vendor
	}
	if p.SKU != nil {
		i.SKU = *p.SKU
	}
	if p.Quantity != nil {
		i.Quantity = *p.Quantity
	}
	if p.UnitCostCents != nil {
		i.UnitCostCents = *p.UnitCostCents
	}
	if p.Status != nil {
		i.Status = *p.Status
	}
	if p.ProductURL != nil {
		i.ProductURL = *p.ProductURL
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
}

// ItemPatch carries the optional fields of an item update. Nil means unchanged.
type ItemPatch struct {
	RoomID        *string       `json:"room_id,omitempty"`
	Name          *string       `json:"name,omitempty"`
	Category      *ItemCategory `json:"category,omitempty"`
	Vendor        *string       `json:"vendor,omitempty"`
	SKU           *string       `json:"sku,omitempty"`
	Quantity      *int          `json:"quantity,omitempty"`
	UnitCostCents *int64        `json:"unit_cost_cents,omitempty"`
	Status        *ItemStatus   `json:"status,omitempty"`
	ProductURL    *string       `json:"product_url,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.RoomID == nil && p.Name == nil && p.Category == nil && p.Vendor == nil && p.SKU == nil &&
		p.Quantity == nil && p.UnitCostCents == nil && p.Status == nil && p.ProductURL == nil && p.Notes == nil
}

// Clone deep-copies every set field so callers never share pointers.
func (p ItemPatch) Clone() ItemPatch {
	return ItemPatch{
		RoomID:        clonePtr(p.RoomID),
		Name:          clonePtr(p.Name),
		Category:      clonePtr(p.Category),
		Vendor:        clonePtr(p.Vendor),
		SKU:           clonePtr(p.SKU),
		Quantity:      clonePtr(p.Quantity),
		UnitCostCents: clonePtr(p.UnitCostCents),
		Status:        clonePtr(p.Status),
		ProductURL:    clonePtr(p.ProductURL),
		Notes:         clonePtr(p.Notes),
	}
}

// normalized returns a trimmed copy of the patch.
func (p ItemPatch) normalized() ItemPatch {
	out := p.Clone()
	out.RoomID = trimPtr(out.RoomID)
	out.Name = trimPtr(out.Name)
	out.Vendor = trimPtr(out.Vendor)
	out.SKU = trimPtr(out.SKU)
	out.ProductURL = trimPtr(out.ProductURL)
	out.Notes = trimPtr(out.Notes)
	if out.Category != nil {
		c := NormalizeItemCategory(*out.Category)
		out.Category = &c
	}
	if out.Status != nil {
		s := NormalizeItemStatus(*out.Status)
		out.Status = &s
	}
	return out
}

// Validate checks a normalized patch.
func (p ItemPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Name != nil && *p.Name == "" {
		return ErrInvalidName
	}
	if p.Category != nil && !IsValidItemCategory(*p.Category) {
		return ErrInvalidCategory
	}
	if p.Status != nil && !IsValidItemStatus(*p.Status) {
		return ErrInvalidStatus
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if p.UnitCostCents != nil && *p.UnitCostCents < 0 {
		return ErrInvalidCost
	}
	if p.ProductURL != nil {
		return validateProductURL(*p.ProductURL)
	}
	return nil
}

// validateProductURL accepts empty values and absolute http(s) links.
func validateProductURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return ErrInvalidURL
	}
}

// clonePtr copies one optional value.
func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// trimPtr trims one optional string in place.
func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	return &out
}
