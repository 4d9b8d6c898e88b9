package domain

import (
	"strings"
	"time"
)

// Product type constants.
const (
	ProductTypeSelling = "product-selling"
	ProductTypeRental  = "product-rental"
)

// Product status constants.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Product is a catalog record. Prices are in the smallest currency unit.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Price       int64      `json:"price"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Colors      []string   `json:"colors"`
	Stock       int        `json:"stock"`
	Images      []string   `json:"images"`
	Views       int64      `json:"views"`
	Sold        int64      `json:"sold"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsDeleted reports whether the product has been soft deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// IsAvailable reports whether the product can be bought right now.
func (p *Product) IsAvailable() bool {
	return p.Stock > 0 && p.Status == ProductStatusActive && !p.IsDeleted()
}

// ParseColors splits a comma-joined color list, trimming entries and dropping
// empty ones. Returns an empty, non-nil slice for blank input.
func ParseColors(raw string) []string {
	out := []string{}
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// IsValidType checks whether t is a known product type.
func IsValidType(t string) bool {
	return t == ProductTypeSelling || t == ProductTypeRental
}

// IsValidStatus checks whether s is a known product status.
func IsValidStatus(s string) bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Category string
	Page     int
	PerPage  int
}

// Offset returns the row offset for the filter's page.
func (f ProductFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}
