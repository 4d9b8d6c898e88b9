package domain

import "time"

// SearchDocument is the projection of a Product stored in the search index.
// It is rewritten in full on every catalog write.
type SearchDocument struct {
	ID          string     `json:"-"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Colors      []string   `json:"colors"`
	Images      []string   `json:"images"`
	Price       int64      `json:"price"`
	Stock       int        `json:"stock"`
	Views       int64      `json:"views"`
	Sold        int64      `json:"sold"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// NewSearchDocument projects p into its index form.
func NewSearchDocument(p *Product) *SearchDocument {
	return &SearchDocument{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Category:    p.Category,
		Colors:      nonNil(p.Colors),
		Images:      nonNil(p.Images),
		Price:       p.Price,
		Stock:       p.Stock,
		Views:       p.Views,
		Sold:        p.Sold,
		Type:        p.Type,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		DeletedAt:   p.DeletedAt,
	}
}

// Product converts the document back to a Product, as returned by search
// endpoints.
func (d *SearchDocument) Product() Product {
	return Product{
		ID:          d.ID,
		Name:        d.Name,
		Slug:        d.Slug,
		Price:       d.Price,
		Description: d.Description,
		Category:    d.Category,
		Colors:      nonNil(d.Colors),
		Stock:       d.Stock,
		Images:      nonNil(d.Images),
		Views:       d.Views,
		Sold:        d.Sold,
		Type:        d.Type,
		Status:      d.Status,
		DeletedAt:   d.DeletedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
