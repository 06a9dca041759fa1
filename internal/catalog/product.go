package catalog

import (
	"fmt"
	"strings"
	"time"

	"DecorStore/internal/apperr"
	"DecorStore/internal/filedb"
)

const defaultCategory = "general"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type productMapper struct{}

func (productMapper) Columns() []string {
	return []string{"name", "description", "category", "price", "stock", "images", "created_by", "created_at", "updated_at"}
}

func (productMapper) ToRecord(p Product) filedb.Record {
	return filedb.Record{
		filedb.IDField: p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"category":     p.Category,
		"price":        filedb.FormatCents(p.PriceCents),
		"stock":        filedb.FormatInt(p.Stock),
		"images":       filedb.JoinList(p.Images),
		"created_by":   p.CreatedBy,
		"created_at":   filedb.FormatTime(p.CreatedAt),
		"updated_at":   filedb.FormatTime(p.UpdatedAt),
	}
}

func (productMapper) FromRecord(r filedb.Record) (Product, error) {
	price, err := filedb.ParseCents(r["price"])
	if err != nil {
		return Product{}, err
	}
	stock, err := filedb.ParseInt(r["stock"])
	if err != nil {
		return Product{}, err
	}
	created, err := filedb.ParseTime(r["created_at"])
	if err != nil {
		return Product{}, err
	}
	updated, err := filedb.ParseTime(r["updated_at"])
	if err != nil {
		return Product{}, err
	}

	p := Product{
		ID:          r.ID(),
		Name:        firstNonEmpty(r["name"], r["title"]),
		Description: r["description"],
		Category:    firstNonEmpty(r["category"], defaultCategory),
		PriceCents:  price,
		Stock:       stock,
		Images:      filedb.SplitList(firstNonEmpty(r["images"], r["image_filename"])),
		CreatedBy:   r["created_by"],
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, nil
}

// Input is a create or partial update request. Nil fields are left alone
// on update. Price may be given as a decimal or in cents.
type Input struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	PriceCents  *int64   `json:"price_cents"`
	Stock       *int     `json:"stock"`
}

func (in Input) apply(p *Product) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	switch {
	case in.PriceCents != nil:
		p.PriceCents = *in.PriceCents
	case in.Price != nil:
		cents, err := filedb.ParseCents(fmt.Sprintf("%.4f", *in.Price))
		if err != nil {
			return fmt.Errorf("%w: price: %v", apperr.ErrValidation, err)
		}
		p.PriceCents = cents
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if p.Category == "" {
		p.Category = defaultCategory
	}
	return validate(*p)
}

func validate(p Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", apperr.ErrValidation)
	case p.PriceCents < 0:
		return fmt.Errorf("%w: price must not be negative", apperr.ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", apperr.ErrValidation)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
