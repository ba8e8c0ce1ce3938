package models

import "time"

type ContentType string

const (
	ContentTypeCard      ContentType = "card"
	ContentTypeGuide     ContentType = "guide"
	ContentTypeChecklist ContentType = "checklist"
	ContentTypeTemplate  ContentType = "template"
)

type Category string

const (
	CategoryTenant     Category = "tenant"
	CategoryEmployment Category = "employment"
	CategoryConsumer   Category = "consumer"
	CategoryTraffic    Category = "traffic"
	CategoryArrests    Category = "arrests"
)

// ValidCategory reports whether c is one of the catalog categories.
func ValidCategory(c string) bool {
	switch Category(c) {
	case CategoryTenant, CategoryEmployment, CategoryConsumer, CategoryTraffic, CategoryArrests:
		return true
	}
	return false
}

// LegalContent is one rights card, guide or checklist. Immutable after
// creation.
type LegalContent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Category    Category    `json:"category"`
	Content     string      `json:"content"`
	PriceCents  int64       `json:"price_cents"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DocumentTemplate is a purchasable document blueprint with named fields.
type DocumentTemplate struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        Category  `json:"category"`
	TemplateContent string    `json:"template_content"`
	RequiredFields  []string  `json:"required_fields"`
	PriceCents      int64     `json:"price_cents"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ContentResponse hides the payload until the caller holds access. Free
// items (price 0) are always unlocked.
type ContentResponse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Category    Category    `json:"category"`
	PriceCents  int64       `json:"price_cents"`
	Unlocked    bool        `json:"unlocked"`
	Content     string      `json:"content,omitempty"`
}

// TemplateResponse mirrors ContentResponse for templates; the template body
// is withheld until purchased.
type TemplateResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Category        Category `json:"category"`
	RequiredFields  []string `json:"required_fields"`
	PriceCents      int64    `json:"price_cents"`
	Unlocked        bool     `json:"unlocked"`
	TemplateContent string   `json:"template_content,omitempty"`
}
