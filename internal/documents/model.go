package documents

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of document classifications.
type Category string

const (
	CategoryEducation  Category = "education"
	CategoryIdentity   Category = "identity"
	CategoryFinancial  Category = "financial"
	CategoryHealth     Category = "health"
	CategoryProperty   Category = "property"
	CategoryEmployment Category = "employment"
	CategoryOther      Category = "other"
)

var categories = []Category{
	CategoryEducation,
	CategoryIdentity,
	CategoryFinancial,
	CategoryHealth,
	CategoryProperty,
	CategoryEmployment,
	CategoryOther,
}

// Categories lists every category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates raw. The empty value means CategoryOther.
func ParseCategory(raw string) (Category, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return CategoryOther, nil
	}
	for _, c := range categories {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
}

// Document is one stored file plus its metadata row.
type Document struct {
	ID          string
	UserID      string
	Name        string
	Category    Category
	MimeType    string
	SizeBytes   int64
	UploadedAt  time.Time
	Description string
	// StoragePath is the blob key; it is never rewritten after creation.
	StoragePath string
	PublicURL   string
	// Shared is workspace state only and is never persisted.
	Shared bool
}
