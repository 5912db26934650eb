package vault

import (
	"fmt"
	"strings"

	"docvault-api/internal/documents"
)

// ViewMode is how the dashboard lays out documents.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// CategoryAll disables the category filter.
const CategoryAll = "all"

// Filter is the dashboard's transient filter and display state.
type Filter struct {
	Search   string   `json:"search"`
	Category string   `json:"category"`
	ViewMode ViewMode `json:"viewMode"`
}

// Stats are computed from the unfiltered collection.
type Stats struct {
	Total      int `json:"total"`
	Shared     int `json:"shared"`
	Categories int `json:"categories"`
}

// ViewModel is one owner's documents plus filter state. It is not safe for
// concurrent use; Workspace serializes access.
type ViewModel struct {
	docs   []documents.Document
	filter Filter
}

// NewViewModel returns an empty view-model showing everything in a grid.
func NewViewModel() *ViewModel {
	return &ViewModel{filter: Filter{Category: CategoryAll, ViewMode: ViewGrid}}
}

// Replace swaps the collection, keeping filter state.
func (vm *ViewModel) Replace(docs []documents.Document) {
	vm.docs = append(vm.docs[:0:0], docs...)
}

// Prepend puts doc first, dropping any older copy with the same ID.
func (vm *ViewModel) Prepend(doc documents.Document) {
	out := make([]documents.Document, 0, len(vm.docs)+1)
	out = append(out, doc)
	for _, d := range vm.docs {
		if d.ID != doc.ID {
			out = append(out, d)
		}
	}
	vm.docs = out
}

// Remove drops the document with id and reports whether it was present.
func (vm *ViewModel) Remove(id string) bool {
	for i, d := range vm.docs {
		if d.ID == id {
			vm.docs = append(vm.docs[:i:i], vm.docs[i+1:]...)
			return true
		}
	}
	return false
}

// MarkShared flags only the document with id as shared.
func (vm *ViewModel) MarkShared(id string) bool {
	for i := range vm.docs {
		if vm.docs[i].ID == id {
			vm.docs[i].Shared = true
			return true
		}
	}
	return false
}

func (vm *ViewModel) SetSearch(search string) {
	vm.filter.Search = search
}

// SetCategory accepts "all" or a document category.
func (vm *ViewModel) SetCategory(raw string) error {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == CategoryAll {
		vm.filter.Category = CategoryAll
		return nil
	}
	c, err := documents.ParseCategory(raw)
	if err != nil {
		return err
	}
	vm.filter.Category = string(c)
	return nil
}

func (vm *ViewModel) SetViewMode(raw string) error {
	switch ViewMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ViewGrid:
		vm.filter.ViewMode = ViewGrid
	case ViewList:
		vm.filter.ViewMode = ViewList
	default:
		return fmt.Errorf("%w: unknown view mode %q", documents.ErrInvalidInput, raw)
	}
	return nil
}

func (vm *ViewModel) Filter() Filter {
	return vm.filter
}

// Filtered returns the documents whose name contains the search text, case
// insensitively, and whose category matches the selected one.
func (vm *ViewModel) Filtered() []documents.Document {
	search := strings.ToLower(vm.filter.Search)
	out := make([]documents.Document, 0, len(vm.docs))
	for _, d := range vm.docs {
		if !strings.Contains(strings.ToLower(d.Name), search) {
			continue
		}
		if vm.filter.Category != CategoryAll && string(d.Category) != vm.filter.Category {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (vm *ViewModel) Stats() Stats {
	st := Stats{Total: len(vm.docs)}
	seen := make(map[documents.Category]struct{})
	for _, d := range vm.docs {
		if d.Shared {
			st.Shared++
		}
		seen[d.Category] = struct{}{}
	}
	st.Categories = len(seen)
	return st
}

func (vm *ViewModel) Find(id string) (documents.Document, bool) {
	for _, d := range vm.docs {
		if d.ID == id {
			return d, true
		}
	}
	return documents.Document{}, false
}

// All returns the unfiltered collection.
func (vm *ViewModel) All() []documents.Document {
	return append([]documents.Document(nil), vm.docs...)
}
