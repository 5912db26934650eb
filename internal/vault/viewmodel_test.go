package vault

import (
	"errors"
	"reflect"
	"testing"

	"docvault-api/internal/documents"
)

func sampleDocs() []documents.Document {
	return []documents.Document{
		{ID: "d1", Name: "Passport Scan", Category: documents.CategoryIdentity},
		{ID: "d2", Name: "Bank Statement", Category: documents.CategoryFinancial, Shared: true},
		{ID: "d3", Name: "Driver License", Category: documents.CategoryIdentity},
	}
}

func ids(docs []documents.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestFilteredWithoutFilterReturnsAllInOrder(t *testing.T) {
	vm := NewViewModel()
	vm.Replace(sampleDocs())
	if got := ids(vm.Filtered()); !reflect.DeepEqual(got, []string{"d1", "d2", "d3"}) {
		t.Fatalf("Filtered() = %v", got)
	}
	if f := vm.Filter(); f.Category != CategoryAll || f.ViewMode != ViewGrid || f.Search != "" {
		t.Fatalf("unexpected default filter: %+v", f)
	}
}

func TestFilteredSearchAndCategory(t *testing.T) {
	tests := []struct {
		name     string
		search   string
		category string
		want     []string
	}{
		{name: "case insensitive search", search: "PASS", category: "all", want: []string{"d1"}},
		{name: "search matches across categories", search: "s", category: "all", want: []string{"d1", "d2", "d3"}},
		{name: "category only", search: "", category: "identity", want: []string{"d1", "d3"}},
		{name: "search and category", search: "license", category: "identity", want: []string{"d3"}},
		{name: "search excluded by category", search: "bank", category: "identity", want: []string{}},
		{name: "no match", search: "tax", category: "all", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := NewViewModel()
			vm.Replace(sampleDocs())
			vm.SetSearch(tt.search)
			if err := vm.SetCategory(tt.category); err != nil {
				t.Fatalf("SetCategory: %v", err)
			}
			if got := ids(vm.Filtered()); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Filtered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchInclusionIndependentOfCategory(t *testing.T) {
	vm := NewViewModel()
	vm.Replace(sampleDocs())
	vm.SetSearch("statement")
	for _, c := range []string{"all", "financial"} {
		if err := vm.SetCategory(c); err != nil {
			t.Fatalf("SetCategory(%s): %v", c, err)
		}
		if got := ids(vm.Filtered()); !reflect.DeepEqual(got, []string{"d2"}) {
			t.Fatalf("category %s: Filtered() = %v", c, got)
		}
	}
}

func TestStatsFromUnfilteredCollection(t *testing.T) {
	vm := NewViewModel()
	vm.Replace(sampleDocs())
	vm.SetSearch("nothing matches this")
	want := Stats{Total: 3, Shared: 1, Categories: 2}
	if got := vm.Stats(); got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
}

func TestMarkSharedFlipsOnlyTarget(t *testing.T) {
	vm := NewViewModel()
	vm.Replace(sampleDocs())
	if !vm.MarkShared("d3") {
		t.Fatal("MarkShared(d3) = false")
	}
	got := map[string]bool{}
	for _, d := range vm.All() {
		got[d.ID] = d.Shared
	}
	want := map[string]bool{"d1": false, "d2": true, "d3": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("shared flags = %v, want %v", got, want)
	}
	if vm.MarkShared("missing") {
		t.Fatal("MarkShared(missing) = true")
	}
}

func TestPrependAndRemove(t *testing.T) {
	vm := NewViewModel()
	vm.Replace(sampleDocs())
	vm.Prepend(documents.Document{ID: "d4", Name: "New"})
	vm.Prepend(documents.Document{ID: "d2", Name: "Bank Statement v2"})
	if got := ids(vm.All()); !reflect.DeepEqual(got, []string{"d2", "d4", "d1", "d3"}) {
		t.Fatalf("after prepend: %v", got)
	}
	if !vm.Remove("d4") || vm.Remove("d4") {
		t.Fatal("Remove should succeed once")
	}
	if _, ok := vm.Find("d4"); ok {
		t.Fatal("d4 still present")
	}
}

func TestReplaceDoesNotAliasInput(t *testing.T) {
	docs := sampleDocs()
	vm := NewViewModel()
	vm.Replace(docs)
	vm.MarkShared("d1")
	if docs[0].Shared {
		t.Fatal("Replace must copy its input")
	}
}

func TestSetCategoryAndViewModeValidation(t *testing.T) {
	vm := NewViewModel()
	if err := vm.SetCategory("receipts"); !errors.Is(err, documents.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := vm.SetViewMode("carousel"); !errors.Is(err, documents.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := vm.SetViewMode("LIST"); err != nil || vm.Filter().ViewMode != ViewList {
		t.Fatalf("SetViewMode(LIST) = %v, mode %s", err, vm.Filter().ViewMode)
	}
	if err := vm.SetCategory(""); err != nil || vm.Filter().Category != CategoryAll {
		t.Fatalf("empty category should reset to all: %v", err)
	}
}
