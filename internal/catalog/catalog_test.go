package catalog

import (
	"testing"
	"time"

	"github.com/novamarket/novamarket-go/internal/model"
)

func sampleProducts() []model.Product {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.Product{
		{ID: "a", Title: "React Course", Description: "frontend video course", Category: model.CategoryCourses, Price: 49.99, SalesCount: 1250, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "b", Title: "LUTs Pack", Description: "color grading for video", Category: model.CategoryVideoAssets, Price: 19.00, SalesCount: 840, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "c", Title: "UI Design Book", Description: "design principles", Category: model.CategoryEbooks, Price: 0, IsFree: true, SalesCount: 3500, CreatedAt: base.Add(1 * time.Hour)},
		{ID: "d", Title: "Backgrounds", Description: "abstract design pack", Category: model.CategoryGraphics, Price: 9.99, SalesCount: 210, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func ids(products []model.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func equalIDs(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestFilterByCategory verifies exact category matching.
func TestFilterByCategory(t *testing.T) {
	got := Filter(sampleProducts(), model.CatalogQuery{Category: model.CategoryEbooks})
	if !equalIDs(ids(got), "c") {
		t.Errorf("Filter() = %v, want [c]", ids(got))
	}
}

// TestFilterSearchCaseInsensitive verifies the substring search spans title
// and description regardless of case.
func TestFilterSearchCaseInsensitive(t *testing.T) {
	got := Filter(sampleProducts(), model.CatalogQuery{Search: "DESIGN"})
	if !equalIDs(ids(got), "c", "d") {
		t.Errorf("Filter() = %v, want [c d]", ids(got))
	}
}

// TestFilterTabs verifies the free and paid tabs.
func TestFilterTabs(t *testing.T) {
	free := Filter(sampleProducts(), model.CatalogQuery{Tab: TabFree})
	if !equalIDs(ids(free), "c") {
		t.Errorf("Filter(free) = %v, want [c]", ids(free))
	}
	paid := Filter(sampleProducts(), model.CatalogQuery{Tab: TabPaid})
	if !equalIDs(ids(paid), "a", "b", "d") {
		t.Errorf("Filter(paid) = %v, want [a b d]", ids(paid))
	}
}

// TestFilterComposition verifies predicates compose: category + search + tab.
func TestFilterComposition(t *testing.T) {
	got := Filter(sampleProducts(), model.CatalogQuery{
		Category: model.CategoryGraphics,
		Search:   "design",
		Tab:      TabPaid,
	})
	if !equalIDs(ids(got), "d") {
		t.Errorf("Filter() = %v, want [d]", ids(got))
	}
}

// TestFilterEmptyResult verifies an empty result is returned, not nil panic
// territory.
func TestFilterEmptyResult(t *testing.T) {
	got := Filter(sampleProducts(), model.CatalogQuery{Search: "no such product"})
	if len(got) != 0 {
		t.Errorf("Filter() = %v, want empty", ids(got))
	}
}

// TestSortNewestStable verifies newest ordering and that equal timestamps
// keep their incoming order.
func TestSortNewestStable(t *testing.T) {
	products := sampleProducts()
	Sort(products, SortNewest)
	// a and d share a timestamp; a precedes d in the input
	if !equalIDs(ids(products), "a", "d", "b", "c") {
		t.Errorf("Sort(newest) = %v, want [a d b c]", ids(products))
	}
}

// TestSortPopular verifies descending sales count.
func TestSortPopular(t *testing.T) {
	products := sampleProducts()
	Sort(products, SortPopular)
	if !equalIDs(ids(products), "c", "a", "b", "d") {
		t.Errorf("Sort(popular) = %v, want [c a b d]", ids(products))
	}
}

// TestSortPrice verifies both price orderings.
func TestSortPrice(t *testing.T) {
	products := sampleProducts()
	Sort(products, SortPriceLow)
	if !equalIDs(ids(products), "c", "d", "b", "a") {
		t.Errorf("Sort(price_low) = %v, want [c d b a]", ids(products))
	}
	Sort(products, SortPriceHigh)
	if !equalIDs(ids(products), "a", "b", "d", "c") {
		t.Errorf("Sort(price_high) = %v, want [a b d c]", ids(products))
	}
}

// TestSortUnknownKeyFallsBackToNewest verifies unknown keys behave as newest.
func TestSortUnknownKeyFallsBackToNewest(t *testing.T) {
	products := sampleProducts()
	Sort(products, "bogus")
	if !equalIDs(ids(products), "a", "d", "b", "c") {
		t.Errorf("Sort(bogus) = %v, want [a d b c]", ids(products))
	}
}

// TestApplyFilterThenSort verifies Apply composes filtering before ordering.
func TestApplyFilterThenSort(t *testing.T) {
	got := Apply(sampleProducts(), model.CatalogQuery{Tab: TabPaid, Sort: SortPriceLow})
	if !equalIDs(ids(got), "d", "b", "a") {
		t.Errorf("Apply() = %v, want [d b a]", ids(got))
	}
}

// TestSeed verifies the bundled catalog shape.
func TestSeed(t *testing.T) {
	seed := Seed()
	if len(seed) != 4 {
		t.Fatalf("Seed() len = %d, want 4", len(seed))
	}
	for _, product := range seed {
		if !product.Category.Valid() {
			t.Errorf("Seed() product %s has invalid category %q", product.ID, product.Category)
		}
		if product.IsFree && product.Price != 0 {
			t.Errorf("Seed() product %s is free but priced %v", product.ID, product.Price)
		}
	}
	if !seed[0].Playable() {
		t.Error("Seed() first product should be playable")
	}
	if seed[1].Playable() {
		t.Error("Seed() second product should not be playable")
	}
}
