// internal/catalog/catalog.go
// Package catalog implements the storefront browsing logic: filtering and
// ordering a product snapshot. The functions here are pure; hydration and
// caching live in the storage and cache packages.
package catalog

import (
	"sort"
	"strings"

	"github.com/novamarket/novamarket-go/internal/model"
)

// Sort keys accepted by Apply. An unknown key falls back to newest.
const (
	SortNewest    = "newest"     // Descending listing time (default)
	SortPopular   = "popular"    // Descending sales count
	SortPriceLow  = "price_low"  // Ascending price
	SortPriceHigh = "price_high" // Descending price
)

// Tab values accepted by Apply.
const (
	TabAll  = ""     // No price constraint
	TabFree = "free" // Free products only
	TabPaid = "paid" // Paid products only
)

// Apply filters and orders a product snapshot. Predicates compose in a fixed
// order: category, then free-text search, then the free/paid tab, then the
// sort. An empty result is valid and returned as an empty slice.
func Apply(products []model.Product, query model.CatalogQuery) []model.Product {
	filtered := Filter(products, query)
	Sort(filtered, query.Sort)
	return filtered
}

// Filter returns the products matching every predicate in the query. The
// input slice is not modified.
func Filter(products []model.Product, query model.CatalogQuery) []model.Product {
	search := strings.ToLower(strings.TrimSpace(query.Search))

	filtered := make([]model.Product, 0, len(products))
	for _, product := range products {
		if query.Category != "" && product.Category != query.Category {
			continue
		}
		if search != "" && !matchesSearch(product, search) {
			continue
		}
		switch query.Tab {
		case TabFree:
			if !product.IsFree {
				continue
			}
		case TabPaid:
			if product.IsFree {
				continue
			}
		}
		filtered = append(filtered, product)
	}
	return filtered
}

// matchesSearch reports whether the lowered search term occurs in the
// product's title or description.
func matchesSearch(product model.Product, search string) bool {
	return strings.Contains(strings.ToLower(product.Title), search) ||
		strings.Contains(strings.ToLower(product.Description), search)
}

// Sort orders products in place by the given key. The sort is stable, so
// newest preserves the incoming order for equal timestamps.
func Sort(products []model.Product, key string) {
	switch key {
	case SortPopular:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].SalesCount > products[j].SalesCount
		})
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	default:
		// newest
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}
