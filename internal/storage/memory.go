// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novamarket/novamarket-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound     = errors.New("not found")     // Returned when a row is not found
	ErrConflict     = errors.New("conflict")      // Returned when a row already exists
	ErrAlreadyOwned = errors.New("already owned") // Returned when a purchase targets an owned product
	ErrPermission   = errors.New("permission denied") // Returned when a storage policy rejects a write
)

// Store interface defines the storage operations required by the NovaMarket service.
// This interface is implemented by both in-memory and PostgreSQL storage backends.
//
// Concurrent product edits are last-writer-wins; there is no version column.
type Store interface {
	// Product operations for managing the catalog
	ListProducts(ctx context.Context) ([]model.Product, error)             // List the full catalog
	GetProduct(ctx context.Context, id string) (*model.Product, error)     // Get a product by ID
	SaveProduct(ctx context.Context, product model.Product) error          // Insert or update a product in one write
	DeleteProduct(ctx context.Context, id string) error                    // Hard-delete a product

	// Profile operations for managing users
	GetProfile(ctx context.Context, id string) (*model.Profile, error)     // Get a profile by ID
	CreateProfile(ctx context.Context, profile model.Profile) error        // Create a new profile

	// Purchase records the order AND the entitlement grant atomically,
	// bumping the product's sales count. A purchase of an already-owned
	// product returns ErrAlreadyOwned and writes nothing.
	Purchase(ctx context.Context, userID string, product model.Product) (*model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)  // List a user's orders newest-first
	CountOrders(ctx context.Context) (int, float64, error)                 // Order count and completed revenue sum

	// Request board operations (shared backend)
	ListRequests(ctx context.Context) ([]model.ProductRequest, error)      // List board entries newest-first
	GetRequest(ctx context.Context, id string) (*model.ProductRequest, error) // Get a board entry by ID
	CreateRequest(ctx context.Context, request model.ProductRequest) error // Create a new board entry
	UpdateRequest(ctx context.Context, request model.ProductRequest) error // Replace an existing board entry
	DeleteRequest(ctx context.Context, id string) error                    // Hard-delete a board entry
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu       sync.RWMutex                     // Protects concurrent access to maps
	products map[string]*model.Product        // Map of product ID to product
	profiles map[string]*model.Profile        // Map of profile ID to profile
	orders   map[string][]*model.Order        // Map of user ID to orders
	requests map[string]*model.ProductRequest // Map of request ID to board entry
}

// NewMemory creates a new in-memory storage implementation.
// Returns a Store interface that can be used for testing or development.
func NewMemory() Store {
	return &memory{
		products: make(map[string]*model.Product),
		profiles: make(map[string]*model.Profile),
		orders:   make(map[string][]*model.Order),
		requests: make(map[string]*model.ProductRequest),
	}
}

func (m *memory) ListProducts(ctx context.Context) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]model.Product, 0, len(m.products))
	for _, product := range m.products {
		products = append(products, *product)
	}
	// Newest first, ID as the stable tie-break
	sort.Slice(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (m *memory) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	product, exists := m.products[id]
	if !exists {
		return nil, ErrNotFound
	}
	productCopy := *product
	return &productCopy, nil
}

func (m *memory) SaveProduct(ctx context.Context, product model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Insert-or-update in a single write; preserve the sales count on update
	if existing, exists := m.products[product.ID]; exists {
		product.SalesCount = existing.SalesCount
	}
	productCopy := product
	m.products[product.ID] = &productCopy
	return nil
}

func (m *memory) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[id]; !exists {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memory) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[id]
	if !exists {
		return nil, ErrNotFound
	}
	profileCopy := *profile
	profileCopy.PurchasedIDs = append([]string(nil), profile.PurchasedIDs...)
	return &profileCopy, nil
}

func (m *memory) CreateProfile(ctx context.Context, profile model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[profile.ID]; exists {
		return ErrConflict
	}
	profileCopy := profile
	profileCopy.PurchasedIDs = append([]string(nil), profile.PurchasedIDs...)
	m.profiles[profile.ID] = &profileCopy
	return nil
}

// Purchase appends the order and the entitlement under one lock so a double
// submit cannot produce two orders or a duplicate membership.
func (m *memory) Purchase(ctx context.Context, userID string, product model.Product) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, exists := m.profiles[userID]
	if !exists {
		return nil, ErrNotFound
	}
	for _, owned := range profile.PurchasedIDs {
		if owned == product.ID {
			return nil, ErrAlreadyOwned
		}
	}

	order := &model.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: product.ID,
		Amount:    product.Price,
		Status:    model.OrderCompleted,
		CreatedAt: time.Now().UTC(),
	}
	if product.IsFree {
		order.Amount = 0
	}

	profile.PurchasedIDs = append(profile.PurchasedIDs, product.ID)
	m.orders[userID] = append(m.orders[userID], order)
	if stored, ok := m.products[product.ID]; ok {
		stored.SalesCount++
	}

	orderCopy := *order
	return &orderCopy, nil
}

func (m *memory) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]model.Order, 0, len(m.orders[userID]))
	for _, order := range m.orders[userID] {
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *memory) CountOrders(ctx context.Context) (int, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	revenue := 0.0
	for _, orders := range m.orders {
		for _, order := range orders {
			count++
			if order.Status == model.OrderCompleted {
				revenue += order.Amount
			}
		}
	}
	return count, revenue, nil
}

func (m *memory) ListRequests(ctx context.Context) ([]model.ProductRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]model.ProductRequest, 0, len(m.requests))
	for _, request := range m.requests {
		requests = append(requests, *request)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			// ULIDs order by creation time, so this keeps ties stable
			return requests[i].ID > requests[j].ID
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

func (m *memory) GetRequest(ctx context.Context, id string) (*model.ProductRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, exists := m.requests[id]
	if !exists {
		return nil, ErrNotFound
	}
	requestCopy := *request
	return &requestCopy, nil
}

func (m *memory) CreateRequest(ctx context.Context, request model.ProductRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[request.ID]; exists {
		return ErrConflict
	}
	requestCopy := request
	m.requests[request.ID] = &requestCopy
	return nil
}

func (m *memory) UpdateRequest(ctx context.Context, request model.ProductRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[request.ID]; !exists {
		return ErrNotFound
	}
	requestCopy := request
	m.requests[request.ID] = &requestCopy
	return nil
}

func (m *memory) DeleteRequest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[id]; !exists {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}
