// internal/storage/postgres.go
// Package storage provides PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novamarket/novamarket-go/internal/model"
)

// It provides persistent storage for products, profiles, orders, and requests.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
// Parameters:
//   - dsn: Database connection string in PostgreSQL format
// Returns:
//   - Store: Implementation of the storage interface
//   - error: Any error that occurred during initialization
func NewPostgres(dsn string) (Store, error) {
	// Parse the database connection string
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Configure connection pool settings for optimal performance
	// Maximum number of connections
	config.MaxConns = 20
	// Minimum number of connections
	config.MinConns = 5
	// Maximum lifetime of a connection
	config.MaxConnLifetime = time.Hour
	// Maximum idle time before closing
	config.MaxConnIdleTime = time.Minute * 30
	// How often to check connection health
	config.HealthCheckPeriod = time.Minute

	// Establish connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize database schema
	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema initializes the database schema.
// It creates all required tables and indexes if they don't already exist.
// This function is called automatically when creating a new PostgreSQL store.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	// SQL schema definition with all required tables and indexes
	schema := `
		-- Products table for the storefront catalog
		CREATE TABLE IF NOT EXISTS products (
		    id TEXT PRIMARY KEY,                     -- Unique product identifier
		    title TEXT NOT NULL,                     -- Display title
		    description TEXT NOT NULL DEFAULT '',    -- Marketing copy
		    price DOUBLE PRECISION NOT NULL DEFAULT 0, -- List price
		    category TEXT NOT NULL,                  -- Storefront section
		    image_url TEXT NOT NULL DEFAULT '',      -- Primary artwork
		    additional_images JSONB NOT NULL DEFAULT '[]', -- Extra gallery artwork
		    file_url TEXT NOT NULL DEFAULT '',       -- Delivery reference
		    file_type TEXT NOT NULL DEFAULT '',      -- Format tag
		    file_size TEXT NOT NULL DEFAULT '',      -- Human-readable size
		    is_free BOOLEAN NOT NULL DEFAULT FALSE,  -- Free flag
		    badge_text TEXT NOT NULL DEFAULT '',     -- Optional promotional badge
		    modules JSONB NOT NULL DEFAULT '[]',     -- Course curriculum
		    rating DOUBLE PRECISION NOT NULL DEFAULT 0, -- Editorial rating
		    sales_count BIGINT NOT NULL DEFAULT 0,   -- Purchases plus free acquisitions
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() -- Listing time
		);

		-- Indexes for products table to improve query performance
		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
		CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC);

		-- Profiles table for authenticated users
		CREATE TABLE IF NOT EXISTS profiles (
		    id TEXT PRIMARY KEY,                     -- Identity-provider subject
		    email TEXT NOT NULL,                     -- Verified email
		    name TEXT NOT NULL DEFAULT '',           -- Display name
		    role TEXT NOT NULL DEFAULT 'user',       -- user or admin
		    purchased_ids JSONB NOT NULL DEFAULT '[]', -- Product IDs the user owns
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() -- First-seen time
		);

		-- Orders table, append-only purchase ledger
		CREATE TABLE IF NOT EXISTS orders (
		    id TEXT PRIMARY KEY,                     -- Unique order identifier
		    user_id TEXT NOT NULL REFERENCES profiles(id), -- Buyer
		    product_id TEXT NOT NULL,                -- Purchased product
		    amount DOUBLE PRECISION NOT NULL,        -- Price at purchase time
		    status TEXT NOT NULL DEFAULT 'completed', -- completed or pending
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() -- Settlement time
		);

		-- Indexes for orders table to improve query performance
		CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_product_id ON orders(product_id);

		-- Requests table for the shared community board
		CREATE TABLE IF NOT EXISTS requests (
		    id TEXT PRIMARY KEY,                     -- ULID
		    title TEXT NOT NULL,                     -- What is being asked for
		    description TEXT NOT NULL DEFAULT '',    -- Detailed requirements
		    category TEXT NOT NULL DEFAULT '',       -- Free-form category label
		    votes BIGINT NOT NULL DEFAULT 0,         -- Upvote tally
		    user_name TEXT NOT NULL DEFAULT 'Guest User', -- Submitter label
		    status TEXT NOT NULL DEFAULT 'pending',  -- pending, reviewed, or fulfilled
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() -- Submission time
		);

		-- Index for requests table to improve query performance
		CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at DESC);
	`

	// Execute the schema creation SQL
	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

// mapPgError translates PostgreSQL error codes into storage sentinels.
// 23505 is a unique violation; 42501 is insufficient_privilege, raised by
// row-level security policies.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "42501":
			return ErrPermission
		}
	}
	return nil
}

// ListProducts lists the full catalog, newest first.
func (p *postgres) ListProducts(ctx context.Context) ([]model.Product, error) {
	query := `SELECT id, title, description, price, category, image_url, additional_images,
	                 file_url, file_type, file_size, is_free, badge_text, modules, rating,
	                 sales_count, created_at
	          FROM products ORDER BY created_at DESC, id ASC`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for product scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct reads one product row, decoding the JSONB columns.
func scanProduct(row rowScanner) (*model.Product, error) {
	var product model.Product
	var imagesJSON, modulesJSON []byte

	err := row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Category,
		&product.ImageURL,
		&imagesJSON,
		&product.FileURL,
		&product.FileType,
		&product.FileSize,
		&product.IsFree,
		&product.BadgeText,
		&modulesJSON,
		&product.Rating,
		&product.SalesCount,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &product.AdditionalImages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal additional images: %w", err)
	}
	if err := json.Unmarshal(modulesJSON, &product.Modules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal modules: %w", err)
	}

	return &product, nil
}

// GetProduct retrieves a product by its ID.
func (p *postgres) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT id, title, description, price, category, image_url, additional_images,
	                 file_url, file_type, file_size, is_free, badge_text, modules, rating,
	                 sales_count, created_at
	          FROM products WHERE id = $1`

	return scanProduct(p.db.QueryRow(ctx, query, id))
}

// SaveProduct inserts or updates a product in a single write. The sales
// count is never overwritten by an update.
func (p *postgres) SaveProduct(ctx context.Context, product model.Product) error {
	imagesJSON, err := json.Marshal(orEmpty(product.AdditionalImages))
	if err != nil {
		return fmt.Errorf("failed to marshal additional images: %w", err)
	}
	modulesJSON, err := json.Marshal(orEmptyModules(product.Modules))
	if err != nil {
		return fmt.Errorf("failed to marshal modules: %w", err)
	}

	query := `INSERT INTO products (id, title, description, price, category, image_url,
	              additional_images, file_url, file_type, file_size, is_free, badge_text,
	              modules, rating, sales_count, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	          ON CONFLICT (id) DO UPDATE
	          SET title = $2, description = $3, price = $4, category = $5, image_url = $6,
	              additional_images = $7, file_url = $8, file_type = $9, file_size = $10,
	              is_free = $11, badge_text = $12, modules = $13, rating = $14`

	_, err = p.db.Exec(ctx, query,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
		product.Category,
		product.ImageURL,
		imagesJSON,
		product.FileURL,
		product.FileType,
		product.FileSize,
		product.IsFree,
		product.BadgeText,
		modulesJSON,
		product.Rating,
		product.SalesCount,
		product.CreatedAt)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}

// DeleteProduct removes a product permanently.
func (p *postgres) DeleteProduct(ctx context.Context, id string) error {
	result, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfile retrieves a profile by its ID.
func (p *postgres) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	query := `SELECT id, email, name, role, purchased_ids, created_at FROM profiles WHERE id = $1`

	var profile model.Profile
	var purchasedJSON []byte

	err := p.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.Name,
		&profile.Role,
		&purchasedJSON,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal(purchasedJSON, &profile.PurchasedIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purchased ids: %w", err)
	}

	return &profile, nil
}

// CreateProfile creates a new profile row.
func (p *postgres) CreateProfile(ctx context.Context, profile model.Profile) error {
	purchasedJSON, err := json.Marshal(orEmpty(profile.PurchasedIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal purchased ids: %w", err)
	}

	query := `INSERT INTO profiles (id, email, name, role, purchased_ids, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = p.db.Exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		profile.Role,
		purchasedJSON,
		profile.CreatedAt)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// Purchase records the order, grants the entitlement, and bumps the sales
// count inside a single transaction. The profile row is locked first so a
// concurrent double submit serializes and the second attempt sees the grant.
func (p *postgres) Purchase(ctx context.Context, userID string, product model.Product) (*model.Order, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	var purchasedJSON []byte
	err = tx.QueryRow(ctx, `SELECT purchased_ids FROM profiles WHERE id = $1 FOR UPDATE`, userID).Scan(&purchasedJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	var purchased []string
	if err := json.Unmarshal(purchasedJSON, &purchased); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purchased ids: %w", err)
	}
	for _, owned := range purchased {
		if owned == product.ID {
			return nil, ErrAlreadyOwned
		}
	}

	order := model.Order{
		ID:        newOrderID(),
		UserID:    userID,
		ProductID: product.ID,
		Amount:    product.Price,
		Status:    model.OrderCompleted,
		CreatedAt: time.Now().UTC(),
	}
	if product.IsFree {
		order.Amount = 0
	}

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, user_id, product_id, amount, status, created_at)
	                       VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.UserID, order.ProductID, order.Amount, order.Status, order.CreatedAt)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	purchased = append(purchased, product.ID)
	updatedJSON, err := json.Marshal(purchased)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchased ids: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE profiles SET purchased_ids = $1 WHERE id = $2`, updatedJSON, userID)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to grant entitlement: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE products SET sales_count = sales_count + 1 WHERE id = $1`, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to bump sales count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return &order, nil
}

// ListOrders lists a user's orders, newest first.
func (p *postgres) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	query := `SELECT id, user_id, product_id, amount, status, created_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var order model.Order
		err := rows.Scan(&order.ID, &order.UserID, &order.ProductID, &order.Amount, &order.Status, &order.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// CountOrders returns the total order count and the completed revenue sum.
func (p *postgres) CountOrders(ctx context.Context) (int, float64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0) FROM orders`

	var count int
	var revenue float64
	if err := p.db.QueryRow(ctx, query).Scan(&count, &revenue); err != nil {
		return 0, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, revenue, nil
}

// ListRequests lists board entries, newest first.
func (p *postgres) ListRequests(ctx context.Context) ([]model.ProductRequest, error) {
	query := `SELECT id, title, description, category, votes, user_name, status, created_at
	          FROM requests ORDER BY created_at DESC, id DESC`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []model.ProductRequest{}
	for rows.Next() {
		var request model.ProductRequest
		err := rows.Scan(&request.ID, &request.Title, &request.Description, &request.Category,
			&request.Votes, &request.UserName, &request.Status, &request.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

// GetRequest retrieves a board entry by its ID.
func (p *postgres) GetRequest(ctx context.Context, id string) (*model.ProductRequest, error) {
	query := `SELECT id, title, description, category, votes, user_name, status, created_at
	          FROM requests WHERE id = $1`

	var request model.ProductRequest
	err := p.db.QueryRow(ctx, query, id).Scan(&request.ID, &request.Title, &request.Description,
		&request.Category, &request.Votes, &request.UserName, &request.Status, &request.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return &request, nil
}

// CreateRequest creates a new board entry.
func (p *postgres) CreateRequest(ctx context.Context, request model.ProductRequest) error {
	query := `INSERT INTO requests (id, title, description, category, votes, user_name, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := p.db.Exec(ctx, query,
		request.ID,
		request.Title,
		request.Description,
		request.Category,
		request.Votes,
		request.UserName,
		request.Status,
		request.CreatedAt)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// UpdateRequest replaces an existing board entry.
func (p *postgres) UpdateRequest(ctx context.Context, request model.ProductRequest) error {
	query := `UPDATE requests SET title = $1, description = $2, category = $3, votes = $4,
	              user_name = $5, status = $6 WHERE id = $7`

	result, err := p.db.Exec(ctx, query,
		request.Title,
		request.Description,
		request.Category,
		request.Votes,
		request.UserName,
		request.Status,
		request.ID)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteRequest removes a board entry permanently.
func (p *postgres) DeleteRequest(ctx context.Context, id string) error {
	result, err := p.db.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		if mapped := mapPgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// orEmpty normalizes a nil string slice to an empty one so the JSONB column
// never stores null.
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// orEmptyModules normalizes a nil module slice the same way.
func orEmptyModules(modules []model.CourseModule) []model.CourseModule {
	if modules == nil {
		return []model.CourseModule{}
	}
	return modules
}

// newOrderID returns a fresh order identifier.
func newOrderID() string {
	return uuid.New().String()
}
